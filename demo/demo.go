// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package demo

import (
	"github.com/zintix-labs/banditlab"
	"github.com/zintix-labs/banditlab/catalog"
	"github.com/zintix-labs/banditlab/demo/demo_configs"
	"github.com/zintix-labs/banditlab/demo/demo_policy"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/sdk/policy"
	"github.com/zintix-labs/banditlab/server/logger"
	"github.com/zintix-labs/banditlab/server/svrcfg"
)

func New() (*catalog.Catalog, error) {
	return catalog.New(demo_configs.FS)
}

func NewServerConfig() (*svrcfg.SvrCfg, error) {
	lab, err := NewBanditLab()
	if err != nil {
		return nil, errs.NewFatal("new banditlab failed:" + err.Error())
	}
	scfg := &svrcfg.SvrCfg{
		Log:         logger.NewDefaultAsyncLogger(logger.ModeDev),
		PoolBufSize: 1,
		Lab:         lab,
	}
	return scfg, nil
}

func NewBanditLab() (*banditlab.Banditlab, error) {
	return banditlab.NewAuto(
		core.Default(),
		banditlab.Scenarios(demo_configs.FS),
		banditlab.Policies(policy.NewBuiltinRegistry(), demo_policy.Reg),
	)
}
