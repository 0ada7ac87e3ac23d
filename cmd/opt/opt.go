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

package main

import (
	"embed"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/zintix-labs/banditlab/demo"
	"github.com/zintix-labs/banditlab/optimizer"
	"github.com/zintix-labs/banditlab/spec"
)

//go:embed opt_cfg.yaml
var OptCfg embed.FS

var optsid spec.SID
var optseed int64

func main() {
	flag.Var(sidFlag{&optsid}, "scenario", "target scenario id")
	flag.Int64Var(&optseed, "seed", 4127483647, "int64 seed for candidate sampling and sweeps")
	flag.Parse()
	lab, err := demo.NewBanditLab()
	if err != nil {
		log.Fatal(err)
	}
	tuner, err := optimizer.New(OptCfg, "opt_cfg.yaml")
	if err != nil {
		log.Fatal(err)
	}
	report, err := tuner.Run(optsid, lab, optseed)
	if err != nil {
		log.Fatal(err)
	}
	if err := report.Save(); err != nil {
		log.Fatal(err)
	}
}

type sidFlag struct{ p *spec.SID }

func (f sidFlag) String() string { return fmt.Sprint(uint(*f.p)) }
func (f sidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = spec.SID(uint(u))
	return nil
}
