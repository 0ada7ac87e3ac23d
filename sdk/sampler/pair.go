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

// Package sampler 提供一系列高效能的加權抽樣演算法與 (成本, 報酬) 配對取樣器。
//
// 本檔案 (pair.go) 定義配對取樣器的共同介面與分布族分派。

package sampler

import (
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/spec"
)

// PairSampler 以單一拉臂的分布設定產出 (成本, 報酬) 配對。
//
// 合約：
//   - 取樣本身不會失敗（設定錯誤一律在建構時擋下）。
//   - 同一 seed、同一設定下，取樣序列必須逐 bit 重現——
//     迴歸測試與 devsim 回放都建立在這條合約上。
type PairSampler interface {
	Sample() (cost, reward float64)
}

// NewPairSampler 依拉臂描述建構對應分布族的取樣器。
// 不認得的分布族或非正定的高斯共變異是致命設定錯誤。
func NewPairSampler(a *spec.ArmSetting, c *core.Core) (PairSampler, error) {
	if a == nil {
		return nil, errs.NewFatal("nil arm setting")
	}
	if c == nil {
		return nil, errs.NewFatal("nil core")
	}

	switch a.Family {
	case spec.FamilyGaussian:
		return newGaussianPair(a, c)
	case spec.FamilyBoundedUniform:
		return newBoundedPair(a, c)
	case spec.FamilyHeavyTailed:
		return newHeavyTailPair(a, c)
	case spec.FamilyDiscrete:
		return newDiscretePair(a, c)
	default:
		return nil, errs.Fatalf("arm %q: unknown family %q", a.ArmName, a.FamilyStr)
	}
}
