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

package sampler

import (
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/spec"
)

// intPicker 由 LUT 與 *AliasTable 共同滿足，離散臂抽結果索引都走這個介面。
type intPicker interface {
	Pick(c *core.Core) int
}

// lutTotalLimit 是自動選表的分界：權重總和在此以下用 LUT 直查，
// 超過則改用 AliasTable 壓住記憶體。
const lutTotalLimit = 100_000

// discretePair 依整數權重從結果表抽出一筆 (成本, 報酬)。
type discretePair struct {
	picker   intPicker
	outcomes []spec.Outcome
	rngC     *core.Core
}

// newDiscretePair 建構離散臂取樣器。
// 權重檢查在 spec 推導矩時已做過一輪，這裡再擋一次是因為
// SetOutcomes 之外的呼叫端也可能直接組 ArmSetting。
func newDiscretePair(a *spec.ArmSetting, c *core.Core) (*discretePair, error) {
	if len(a.Outcomes) == 0 {
		return nil, errs.Fatalf("arm %q: discrete arm has no outcomes", a.ArmName)
	}
	weights := make([]int, len(a.Outcomes))
	for i, o := range a.Outcomes {
		if o.Weight <= 0 {
			return nil, errs.Fatalf("arm %q: outcome %d has non-positive weight %d", a.ArmName, i, o.Weight)
		}
		weights[i] = o.Weight
	}
	return &discretePair{
		picker:   newIntPicker(weights),
		outcomes: a.Outcomes,
		rngC:     c,
	}, nil
}

// newIntPicker 依權重總和自動挑選查找結構。
// 呼叫前權重必須全為正，兩種建表函式遇到壞權重都會 panic。
func newIntPicker(weights []int) intPicker {
	total := 0
	for _, w := range weights {
		total += w
	}
	if total <= lutTotalLimit {
		return BuildLUT(weights)
	}
	return BuildAliasTable(weights)
}

func (d *discretePair) Sample() (cost, reward float64) {
	o := d.outcomes[d.picker.Pick(d.rngC)]
	return o.Cost, o.Reward
}
