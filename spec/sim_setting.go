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

package spec

import (
	"github.com/zintix-labs/banditlab/errs"
)

// 模擬參數預設值。
const (
	DefaultTrials = 200
	// DefaultMaxRounds 是單一試驗的防禦性回合上限。
	// 預算耗盡 almost surely 會先發生（mean_cost > 0），
	// 上限只擋重尾成本抽樣的極端壞運氣，不影響正常結果。
	DefaultMaxRounds = 10_000_000
)

// SimSetting 描述一次完整掃描：哪些策略、哪些預算、各跑幾次試驗。
type SimSetting struct {
	Trials    int             `yaml:"trials,omitempty"     json:"trials,omitempty"`
	Budgets   []float64       `yaml:"budgets"              json:"budgets"`
	Policies  []PolicySetting `yaml:"policies"             json:"policies"`
	BaseSeed  int64           `yaml:"base_seed,omitempty"  json:"base_seed,omitempty"`
	Workers   int             `yaml:"workers,omitempty"    json:"workers,omitempty"`
	MaxRounds int             `yaml:"max_rounds,omitempty" json:"max_rounds,omitempty"`
	Core      string          `yaml:"core,omitempty"       json:"core,omitempty"`
	Progress  bool            `yaml:"progress,omitempty"   json:"progress,omitempty"`
}

// Init 補上預設值並執行基本檢查。
func (ss *SimSetting) Init() error {
	if ss.Trials == 0 {
		ss.Trials = DefaultTrials
	}
	if ss.MaxRounds == 0 {
		ss.MaxRounds = DefaultMaxRounds
	}
	for i := range ss.Policies {
		ss.Policies[i].Params = ss.Policies[i].Params.Normalize()
	}
	return ss.valid()
}

func (ss *SimSetting) valid() error {
	if ss.Trials < 1 {
		return errs.NewFatal("sim setting: trials must be at least 1")
	}
	if len(ss.Budgets) == 0 {
		return errs.NewFatal("sim setting: budgets is required")
	}
	for _, b := range ss.Budgets {
		if b <= 0 {
			return errs.Fatalf("sim setting: budget must be positive, got %v", b)
		}
	}
	if len(ss.Policies) == 0 {
		return errs.NewFatal("sim setting: policies is required")
	}
	for _, p := range ss.Policies {
		if p.Key == "" {
			return errs.NewFatal("sim setting: policy key is required")
		}
	}
	if ss.Workers < 0 {
		return errs.NewFatal("sim setting: workers must be non-negative")
	}
	if ss.MaxRounds < 1 {
		return errs.NewFatal("sim setting: max_rounds must be at least 1")
	}
	return nil
}
