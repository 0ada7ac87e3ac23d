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

// SID 是情境（scenario）的唯一編號。
type SID uint

// Scenario 包含一個多臂拉霸問題實例所需的所有設定：
// 有序拉臂清單（索引即臂編號）加上給自訂策略用的 Fixed 擴充區。
type Scenario struct {
	ScenarioName string         `yaml:"scenario_name" json:"scenario_name"`
	ScenarioID   SID            `yaml:"scenario_id"   json:"scenario_id"`
	Note         string         `yaml:"note,omitempty" json:"note,omitempty"`
	Arms         []ArmSetting   `yaml:"arms"          json:"arms"`
	Fixed        map[string]any `yaml:"fixed,omitempty" json:"fixed,omitempty"`
}

// init 逐臂初始化後執行整體檢查。
func (s *Scenario) init() error {
	for i := range s.Arms {
		if err := s.Arms[i].Init(); err != nil {
			return err
		}
	}
	return s.valid()
}

// valid 執行最基本的設定檔檢查，如需更多驗證可在此擴充。
func (s *Scenario) valid() error {
	if s.ScenarioName == "" {
		return errs.NewFatal("scenario_name is required")
	}
	if len(s.Arms) == 0 {
		return errs.Fatalf("scenario %q: empty arms", s.ScenarioName)
	}

	// 全情境的最低期望成本必須嚴格為正，否則報酬率基準無意義。
	// 等待外部結果表的離散臂在表載入後由 SetOutcomes 補檢。
	for i := range s.Arms {
		a := &s.Arms[i]
		if a.TablePending() {
			continue
		}
		if a.MeanCost <= 0 {
			return errs.Fatalf("scenario %q: arm %d mean_cost must be positive", s.ScenarioName, i)
		}
	}
	return nil
}

// Resolved 回報是否所有離散臂的結果表都已載入。
func (s *Scenario) Resolved() bool {
	for i := range s.Arms {
		if s.Arms[i].TablePending() {
			return false
		}
	}
	return true
}

// K 回傳拉臂數。
func (s *Scenario) K() int { return len(s.Arms) }
