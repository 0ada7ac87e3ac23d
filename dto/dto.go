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

// Package dto 定義對外輸出的序列化結構：把內部緩衝
// （buf.TrajectoryBuffer）與統計結果轉成穩定的 JSON 形狀。
package dto

import (
	"github.com/zintix-labs/banditlab/corefmt"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/spec"
)

// TrialResult 是單一試驗的完整輸出。
type TrialResult struct {
	ScenarioName string         `json:"scenario"`         // 情境名稱
	ScenarioID   spec.SID       `json:"sid"`              // 情境編號
	Policy       spec.PolicyKey `json:"policy"`           // 使用的策略
	Budget       float64        `json:"budget"`           // 本次試驗預算
	TotalCost    float64        `json:"total_cost"`       // 累計成本（> budget）
	TotalReward  float64        `json:"total_reward"`     // 累計報酬
	Epochs       int            `json:"epochs"`           // 用掉的回合數
	Regret       float64        `json:"regret"`           // 相對最佳靜態策略的遺憾值
	OptimalRate  float64        `json:"optimal_rate"`     // 最佳臂報酬率 E[R]/E[X]
	Pulls        []int          `json:"pulls"`            // 每臂拉次
	Rounds       []RoundDTO     `json:"rounds,omitempty"` // 逐回合軌跡（trace 模式）
	State        TrialState     `json:"trial_state"`      // PRNG 快照（回放用）
	Diag         any            `json:"diag,omitempty"`   // 策略自訂診斷輸出
}

// RoundDTO 為對外輸出的 RoundRecord 序列化結構。
type RoundDTO struct {
	Epoch     int     `json:"epoch"`
	Arm       int     `json:"arm"`
	Cost      float64 `json:"cost"`
	Reward    float64 `json:"reward"`
	CumCost   float64 `json:"cum_cost"`
	CumReward float64 `json:"cum_reward"`
}

// TrialState 是試驗前後 PRNG 快照的 Base64URL 表示。
//
// 設計目標：引擎維持純計算器（stateless / deterministic），
// 「可回放」所需的狀態由呼叫端保存並透過 DevSimulator 回送。
type TrialState struct {
	StartCoreSnapB64U string `json:"start_b64u"` // 必回
	AfterCoreSnapB64U string `json:"after_b64u"` // 必回
}

// NewTrialResultDTO 把引擎緩衝轉成對外輸出結構。
// optimalRate 由 Environment 提供；遺憾值在這裡一次算定：
//
//	regret = optimalRate * budget - totalReward
func NewTrialResultDTO(tb *buf.TrajectoryBuffer, optimalRate float64) (TrialResult, error) {
	if tb == nil {
		return TrialResult{}, errs.NewWarn("trajectory buffer is nil")
	}

	dto := TrialResult{
		ScenarioName: tb.ScenarioName,
		ScenarioID:   tb.ScenarioID,
		Policy:       tb.Policy,
		Budget:       tb.Budget,
		TotalCost:    tb.TotalCost,
		TotalReward:  tb.TotalReward,
		Epochs:       tb.Epochs,
		Regret:       optimalRate*tb.Budget - tb.TotalReward,
		OptimalRate:  optimalRate,
		Pulls:        append([]int(nil), tb.Pulls...),
		State: TrialState{
			StartCoreSnapB64U: corefmt.EncodeBase64URL(tb.State.StartCoreSnap),
			AfterCoreSnapB64U: corefmt.EncodeBase64URL(tb.State.AfterCoreSnap),
		},
	}

	if len(tb.Rounds) > 0 {
		dto.Rounds = make([]RoundDTO, len(tb.Rounds))
		for i, r := range tb.Rounds {
			dto.Rounds[i] = RoundDTO{
				Epoch:     r.Epoch,
				Arm:       r.Arm,
				Cost:      r.Cost,
				Reward:    r.Reward,
				CumCost:   r.CumCost,
				CumReward: r.CumReward,
			}
		}
	}

	return dto, nil
}

// SweepRow 是掃描輸出的單列：一個 (policy, budget) 組合跨全部
// 試驗的彙總統計。欄位順序即 CSV 欄位順序。
type SweepRow struct {
	Policy              spec.PolicyKey `json:"policy"`
	Budget              float64        `json:"budget"`
	Trials              int            `json:"trials"`
	AvgReward           float64        `json:"avg_reward"`
	StdReward           float64        `json:"std_reward"`
	AvgRegret           float64        `json:"avg_regret"`
	StdRegret           float64        `json:"std_regret"`
	OptimalStaticReward float64        `json:"optimal_static_reward_expected"`
}

// SweepResult 是單一情境完整掃描的輸出。
type SweepResult struct {
	ScenarioName string         `json:"scenario"`
	ScenarioID   spec.SID       `json:"sid"`
	Rows         []SweepRow     `json:"rows"`
	TrueRates    []float64      `json:"true_rates,omitempty"` // 各臂真實報酬率
	Fixed        map[string]any `json:"fixed,omitempty"`      // 情境自訂擴充區原樣帶出
}
