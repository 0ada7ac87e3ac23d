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

// Package buf 提供試驗熱路徑上的可重用緩衝結構。
//
// 試驗引擎（Bandit）每回合都會寫入一筆 RoundRecord；為了避免
// 長掃描時的 GC 壓力，TrajectoryBuffer 會被重複使用，Reset 只
// 截斷長度、保留已配置容量。
package buf

import (
	"github.com/zintix-labs/banditlab/spec"
)

const capRoundGrow int = 1024

// TrialState 保存單一試驗前後的 PRNG 快照，
// 讓同一場試驗可以完整重播（replay）。
type TrialState struct {
	StartCoreSnap []byte // 試驗開始前的 PRNG 快照
	AfterCoreSnap []byte // 試驗結束後的 PRNG 快照
}

// RoundRecord 是單一回合的完整觀測：第幾回合、拉哪支臂、
// 該筆 (成本, 報酬) 以及拉完後的累計值。
type RoundRecord struct {
	Epoch     int     `json:"epoch"`
	Arm       int     `json:"arm"`
	Cost      float64 `json:"cost"`
	Reward    float64 `json:"reward"`
	CumCost   float64 `json:"cum_cost"`
	CumReward float64 `json:"cum_reward"`
}

// TrajectoryBuffer 保存單一試驗的完整回合軌跡與彙總值。
//
// Buffer 語意（影響正確性，請注意）：
//   - 同一個 buffer 會被下一次試驗覆寫；要保留結果請在
//     下一次 Run 前轉成 DTO 或自行複製。
//   - 非並行安全；每個 worker 各用各的。
type TrajectoryBuffer struct {
	ScenarioName string         // 情境名稱（觀測/日誌用）
	ScenarioID   spec.SID       // 情境編號
	Policy       spec.PolicyKey // 執行的策略
	Budget       float64        // 本次試驗的預算

	TotalCost   float64 // 累計成本（結束時必然 > Budget）
	TotalReward float64 // 累計報酬
	Epochs      int     // 用掉的回合數
	Pulls       []int   // 每臂拉次
	Rounds      []RoundRecord

	State TrialState // 試驗前後 PRNG 快照（由引擎填入）

	trace bool // false 時 Record 不保留逐回合紀錄，只更新彙總
}

// NewTrajectoryBuffer 建立綁定單一情境的軌跡緩衝。
// trace = false 時只累積彙總值，逐回合紀錄被丟棄（大規模掃描模式）。
func NewTrajectoryBuffer(sc *spec.Scenario, trace bool) *TrajectoryBuffer {
	tb := &TrajectoryBuffer{
		ScenarioName: sc.ScenarioName,
		ScenarioID:   sc.ScenarioID,
		Pulls:        make([]int, sc.K()),
		trace:        trace,
	}
	if trace {
		tb.Rounds = make([]RoundRecord, 0, capRoundGrow)
	}
	return tb
}

// Record 累積一回合的觀測。呼叫順序即回合順序，Epoch 由呼叫端給定。
func (tb *TrajectoryBuffer) Record(epoch, arm int, cost, reward float64) {
	tb.TotalCost += cost
	tb.TotalReward += reward
	tb.Epochs = epoch
	tb.Pulls[arm]++
	if tb.trace {
		tb.Rounds = append(tb.Rounds, RoundRecord{
			Epoch:     epoch,
			Arm:       arm,
			Cost:      cost,
			Reward:    reward,
			CumCost:   tb.TotalCost,
			CumReward: tb.TotalReward,
		})
	}
}

// Tracing 回報是否保留逐回合紀錄。
func (tb *TrajectoryBuffer) Tracing() bool { return tb.trace }

// SetTrace 切換逐回合紀錄；在 Reset 之後、第一筆 Record 之前呼叫。
func (tb *TrajectoryBuffer) SetTrace(on bool) {
	if on && tb.Rounds == nil {
		tb.Rounds = make([]RoundRecord, 0, capRoundGrow)
	}
	tb.trace = on
}

// Reset 清掉上一次試驗的內容，保留已配置容量，並記下新預算。
func (tb *TrajectoryBuffer) Reset(policy spec.PolicyKey, budget float64) {
	tb.Policy = policy
	tb.Budget = budget
	tb.TotalCost = 0
	tb.TotalReward = 0
	tb.Epochs = 0
	for i := range tb.Pulls {
		tb.Pulls[i] = 0
	}
	tb.Rounds = tb.Rounds[:0]
	tb.State = TrialState{}
}
