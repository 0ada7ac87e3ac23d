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

package recorder

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/spec"
	"github.com/zintix-labs/banditlab/stats"
)

// TrialRecorder 試驗紀錄員
//
// TrialRecorder 負責紀錄試驗結果，並透過Done輸出掃描統計報表。
// 一個 recorder 綁定一個情境；(policy, budget) 各自累積成一格。
type TrialRecorder struct {
	ScenarioName string
	ScenarioID   spec.SID
	TrueRates    []float64
	OptimalArm   int
	OptimalRate  float64
	cells        map[string]*CellRecord
	order        []string // 格子的首見順序，讓報表與 CSV 輸出穩定
}

// CellRecord 單格（policy, budget）的累積紀錄
type CellRecord struct {
	Policy spec.PolicyKey
	Budget float64
	Trials int

	RewardSum   float64
	RewardSqSum float64 // 平方和
	RegretSum   float64
	RegretSqSum float64 // 平方和
	EpochSum    int

	OptimalMostPulled int
	EffCollect        []int

	Regrets  []float64
	EffRates []float64
}

func NewTrialRecorder(name string, id spec.SID, trueRates []float64, optimalArm int) (*TrialRecorder, error) {
	s := new(TrialRecorder)

	if len(trueRates) == 0 {
		return s, errs.NewFatal("true rates must not be empty")
	}
	if optimalArm < 0 || optimalArm >= len(trueRates) {
		return s, errs.NewFatal(fmt.Sprintf("optimal arm err %d", optimalArm))
	}
	// 通過valid
	s.ScenarioName = name
	s.ScenarioID = id
	s.TrueRates = trueRates
	s.OptimalArm = optimalArm
	s.OptimalRate = trueRates[optimalArm]
	s.cells = make(map[string]*CellRecord)

	return s, nil
}

func MergeTrialRecorder(r []*TrialRecorder) (*TrialRecorder, error) {
	r0 := r[0]
	s, err := NewTrialRecorder(r0.ScenarioName, r0.ScenarioID, r0.TrueRates, r0.OptimalArm)
	if err != nil {
		return s, err
	}
	for _, v := range r {
		if v.ScenarioName != r0.ScenarioName {
			return s, errs.NewFatal("merge trial record err : different scenario name")
		}
		if len(v.TrueRates) != len(r0.TrueRates) {
			return s, errs.NewFatal("merge trial record err : different arm count")
		}
		if v.OptimalArm != r0.OptimalArm {
			return s, errs.NewFatal("merge trial record err : different optimal arm")
		}
		for _, key := range v.order {
			src := v.cells[key]
			dst := s.cell(src.Policy, src.Budget)
			dst.Trials += src.Trials
			dst.RewardSum += src.RewardSum
			dst.RewardSqSum += src.RewardSqSum
			dst.RegretSum += src.RegretSum
			dst.RegretSqSum += src.RegretSqSum
			dst.EpochSum += src.EpochSum
			dst.OptimalMostPulled += src.OptimalMostPulled
			for i := range src.EffCollect {
				dst.EffCollect[i] += src.EffCollect[i]
			}
			dst.Regrets = append(dst.Regrets, src.Regrets...)
			dst.EffRates = append(dst.EffRates, src.EffRates...)
		}
	}
	return s, nil
}

// Record 以單場試驗的軌跡結果更新對應格的統計。
func (s *TrialRecorder) Record(tb *buf.TrajectoryBuffer) {
	c := s.cell(tb.Policy, tb.Budget)

	reward := tb.TotalReward
	regret := s.OptimalRate*tb.Budget - reward

	c.Trials++
	c.RewardSum += reward
	c.RewardSqSum += reward * reward
	c.RegretSum += regret
	c.RegretSqSum += regret * regret
	c.EpochSum += tb.Epochs
	c.Regrets = append(c.Regrets, regret)

	// 實得率與效率分桶（TotalCost 非零：試驗至少包含一回合）
	var eff float64
	if tb.TotalCost > 0 {
		eff = reward / tb.TotalCost
	}
	c.EffRates = append(c.EffRates, eff)
	if s.OptimalRate > 0 {
		pct := int(100 * eff / s.OptimalRate)
		c.EffCollect[stats.Buckets.Index(pct)]++
	}

	if s.optimalMostPulled(tb.Pulls) {
		c.OptimalMostPulled++
	}
}

// Done 將紀錄彙整成掃描統計報表。
func (s *TrialRecorder) Done() *stats.SweepReport {
	cells := make([]*stats.CellReport, 0, len(s.order))
	trialsPerCell := 0
	total := 0
	for _, key := range s.order {
		c := s.cells[key]
		cells = append(cells, &stats.CellReport{
			Policy:            c.Policy,
			Budget:            c.Budget,
			Trials:            c.Trials,
			RewardSum:         c.RewardSum,
			RewardSqSum:       c.RewardSqSum,
			RegretSum:         c.RegretSum,
			RegretSqSum:       c.RegretSqSum,
			EpochSum:          c.EpochSum,
			OptimalMostPulled: c.OptimalMostPulled,
			EffBucket:         stats.Buckets.EffBucketStr(),
			EffCollect:        c.EffCollect,
			Regrets:           c.Regrets,
			EffRates:          c.EffRates,
		})
		if trialsPerCell == 0 {
			trialsPerCell = c.Trials
		}
		total += c.Trials
	}

	return &stats.SweepReport{
		Summary: &stats.ScenarioReport{
			ScenarioName: s.ScenarioName,
			ScenarioID:   s.ScenarioID,
			Arms:         len(s.TrueRates),
			TrueRates:    s.TrueRates,
			OptimalArm:   s.OptimalArm,
			OptimalRate:  s.OptimalRate,
			Trials:       trialsPerCell,
			TotalTrials:  total,
		},
		Cells: cells,
	}
}

// optimalMostPulled 回報最佳臂是否被拉了嚴格最多次。
func (s *TrialRecorder) optimalMostPulled(pulls []int) bool {
	if s.OptimalArm >= len(pulls) {
		return false
	}
	best := pulls[s.OptimalArm]
	for i, p := range pulls {
		if i != s.OptimalArm && p >= best {
			return false
		}
	}
	return true
}

func (s *TrialRecorder) cell(key spec.PolicyKey, budget float64) *CellRecord {
	k := fmt.Sprintf("%s@%g", key, budget)
	if c, ok := s.cells[k]; ok {
		return c
	}
	c := &CellRecord{
		Policy:     key,
		Budget:     budget,
		EffCollect: make([]int, len(stats.Buckets.EffBucketStr())),
	}
	s.cells[k] = c
	s.order = append(s.order, k)
	return c
}

// traceRow 是 JSONL 軌跡輸出的單行：回合觀測加上 (policy, budget)
// 脈絡，單一資料流混錄多場試驗時仍能還原歸屬。
type traceRow struct {
	Policy spec.PolicyKey `json:"policy"`
	Budget float64        `json:"budget"`
	buf.RoundRecord
}

// StreamZstd 把試驗的逐回合軌跡以 zstd 壓縮的 JSONL 寫入 w，一回合一行。
// 只接受開啟 trace 的軌跡；掃描模式（trace off）沒有逐回合資料可寫。
func (s *TrialRecorder) StreamZstd(w io.Writer, tbs ...*buf.TrajectoryBuffer) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return errs.Wrap(err, "zstd writer")
	}
	enc := json.NewEncoder(zw)
	for _, tb := range tbs {
		if tb == nil || !tb.Tracing() {
			zw.Close()
			return errs.NewWarn("trajectory trace is off, nothing to stream")
		}
		for _, r := range tb.Rounds {
			row := traceRow{Policy: tb.Policy, Budget: tb.Budget, RoundRecord: r}
			if err := enc.Encode(row); err != nil {
				zw.Close()
				return errs.Wrap(err, "encode trace row")
			}
		}
	}
	return zw.Close()
}
