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

package banditlab

import (
	"github.com/zintix-labs/banditlab/corefmt"
	"github.com/zintix-labs/banditlab/dto"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/spec"
	"github.com/zintix-labs/banditlab/stats"
)

// DevSimulator
//
// 只提供給Dev模式使用的模擬器，單線(不併發)，重點在可審計、可重現
type DevSimulator struct {
	sim      *Simulator // 只開放掃描功能
	b        *Bandit    // 同步seed
	sid      spec.SID
	before   []byte
	after    []byte
	before64 string
	after64  string
}

// DevTrialReport 逐場試驗報告：含前後 PRNG 快照與每場完整結果。
type DevTrialReport struct {
	Before      string            `json:"start_b64u"`
	After       string            `json:"after_b64u"`
	Round       int               `json:"round"`
	AvgReward   float64           `json:"avg_reward"`
	AvgRegret   float64           `json:"avg_regret"`
	TotalCost   float64           `json:"total_cost"`
	TotalReward float64           `json:"total_reward"`
	Results     []dto.TrialResult `json:"results"`
}

func (d *DevSimulator) playOne(key spec.PolicyKey, budget float64) (dto.TrialResult, error) {
	req := &buf.PlayRequest{
		UID:      "dev",
		Scenario: d.sid,
		Policy:   key,
		Budget:   budget,
		Trace:    true,
	}
	return d.b.Play(req)
}

func (d *DevSimulator) Trials(key spec.PolicyKey, budget float64, round int) (DevTrialReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return DevTrialReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}

	// 逐場試驗
	ds := make([]dto.TrialResult, 0, round)
	for range round {
		result, err := d.playOne(key, budget)
		if err != nil {
			return DevTrialReport{}, errs.Wrap(err, "play error")
		}
		ds = append(ds, result)
	}
	// 統計
	cost, reward, regret := 0.0, 0.0, 0.0
	for _, r := range ds {
		cost += r.TotalCost
		reward += r.TotalReward
		regret += r.Regret
	}

	de := DevTrialReport{
		Before:      ds[0].State.StartCoreSnapB64U,
		After:       ds[len(ds)-1].State.AfterCoreSnapB64U,
		Round:       len(ds),
		AvgReward:   reward / float64(len(ds)),
		AvgRegret:   regret / float64(len(ds)),
		TotalCost:   cost,
		TotalReward: reward,
		Results:     ds,
	}
	return de, nil
}

func (d *DevSimulator) RestoreTrials(be64 string, key spec.PolicyKey, budget float64, round int) (DevTrialReport, error) {
	// 限制檢查
	if round < 1 || round > 5000 {
		return DevTrialReport{}, errs.NewWarn("round must be between 1 and 5,000")
	}
	// 解析seed
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return DevTrialReport{}, errs.NewWarn("decode seed failed" + err.Error())
	}
	// restore
	if err := d.b.RestoreCore(be); err != nil {
		return DevTrialReport{}, errs.NewWarn("bandit restore failed")
	}
	return d.Trials(key, budget, round)
}

type DevSimReport struct {
	Before string             `json:"before"`
	After  string             `json:"after"`
	Stat   *stats.SweepReport `json:"statistic"`
}

// Sim 以單線掃描跑完整個 策略 × 預算 矩陣。
// trials > 0 時覆寫掃描設定內的每格試驗數。
func (d *DevSimulator) Sim(trials int) (DevSimReport, error) {
	// 先存 before 快照
	b := d.sim.bBuf[0]
	be, err := b.SnapshotCore()
	if err != nil {
		return DevSimReport{}, err
	}
	be64 := corefmt.EncodeBase64URL(be)
	d.before = be
	d.before64 = be64

	// 掃描
	if trials < 0 || trials > 3_000_000 {
		return DevSimReport{}, errs.NewWarn("trials must be between 1 and 3,000,000")
	}
	if trials > 0 {
		d.sim.set.Trials = trials
	}
	stat, _, err := d.sim.Sweep(false)
	if err != nil {
		return DevSimReport{}, errs.Wrap(err, "sim failed")
	}

	// 再存 after 快照
	af, err := b.SnapshotCore()
	if err != nil {
		return DevSimReport{}, err
	}
	af64 := corefmt.EncodeBase64URL(af)
	d.after = af
	d.after64 = af64

	return DevSimReport{
		Before: be64,
		After:  af64,
		Stat:   stat,
	}, nil
}

func (d *DevSimulator) RestoreSim(be64 string, trials int) (DevSimReport, error) {
	// 反解析 string -> []byte
	be, err := corefmt.DecodeBase64URL(be64)
	if err != nil {
		return DevSimReport{}, errs.Wrap(err, "decode seed failed")
	}
	d.before = be
	d.before64 = be64

	// restore
	if err := d.sim.bBuf[0].RestoreCore(be); err != nil {
		return DevSimReport{}, errs.Wrap(err, "restore simulator failed")
	}

	return d.Sim(trials)
}
