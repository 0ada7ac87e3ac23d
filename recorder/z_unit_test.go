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

package recorder_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/banditlab/recorder"
	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/spec"
	"github.com/zintix-labs/banditlab/stats"
)

var testRates = []float64{1.0, 2.5}

func newRecorder(t *testing.T) *recorder.TrialRecorder {
	t.Helper()
	rec, err := recorder.NewTrialRecorder("two_arms", spec.SID(7), testRates, 1)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	return rec
}

// playTrial fills a trajectory buffer with a synthetic trial where every
// pull goes to arm and returns rate-per-cost reward.
func playTrial(policy spec.PolicyKey, budget float64, arm, rounds int, rate float64) *buf.TrajectoryBuffer {
	sc := &spec.Scenario{
		ScenarioName: "two_arms",
		ScenarioID:   7,
		Arms:         make([]spec.ArmSetting, 2),
	}
	tb := buf.NewTrajectoryBuffer(sc, false)
	tb.Reset(policy, budget)
	cost := budget / float64(rounds)
	for e := 1; e <= rounds; e++ {
		tb.Record(e, arm, cost, cost*rate)
	}
	return tb
}

func TestNewTrialRecorderRejectsBadInput(t *testing.T) {
	if _, err := recorder.NewTrialRecorder("x", 1, nil, 0); err == nil {
		t.Fatalf("empty true rates must fail")
	}
	if _, err := recorder.NewTrialRecorder("x", 1, testRates, 2); err == nil {
		t.Fatalf("out-of-range optimal arm must fail")
	}
}

func TestRecordAccumulatesCell(t *testing.T) {
	rec := newRecorder(t)

	// two trials on the optimal arm at the optimal rate: regret 0, eff 100%
	rec.Record(playTrial("ucb_b1", 100, 1, 10, 2.5))
	rec.Record(playTrial("ucb_b1", 100, 1, 10, 2.5))
	// one trial stuck on the weak arm: reward 100, regret 150
	rec.Record(playTrial("ucb_b1", 100, 0, 10, 1.0))

	report := rec.Done()
	c := report.Cell("ucb_b1", 100)
	if c == nil {
		t.Fatalf("cell missing")
	}
	if c.Trials != 3 {
		t.Fatalf("Trials = %d, want 3", c.Trials)
	}
	if math.Abs(c.RewardSum-600) > 1e-9 {
		t.Fatalf("RewardSum = %v, want 600", c.RewardSum)
	}
	if math.Abs(c.RegretSum-150) > 1e-9 {
		t.Fatalf("RegretSum = %v, want 150", c.RegretSum)
	}
	if c.EpochSum != 30 {
		t.Fatalf("EpochSum = %d, want 30", c.EpochSum)
	}
	if c.OptimalMostPulled != 2 {
		t.Fatalf("OptimalMostPulled = %d, want 2", c.OptimalMostPulled)
	}

	// efficiency buckets: 100% of optimal lands in [100,110), 40% in [40,50)
	if c.EffCollect[11] != 2 {
		t.Fatalf("EffCollect[11] = %d, want 2", c.EffCollect[11])
	}
	if c.EffCollect[5] != 1 {
		t.Fatalf("EffCollect[5] = %d, want 1", c.EffCollect[5])
	}
}

func TestRecordSeparatesCellsByBudget(t *testing.T) {
	rec := newRecorder(t)
	rec.Record(playTrial("ucb_b1", 100, 1, 10, 2.5))
	rec.Record(playTrial("ucb_b1", 200, 1, 10, 2.5))
	rec.Record(playTrial("ucb_m1", 100, 1, 10, 2.5))

	report := rec.Done()
	if len(report.Cells) != 3 {
		t.Fatalf("cells = %d, want 3", len(report.Cells))
	}
	// first-seen order keeps CSV output stable
	if report.Cells[0].Budget != 100 || report.Cells[1].Budget != 200 {
		t.Fatalf("cell order broken: %v %v", report.Cells[0].Budget, report.Cells[1].Budget)
	}
	if report.Summary.TotalTrials != 3 || report.Summary.Trials != 1 {
		t.Fatalf("summary trials = %d / %d", report.Summary.Trials, report.Summary.TotalTrials)
	}
	if report.Summary.OptimalRate != 2.5 || report.Summary.OptimalArm != 1 {
		t.Fatalf("summary optimum = %+v", report.Summary)
	}
}

func TestOptimalMostPulledIsStrict(t *testing.T) {
	rec := newRecorder(t)

	sc := &spec.Scenario{ScenarioName: "two_arms", ScenarioID: 7, Arms: make([]spec.ArmSetting, 2)}
	tb := buf.NewTrajectoryBuffer(sc, false)
	tb.Reset("ucb_b2", 10)
	// tie between arms: must not count as converged
	tb.Record(1, 0, 5, 5)
	tb.Record(2, 1, 5, 12.5)
	rec.Record(tb)

	report := rec.Done()
	if got := report.Cell("ucb_b2", 10).OptimalMostPulled; got != 0 {
		t.Fatalf("tie counted as most-pulled: %d", got)
	}
}

func TestMergeTrialRecorder(t *testing.T) {
	a := newRecorder(t)
	b := newRecorder(t)
	a.Record(playTrial("ucb_b1", 100, 1, 10, 2.5))
	b.Record(playTrial("ucb_b1", 100, 0, 10, 1.0))
	b.Record(playTrial("ucb_b2c", 100, 1, 10, 2.5))

	m, err := recorder.MergeTrialRecorder([]*recorder.TrialRecorder{a, b})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	report := m.Done()
	c := report.Cell("ucb_b1", 100)
	if c.Trials != 2 {
		t.Fatalf("merged trials = %d, want 2", c.Trials)
	}
	if math.Abs(c.RegretSum-150) > 1e-9 {
		t.Fatalf("merged RegretSum = %v, want 150", c.RegretSum)
	}
	if len(c.Regrets) != 2 || len(c.EffRates) != 2 {
		t.Fatalf("raw samples not merged: %d / %d", len(c.Regrets), len(c.EffRates))
	}
	if report.Cell("ucb_b2c", 100) == nil {
		t.Fatalf("cell only present in one worker lost in merge")
	}
	if report.Summary.TotalTrials != 3 {
		t.Fatalf("TotalTrials = %d, want 3", report.Summary.TotalTrials)
	}
}

func TestMergeTrialRecorderRejectsMismatch(t *testing.T) {
	a := newRecorder(t)
	other, err := recorder.NewTrialRecorder("other", spec.SID(8), testRates, 1)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if _, err := recorder.MergeTrialRecorder([]*recorder.TrialRecorder{a, other}); err == nil {
		t.Fatalf("mismatched scenarios must fail to merge")
	}
}

func TestDoneBucketLabelsAttached(t *testing.T) {
	rec := newRecorder(t)
	rec.Record(playTrial("ucb_b1", 100, 1, 10, 2.5))
	report := rec.Done()
	c := report.Cell("ucb_b1", 100)
	if len(c.EffBucket) != len(stats.Buckets.EffBucketStr()) {
		t.Fatalf("bucket labels = %d", len(c.EffBucket))
	}
	if len(c.EffCollect) != len(c.EffBucket) {
		t.Fatalf("collect len %d != labels %d", len(c.EffCollect), len(c.EffBucket))
	}
}

// tracedTrial 與 playTrial 相同，但保留逐回合軌跡。
func tracedTrial(policy spec.PolicyKey, budget float64, arm, rounds int, rate float64) *buf.TrajectoryBuffer {
	sc := &spec.Scenario{
		ScenarioName: "two_arms",
		ScenarioID:   7,
		Arms:         make([]spec.ArmSetting, 2),
	}
	tb := buf.NewTrajectoryBuffer(sc, true)
	tb.Reset(policy, budget)
	cost := budget / float64(rounds)
	for e := 1; e <= rounds; e++ {
		tb.Record(e, arm, cost, cost*rate)
	}
	return tb
}

func TestStreamZstdRoundTrip(t *testing.T) {
	rec := newRecorder(t)
	tb := tracedTrial("ucb_b1", 100, 1, 10, 2.5)

	var sink bytes.Buffer
	if err := rec.StreamZstd(&sink, tb); err != nil {
		t.Fatalf("stream: %v", err)
	}

	zr, err := zstd.NewReader(bytes.NewReader(sink.Bytes()))
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()

	type row struct {
		Policy spec.PolicyKey `json:"policy"`
		Budget float64        `json:"budget"`
		buf.RoundRecord
	}
	var rows []row
	scan := bufio.NewScanner(zr)
	for scan.Scan() {
		var r row
		if err := json.Unmarshal(scan.Bytes(), &r); err != nil {
			t.Fatalf("unmarshal line %d: %v", len(rows), err)
		}
		rows = append(rows, r)
	}
	if err := scan.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("rows = %d, want 10", len(rows))
	}
	for i, r := range rows {
		if r.Policy != "ucb_b1" || r.Budget != 100 {
			t.Fatalf("row %d lost context: %+v", i, r)
		}
		if r.Epoch != i+1 || r.Arm != 1 {
			t.Fatalf("row %d: epoch %d arm %d", i, r.Epoch, r.Arm)
		}
	}
	last := rows[len(rows)-1]
	if last.CumCost != 100 || last.CumReward != 250 {
		t.Fatalf("cum totals = %.2f/%.2f, want 100/250", last.CumCost, last.CumReward)
	}
}

func TestStreamZstdRejectsUntracedBuffer(t *testing.T) {
	rec := newRecorder(t)
	var sink bytes.Buffer
	if err := rec.StreamZstd(&sink, playTrial("ucb_b1", 100, 1, 10, 2.5)); err == nil {
		t.Fatalf("untraced trajectory must fail")
	}
}
