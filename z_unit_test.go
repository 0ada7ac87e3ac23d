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

package banditlab_test

import (
	"context"
	"math"
	"testing"

	"github.com/zintix-labs/banditlab"
	"github.com/zintix-labs/banditlab/demo"
	"github.com/zintix-labs/banditlab/demo/demo_configs"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/sdk/env"
	"github.com/zintix-labs/banditlab/sdk/policy"
	"github.com/zintix-labs/banditlab/spec"
)

const sidTwoArms spec.SID = 1001

func newLab(t *testing.T) *banditlab.Banditlab {
	t.Helper()
	lab, err := demo.NewBanditLab()
	if err != nil {
		t.Fatalf("new banditlab: %v", err)
	}
	return lab
}

func TestNewAutoCatalog(t *testing.T) {
	lab := newLab(t)

	if got := len(lab.IDs()); got != 5 {
		t.Fatalf("IDs = %d, want 5", got)
	}
	ent, ok := lab.EntryById(sidTwoArms)
	if !ok {
		t.Fatalf("EntryById(%d) missing", sidTwoArms)
	}
	if ent.Name != "two_gaussian_arms" {
		t.Fatalf("entry name = %q", ent.Name)
	}
	if _, ok := lab.EntryByName("heavy_tail_arms"); !ok {
		t.Fatalf("EntryByName(heavy_tail_arms) missing")
	}
	if _, ok := lab.EntryById(9999); ok {
		t.Fatalf("unknown sid must not resolve")
	}

	sums, err := lab.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	found := false
	for _, s := range sums {
		if s.SID != sidTwoArms {
			continue
		}
		found = true
		if s.Arms != 2 {
			t.Fatalf("arms = %d, want 2", s.Arms)
		}
		if len(s.Families) != 1 || s.Families[0] != "gaussian" {
			t.Fatalf("families = %v", s.Families)
		}
	}
	if !found {
		t.Fatalf("summary missing sid %d", sidTwoArms)
	}
}

func TestPolicyKeysIncludeBuiltinsAndCustom(t *testing.T) {
	lab := newLab(t)

	keys := map[spec.PolicyKey]bool{}
	for _, k := range lab.PolicyKeys() {
		keys[k] = true
	}
	for _, want := range []spec.PolicyKey{policy.KeyB1, policy.KeyB2, policy.KeyB2C, policy.KeyM1, "greedy_baseline"} {
		if !keys[want] {
			t.Fatalf("policy %q not registered", want)
		}
	}
}

func TestBanditSeededPlayIsReproducible(t *testing.T) {
	lab := newLab(t)

	b, err := lab.NewBandit(sidTwoArms, false)
	if err != nil {
		t.Fatalf("new bandit: %v", err)
	}
	seed := int64(42)
	req := &buf.PlayRequest{
		UID:      "test",
		Scenario: sidTwoArms,
		Policy:   policy.KeyB1,
		Budget:   200,
		Seed:     &seed,
	}
	first, err := b.Play(req)
	if err != nil {
		t.Fatalf("play #1: %v", err)
	}
	second, err := b.Play(req)
	if err != nil {
		t.Fatalf("play #2: %v", err)
	}
	if first.TotalCost != second.TotalCost || first.TotalReward != second.TotalReward {
		t.Fatalf("seeded replay diverged: %.4f/%.4f vs %.4f/%.4f",
			first.TotalCost, first.TotalReward, second.TotalCost, second.TotalReward)
	}
	if first.Epochs != second.Epochs {
		t.Fatalf("epochs diverged: %d vs %d", first.Epochs, second.Epochs)
	}
	for i := range first.Pulls {
		if first.Pulls[i] != second.Pulls[i] {
			t.Fatalf("pulls diverged at arm %d", i)
		}
	}
	if first.State.StartCoreSnapB64U == "" || first.State.AfterCoreSnapB64U == "" {
		t.Fatalf("snapshots must be returned")
	}
}

func TestPlayBudgetAndRegretInvariants(t *testing.T) {
	lab := newLab(t)

	b, err := lab.NewBanditWithSeed(sidTwoArms, 7, false)
	if err != nil {
		t.Fatalf("new bandit: %v", err)
	}
	req := &buf.PlayRequest{
		UID:      "test",
		Scenario: sidTwoArms,
		Policy:   policy.KeyB2,
		Budget:   300,
	}
	res, err := b.Play(req)
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	// 停止條件為「花超過預算的那一拉也計入」，總成本必定越界
	if res.TotalCost <= res.Budget {
		t.Fatalf("total cost %.4f must exceed budget %.4f", res.TotalCost, res.Budget)
	}
	want := res.OptimalRate*res.Budget - res.TotalReward
	if math.Abs(res.Regret-want) > 1e-9 {
		t.Fatalf("regret = %.6f, want %.6f", res.Regret, want)
	}
	if res.Epochs <= 0 {
		t.Fatalf("epochs = %d", res.Epochs)
	}
}

// 兩臂報酬率 3.0 vs 1.5，足量回合後最佳臂的拉次應明顯佔多數。
func TestOptimalArmDominates(t *testing.T) {
	lab := newLab(t)

	b, err := lab.NewBanditWithSeed(sidTwoArms, 20250830, false)
	if err != nil {
		t.Fatalf("new bandit: %v", err)
	}
	if got := b.Env().OptimalArm(); got != 0 {
		t.Fatalf("optimal arm = %d, want 0", got)
	}

	pulls := []int{0, 0}
	for i := 0; i < 200; i++ {
		res, err := b.Play(&buf.PlayRequest{
			UID:      "test",
			Scenario: sidTwoArms,
			Policy:   policy.KeyB1,
			Budget:   400,
		})
		if err != nil {
			t.Fatalf("play: %v", err)
		}
		pulls[0] += res.Pulls[0]
		pulls[1] += res.Pulls[1]
	}
	if pulls[0] <= pulls[1] {
		t.Fatalf("optimal arm starved: pulls = %v", pulls)
	}
}

// 預算拉長後探索成本被攤薄：每單位預算的平均遺憾應明顯下降。
func TestRegretPerBudgetShrinksWithBudget(t *testing.T) {
	lab := newLab(t)

	set := &spec.SimSetting{
		Trials:   200,
		Budgets:  []float64{500, 5000},
		Policies: []spec.PolicySetting{{Key: policy.KeyB1}},
	}
	sim, err := lab.NewSimulatorWithSeed(sidTwoArms, set, 31)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	rep, _, err := sim.Sweep(false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	small := rep.Cell(policy.KeyB1, 500)
	large := rep.Cell(policy.KeyB1, 5000)
	if small == nil || large == nil {
		t.Fatalf("cells missing")
	}
	if large.AvgRegret/5000 >= small.AvgRegret/500 {
		t.Fatalf("regret per budget must shrink: %.6f -> %.6f",
			small.AvgRegret/500, large.AvgRegret/5000)
	}
}

func TestPlayRejectsBadRequest(t *testing.T) {
	lab := newLab(t)

	b, err := lab.NewBandit(sidTwoArms, false)
	if err != nil {
		t.Fatalf("new bandit: %v", err)
	}
	bads := []*buf.PlayRequest{
		nil,
		{UID: "t", Scenario: 9999, Policy: policy.KeyB1, Budget: 100},
		{UID: "t", Scenario: sidTwoArms, Policy: "no_such_policy", Budget: 100},
		{UID: "t", Scenario: sidTwoArms, Policy: policy.KeyB1, Budget: 0},
	}
	for i, req := range bads {
		if _, err := b.Play(req); err == nil {
			t.Fatalf("case %d: invalid request must fail", i)
		}
	}
}

func sweepSetting() *spec.SimSetting {
	return &spec.SimSetting{
		Trials:  40,
		Budgets: []float64{200, 500},
		Policies: []spec.PolicySetting{
			{Key: policy.KeyB1},
			{Key: policy.KeyB2C},
		},
	}
}

func TestSweepSameSeedSameReport(t *testing.T) {
	lab := newLab(t)

	runOnce := func() *struct{ reward, regret float64 } {
		sim, err := lab.NewSimulatorWithSeed(sidTwoArms, sweepSetting(), 99)
		if err != nil {
			t.Fatalf("new simulator: %v", err)
		}
		rep, _, err := sim.Sweep(false)
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		c := rep.Cell(policy.KeyB1, 500)
		if c == nil {
			t.Fatalf("cell ucb_b1/500 missing")
		}
		return &struct{ reward, regret float64 }{c.AvgReward, c.AvgRegret}
	}

	a, b := runOnce(), runOnce()
	if a.reward != b.reward || a.regret != b.regret {
		t.Fatalf("same seed sweep diverged: %+v vs %+v", a, b)
	}
}

func TestSweepReportShape(t *testing.T) {
	lab := newLab(t)

	sim, err := lab.NewSimulatorWithSeed(sidTwoArms, sweepSetting(), 123)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	rep, used, err := sim.Sweep(false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if used <= 0 {
		t.Fatalf("used time must be positive")
	}
	// 2 策略 × 2 預算
	if len(rep.Cells) != 4 {
		t.Fatalf("cells = %d, want 4", len(rep.Cells))
	}
	for _, c := range rep.Cells {
		if c.Trials != 40 {
			t.Fatalf("cell %s/%.0f trials = %d", c.Policy, c.Budget, c.Trials)
		}
		if c.AvgReward <= 0 {
			t.Fatalf("cell %s/%.0f avg reward = %.4f", c.Policy, c.Budget, c.AvgReward)
		}
	}
	if rep.Summary == nil || rep.Summary.ScenarioID != sidTwoArms {
		t.Fatalf("summary missing or wrong sid")
	}
}

func TestSweepMPMergesAllTrials(t *testing.T) {
	lab := newLab(t)

	sim, err := lab.NewSimulatorWithSeed(sidTwoArms, sweepSetting(), 77)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	rep, _, err := sim.SweepMP(3, false)
	if err != nil {
		t.Fatalf("sweep mp: %v", err)
	}
	if len(rep.Cells) != 4 {
		t.Fatalf("cells = %d, want 4", len(rep.Cells))
	}
	for _, c := range rep.Cells {
		if c.Trials != 40 {
			t.Fatalf("cell %s/%.0f merged trials = %d, want 40", c.Policy, c.Budget, c.Trials)
		}
	}

	if _, _, err := sim.SweepMP(0, false); err == nil {
		t.Fatalf("zero workers must fail")
	}
}

// stalledPolicy 一選臂就失敗，用來演練工作機的錯誤退出路徑。
type stalledPolicy struct{}

func (stalledPolicy) SelectArm(totalCost float64, epoch int) (int, error) {
	return 0, errs.NewFatal("estimator backend offline")
}
func (stalledPolicy) UpdateState(arm int, cost, reward float64) error { return nil }
func (stalledPolicy) Reset()                                         {}
func (stalledPolicy) Name() string                                   { return "stalled" }

func TestSweepMPSurfacesWorkerError(t *testing.T) {
	reg := policy.NewRegistry()
	err := reg.Register("stalled", func(e *env.Environment, p spec.PolicyParams) (policy.Policy, error) {
		return stalledPolicy{}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	lab, err := banditlab.NewAuto(
		core.Default(),
		banditlab.Scenarios(demo_configs.FS),
		banditlab.Policies(policy.NewBuiltinRegistry(), reg),
	)
	if err != nil {
		t.Fatalf("new banditlab: %v", err)
	}

	// 任務數刻意超過任務通道的緩衝；出錯的工作機若不排空剩餘
	// 任務，塞任務端會永遠卡住，本測試就會逾時
	budgets := make([]float64, 1500)
	for i := range budgets {
		budgets[i] = float64(100 + i)
	}
	set := &spec.SimSetting{
		Trials:   2,
		Budgets:  budgets,
		Policies: []spec.PolicySetting{{Key: "stalled"}},
	}
	sim, err := lab.NewSimulatorWithSeed(sidTwoArms, set, 5)
	if err != nil {
		t.Fatalf("new simulator: %v", err)
	}
	if _, _, err := sim.SweepMP(2, false); err == nil {
		t.Fatalf("policy error must surface from the sweep")
	}
}

func TestDevSimulatorRestoreReplay(t *testing.T) {
	lab := newLab(t)

	set := &spec.SimSetting{
		Trials:   10,
		Budgets:  []float64{200},
		Policies: []spec.PolicySetting{{Key: policy.KeyB1}},
	}
	dev, err := lab.NewDevSimulator(sidTwoArms, 555, set)
	if err != nil {
		t.Fatalf("new dev simulator: %v", err)
	}
	first, err := dev.Trials(policy.KeyB1, 200, 5)
	if err != nil {
		t.Fatalf("trials: %v", err)
	}
	if first.Round != 5 || len(first.Results) != 5 {
		t.Fatalf("round = %d, results = %d", first.Round, len(first.Results))
	}
	replay, err := dev.RestoreTrials(first.Before, policy.KeyB1, 200, 5)
	if err != nil {
		t.Fatalf("restore trials: %v", err)
	}
	if first.TotalReward != replay.TotalReward || first.TotalCost != replay.TotalCost {
		t.Fatalf("restore replay diverged: %.4f/%.4f vs %.4f/%.4f",
			first.TotalReward, first.TotalCost, replay.TotalReward, replay.TotalCost)
	}
	if first.After != replay.After {
		t.Fatalf("replay must end on the same core snapshot")
	}

	if _, err := dev.Trials(policy.KeyB1, 200, 0); err == nil {
		t.Fatalf("round 0 must fail")
	}
	if _, err := dev.Trials(policy.KeyB1, 200, 5001); err == nil {
		t.Fatalf("round over cap must fail")
	}
}

func TestLabRuntimePlayAndClose(t *testing.T) {
	lab := newLab(t)

	rt, err := lab.BuildRuntime(2)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	ctx := context.Background()

	res, err := rt.Play(ctx, &buf.PlayRequest{
		UID:      "test",
		Scenario: sidTwoArms,
		Policy:   policy.KeyB2,
		Budget:   150,
	})
	if err != nil {
		t.Fatalf("runtime play: %v", err)
	}
	if res.ScenarioID != sidTwoArms || res.TotalCost <= res.Budget {
		t.Fatalf("unexpected result: sid=%d cost=%.4f", res.ScenarioID, res.TotalCost)
	}

	if _, err := rt.Play(ctx, &buf.PlayRequest{
		UID: "test", Scenario: 9999, Policy: policy.KeyB2, Budget: 150,
	}); err == nil {
		t.Fatalf("unknown scenario must fail")
	}

	if got := len(rt.Metrics()); got != 5 {
		t.Fatalf("metrics = %d pools, want 5", got)
	}

	rt.Close()
	if !rt.Closed() {
		t.Fatalf("runtime must report closed")
	}
	if _, err := rt.Play(ctx, &buf.PlayRequest{
		UID: "test", Scenario: sidTwoArms, Policy: policy.KeyB2, Budget: 150,
	}); err == nil {
		t.Fatalf("play after close must fail")
	}
}
