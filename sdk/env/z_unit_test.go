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

package env_test

import (
	"math"
	"testing"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/sdk/env"
	"github.com/zintix-labs/banditlab/spec"
)

func testScenario() *spec.Scenario {
	return &spec.Scenario{
		ScenarioName: "two_gaussian_arms",
		ScenarioID:   1,
		Arms: []spec.ArmSetting{
			{
				ArmName: "good", FamilyStr: "gaussian",
				MeanCost: 1.0, MeanReward: 3.0,
				VarCost: 0.04, VarReward: 0.25, CovCostReward: 0.0,
			},
			{
				ArmName: "bad", FamilyStr: "gaussian",
				MeanCost: 1.0, MeanReward: 1.5,
				VarCost: 0.04, VarReward: 0.25, CovCostReward: 0.0,
			},
		},
	}
}

func mustEnv(t *testing.T, sc *spec.Scenario, seed int64) *env.Environment {
	t.Helper()
	for i := range sc.Arms {
		if err := sc.Arms[i].Init(); err != nil {
			t.Fatalf("arm init failed: %v", err)
		}
	}
	e, err := env.New(sc, core.New(core.Default().New(seed)))
	if err != nil {
		t.Fatalf("env build failed: %v", err)
	}
	return e
}

func TestEnvironmentTruth(t *testing.T) {
	e := mustEnv(t, testScenario(), 1)

	if e.Arms() != 2 {
		t.Fatalf("expected 2 arms, got %d", e.Arms())
	}
	rates := e.TrueRates()
	if rates[0] != 3.0 || rates[1] != 1.5 {
		t.Fatalf("unexpected true rates: %v", rates)
	}
	if e.OptimalArm() != 0 {
		t.Fatalf("expected optimal arm 0, got %d", e.OptimalArm())
	}
	if e.OptimalRate() != 3.0 {
		t.Fatalf("expected optimal rate 3.0, got %v", e.OptimalRate())
	}
}

func TestOptimalArmTieTakesFirst(t *testing.T) {
	sc := testScenario()
	sc.Arms[1].MeanReward = 3.0 // 兩臂同率
	e := mustEnv(t, sc, 1)

	if e.OptimalArm() != 0 {
		t.Fatalf("tie must resolve to lowest index, got %d", e.OptimalArm())
	}
}

func TestPullSamplesAndAccumulates(t *testing.T) {
	e := mustEnv(t, testScenario(), 7)

	const n = 50000
	var sumC, sumR float64
	for i := 0; i < n; i++ {
		c, r, err := e.Pull(0)
		if err != nil {
			t.Fatalf("pull failed: %v", err)
		}
		sumC += c
		sumR += r
	}
	if math.Abs(sumC/n-1.0) > 0.05 {
		t.Errorf("mean cost drifted: got %.4f", sumC/n)
	}
	if math.Abs(sumR/n-3.0) > 0.05 {
		t.Errorf("mean reward drifted: got %.4f", sumR/n)
	}
}

func TestPullOutOfRangeIsWarn(t *testing.T) {
	e := mustEnv(t, testScenario(), 1)

	for _, arm := range []int{-1, 2, 100} {
		_, _, err := e.Pull(arm)
		if errs.LevelOf(err) != errs.Warn {
			t.Fatalf("arm %d: expected warn error, got %v", arm, err)
		}
	}
}

func TestPullReproducible(t *testing.T) {
	e1 := mustEnv(t, testScenario(), 42)
	e2 := mustEnv(t, testScenario(), 42)

	for i := 0; i < 500; i++ {
		arm := i % 2
		c1, r1, _ := e1.Pull(arm)
		c2, r2, _ := e2.Pull(arm)
		if c1 != c2 || r1 != r2 {
			t.Fatalf("streams diverged at pull %d: (%v,%v) vs (%v,%v)", i, c1, r1, c2, r2)
		}
	}
}

func TestEnvironmentRejectsPendingTable(t *testing.T) {
	sc := &spec.Scenario{
		ScenarioName: "pending",
		Arms: []spec.ArmSetting{
			{ArmName: "d", FamilyStr: "discrete", TableFile: "missing.json.zst"},
		},
	}
	if err := sc.Arms[0].Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	_, err := env.New(sc, core.New(core.Default().New(1)))
	if errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("expected fatal error for unresolved table, got %v", err)
	}
}

func TestEnvironmentRejectsNilInputs(t *testing.T) {
	if _, err := env.New(nil, core.New(core.Default().New(1))); errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("nil scenario: expected fatal, got %v", err)
	}
	if _, err := env.New(testScenario(), nil); errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("nil core: expected fatal, got %v", err)
	}
}
