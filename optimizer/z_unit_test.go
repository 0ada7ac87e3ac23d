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

package optimizer

import (
	"testing"

	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/stats"
)

func TestTunerSettingValidate(t *testing.T) {
	yml := []byte(`
policy: ucb_b2c
method: grid
grid_steps: 3
budgets: [500, 1000]
search_space:
  alpha:      {min: 1.0, max: 4.0}
  l:          {min: 2.0, max: 2.0}
  b_min_cost: {min: 0.1, max: 0.1}
  omega_bar:  {min: 1.0, max: 10.0}
`)
	ts, err := getTunerSettingByYaml(yml)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ts.Trials != defaultEvalTrials {
		t.Fatalf("trials default not applied: %d", ts.Trials)
	}
	if !ts.Space.L.fixed() || ts.Space.Alpha.fixed() {
		t.Fatalf("fixed detection wrong")
	}

	if _, err := getTunerSettingByYaml([]byte("method: random\nbudgets: [100]\n")); err == nil {
		t.Fatalf("missing policy should fail")
	}
	if _, err := getTunerSettingByYaml([]byte("policy: ucb_b1\nmethod: anneal\nbudgets: [100]\n")); err == nil {
		t.Fatalf("unknown method should fail")
	}
	if _, err := getTunerSettingByYaml([]byte("policy: ucb_b1\nbudgets: [-5]\n")); err == nil {
		t.Fatalf("negative budget should fail")
	}
}

func TestGridCandidates(t *testing.T) {
	tn := &Tuner{cfg: &TunerSetting{
		Method:    MethodGrid,
		GridSteps: 3,
		Space: SearchSpace{
			Alpha:    ParamRange{Min: 1.0, Max: 3.0},
			L:        ParamRange{Min: 2.0, Max: 2.0},
			BMinCost: ParamRange{Min: 0.1, Max: 0.1},
			OmegaBar: ParamRange{Min: 1.0, Max: 5.0},
		},
	}}
	cands, err := tn.gridCandidates()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	// 3 alpha × 1 l × 1 bmin × 3 omega
	if len(cands) != 9 {
		t.Fatalf("want 9 candidates got %d", len(cands))
	}
	if cands[0].Alpha != 1.0 || cands[len(cands)-1].Alpha != 3.0 {
		t.Fatalf("alpha axis not covering range: %+v", cands)
	}
	for _, c := range cands {
		if c.L != 2.0 || c.BMinCost != 0.1 {
			t.Fatalf("fixed dims must not vary: %+v", c)
		}
	}
}

func TestRandomCandidatesDeterministic(t *testing.T) {
	cfg := &TunerSetting{
		Method:  MethodRandom,
		Samples: 50,
		Space: SearchSpace{
			Alpha:    ParamRange{Min: 1.0, Max: 4.0},
			L:        ParamRange{Min: 0.5, Max: 4.0},
			BMinCost: ParamRange{Min: 0.01, Max: 0.5},
			OmegaBar: ParamRange{Min: 5.0, Max: 5.0},
		},
	}
	tn := &Tuner{cfg: cfg}
	a := tn.randomCandidates(core.New(core.Default().New(42)))
	b := tn.randomCandidates(core.New(core.Default().New(42)))
	if len(a) != 50 || len(b) != 50 {
		t.Fatalf("want 50 candidates got %d/%d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed must reproduce candidates: idx %d", i)
		}
		if a[i].Alpha < 1.0 || a[i].Alpha > 4.0 {
			t.Fatalf("alpha out of range: %f", a[i].Alpha)
		}
		if a[i].OmegaBar != 5.0 {
			t.Fatalf("fixed omega_bar must not vary: %f", a[i].OmegaBar)
		}
	}
}

func TestRegretScore(t *testing.T) {
	rep := &stats.SweepReport{
		Cells: []*stats.CellReport{
			{AvgRegret: 10, StdRegret: 4},
			{AvgRegret: 20, StdRegret: 8},
		},
	}
	tn := &Tuner{cfg: &TunerSetting{Quality: QualityEvaluate{StdWeight: 0.5}}}
	got := tn.regretScore(rep)
	// mean(10,20) + 0.5*mean(4,8) = 15 + 3
	if got != 18 {
		t.Fatalf("want 18 got %f", got)
	}
	if tn.regretScore(nil) != 0 {
		t.Fatalf("nil report should score 0")
	}
}
