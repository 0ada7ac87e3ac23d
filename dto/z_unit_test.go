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

package dto

import (
	"math"
	"testing"

	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/spec"
)

func newFilledBuffer(trace bool) *buf.TrajectoryBuffer {
	sc := &spec.Scenario{
		ScenarioName: "two_arms",
		ScenarioID:   3,
		Arms:         make([]spec.ArmSetting, 2),
	}
	tb := buf.NewTrajectoryBuffer(sc, trace)
	tb.Reset("ucb_b1", 100)
	tb.Record(1, 0, 2, 4)
	tb.Record(2, 1, 1, 1)
	tb.Record(3, 0, 3, 5)
	tb.State = buf.TrialState{
		StartCoreSnap: []byte{1, 2, 3},
		AfterCoreSnap: []byte{4, 5, 6},
	}
	return tb
}

func TestNewTrialResultDTO(t *testing.T) {
	tb := newFilledBuffer(true)
	dto, err := NewTrialResultDTO(tb, 2.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dto.ScenarioName != "two_arms" || dto.ScenarioID != 3 {
		t.Fatalf("unexpected scenario fields: %+v", dto)
	}
	if dto.TotalCost != 6 || dto.TotalReward != 10 || dto.Epochs != 3 {
		t.Fatalf("unexpected totals: %+v", dto)
	}
	// regret = 2.5*100 - 10
	if math.Abs(dto.Regret-240) > 1e-12 {
		t.Fatalf("regret = %v, want 240", dto.Regret)
	}
	if len(dto.Rounds) != 3 || dto.Rounds[2].CumReward != 10 {
		t.Fatalf("unexpected rounds: %+v", dto.Rounds)
	}
	if dto.State.StartCoreSnapB64U == "" || dto.State.AfterCoreSnapB64U == "" {
		t.Fatalf("snapshots not encoded: %+v", dto.State)
	}
}

func TestNewTrialResultDTOCopiesPulls(t *testing.T) {
	tb := newFilledBuffer(false)
	dto, err := NewTrialResultDTO(tb, 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dto.Rounds) != 0 {
		t.Fatalf("no-trace buffer should produce no rounds")
	}
	tb.Pulls[0] = 99
	if dto.Pulls[0] == 99 {
		t.Fatalf("pulls must be deep-copied, got aliased slice")
	}
}

func TestNewTrialResultDTONilBuffer(t *testing.T) {
	if _, err := NewTrialResultDTO(nil, 1.0); err == nil {
		t.Fatalf("expected error for nil buffer")
	}
}

type fakeDiag struct {
	Rates []float64 `json:"rates"`
}

func TestRenderDiag(t *testing.T) {
	RegisterDiagRender[*fakeDiag]("test_policy")

	d := &fakeDiag{Rates: []float64{1, 2}}
	got := RenderDiag("test_policy", any(d))
	if got != d {
		t.Fatalf("registered render should pass typed value through")
	}

	other := 42
	if RenderDiag("unregistered", other) != other {
		t.Fatalf("unregistered key should return value unchanged")
	}
}

func TestRegisterDiagRenderRejectsNonPointer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for non-pointer type")
		}
	}()
	RegisterDiagRender[fakeDiag]("bad_policy")
}
