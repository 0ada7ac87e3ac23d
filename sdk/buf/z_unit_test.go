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

package buf_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/spec"
)

func testScenario() *spec.Scenario {
	return &spec.Scenario{
		ScenarioName: "two_arms",
		ScenarioID:   7,
		Arms:         make([]spec.ArmSetting, 2),
	}
}

func TestTrajectoryBufferAccumulates(t *testing.T) {
	tb := buf.NewTrajectoryBuffer(testScenario(), true)
	tb.Reset("ucb_b1", 100)

	tb.Record(1, 0, 2.0, 5.0)
	tb.Record(2, 1, 1.0, 1.5)
	tb.Record(3, 0, 3.0, 4.0)

	if tb.TotalCost != 6.0 || tb.TotalReward != 10.5 {
		t.Fatalf("totals wrong: cost=%v reward=%v", tb.TotalCost, tb.TotalReward)
	}
	if tb.Epochs != 3 {
		t.Fatalf("epochs = %d, want 3", tb.Epochs)
	}
	if tb.Pulls[0] != 2 || tb.Pulls[1] != 1 {
		t.Fatalf("pulls wrong: %v", tb.Pulls)
	}
	if len(tb.Rounds) != 3 {
		t.Fatalf("rounds len = %d, want 3", len(tb.Rounds))
	}
	r := tb.Rounds[2]
	if r.CumCost != 6.0 || r.CumReward != 10.5 || r.Arm != 0 {
		t.Fatalf("last round record wrong: %+v", r)
	}
}

func TestTrajectoryBufferNoTrace(t *testing.T) {
	tb := buf.NewTrajectoryBuffer(testScenario(), false)
	tb.Reset("ucb_b2", 50)
	for i := 1; i <= 100; i++ {
		tb.Record(i, i%2, 1.0, 2.0)
	}
	if len(tb.Rounds) != 0 {
		t.Fatalf("no-trace buffer kept %d rounds", len(tb.Rounds))
	}
	if tb.TotalReward != 200.0 {
		t.Fatalf("total reward = %v, want 200", tb.TotalReward)
	}
}

func TestTrajectoryBufferResetKeepsCapacity(t *testing.T) {
	tb := buf.NewTrajectoryBuffer(testScenario(), true)
	tb.Reset("ucb_b1", 10)
	for i := 1; i <= 50; i++ {
		tb.Record(i, 0, 1, 1)
	}
	c := cap(tb.Rounds)

	tb.Reset("ucb_m1", 20)
	if tb.TotalCost != 0 || tb.Epochs != 0 || len(tb.Rounds) != 0 {
		t.Fatalf("reset did not clear state: %+v", tb)
	}
	if tb.Pulls[0] != 0 {
		t.Fatalf("reset did not clear pulls: %v", tb.Pulls)
	}
	if cap(tb.Rounds) != c {
		t.Fatalf("reset dropped capacity: %d -> %d", c, cap(tb.Rounds))
	}
	if tb.Policy != "ucb_m1" || tb.Budget != 20 {
		t.Fatalf("reset did not stamp policy/budget: %+v", tb)
	}
}

func TestDecodePlayRequestGet(t *testing.T) {
	r := httptest.NewRequest("GET", "/v1/play?uid=u1&sid=3&policy=ucb_b2c&budget=500.5&seed=42&trace=true", nil)
	req, err := buf.DecodePlayRequest(r)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if req.Scenario != 3 || req.Policy != "ucb_b2c" || req.Budget != 500.5 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Seed == nil || *req.Seed != 42 {
		t.Fatalf("seed not decoded: %+v", req.Seed)
	}
	if !req.Trace {
		t.Fatalf("trace not decoded")
	}
}

func TestDecodePlayRequestPost(t *testing.T) {
	body := `{"uid":"u2","sid":1,"policy":"ucb_b1","budget":1000}`
	r := httptest.NewRequest("POST", "/v1/play", strings.NewReader(body))
	req, err := buf.DecodePlayRequest(r)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if req.Scenario != 1 || req.Policy != "ucb_b1" || req.Budget != 1000 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Seed != nil {
		t.Fatalf("seed should be nil when absent")
	}
}

func TestDecodePlayRequestRejectsBadInput(t *testing.T) {
	cases := []string{
		"/v1/play?sid=abc",
		"/v1/play?budget=xyz",
		"/v1/play?seed=1.5",
		"/v1/play?trace=maybe",
	}
	for _, target := range cases {
		r := httptest.NewRequest("GET", target, nil)
		if _, err := buf.DecodePlayRequest(r); err == nil {
			t.Fatalf("%s: expected decode error", target)
		}
	}

	r := httptest.NewRequest("POST", "/v1/play", strings.NewReader(`{"unknown_field":1}`))
	if _, err := buf.DecodePlayRequest(r); err == nil {
		t.Fatalf("unknown field: expected decode error")
	}
}
