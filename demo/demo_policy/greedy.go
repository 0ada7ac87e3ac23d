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

// Package demo_policy 示範如何掛入自訂策略：一個 explore-then-greedy
// 基線，走和內建 UCB 變體完全相同的註冊/建構路徑。
// 它同時示範兩個擴充點：
//   - Scenario.Fixed：從設定檔讀自訂參數（explore_rounds）。
//   - Diagnoser + dto.RegisterDiagRender：試驗結束時輸出內部估計。
package demo_policy

import (
	"math"

	"github.com/zintix-labs/banditlab/dto"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/env"
	"github.com/zintix-labs/banditlab/sdk/policy"
	"github.com/zintix-labs/banditlab/spec"
)

// ============================================================
// ** 註冊 **
// ============================================================

const KeyGreedy spec.PolicyKey = "greedy_baseline"

// Reg 是本套件對外提供的策略註冊表，
// 交給 banditlab.Policies(...) 與內建表合併。
var Reg = policy.NewRegistry()

func init() {
	if err := Reg.Register(KeyGreedy, buildGreedy); err != nil {
		panic("greedy_baseline register failed: " + err.Error())
	}
	// register Diag
	dto.RegisterDiagRender[*GreedyDiag](KeyGreedy)
}

// ============================================================
// ** 策略本體 **
// ============================================================

// GreedyDiag 是 greedy 基線的診斷輸出。
type GreedyDiag struct {
	Rates []float64 `json:"rates"`
	Pulls []int     `json:"pulls"`
}

// greedy 先輪巡探索 explore 輪（每臂各 explore 次），
// 之後永遠拉經驗報酬率最高的臂。沒有信賴界、沒有後悔保證，
// 存在的意義是給 UCB 變體一個「天真基線」對照組。
type greedy struct {
	k       int
	bMin    float64
	explore int

	pulls []int
	sumX  []float64
	sumR  []float64
}

func buildGreedy(e *env.Environment, p spec.PolicyParams) (policy.Policy, error) {
	if e == nil {
		return nil, errs.NewFatal("environment required")
	}
	k := e.Arms()
	g := &greedy{
		k:       k,
		bMin:    p.Normalize().BMinCost,
		explore: exploreRounds(e.Scenario()),
		pulls:   make([]int, k),
		sumX:    make([]float64, k),
		sumR:    make([]float64, k),
	}
	return g, nil
}

// exploreRounds 從 Scenario.Fixed 讀 explore_rounds；
// 缺省或型別不對時退回 1（yaml 解出來的數字可能是 int 或 float64）。
func exploreRounds(sc *spec.Scenario) int {
	if sc == nil || sc.Fixed == nil {
		return 1
	}
	switch v := sc.Fixed["explore_rounds"].(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return 1
}

func (g *greedy) SelectArm(totalCost float64, epoch int) (int, error) {
	if epoch < 1 {
		return 0, errs.Warnf("epoch must be >= 1, got %d", epoch)
	}
	// 探索段：依索引輪巡，每臂各 explore 次
	if epoch <= g.k*g.explore {
		return (epoch - 1) % g.k, nil
	}
	best, bestRate := 0, math.Inf(-1)
	for arm := 0; arm < g.k; arm++ {
		if g.pulls[arm] == 0 {
			return arm, nil
		}
		n := float64(g.pulls[arm])
		rate := math.Max(0, g.sumR[arm]/n) / math.Max(g.bMin, g.sumX[arm]/n)
		if rate > bestRate {
			best, bestRate = arm, rate
		}
	}
	return best, nil
}

func (g *greedy) UpdateState(arm int, cost, reward float64) error {
	if arm < 0 || arm >= g.k {
		return errs.Warnf("arm index %d out of range [0, %d)", arm, g.k)
	}
	g.pulls[arm]++
	g.sumX[arm] += cost
	g.sumR[arm] += reward
	return nil
}

func (g *greedy) Reset() {
	for i := range g.pulls {
		g.pulls[i] = 0
		g.sumX[i] = 0
		g.sumR[i] = 0
	}
}

func (g *greedy) Name() string { return string(KeyGreedy) }

// Diag 實作 policy.Diagnoser：輸出各臂的經驗報酬率與拉次。
func (g *greedy) Diag() any {
	d := &GreedyDiag{
		Rates: make([]float64, g.k),
		Pulls: make([]int, g.k),
	}
	copy(d.Pulls, g.pulls)
	for arm := 0; arm < g.k; arm++ {
		if g.pulls[arm] == 0 {
			continue
		}
		n := float64(g.pulls[arm])
		d.Rates[arm] = math.Max(0, g.sumR[arm]/n) / math.Max(g.bMin, g.sumX[arm]/n)
	}
	return d
}
