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

// Package env 把一個場景實例化成可拉的拉臂環境。
//
// Environment 是「單一場景」在執行期的工作站：
//   - 每支拉臂一個 PairSampler，共用同一個注入的 core。
//   - 真實報酬率、最佳臂、最佳率在建構時算好，之後只讀。
//
// 合約（非常重要）：
//   - **非並行安全 (NOT thread-safe)**：一個 Environment 只能在單一
//     goroutine / 單一試驗流程中使用。平行模擬請各開各的。
//   - **Scenario 視為唯讀**：建構完成後不要再改場景內容（尤其是 Arms）。
package env

import (
	"slices"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/sdk/sampler"
	"github.com/zintix-labs/banditlab/spec"
)

// Environment 掌管單一場景的取樣生命週期：讀取設定、建立各臂取樣器、提供拉臂入口。
type Environment struct {
	// core 提供整個環境的 PRNG。由上層建立並注入；Environment 不擁有其生命週期。
	core *core.Core

	scenario *spec.Scenario
	samplers []sampler.PairSampler

	trueRates   []float64
	optimalArm  int
	optimalRate float64
}

// New 建立 Environment，使用呼叫端提供的 Scenario。
// 場景仍有未載入的外部結果表、或任一臂的取樣器建構失敗，都是致命錯誤。
func New(sc *spec.Scenario, c *core.Core) (*Environment, error) {
	if sc == nil {
		return nil, errs.NewFatal("nil scenario")
	}
	if c == nil {
		return nil, errs.NewFatal("nil core")
	}
	e := &Environment{
		core:     c,
		scenario: sc,
	}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

// ============================================================
// ** 以下公開方法 **
// ============================================================

// Pull 拉動第 arm 支臂，回傳一筆 (成本, 報酬)。
// 臂編號越界是 Warn 級錯誤（呼叫端的請求問題，環境本身沒壞）。
func (e *Environment) Pull(arm int) (cost, reward float64, err error) {
	if arm < 0 || arm >= len(e.samplers) {
		return 0, 0, errs.Warnf("arm index %d out of range [0, %d)", arm, len(e.samplers))
	}
	cost, reward = e.samplers[arm].Sample()
	return cost, reward, nil
}

// TrueRates 回傳各臂真實報酬率 E[R]/E[X] 的複本。
func (e *Environment) TrueRates() []float64 {
	return slices.Clone(e.trueRates)
}

// OptimalArm 回傳真實報酬率最高的臂；同率時取最小索引。
func (e *Environment) OptimalArm() int { return e.optimalArm }

// OptimalRate 回傳最佳臂的真實報酬率，懊悔計算的基準。
func (e *Environment) OptimalRate() float64 { return e.optimalRate }

// Arms 回傳拉臂數。
func (e *Environment) Arms() int { return len(e.samplers) }

// Arm 回傳第 i 支臂的唯讀描述，「已知矩」的策略由此取得真實二階矩。
// 越界回傳 nil。
func (e *Environment) Arm(i int) *spec.ArmSetting {
	if i < 0 || i >= len(e.scenario.Arms) {
		return nil
	}
	return &e.scenario.Arms[i]
}

// Scenario 回傳環境綁定的場景描述。
func (e *Environment) Scenario() *spec.Scenario { return e.scenario }

// Core 回傳環境共用的亂數核心，給需要擲骰的自訂策略用。
func (e *Environment) Core() *core.Core { return e.core }

// ============================================================
// ** 以下內部方法 **
// ============================================================

func (e *Environment) init() error {
	sc := e.scenario
	if !sc.Resolved() {
		return errs.Fatalf("scenario %q: discrete arm table not loaded", sc.ScenarioName)
	}

	k := sc.K()
	e.samplers = make([]sampler.PairSampler, k)
	e.trueRates = make([]float64, k)
	for i := 0; i < k; i++ {
		ps, err := sampler.NewPairSampler(&sc.Arms[i], e.core)
		if err != nil {
			return errs.Wrap(err, "build sampler failed: scenario="+sc.ScenarioName)
		}
		e.samplers[i] = ps
		e.trueRates[i] = sc.Arms[i].TrueRate()
	}

	// 最佳臂取第一個最大值（同率時最小索引勝出），基準才不會隨臂序抖動。
	e.optimalArm = 0
	e.optimalRate = e.trueRates[0]
	for i := 1; i < k; i++ {
		if e.trueRates[i] > e.optimalRate {
			e.optimalArm = i
			e.optimalRate = e.trueRates[i]
		}
	}
	return nil
}
