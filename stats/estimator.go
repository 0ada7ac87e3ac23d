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

package stats

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ============================================================
// ** 結構宣告 **
// ============================================================

// 單格（policy, budget）的試驗分布評估
type EstimatorCell struct {
	RegretStat RegretStat
	EffStat    EffStat
	TargetStat TargetStat
}

// 遺憾值敘事
type RegretStat struct {
	Median  PointStat // 描述遺憾的中位數
	RegPerc RegPerc   // 描述遺憾的分位分布
}

// 用分位數視角看遺憾: 最好10%試驗的遺憾 最差10%試驗的遺憾 ...
type RegPerc struct {
	RegP10 PointStat
	RegP33 PointStat
	RegP67 PointStat
	RegP90 PointStat
}

// PointStat 點估計 回傳 估計值 以及信賴區間
type PointStat struct {
	Hat float64
	CI  CI
}

// 效率敘事：試驗實得率達到最佳率特定門檻的比例
type EffStat struct {
	Over50  PointStat // 達到 50% 最佳率
	Over80  PointStat // 達到 80% 最佳率
	Over90  PointStat // 達到 90% 最佳率
	Over100 PointStat // 超越最佳率（好運）
}

// 收斂敘事
type TargetStat struct {
	OptimalMostPulled PointStat // 最佳臂被拉最多次的試驗比例
	NegativeRegret    PointStat // 遺憾 ≤ 0（不輸基準）的試驗比例
}

// ============================================================
// ** 對外 : 試驗分布評估 **
// ============================================================

// EstimatorCellExp 單格試驗分布評估
//
// 1. Regret 敘事 : 描述該格試驗大致的遺憾分布
//
// 2. Eff 敘事 : 描述試驗實得率達到最佳率各門檻的機率
//
// 3. Target 敘事 : 描述策略收斂到最佳臂的機率
func EstimatorCellExp(c *CellReport, optimalRate float64) *EstimatorCell {
	out := &EstimatorCell{}
	n := len(c.Regrets)
	if n == 0 {
		return out
	}

	// ------------------------------------------------------------
	// 1) Regret 敘事：分位/CI
	// ------------------------------------------------------------
	reg := c.Regrets

	medHat := quantilePoint(reg, 0.5)
	medLo, medHi := quantileCI(reg, 0.5, 0.95)

	p10Hat := quantilePoint(reg, 0.10)
	p10Lo, p10Hi := quantileCI(reg, 0.10, 0.95)

	p33Hat := quantilePoint(reg, 1.0/3.0)
	p33Lo, p33Hi := quantileCI(reg, 1.0/3.0, 0.95)

	p67Hat := quantilePoint(reg, 2.0/3.0)
	p67Lo, p67Hi := quantileCI(reg, 2.0/3.0, 0.95)

	p90Hat := quantilePoint(reg, 0.90)
	p90Lo, p90Hi := quantileCI(reg, 0.90, 0.95)

	out.RegretStat = RegretStat{
		Median: PointStat{Hat: medHat, CI: CI{Lo: medLo, Hi: medHi}},
		RegPerc: RegPerc{
			RegP10: PointStat{Hat: p10Hat, CI: CI{Lo: p10Lo, Hi: p10Hi}},
			RegP33: PointStat{Hat: p33Hat, CI: CI{Lo: p33Lo, Hi: p33Hi}},
			RegP67: PointStat{Hat: p67Hat, CI: CI{Lo: p67Lo, Hi: p67Hi}},
			RegP90: PointStat{Hat: p90Hat, CI: CI{Lo: p90Lo, Hi: p90Hi}},
		},
	}

	// ------------------------------------------------------------
	// 2) Eff 敘事：達標門檻比例（CP 95% CI）
	// ------------------------------------------------------------
	if len(c.EffRates) > 0 && optimalRate > 0 {
		eff50 := countOver(c.EffRates, 0.50*optimalRate)
		eff80 := countOver(c.EffRates, 0.80*optimalRate)
		eff90 := countOver(c.EffRates, 0.90*optimalRate)
		eff100 := countOver(c.EffRates, optimalRate)
		m := len(c.EffRates)

		h50, ci50 := proportionCICP(eff50, m, 0.95)
		h80, ci80 := proportionCICP(eff80, m, 0.95)
		h90, ci90 := proportionCICP(eff90, m, 0.95)
		h100, ci100 := proportionCICP(eff100, m, 0.95)

		out.EffStat = EffStat{
			Over50:  PointStat{Hat: h50, CI: ci50},
			Over80:  PointStat{Hat: h80, CI: ci80},
			Over90:  PointStat{Hat: h90, CI: ci90},
			Over100: PointStat{Hat: h100, CI: ci100},
		}
	}

	// ------------------------------------------------------------
	// 3) Target 敘事：收斂/勝過基準 比例 + CP 95% CI
	// ------------------------------------------------------------
	optHat, optCI := proportionCICP(c.OptimalMostPulled, c.Trials, 0.95)
	negHat, negCI := percentileCIForValue(reg, 0, 0.95)

	out.TargetStat = TargetStat{
		OptimalMostPulled: PointStat{Hat: optHat, CI: optCI},
		NegativeRegret:    PointStat{Hat: negHat, CI: negCI},
	}

	return out
}

func countOver(xs []float64, threshold float64) int {
	k := 0
	for _, x := range xs {
		if x >= threshold {
			k++
		}
	}
	return k
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// 問題：給定樣本 data 與門檻 x0，估計 p = P(X ≤ x0) 的點估計與 CI 區間
// 回傳 (pHat, CI)
func percentileCIForValue(data []float64, x0 float64, confidence float64) (pHat float64, ci CI) {
	n := len(data)
	if n == 0 {
		return 0, CI{Lo: 0, Hi: 0}
	}
	// k = 數到 <= x0 的個數
	k := 0
	for _, v := range data {
		if v <= x0 {
			k++
		}
	}
	return proportionCICP(k, n, confidence)
}

// 想估「第 q 分位」的上下界。做法：把 order statistic 的秩視為二項→Beta 反推 p 範圍，再把 p 轉回樣本索引。
// 回傳 (loValue, hiValue)
func quantileCI(data []float64, q, confidence float64) (float64, float64) {
	n := len(data)
	if n == 0 {
		return 0, 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)

	alpha := 1 - confidence
	k := int(q * float64(n))
	if k < 1 {
		k = 1
	} else if k > n-1 {
		k = n - 1
	}

	// 以 CP 思想反推 p 範圍
	bLo := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
	bHi := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
	pLo := bLo.Quantile(alpha / 2)
	pHi := bHi.Quantile(1 - alpha/2)

	li := int(pLo * float64(n))
	ui := int(pHi * float64(n))
	if ui > 0 {
		ui -= 1
	}
	if li < 0 {
		li = 0
	}
	if li > n-1 {
		li = n - 1
	}
	if ui < 0 {
		ui = 0
	}
	if ui > n-1 {
		ui = n - 1
	}
	return cp[li], cp[ui]
}

// quantilePoint returns the empirical quantile point estimate at q.
func quantilePoint(data []float64, q float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	cp := make([]float64, n)
	copy(cp, data)
	sort.Float64s(cp)
	// 最近秩法
	idx := int(q * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return cp[idx]
}

// ============================================================
// ** 輸出函數 **
// ============================================================

func (est *EstimatorCell) Out() {
	// 1) Regret (per-trial distribution)
	fmt.Println("=== Regret (per-trial distribution) ===")
	regKeys := []string{
		"Median Regret",
		"P10 Regret",
		"P33 Regret",
		"P67 Regret",
		"P90 Regret",
	}
	regMsg := map[string]string{
		"Median Regret": fmtHatCI(est.RegretStat.Median.Hat, est.RegretStat.Median.CI),
		"P10 Regret":    fmtHatCI(est.RegretStat.RegPerc.RegP10.Hat, est.RegretStat.RegPerc.RegP10.CI),
		"P33 Regret":    fmtHatCI(est.RegretStat.RegPerc.RegP33.Hat, est.RegretStat.RegPerc.RegP33.CI),
		"P67 Regret":    fmtHatCI(est.RegretStat.RegPerc.RegP67.Hat, est.RegretStat.RegPerc.RegP67.CI),
		"P90 Regret":    fmtHatCI(est.RegretStat.RegPerc.RegP90.Hat, est.RegretStat.RegPerc.RegP90.CI),
	}
	printTable("Regret (per-trial distribution)", regKeys, regMsg)

	// 2) Efficiency thresholds
	fmt.Println("\n=== Efficiency (share of trials reaching rate threshold) ===")
	effKeys := []string{"≥50% optimal", "≥80% optimal", "≥90% optimal", "≥100% optimal"}
	effMsg := map[string]string{
		"≥50% optimal":  fmtHatCIpct01(est.EffStat.Over50.Hat, est.EffStat.Over50.CI),
		"≥80% optimal":  fmtHatCIpct01(est.EffStat.Over80.Hat, est.EffStat.Over80.CI),
		"≥90% optimal":  fmtHatCIpct01(est.EffStat.Over90.Hat, est.EffStat.Over90.CI),
		"≥100% optimal": fmtHatCIpct01(est.EffStat.Over100.Hat, est.EffStat.Over100.CI),
	}
	printTable("Efficiency", effKeys, effMsg)

	// 3) Convergence
	fmt.Println("\n=== Convergence ===")
	tgtKeys := []string{"Optimal most pulled", "Negative regret"}
	tgtMsg := map[string]string{
		"Optimal most pulled": fmtHatCIpct01(est.TargetStat.OptimalMostPulled.Hat, est.TargetStat.OptimalMostPulled.CI),
		"Negative regret":     fmtHatCIpct01(est.TargetStat.NegativeRegret.Hat, est.TargetStat.NegativeRegret.CI),
	}
	printTable("Convergence", tgtKeys, tgtMsg)
}

func printTable(title string, keys []string, msg map[string]string) {
	fmt.Println(title)
	maxKeyLen := 0
	for _, k := range keys {
		if len(k) > maxKeyLen {
			maxKeyLen = len(k)
		}
	}
	for _, k := range keys {
		fmt.Printf("  %-*s : %s\n", maxKeyLen, k, msg[k])
	}
}

func fmtPct01(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}

func fmtHatCIpct01(hat float64, ci CI) string {
	return fmt.Sprintf("%s [%s, %s]", fmtPct01(hat), fmtPct01(ci.Lo), fmtPct01(ci.Hi))
}

func fmtHatCI(hat float64, ci CI) string {
	return fmt.Sprintf("%.3f [%.3f, %.3f]", hat, ci.Lo, ci.Hi)
}
