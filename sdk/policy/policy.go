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

// Package policy 提供預算受限拉霸問題的決策策略（UCB 族）。
//
// 四個內建變體共用同一份骨架：冷啟動（依索引序把每支臂各拉一次）、
// 報酬率估計 r̂ = max(0, meanR)/max(bMinCost, meanX)、穩定化分母
// θ⁺ = max(bMinCost, 成本估計)、穩定性守門（失敗時信賴寬度視為 +Inf，
// 強迫探索該臂）。變體之間的差異只有兩件事：
//   - 哪些矩視為已知（B1/M1 已知二階矩；B2/B2C 只知上界，矩用樣本估）
//   - 信賴寬度公式與估計器來源（累計和 / 全樣本緩衝 / 中位數分組）
//
// 合約（所有變體一致）：
//   - SelectArm 前 K 次呼叫依臂索引升冪回傳 0..K-1，與調參無關。
//   - UpdateState 每回合恰好一次、只更新被拉的那支臂。
//   - Reset 之後的行為與新建實例完全相同。
//   - 單一 Policy 實例非並行安全；平行試驗各自建新實例。
package policy

import (
	"math"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/calc"
	"github.com/zintix-labs/banditlab/sdk/env"
	"github.com/zintix-labs/banditlab/spec"
)

// Policy 是所有決策策略的共同合約。
type Policy interface {
	// SelectArm 依當前累計花費與回合數（n >= 1）回傳本回合要拉的臂。
	SelectArm(totalCost float64, epoch int) (int, error)
	// UpdateState 把一筆 (成本, 報酬) 觀測記入指定臂的狀態。
	UpdateState(arm int, cost, reward float64) error
	// Reset 清空所有每臂狀態，效果等同重新建構。
	Reset()
	// Name 回傳策略的註冊名稱。
	Name() string
}

// Diagnoser 是策略可選的診斷介面：回傳試驗結束時的內部狀態
// （例如各臂估計值），由上層掛進輸出結構。內建變體不實作；
// 自訂策略若要輸出診斷，實作此介面並在 dto 註冊解析型別。
type Diagnoser interface {
	Diag() any
}

// 穩定性守門常數 λ（Proposition 2）。
// 守門條件：η >= θ⁺·(λ-1)/λ 時信賴寬度視為無限大。
const lambdaStable = 1.28

// guardRatio = (λ-1)/λ，守門比較的右側係數。
const guardRatio = (lambdaStable - 1) / lambdaStable

// 子高斯界（B1/B2/B2C）的寬度係數。
const widthB = 1.4

// 中位數界（M1）的寬度係數 2√2。
var widthM = 2 * math.Sqrt2

// coldStart 回傳第一支還沒拉過的臂索引；都拉過回傳 -1。
// 依索引升冪掃描，保證冷啟動順序是 0..K-1。
func coldStart(pulls []int) int {
	for k, t := range pulls {
		if t == 0 {
			return k
		}
	}
	return -1
}

// rateEstimate 計算穩定化報酬率估計 max(0, meanR)/max(bMin, meanX)。
// 分母下限 bMin 是整套數值安全策略的地基：成本估計貼近 0 時
// 不會除法爆炸，也永遠不會產生 NaN。
func rateEstimate(meanR, meanX, bMin float64) float64 {
	return math.Max(0, meanR) / math.Max(bMin, meanX)
}

// thetaPlus 計算穩定化分母 θ⁺ = max(bMin, 成本估計)。
func thetaPlus(meanX, bMin float64) float64 {
	return math.Max(bMin, meanX)
}

// checkArm 驗證臂索引；越界是呼叫端的參數錯誤（Warn），絕不靜默鉗制。
func checkArm(arm, k int) error {
	if arm < 0 || arm >= k {
		return errs.Warnf("arm index %d out of range [0, %d)", arm, k)
	}
	return nil
}

// checkEpoch 驗證回合數；log(n) 項要求 n >= 1。
func checkEpoch(epoch int) error {
	if epoch < 1 {
		return errs.Warnf("epoch must be >= 1, got %d", epoch)
	}
	return nil
}

// knownMoments 是「已知二階矩」變體（B1/M1）在建構時
// 由臂描述一次算好的常數：LMMSE 斜率 ω = Cov/Var(X) 與
// 殘差變異 V = max(0, Var(R) - ω²·Var(X))。
// Var(X) 幾乎為零時 ω 視為 0、V 退化為 Var(R)。
type knownMoments struct {
	omega []float64
	vxr   []float64
	varX  []float64
}

const varEps = 1e-9

func newKnownMoments(e *env.Environment) knownMoments {
	k := e.Arms()
	m := knownMoments{
		omega: make([]float64, k),
		vxr:   make([]float64, k),
		varX:  make([]float64, k),
	}
	for i := 0; i < k; i++ {
		a := e.Arm(i)
		m.varX[i] = a.VarCost
		if a.VarCost > varEps {
			m.omega[i] = a.CovCostReward / a.VarCost
			m.vxr[i] = math.Max(0, a.VarReward-m.omega[i]*m.omega[i]*a.VarCost)
		} else {
			m.omega[i] = 0
			m.vxr[i] = math.Max(0, a.VarReward)
		}
	}
	return m
}

// bounds 取出 B2/B2C 用的每臂 almost-sure 上界（M_X, M_R）。
// 設定檔沒給時為 0：Bernstein 偏置項自然消失（高斯情境的慣例）。
func bounds(e *env.Environment) (mx, mr []float64) {
	k := e.Arms()
	mx = make([]float64, k)
	mr = make([]float64, k)
	for i := 0; i < k; i++ {
		a := e.Arm(i)
		mx[i] = a.MaxCost
		mr[i] = a.MaxReward
	}
	return mx, mr
}

// pairBuffer 是 B2C/M1 共用的每臂全樣本緩衝。
// 一個試驗內只增長不回收；分組／重算都在查詢時進行，
// 緩衝本身就是唯一事實來源，不另外維護冗餘的累計量。
type pairBuffer struct {
	xs [][]float64
	rs [][]float64
}

func newPairBuffer(k int) pairBuffer {
	return pairBuffer{
		xs: make([][]float64, k),
		rs: make([][]float64, k),
	}
}

func (b *pairBuffer) append(arm int, cost, reward float64) {
	b.xs[arm] = append(b.xs[arm], cost)
	b.rs[arm] = append(b.rs[arm], reward)
}

func (b *pairBuffer) reset() {
	for k := range b.xs {
		b.xs[k] = b.xs[k][:0]
		b.rs[k] = b.rs[k][:0]
	}
}

// sums 一次走訪緩衝算出五個累計量，餵給 calc 的 LMMSE 估計器。
func (b *pairBuffer) sums(arm int) (sumX, sumR, sumXX, sumRR, sumXR float64) {
	xs, rs := b.xs[arm], b.rs[arm]
	for i := range xs {
		sumX += xs[i]
		sumR += rs[i]
		sumXX += xs[i] * xs[i]
		sumRR += rs[i] * rs[i]
		sumXR += xs[i] * rs[i]
	}
	return
}

// groupCount 計算 M1 的分組數 m = ⌊3.5·α·ln(n)⌋ + 1，鉗到 [1, T]。
func groupCount(alpha float64, epoch, t int) int {
	m := int(math.Floor(3.5*alpha*math.Log(float64(epoch)))) + 1
	if m < 1 {
		m = 1
	}
	if m > t {
		m = t
	}
	return m
}

// medianOfGroupMeans 把緩衝依觀測順序切成 m 個大小 T/m 的連續分組，
// 回傳（各組報酬率的中位數, 各組成本平均的中位數）。
// 尾端不足一組的樣本該回合不參與（下回合 m 變動後自然歸隊）。
// 分組樣本不足時退化成整段樣本的普通平均。
func medianOfGroupMeans(xs, rs []float64, m int, bMin float64) (medRate, medMeanX float64) {
	t := len(xs)
	size := t / m
	if size == 0 {
		meanX := calc.EmpiricalMean(sumOf(xs), t)
		meanR := calc.EmpiricalMean(sumOf(rs), t)
		return rateEstimate(meanR, meanX, bMin), meanX
	}

	rates := make([]float64, m)
	meansX := make([]float64, m)
	for j := 0; j < m; j++ {
		lo, hi := j*size, (j+1)*size
		var gx, gr float64
		for i := lo; i < hi; i++ {
			gx += xs[i]
			gr += rs[i]
		}
		gx /= float64(size)
		gr /= float64(size)
		rates[j] = rateEstimate(gr, gx, bMin)
		meansX[j] = gx
	}
	return calc.Median(rates), calc.Median(meansX)
}

func sumOf(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

// newPolicyParams 補上預設調參；型別以外不驗證範圍，
// 越界值會經由估計器的安全下限優雅退化。
func newPolicyParams(p spec.PolicyParams) spec.PolicyParams {
	return p.Normalize()
}
