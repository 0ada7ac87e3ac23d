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

package calc

import (
	"math"
	"slices"
)

// 本包是純數值核心：所有函式無狀態、不回傳錯誤。
// 資料不足時一律退化成安全預設值 0；呼叫端（policy）把
// 「0 次拉臂」視為必須先探索，不會在樣本不足時拿這些值做決策。

// varEps 低於此值的成本變異視為「無線性相依」，避免斜率除法爆炸。
const varEps = 1e-9

// EmpiricalMean 由累計和計算樣本平均；n == 0 時回傳 0。
func EmpiricalMean(sum float64, n int) float64 {
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}

// EmpiricalVariance 由累計和與平方和計算樣本變異數（除以 n）。
// n < 2 時回傳 0；浮點消去造成的負值一律鉗到 0。
func EmpiricalVariance(sumSq, sum float64, n int) float64 {
	if n < 2 {
		return 0.0
	}
	m := sum / float64(n)
	return math.Max(0.0, sumSq/float64(n)-m*m)
}

// LMMSESlope 計算報酬對成本的最佳線性預測斜率 Cov(X,R)/Var(X)。
// n < 2 或 Var(X) < 1e-9 時回傳 0（成本幾乎無變異時視為無線性相依）。
func LMMSESlope(sumX, sumR, sumXX, sumRR, sumXR float64, n int) float64 {
	if n < 2 {
		return 0.0
	}
	fn := float64(n)
	meanX := sumX / fn
	varX := sumXX/fn - meanX*meanX
	if varX < varEps {
		return 0.0
	}
	cov := sumXR/fn - meanX*(sumR/fn)
	return cov / varX
}

// LMMSEResidualVariance 計算 R - omega*X 的最小可達變異
// max(0, Var(R) - omega^2 * Var(X))；R 是 X 的精確線性函數時為 0。
// n < 2 時回傳 0。
func LMMSEResidualVariance(sumX, sumR, sumXX, sumRR, sumXR float64, n int, omega float64) float64 {
	if n < 2 {
		return 0.0
	}
	fn := float64(n)
	meanX := sumX / fn
	meanR := sumR / fn
	varX := sumXX/fn - meanX*meanX
	varR := sumRR/fn - meanR*meanR
	return math.Max(0.0, varR-omega*omega*varX)
}

// Median 回傳樣本中位數（不修改輸入；偶數長度取中間兩值平均）。
// 空切片回傳 0。
func Median(xs []float64) float64 {
	switch len(xs) {
	case 0:
		return 0.0
	case 1:
		return xs[0]
	}
	s := slices.Clone(xs)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2.0
}

// StableArgmax 回傳最大值的索引；同分時取最小索引。
// 空切片回傳 -1。+Inf 視為合法分數（策略用它強迫探索）。
func StableArgmax(scores []float64) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
