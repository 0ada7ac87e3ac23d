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

package policy

import (
	"math"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/calc"
	"github.com/zintix-labs/banditlab/sdk/env"
	"github.com/zintix-labs/banditlab/spec"
)

// KeyB1 是 UCB-B1 的註冊名稱。
const KeyB1 spec.PolicyKey = "ucb_b1"

// ucbB1 假設二階矩（Var(X), Var(R), Cov(X,R)）已知，
// 狀態只需要每臂的拉次與一階累計和，更新 O(1)。
//
// 信賴寬度（子高斯情形）：
//
//	ε = 2·α·M_R·ln(n)/(3T) + sqrt(L·α·V·ln(n)/T)
//	η = 2·α·M_X·ln(n)/(3T) + sqrt(L·α·Var(X)·ln(n)/T)
//	c = 1.4·(ε + (r̂-ω)·η) / max(bMinCost, x̄)
//
// M_X = M_R = 0 是聯合高斯情形的慣例（沒有 almost-sure 上界），
// 此時前段偏置項自然為零。
type ucbB1 struct {
	env *env.Environment
	p   spec.PolicyParams
	km  knownMoments

	pulls  []int
	sumX   []float64
	sumR   []float64
	scores []float64

	// 聯合高斯情形的 almost-sure 上界為零；保留欄位讓公式完整。
	mX, mR float64
}

// NewUCBB1 建立 UCB-B1 實例。
func NewUCBB1(e *env.Environment, p spec.PolicyParams) (Policy, error) {
	if e == nil {
		return nil, errs.NewFatal("ucb_b1: nil environment")
	}
	k := e.Arms()
	return &ucbB1{
		env:    e,
		p:      newPolicyParams(p),
		km:     newKnownMoments(e),
		pulls:  make([]int, k),
		sumX:   make([]float64, k),
		sumR:   make([]float64, k),
		scores: make([]float64, k),
	}, nil
}

func (b *ucbB1) Name() string { return string(KeyB1) }

func (b *ucbB1) SelectArm(totalCost float64, epoch int) (int, error) {
	if err := checkEpoch(epoch); err != nil {
		return 0, err
	}
	if arm := coldStart(b.pulls); arm >= 0 {
		return arm, nil
	}

	logN := math.Log(float64(epoch))
	for k := range b.scores {
		t := float64(b.pulls[k])
		meanX := calc.EmpiricalMean(b.sumX[k], b.pulls[k])
		meanR := calc.EmpiricalMean(b.sumR[k], b.pulls[k])
		rHat := rateEstimate(meanR, meanX, b.p.BMinCost)

		eps := 2*b.p.Alpha*b.mR*logN/(3*t) +
			math.Sqrt(b.p.L*b.p.Alpha*b.km.vxr[k]*logN/t)
		eta := 2*b.p.Alpha*b.mX*logN/(3*t) +
			math.Sqrt(b.p.L*b.p.Alpha*b.km.varX[k]*logN/t)

		// B1 的守門比其他變體多一道：成本平均本身低於下限
		// 就直接視為不穩定，不再折進 θ⁺。
		width := math.Inf(1)
		if meanX >= b.p.BMinCost && eta < meanX*guardRatio {
			width = widthB * (eps + (rHat-b.km.omega[k])*eta) / thetaPlus(meanX, b.p.BMinCost)
		}
		b.scores[k] = rHat + width
	}
	return calc.StableArgmax(b.scores), nil
}

func (b *ucbB1) UpdateState(arm int, cost, reward float64) error {
	if err := checkArm(arm, len(b.pulls)); err != nil {
		return err
	}
	b.pulls[arm]++
	b.sumX[arm] += cost
	b.sumR[arm] += reward
	return nil
}

func (b *ucbB1) Reset() {
	for k := range b.pulls {
		b.pulls[k] = 0
		b.sumX[k] = 0
		b.sumR[k] = 0
	}
}
