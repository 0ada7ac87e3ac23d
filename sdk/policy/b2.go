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

// KeyB2 是 UCB-B2 的註冊名稱。
const KeyB2 spec.PolicyKey = "ucb_b2"

// ucbB2 只假設成本/報酬的 almost-sure 上界（M_X, M_R）已知，
// 且兩者不相關；變異數由累計和與平方和線上估計，更新仍是 O(1)。
//
// 信賴寬度（Bernstein 型，令 logNα = α·ln(n)）：
//
//	ε = sqrt(2·V̂(R)·logNα/T) + 3·M_R·logNα/T
//	η = sqrt(2·V̂(X)·logNα/T) + 3·M_X·logNα/T
//	c = 1.4·(ε + r̂·η) / θ⁺
//
// 不利用相關性，所以分子用 r̂ 而非 (r̂-ω)。
type ucbB2 struct {
	env *env.Environment
	p   spec.PolicyParams

	mX []float64
	mR []float64

	pulls  []int
	sumX   []float64
	sumR   []float64
	sumXX  []float64
	sumRR  []float64
	scores []float64
}

// NewUCBB2 建立 UCB-B2 實例。
func NewUCBB2(e *env.Environment, p spec.PolicyParams) (Policy, error) {
	if e == nil {
		return nil, errs.NewFatal("ucb_b2: nil environment")
	}
	k := e.Arms()
	mx, mr := bounds(e)
	return &ucbB2{
		env:    e,
		p:      newPolicyParams(p),
		mX:     mx,
		mR:     mr,
		pulls:  make([]int, k),
		sumX:   make([]float64, k),
		sumR:   make([]float64, k),
		sumXX:  make([]float64, k),
		sumRR:  make([]float64, k),
		scores: make([]float64, k),
	}, nil
}

func (b *ucbB2) Name() string { return string(KeyB2) }

func (b *ucbB2) SelectArm(totalCost float64, epoch int) (int, error) {
	if err := checkEpoch(epoch); err != nil {
		return 0, err
	}
	if arm := coldStart(b.pulls); arm >= 0 {
		return arm, nil
	}

	logNA := b.p.Alpha * math.Log(float64(epoch))
	for k := range b.scores {
		t := float64(b.pulls[k])
		meanX := calc.EmpiricalMean(b.sumX[k], b.pulls[k])
		meanR := calc.EmpiricalMean(b.sumR[k], b.pulls[k])
		varX := calc.EmpiricalVariance(b.sumXX[k], b.sumX[k], b.pulls[k])
		varR := calc.EmpiricalVariance(b.sumRR[k], b.sumR[k], b.pulls[k])
		rHat := rateEstimate(meanR, meanX, b.p.BMinCost)

		eps := math.Sqrt(2*varR*logNA/t) + 3*b.mR[k]*logNA/t
		eta := math.Sqrt(2*varX*logNA/t) + 3*b.mX[k]*logNA/t

		theta := thetaPlus(meanX, b.p.BMinCost)
		width := math.Inf(1)
		if eta < theta*guardRatio {
			width = widthB * (eps + rHat*eta) / theta
		}
		b.scores[k] = rHat + width
	}
	return calc.StableArgmax(b.scores), nil
}

func (b *ucbB2) UpdateState(arm int, cost, reward float64) error {
	if err := checkArm(arm, len(b.pulls)); err != nil {
		return err
	}
	b.pulls[arm]++
	b.sumX[arm] += cost
	b.sumR[arm] += reward
	b.sumXX[arm] += cost * cost
	b.sumRR[arm] += reward * reward
	return nil
}

func (b *ucbB2) Reset() {
	for k := range b.pulls {
		b.pulls[k] = 0
		b.sumX[k] = 0
		b.sumR[k] = 0
		b.sumXX[k] = 0
		b.sumRR[k] = 0
	}
}
