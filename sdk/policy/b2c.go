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

// KeyB2C 是 UCB-B2C 的註冊名稱。
const KeyB2C spec.PolicyKey = "ucb_b2c"

// ucbB2C 是 B2 的「利用相關性」版本：上界已知、二階矩未知，
// 每回合由全樣本緩衝重算 LMMSE 斜率 ω̂ 與殘差變異 L̂，
// 所以每次選臂是 O(T)。緩衝是唯一事實來源，不另外維護累計量。
//
// 信賴寬度（令 logNα = α·ln(n)，M_Z = M_R + ω̄·M_X）：
//
//	ε = sqrt(2·L̂·logNα/T) + 3·M_Z·logNα/T
//	η = sqrt(2·V̂(X)·logNα/T) + 3·M_X·logNα/T
//	c = 1.4·(ε + (r̂-ω̂)⁺·η) / θ⁺
//
// ω̄（OmegaBar）是外部給的斜率上界，只進 M_Z 的偏置項。
type ucbB2C struct {
	env *env.Environment
	p   spec.PolicyParams

	mX []float64
	mZ []float64

	pulls  []int
	buf    pairBuffer
	scores []float64
}

// NewUCBB2C 建立 UCB-B2C 實例。
func NewUCBB2C(e *env.Environment, p spec.PolicyParams) (Policy, error) {
	if e == nil {
		return nil, errs.NewFatal("ucb_b2c: nil environment")
	}
	k := e.Arms()
	pp := newPolicyParams(p)
	mx, mr := bounds(e)
	mz := make([]float64, k)
	for i := range mz {
		mz[i] = mr[i] + pp.OmegaBar*mx[i]
	}
	return &ucbB2C{
		env:    e,
		p:      pp,
		mX:     mx,
		mZ:     mz,
		pulls:  make([]int, k),
		buf:    newPairBuffer(k),
		scores: make([]float64, k),
	}, nil
}

func (b *ucbB2C) Name() string { return string(KeyB2C) }

func (b *ucbB2C) SelectArm(totalCost float64, epoch int) (int, error) {
	if err := checkEpoch(epoch); err != nil {
		return 0, err
	}
	if arm := coldStart(b.pulls); arm >= 0 {
		return arm, nil
	}

	logNA := b.p.Alpha * math.Log(float64(epoch))
	for k := range b.scores {
		t := float64(b.pulls[k])
		n := b.pulls[k]
		sumX, sumR, sumXX, sumRR, sumXR := b.buf.sums(k)

		meanX := calc.EmpiricalMean(sumX, n)
		meanR := calc.EmpiricalMean(sumR, n)
		rHat := rateEstimate(meanR, meanX, b.p.BMinCost)

		omegaHat := calc.LMMSESlope(sumX, sumR, sumXX, sumRR, sumXR, n)
		lHat := calc.LMMSEResidualVariance(sumX, sumR, sumXX, sumRR, sumXR, n, omegaHat)
		varX := calc.EmpiricalVariance(sumXX, sumX, n)

		eps := math.Sqrt(2*lHat*logNA/t) + 3*b.mZ[k]*logNA/t
		eta := math.Sqrt(2*varX*logNA/t) + 3*b.mX[k]*logNA/t

		theta := thetaPlus(meanX, b.p.BMinCost)
		width := math.Inf(1)
		if eta < theta*guardRatio {
			width = widthB * (eps + math.Max(0, rHat-omegaHat)*eta) / theta
		}
		b.scores[k] = rHat + width
	}
	return calc.StableArgmax(b.scores), nil
}

func (b *ucbB2C) UpdateState(arm int, cost, reward float64) error {
	if err := checkArm(arm, len(b.pulls)); err != nil {
		return err
	}
	b.pulls[arm]++
	b.buf.append(arm, cost, reward)
	return nil
}

func (b *ucbB2C) Reset() {
	for k := range b.pulls {
		b.pulls[k] = 0
	}
	b.buf.reset()
}
