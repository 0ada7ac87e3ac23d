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

// KeyM1 是 UCB-M1 的註冊名稱。
const KeyM1 spec.PolicyKey = "ucb_m1"

// ucbM1 是重尾情形的變體：二階矩已知（同 B1），但報酬率與
// 成本平均改用 median-of-means——把樣本依觀測順序切成
// m = ⌊3.5·α·ln(n)⌋+1 個連續分組（鉗到 [1,T]），各組取平均後取中位數。
// 中位數分組本身已壓住尾部風險，信賴寬度不再需要 log 分組偏置項：
//
//	ε = 11·sqrt(α·V·ln(n)/T)
//	η = 11·sqrt(α·Var(X)·ln(n)/T)
//	c = 2√2·(ε + (r̄-ω)·η) / θ⁺，θ⁺ = max(bMinCost, x̄)
//
// 需要保留全樣本緩衝（分組邊界隨 n 變動，無法用累計量重建）。
type ucbM1 struct {
	env *env.Environment
	p   spec.PolicyParams
	km  knownMoments

	pulls  []int
	buf    pairBuffer
	scores []float64
}

// NewUCBM1 建立 UCB-M1 實例。
func NewUCBM1(e *env.Environment, p spec.PolicyParams) (Policy, error) {
	if e == nil {
		return nil, errs.NewFatal("ucb_m1: nil environment")
	}
	k := e.Arms()
	return &ucbM1{
		env:    e,
		p:      newPolicyParams(p),
		km:     newKnownMoments(e),
		pulls:  make([]int, k),
		buf:    newPairBuffer(k),
		scores: make([]float64, k),
	}, nil
}

func (b *ucbM1) Name() string { return string(KeyM1) }

func (b *ucbM1) SelectArm(totalCost float64, epoch int) (int, error) {
	if err := checkEpoch(epoch); err != nil {
		return 0, err
	}
	if arm := coldStart(b.pulls); arm >= 0 {
		return arm, nil
	}

	logN := math.Log(float64(epoch))
	for k := range b.scores {
		t := float64(b.pulls[k])
		m := groupCount(b.p.Alpha, epoch, b.pulls[k])
		rBar, xBar := medianOfGroupMeans(b.buf.xs[k], b.buf.rs[k], m, b.p.BMinCost)

		eps := 11 * math.Sqrt(b.p.Alpha*b.km.vxr[k]*logN/t)
		eta := 11 * math.Sqrt(b.p.Alpha*b.km.varX[k]*logN/t)

		theta := thetaPlus(xBar, b.p.BMinCost)
		width := math.Inf(1)
		if eta < theta*guardRatio {
			width = widthM * (eps + (rBar-b.km.omega[k])*eta) / theta
		}
		b.scores[k] = rBar + width
	}
	return calc.StableArgmax(b.scores), nil
}

func (b *ucbM1) UpdateState(arm int, cost, reward float64) error {
	if err := checkArm(arm, len(b.pulls)); err != nil {
		return err
	}
	b.pulls[arm]++
	b.buf.append(arm, cost, reward)
	return nil
}

func (b *ucbM1) Reset() {
	for k := range b.pulls {
		b.pulls[k] = 0
	}
	b.buf.reset()
}
