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

package sampler

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/spec"
)

// heavyTailPair 的成本為古典 Pareto（最小值 = scale），報酬為對數常態。
// correlation 非零時把同一個標準常態亂數依比例加到兩邊，
// 製造粗略的正相依。加法可能讓成本低於 Pareto 下界甚至轉負，
// 重尾臂本來就沒有邊界保證，演算法必須自己扛住。
type heavyTailPair struct {
	costP   distuv.Pareto
	rewardL distuv.LogNormal
	latentN distuv.Normal
	corr    float64
}

func newHeavyTailPair(a *spec.ArmSetting, c *core.Core) (*heavyTailPair, error) {
	return &heavyTailPair{
		costP:   distuv.Pareto{Xm: a.ParetoScale, Alpha: a.ParetoAlpha, Src: c},
		rewardL: distuv.LogNormal{Mu: a.LogNormMu, Sigma: a.LogNormSig, Src: c},
		latentN: distuv.Normal{Mu: 0, Sigma: 1, Src: c},
		corr:    a.Correlation,
	}, nil
}

func (h *heavyTailPair) Sample() (cost, reward float64) {
	cost = h.costP.Rand()
	reward = h.rewardL.Rand()
	if h.corr != 0 {
		common := h.latentN.Rand()
		cost += h.corr * common
		reward += h.corr * common
	}
	return cost, reward
}
