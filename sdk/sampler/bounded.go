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

// boundedPair 的成本與報酬各自為獨立均勻分布。
// correlation 非零時以一個共用的均勻亂數推移兩邊，
// 推移量依各自的區間寬度縮放。推移後的值可能略超出原區間，
// 這是此相依模型的已知特性，不做截斷。
type boundedPair struct {
	costU   distuv.Uniform
	rewardU distuv.Uniform
	corr    float64
	rngC    *core.Core

	costRange   float64
	rewardRange float64
}

func newBoundedPair(a *spec.ArmSetting, c *core.Core) (*boundedPair, error) {
	return &boundedPair{
		costU:       distuv.Uniform{Min: a.MinCost, Max: a.MaxCost, Src: c},
		rewardU:     distuv.Uniform{Min: a.MinReward, Max: a.MaxReward, Src: c},
		corr:        a.Correlation,
		rngC:        c,
		costRange:   a.MaxCost - a.MinCost,
		rewardRange: a.MaxReward - a.MinReward,
	}, nil
}

func (b *boundedPair) Sample() (cost, reward float64) {
	cost = b.costU.Rand()
	reward = b.rewardU.Rand()
	// correlation 為零時不可多耗亂數，否則會破壞與舊紀錄的序列對齊。
	if b.corr != 0 {
		common := b.rngC.Float64()
		cost += b.corr * (common - 0.5) * b.costRange
		reward += b.corr * (common - 0.5) * b.rewardRange
	}
	return cost, reward
}
