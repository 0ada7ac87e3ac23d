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
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/spec"
)

// gaussianPair 以二維常態分布同時抽出成本與報酬，
// 共變異直接寫進 2x2 矩陣，相關性由分布本身處理。
type gaussianPair struct {
	dist *distmv.Normal
	buf  []float64 // 重複使用，避免每次取樣都配置
}

// newGaussianPair 建構二維常態取樣器。
// 共變異矩陣過不了 Cholesky 分解（非正定）視為致命設定錯誤，
// 這類矩陣根本不是合法的共變異，矇混過去只會產出垃圾樣本。
func newGaussianPair(a *spec.ArmSetting, c *core.Core) (*gaussianPair, error) {
	mu := []float64{a.MeanCost, a.MeanReward}
	sigma := mat.NewSymDense(2, []float64{
		a.VarCost, a.CovCostReward,
		a.CovCostReward, a.VarReward,
	})
	dist, ok := distmv.NewNormal(mu, sigma, c)
	if !ok {
		return nil, errs.Fatalf("arm %q: covariance matrix is not positive definite", a.ArmName)
	}
	return &gaussianPair{dist: dist, buf: make([]float64, 2)}, nil
}

func (g *gaussianPair) Sample() (cost, reward float64) {
	g.dist.Rand(g.buf)
	return g.buf[0], g.buf[1]
}
