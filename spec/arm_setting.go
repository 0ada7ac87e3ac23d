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

package spec

import (
	"fmt"
	"math"

	"github.com/zintix-labs/banditlab/errs"
)

// ArmFamily 定義拉臂的成本/報酬分布族。
type ArmFamily int

const (
	FamilyGaussian ArmFamily = iota
	FamilyBoundedUniform
	FamilyHeavyTailed
	FamilyDiscrete
)

var armFamilyMap = map[string]ArmFamily{
	"gaussian":        FamilyGaussian,
	"bounded_uniform": FamilyBoundedUniform,
	"heavy_tailed":    FamilyHeavyTailed,
	"discrete":        FamilyDiscrete,
}

func ParseArmFamily(s string) (ArmFamily, bool) {
	f, ok := armFamilyMap[s]
	return f, ok
}

func (f ArmFamily) String() string {
	for s, v := range armFamilyMap {
		if v == f {
			return s
		}
	}
	return "unknown"
}

// Outcome 是離散臂的單一結果（成本、報酬、整數權重）。
type Outcome struct {
	Cost   float64 `yaml:"cost"   json:"cost"`
	Reward float64 `yaml:"reward" json:"reward"`
	Weight int     `yaml:"weight" json:"weight"`
}

// ArmSetting 是單一拉臂的不可變描述。
//
// MeanCost / MeanReward 是真實一階矩：永遠用於最佳基準計算，
// 對「已知矩」的策略（B1/M1）也當作已知輸入。
// VarCost / VarReward / CovCostReward 是真實二階矩（B1/M1 已知輸入）。
// MaxCost / MaxReward 是 almost-sure 上界（B2/B2C 的 Bernstein 偏置項用）。
//
// 離散臂的矩由結果表推導，設定檔內寫的值會被覆蓋；
// 結果表可內嵌（outcomes）或外部檔案（table，zstd 壓縮 JSON）。
type ArmSetting struct {
	ArmName   string    `yaml:"arm_name" json:"arm_name"`
	Family    ArmFamily `yaml:"-"        json:"-"`
	FamilyStr string    `yaml:"family"   json:"family"`

	MeanCost   float64 `yaml:"mean_cost"   json:"mean_cost"`
	MeanReward float64 `yaml:"mean_reward" json:"mean_reward"`

	VarCost       float64 `yaml:"var_cost,omitempty"        json:"var_cost,omitempty"`
	VarReward     float64 `yaml:"var_reward,omitempty"      json:"var_reward,omitempty"`
	CovCostReward float64 `yaml:"cov_cost_reward,omitempty" json:"cov_cost_reward,omitempty"`

	MaxCost   float64 `yaml:"max_cost,omitempty"   json:"max_cost,omitempty"`
	MaxReward float64 `yaml:"max_reward,omitempty" json:"max_reward,omitempty"`

	// bounded_uniform 專用
	MinCost   float64 `yaml:"min_cost,omitempty"   json:"min_cost,omitempty"`
	MinReward float64 `yaml:"min_reward,omitempty" json:"min_reward,omitempty"`

	// heavy_tailed 專用：成本 ~ (Pareto(alpha)+1)*scale，報酬 ~ Lognormal(mu, sigma)
	ParetoAlpha float64 `yaml:"pareto_alpha,omitempty" json:"pareto_alpha,omitempty"`
	ParetoScale float64 `yaml:"pareto_scale,omitempty" json:"pareto_scale,omitempty"`
	LogNormMu   float64 `yaml:"lognorm_mu,omitempty"   json:"lognorm_mu,omitempty"`
	LogNormSig  float64 `yaml:"lognorm_sigma,omitempty" json:"lognorm_sigma,omitempty"`

	// bounded_uniform / heavy_tailed 的共同因子相關係數（近似注入，非 copula）
	Correlation float64 `yaml:"correlation,omitempty" json:"correlation,omitempty"`

	// discrete 專用
	Outcomes  []Outcome `yaml:"outcomes,omitempty" json:"outcomes,omitempty"`
	TableFile string    `yaml:"table,omitempty"    json:"table,omitempty"`

	initFlag     bool
	tablePending bool
}

// Init 解析分布族、推導離散臂的矩，並執行基本檢查。
func (a *ArmSetting) Init() error {
	if a.initFlag {
		return nil
	}

	if a.FamilyStr == "" {
		return errs.Fatalf("arm %q: family is required", a.ArmName)
	}
	f, ok := ParseArmFamily(a.FamilyStr)
	if !ok {
		return errs.Fatalf("arm %q: unknown family %q", a.ArmName, a.FamilyStr)
	}
	a.Family = f

	if a.Family == FamilyDiscrete {
		if len(a.Outcomes) == 0 && a.TableFile == "" {
			return errs.Fatalf("arm %q: discrete family needs outcomes or table", a.ArmName)
		}
		if len(a.Outcomes) > 0 && a.TableFile != "" {
			return errs.Fatalf("arm %q: outcomes and table are mutually exclusive", a.ArmName)
		}
		if a.TableFile != "" {
			// 外部表由上層（banditlab 建 env 時）載入後呼叫 SetOutcomes。
			a.tablePending = true
			a.initFlag = true
			return nil
		}
		if err := a.deriveDiscreteMoments(); err != nil {
			return err
		}
	}

	if err := a.valid(); err != nil {
		return err
	}
	a.initFlag = true
	return nil
}

// TablePending 回報離散臂是否仍等待外部結果表。
func (a *ArmSetting) TablePending() bool { return a.tablePending }

// SetOutcomes 填入外部載入的結果表、推導矩並完成檢查。
func (a *ArmSetting) SetOutcomes(outs []Outcome) error {
	if !a.tablePending {
		return errs.Warnf("arm %q: no pending table", a.ArmName)
	}
	if len(outs) == 0 {
		return errs.Fatalf("arm %q: empty outcome table %q", a.ArmName, a.TableFile)
	}
	a.Outcomes = outs
	a.tablePending = false
	if err := a.deriveDiscreteMoments(); err != nil {
		return err
	}
	return a.valid()
}

// deriveDiscreteMoments 由結果表推導一階/二階矩與上界。
// 表內資料是唯一事實來源，設定檔手寫的矩會被覆蓋。
func (a *ArmSetting) deriveDiscreteMoments() error {
	var wSum float64
	var mc, mr float64
	maxC, maxR := math.Inf(-1), math.Inf(-1)
	for i, o := range a.Outcomes {
		if o.Weight <= 0 {
			return errs.Fatalf("arm %q: outcome %d has non-positive weight", a.ArmName, i)
		}
		w := float64(o.Weight)
		wSum += w
		mc += w * o.Cost
		mr += w * o.Reward
		maxC = math.Max(maxC, o.Cost)
		maxR = math.Max(maxR, o.Reward)
	}
	mc /= wSum
	mr /= wSum

	var vc, vr, cov float64
	for _, o := range a.Outcomes {
		w := float64(o.Weight) / wSum
		dc := o.Cost - mc
		dr := o.Reward - mr
		vc += w * dc * dc
		vr += w * dr * dr
		cov += w * dc * dr
	}

	a.MeanCost, a.MeanReward = mc, mr
	a.VarCost, a.VarReward, a.CovCostReward = vc, vr, cov
	a.MaxCost, a.MaxReward = maxC, maxR
	return nil
}

// valid 檢查分布族必要參數；矩的範圍不檢查
// （越界值會通過策略端的安全下限優雅退化，不在此擋下）。
func (a *ArmSetting) valid() error {
	if a.MeanCost <= 0 {
		return errs.Fatalf("arm %q: mean_cost must be positive, got %v", a.ArmName, a.MeanCost)
	}

	switch a.Family {
	case FamilyGaussian:
		if a.VarCost <= 0 || a.VarReward <= 0 {
			return errs.Fatalf("arm %q: gaussian family needs positive var_cost/var_reward", a.ArmName)
		}
	case FamilyBoundedUniform:
		if a.MaxCost <= a.MinCost {
			return errs.Fatalf("arm %q: need min_cost < max_cost, got [%v,%v]", a.ArmName, a.MinCost, a.MaxCost)
		}
		if a.MaxReward <= a.MinReward {
			return errs.Fatalf("arm %q: need min_reward < max_reward, got [%v,%v]", a.ArmName, a.MinReward, a.MaxReward)
		}
	case FamilyHeavyTailed:
		if a.ParetoAlpha <= 0 || a.ParetoScale <= 0 {
			return errs.Fatalf("arm %q: heavy_tailed family needs positive pareto_alpha/pareto_scale", a.ArmName)
		}
		if a.LogNormSig <= 0 {
			return errs.Fatalf("arm %q: heavy_tailed family needs positive lognorm_sigma", a.ArmName)
		}
	case FamilyDiscrete:
		// 矩已由結果表推導，無額外必要參數
	default:
		return errs.Fatalf("arm %q: unknown family %d", a.ArmName, a.Family)
	}
	return nil
}

// TrueRate 回傳真實報酬率 E[R]/E[X]，供最佳基準計算。
func (a *ArmSetting) TrueRate() float64 {
	if a.MeanCost == 0 {
		return 0
	}
	return a.MeanReward / a.MeanCost
}

func (a *ArmSetting) String() string {
	return fmt.Sprintf("%s(%s: rate=%.4f)", a.ArmName, a.FamilyStr, a.TrueRate())
}
