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

package optimizer

import (
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/spec"
	"gopkg.in/yaml.v3"
)

// 搜尋方法
const (
	MethodGrid   = "grid"
	MethodRandom = "random"
)

// TunerSetting 調參器的 YAML 設定。
//
// 設計：每次調參只針對「一個 policy × 一個 scenario」；
// 想比較多個 policy 就跑多次（調參結果本來就不可跨 policy 共用）。
type TunerSetting struct {
	// 要調的策略 key（必填，須已註冊）
	Policy spec.PolicyKey `yaml:"policy"`

	// 搜尋方法：grid | random
	Method string `yaml:"method"`
	// random 方法的抽樣數
	Samples int `yaml:"samples,omitempty"`
	// grid 方法每個維度的切分數
	GridSteps int `yaml:"grid_steps,omitempty"`

	// 每個候選的評估規模
	Trials  int       `yaml:"trials,omitempty"`
	Budgets []float64 `yaml:"budgets"`
	Workers int       `yaml:"workers,omitempty"`

	// 搜尋空間：min == max 的維度視為固定值
	Space SearchSpace `yaml:"search_space"`

	// 品質評估
	Quality QualityEvaluate `yaml:"quality_evaluate,omitempty"`

	// 提前停止門檻：score <= target_score 即停（<=0 代表不啟用）
	TargetScore float64 `yaml:"target_score,omitempty"`
}

// SearchSpace 是四個調參常數各自的搜尋範圍。
type SearchSpace struct {
	Alpha    ParamRange `yaml:"alpha"`
	L        ParamRange `yaml:"l"`
	BMinCost ParamRange `yaml:"b_min_cost"`
	OmegaBar ParamRange `yaml:"omega_bar"`
}

// ParamRange 單一參數的搜尋區間（閉區間）。
type ParamRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r ParamRange) fixed() bool {
	return r.Min == r.Max
}

func (r ParamRange) validate(name string) error {
	if r.Max < r.Min {
		return errs.Warnf("search_space.%s: max must be >= min", name)
	}
	return nil
}

// QualityEvaluate 把 sweep 統計壓成單一分數的權重。
// score = mean(AvgRegret) + StdWeight*mean(StdRegret)
type QualityEvaluate struct {
	StdWeight float64 `yaml:"std_weight,omitempty"`
}

func getTunerSettingByYaml(data []byte) (*TunerSetting, error) {
	ts := &TunerSetting{}
	if err := yaml.Unmarshal(data, ts); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}
	if err := ts.validate(); err != nil {
		return nil, err
	}
	return ts, nil
}

// validate 檢查調參設定是否合理，並補上預設值。
func (ts *TunerSetting) validate() error {
	if ts.Policy == "" {
		return errs.NewWarn("tuner: policy is required")
	}
	switch ts.Method {
	case MethodGrid:
		if ts.GridSteps < 2 {
			ts.GridSteps = defaultGridSteps
		}
	case MethodRandom, "":
		ts.Method = MethodRandom
		if ts.Samples < 1 {
			ts.Samples = defaultSamples
		}
	default:
		return errs.Warnf("tuner: method %s not supported", ts.Method)
	}
	if ts.Trials < 1 {
		ts.Trials = defaultEvalTrials
	}
	if len(ts.Budgets) == 0 {
		return errs.NewWarn("tuner: budgets is required")
	}
	for _, b := range ts.Budgets {
		if b <= 0 {
			return errs.Warnf("tuner: budget must be positive: %f", b)
		}
	}
	for _, pr := range []struct {
		name string
		r    ParamRange
	}{
		{"alpha", ts.Space.Alpha},
		{"l", ts.Space.L},
		{"b_min_cost", ts.Space.BMinCost},
		{"omega_bar", ts.Space.OmegaBar},
	} {
		if err := pr.r.validate(pr.name); err != nil {
			return err
		}
	}
	if ts.Quality.StdWeight < 0 {
		return errs.NewWarn("tuner: quality_evaluate.std_weight must be >= 0")
	}
	return nil
}

// baseline 回傳搜尋空間的起點：固定維度取固定值、零值維度交給 Normalize 補預設。
func (ts *TunerSetting) baseline() spec.PolicyParams {
	p := spec.PolicyParams{
		Alpha:    ts.Space.Alpha.Min,
		L:        ts.Space.L.Min,
		BMinCost: ts.Space.BMinCost.Min,
		OmegaBar: ts.Space.OmegaBar.Min,
	}
	return p.Normalize()
}
