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

// PolicyKey 是策略在註冊表中的名稱（例如 "ucb_b1"）。
type PolicyKey string

// 調參常數的預設值。只對「零值」補預設，型別以外不做範圍驗證：
// 越界值會經由策略端的安全下限（bMinCost floor、變異鉗制、
// 守門失敗視為無限不確定）優雅退化，不會當機。
const (
	DefaultAlpha    = 2.1
	DefaultL        = 2.0
	DefaultBMinCost = 0.1
	DefaultOmegaBar = 5.0
)

// PolicyParams 是策略的外部調參常數。
//   - Alpha：信賴界的 log(n) 係數（所有變體）。
//   - L：B1 的變異縮放。
//   - BMinCost：成本估計的安全下限，防止除法爆炸（所有變體）。
//   - OmegaBar：B2C 偏置項的斜率上界。
type PolicyParams struct {
	Alpha    float64 `yaml:"alpha,omitempty"      json:"alpha,omitempty"`
	L        float64 `yaml:"l,omitempty"          json:"l,omitempty"`
	BMinCost float64 `yaml:"b_min_cost,omitempty" json:"b_min_cost,omitempty"`
	OmegaBar float64 `yaml:"omega_bar,omitempty"  json:"omega_bar,omitempty"`
}

// Normalize 回傳補完預設值的副本。
func (p PolicyParams) Normalize() PolicyParams {
	if p.Alpha == 0 {
		p.Alpha = DefaultAlpha
	}
	if p.L == 0 {
		p.L = DefaultL
	}
	if p.BMinCost == 0 {
		p.BMinCost = DefaultBMinCost
	}
	if p.OmegaBar == 0 {
		p.OmegaBar = DefaultOmegaBar
	}
	return p
}

// PolicySetting 把一個策略名稱與它的調參綁在一起，供模擬設定引用。
type PolicySetting struct {
	Key    PolicyKey    `yaml:"key"              json:"key"`
	Params PolicyParams `yaml:"params,omitempty" json:"params,omitempty"`
}
