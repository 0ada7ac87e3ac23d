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
	"fmt"
	"sort"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/env"
	"github.com/zintix-labs/banditlab/spec"
)

// Builder 依環境與調參建出綁定單一試驗的 Policy 實例。
// 每個試驗都會經過 Builder 拿到全新狀態，試驗之間不共享任何可變資料。
type Builder func(e *env.Environment, p spec.PolicyParams) (Policy, error)

// Registry 是策略名稱到 Builder 的註冊表。
// 內建四個 UCB 變體之外，外部模組（例如 demo 的 greedy 基線）
// 也經由 Register 掛進來，和內建策略走同一條建構路徑。
type Registry struct {
	builders map[spec.PolicyKey]Builder
}

// NewRegistry 建立空的註冊表。
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[spec.PolicyKey]Builder, 8),
	}
}

// NewBuiltinRegistry 建立已掛入四個內建 UCB 變體的註冊表。
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	// 內建名稱不會撞，錯誤只可能來自程式壞掉，直接忽略。
	_ = r.Register(KeyB1, NewUCBB1)
	_ = r.Register(KeyB2, NewUCBB2)
	_ = r.Register(KeyB2C, NewUCBB2C)
	_ = r.Register(KeyM1, NewUCBM1)
	return r
}

// Register 掛入一個策略 builder；名稱重複是致命錯誤。
func (r *Registry) Register(key spec.PolicyKey, b Builder) error {
	if key == "" {
		return errs.NewFatal("policy key required")
	}
	if b == nil {
		return errs.NewFatal("policy builder required")
	}
	if _, ok := r.builders[key]; ok {
		return errs.NewFatal(fmt.Sprintf("duplicate policy key: %s", key))
	}
	r.builders[key] = b
	return nil
}

// Build 建出指定策略的全新實例。
func (r *Registry) Build(key spec.PolicyKey, e *env.Environment, p spec.PolicyParams) (Policy, error) {
	b, ok := r.builders[key]
	if !ok {
		return nil, errs.NewFatal(fmt.Sprintf("policy not registered: %s", key))
	}
	return b(e, p)
}

// IsExist 回報策略名稱是否已註冊。
func (r *Registry) IsExist(key spec.PolicyKey) bool {
	_, ok := r.builders[key]
	return ok
}

// Keys 回傳已註冊的策略名稱（排序固定，供列舉/觀測）。
func (r *Registry) Keys() []spec.PolicyKey {
	ks := make([]spec.PolicyKey, 0, len(r.builders))
	for k := range r.builders {
		ks = append(ks, k)
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i] < ks[j] })
	return ks
}

// MergeRegistry 合併多個註冊表成新表。
// builder 是函式值無從比較，重複名稱一律視為錯誤，
// 不做 last-one-wins，行為才有確定性。
func MergeRegistry(regs ...*Registry) (*Registry, error) {
	merged := NewRegistry()
	origin := make(map[spec.PolicyKey]int, 8)

	for i, r := range regs {
		if r == nil {
			continue
		}
		for key, b := range r.builders {
			if _, ok := merged.builders[key]; ok {
				prev := origin[key]
				return nil, errs.NewFatal(fmt.Sprintf("duplicate policy key %s (registry #%d and #%d)", key, prev, i))
			}
			merged.builders[key] = b
			origin[key] = i
		}
	}
	return merged, nil
}
