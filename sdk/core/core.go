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

package core

import "github.com/zintix-labs/banditlab/errs"

// PRNG 定義 Core 所需的亂數來源：取樣能力 + 狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// Restorable 定義可快照與還原的狀態介面。
// 模擬回放（devsim）依賴這兩個方法重現完全相同的試驗序列。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// RAND 定義核心亂數取樣能力。
//
// 之所以要求四個方法（Uint64 / Float64 / UintN / IntN）而非只有 Uint64：
//   - 有的 PRNG 原生輸出是 32-bit，有的原生是 64-bit；bounded 生成
//     （UintN/IntN）各自有最快且無偏的路徑，應交由實作自行決定。
//   - Float64 的精度（32-bit vs 53-bit mantissa）是實作層的取捨，
//     合約只保證值域 [0,1)。
//
// 注意：RAND 同時滿足 math/rand/v2 的 Source 介面（Uint64），
// 因此 *Core 可以直接當作 gonum distuv / distmv 的 Src 使用。
type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

type PRNGFactory interface {
	// New 以指定 seed 建立新的 PRNG。
	//
	// 合約：同一實作、同一版本下，New(seed) 必須是決定性的——
	// 相同 seed 必須產生相同的初始狀態與輸出序列。
	// 模擬的可重現性（迴歸測試、審計、併發試驗的子 seed 派生）
	// 全部建立在這條合約上，所以這裡只有帶 seed 的 New，
	// 不提供「隨機初始化」的變體；seed 的生命週期由上層統一管理。
	New(int64) PRNG
}

// DefaultPRNG 是預設工廠，產出 PCG64。
type DefaultPRNG struct{}

func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// pcg32Factory 產出 PCG32（32-bit 輸出、較輕的狀態），供設定檔指名使用。
type pcg32Factory struct{}

func (f *pcg32Factory) New(seed int64) PRNG {
	return newPCG32WithSeed(seed)
}

// FactoryByName 依名稱取得 PRNG 工廠；空字串等同 pcg64。
// 設定檔（SimSetting.Core）用這個入口換實作。
func FactoryByName(name string) (PRNGFactory, error) {
	switch name {
	case "", "pcg64":
		return Default(), nil
	case "pcg32":
		return &pcg32Factory{}, nil
	default:
		return nil, errs.Warnf("unknown prng factory: %q", name)
	}
}

// Core 封裝 PRNG，並提供常用取樣方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

// Pick 從列表中隨機選取一個元素，若列表為空回傳 -1。
// 熱路徑中只使用哨兵值回傳。
func (c *Core) Pick(src []int) int {
	if len(src) == 0 {
		return -1
	}
	idx := c.IntN(len(src))
	return src[idx]
}
