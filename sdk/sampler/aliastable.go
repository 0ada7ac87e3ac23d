// Package sampler 提供一系列高效能的加權抽樣演算法與工具。
//
// 本檔案 (aliastable.go) 實作 Vose's Alias Method 加權抽樣（整數優化版）。
//
// 特性：
//   - 建表時間：O(N)，線性時間。
//   - 抽樣時間：O(1)，穩定且高效。
//   - 空間複雜度：O(N)，與元素數量成正比，**與權重總和無關**。
//
// 適用場景：
//   - 離散臂結果表的權重總和非常大（> 100,000）或權重差異懸殊。
//   - 需要穩定的記憶體開銷（場景作者調大結果表權重不會讓記憶體暴增）。
//
// 實作細節：
//   - 採用全整數運算 (Integer Scaling)，避免浮點數精度誤差 (0.999... != 1.0)。
//   - 內建溢位檢查 (Safe Multiply)，確保在大數權重下安全運作。

package sampler

import (
	"math"
	"math/bits"

	"github.com/zintix-labs/banditlab/sdk/core"
)

// AliasTable 是 Vose Alias Method 的 O(1) 加權抽樣結構。
// 整數版本：以整數 scaling 取代浮點機率，杜絕精度誤差累積。
//
// 欄位說明：
// - Prob: 各槽位調整後的整數機率（scaling 後）。
// - Aliases: 補足機率的別名索引。
// - Size: 元素數量。
// - Total: 權重總和，scaling 與抽樣判斷都以它為基準。
//
// 每個槽位只存「自己」和「別名」兩個選項；
// 抽樣先均勻選槽位，再以整數比較決定取自己或別名。
type AliasTable struct {
	Prob    []int
	Aliases []int
	Size    int
	Total   int
}

// BuildAliasTable 根據輸入的權重(weights)建立 AliasTable。
//
// weights 為任意非負整數權重陣列，不需事先正規化；
// 個別權重可為零，但出現負權重、全零或 scaling 溢位都會 panic。
// 離散臂的結果表在 spec 推導矩時已保證權重全為正。
//
// 建表流程：
// 1) 將每個權重 w 乘以元素數量 n 做整數 scaling，得到 prob。
// 2) 依 prob[i] 與 total 比較，把索引分進 small 或 large 兩桶。
// 3) 從兩桶各取一個元素 s, l，將 l 設為 s 的 alias，並調降 l 的 prob。
// 4) 重複直到任一桶清空。
func BuildAliasTable(weights []int) *AliasTable {
	if len(weights) == 0 {
		return &AliasTable{
			Prob:    []int{},
			Aliases: []int{},
			Size:    0,
			Total:   0,
		}
	}

	n := len(weights)
	total := uint64(0)
	for _, w := range weights {
		if w < 0 {
			panic("AliasTable: negative weight encountered")
		}
		if total > uint64(math.MaxInt)-uint64(w) {
			panic("AliasTable: total weight overflow int range")
		}
		total += uint64(w)
	}

	if total == 0 {
		panic("AliasTable: all weights are zero")
	}

	if !isSafeMultiply(int(total), n) {
		panic("AliasTable: weights are too large, causing overflow")
	}

	prob := make([]int, n)
	aliases := make([]int, n)

	small := make([]int, 0)
	large := make([]int, 0)

	for i, w := range weights {
		prob[i] = w * n           // 整數 scaling: 將權重乘以元素數量 n，方便後續整數比較
		if prob[i] < int(total) { // 以 total 做 partition，分為 small 與 large 兩組
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		aliases[s] = l                           // 把 s 的剩餘機率補到 l，建立別名關係
		prob[l] = prob[l] + prob[s] - int(total) // 調整 l 的機率，維持 sum(prob) = total * n 的不變性

		if prob[l] < int(total) {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}

	return &AliasTable{
		Prob:    prob,
		Aliases: aliases,
		Size:    n,
		Total:   int(total),
	}
}

// isSafeMultiply 使用 bits.Mul64 檢查兩數乘積是否超過 math.MaxInt64。
// 建表階段就擋下 w*n 的溢位，不留到抽樣階段才爆。
func isSafeMultiply(a, b int) bool {
	a1 := uint64(a)
	b1 := uint64(b)
	hi, lo := bits.Mul64(a1, b1)
	return hi == 0 && (lo <= math.MaxInt64)

}

// Pick 從 AliasTable 中抽取一個索引，若表為空則回傳 -1。
//
// 抽樣固定消耗 2 次 IntN 亂數：
// 1) c.IntN(Size) 均勻選槽位 idx。
// 2) c.IntN(Total) < Prob[idx] 決定取 idx 本身或其別名。
//
// 第二步是浮點版 U < p[idx] 的整數化：把 U 與 p[idx] 同乘
// Total 放大成整數比較，全程不經過 float64。
func (at *AliasTable) Pick(c *core.Core) int {
	if at.Size == 0 {
		return -1
	}
	idx := c.IntN(at.Size)
	if c.IntN(at.Total) < at.Prob[idx] {
		return idx
	}
	return at.Aliases[idx]
}
