package stats

const maxLutPct int = 1000

// EffBuckets
//
// 用來快速定位效率百分比 ->  CellReport 分桶位置 O(1)
//
// 請勿修改預設值
//   - eff區間: 實得率佔最佳率的百分比 [<0], [0,10), [10,20), ..., [100,110), [110,125), [125,150), [150, +inf)
type EffBuckets struct {
	effBucket    []int
	effBucketStr []string
	lut          []int
	maxIdx       int
}

// Buckets
//
// 用來快速定位效率百分比 ->  CellReport 分桶位置 O(1)
//
// 請勿修改預設值
var Buckets *EffBuckets = newEffBuckets()

func newEffBuckets() *EffBuckets {
	b := &EffBuckets{
		effBucket: []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 125, 150},
		effBucketStr: []string{
			"(-inf,0)", "[0,10)", "[10,20)", "[20,30)", "[30,40)", "[40,50)",
			"[50,60)", "[60,70)", "[70,80)", "[80,90)", "[90,100)",
			"[100,110)", "[110,125)", "[125,150)", "[150,+inf)",
		},
	}
	// 建立LUT反查表: lut[pct] = idx（pct >= 0 的部分）
	lut := make([]int, maxLutPct)
	last := len(b.effBucket) - 1
	idx := 0
	for p := 0; p < maxLutPct; p++ {
		for idx < last && p >= b.effBucket[idx+1] {
			idx++
		}
		lut[p] = idx + 1 // 位移 1：索引 0 保留給負效率
	}
	b.lut = lut
	b.maxIdx = len(b.effBucketStr) - 1
	return b
}

func (b *EffBuckets) EffBucketStr() []string {
	return b.effBucketStr
}

// Index 回傳效率百分比（可為負）對應的分桶索引。
func (b *EffBuckets) Index(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct >= maxLutPct {
		return b.maxIdx
	}
	return b.lut[pct]
}
