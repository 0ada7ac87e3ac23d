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
	"github.com/zintix-labs/banditlab/stats"
	"gonum.org/v1/gonum/stat"
)

// regretScore 預設分數：跨所有 budget cell 的平均遺憾，
// 加上以 StdWeight 加權的平均遺憾標準差（懲罰不穩定的參數）。
// 分數越小越好。
func (t *Tuner) regretScore(rep *stats.SweepReport) float64 {
	avg, std := cellRegrets(rep)
	return avg + t.cfg.Quality.StdWeight*std
}

// cellRegrets 回傳 sweep 所有 cell 的 AvgRegret 與 StdRegret 的平均。
func cellRegrets(rep *stats.SweepReport) (avg float64, std float64) {
	if rep == nil || len(rep.Cells) == 0 {
		return 0, 0
	}
	avgs := make([]float64, 0, len(rep.Cells))
	stds := make([]float64, 0, len(rep.Cells))
	for _, c := range rep.Cells {
		avgs = append(avgs, c.AvgRegret)
		stds = append(stds, c.StdRegret)
	}
	return stat.Mean(avgs, nil), stat.Mean(stds, nil)
}
