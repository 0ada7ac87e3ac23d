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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/spec"
)

// TuneReport 一次 Run 的完整結果。
type TuneReport struct {
	Policy     spec.PolicyKey `json:"policy"`
	SID        spec.SID       `json:"sid"`
	Best       Candidate      `json:"best"`
	Candidates []Candidate    `json:"candidates"`
	UsedMs     int64          `json:"used_ms"`
}

// rank 依分數由小到大排序並填入 Best。排序是穩定的：
// 分數相同時保留評估順序，讓相同設定的 Run 結果完全可重現。
func (r *TuneReport) rank() {
	sort.SliceStable(r.Candidates, func(i, j int) bool {
		return r.Candidates[i].Score < r.Candidates[j].Score
	})
	if len(r.Candidates) > 0 {
		r.Best = r.Candidates[0]
	}
}

// Save 將結果以 JSON + zstd 壓縮存到 build/optimizer/ 下。
func (r *TuneReport) Save() error {
	if len(r.Candidates) == 0 {
		return errs.Warnf("save: no candidates")
	}

	// Output directory (dev-friendly default): ./build/optimizer
	outDir := filepath.Join("build", "optimizer")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errs.Wrap(err, "save: mkdir output dir")
	}

	jsonBytes, err := json.Marshal(r)
	if err != nil {
		return errs.Wrap(err, "save: marshal tune report")
	}
	path := filepath.Join(outDir, fmt.Sprintf("tune_%d_%s.json.zst", r.SID, r.Policy))
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "save: create tune report file")
	}
	defer func() { _ = f.Close() }()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return errs.Wrap(err, "save: create zstd writer")
	}
	if _, err := zw.Write(jsonBytes); err != nil {
		_ = zw.Close()
		return errs.Wrap(err, "save: write tune report")
	}
	if err := zw.Close(); err != nil {
		return errs.Wrap(err, "save: close zstd writer")
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(err, "save: close tune report file")
	}

	// sanity check: compressed payload can be read back (dev-only guard, cheap for typical sizes)
	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(err, "save: read back tune report")
	}
	zr, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return errs.Wrap(err, "save: verify zstd reader")
	}
	zr.Close()

	return nil
}

// Load 讀回 Save 寫出的檔案。
func Load(path string) (*TuneReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, "load: read tune report")
	}
	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errs.Wrap(err, "load: create zstd reader")
	}
	defer zr.Close()
	jsonBytes, err := zr.DecodeAll(raw, nil)
	if err != nil {
		return nil, errs.Wrap(err, "load: decompress tune report")
	}
	r := &TuneReport{}
	if err := json.Unmarshal(jsonBytes, r); err != nil {
		return nil, errs.Wrap(err, "load: unmarshal tune report")
	}
	return r, nil
}
