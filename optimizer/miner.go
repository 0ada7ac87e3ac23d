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
	"fmt"
	"io/fs"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/banditlab"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/spec"
	"github.com/zintix-labs/banditlab/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

const defaultGridSteps = 5
const defaultSamples = 200
const defaultEvalTrials = 200
const maxCandidates = 100_000

// Candidate 一組已評估的參數與其分數。
type Candidate struct {
	Params    spec.PolicyParams `json:"params"`
	Score     float64           `json:"score"`
	AvgRegret float64           `json:"avg_regret"`
	StdRegret float64           `json:"std_regret"`
}

// Tuner 調參器主體。
//
// 對一個 policy × scenario，在設定的搜尋空間內逐一評估候選參數：
// 每個候選用同一 base seed 跑一次完整的 budget sweep
// （common random numbers：候選之間看到相同的亂數序列，
// 比較的變異只剩參數本身），再以 eval 收斂成單一分數（越小越好）。
type Tuner struct {
	cfg  *TunerSetting
	eval func(rep *stats.SweepReport) float64
}

// New 從設定檔（fs.FS + 檔名）建立 Tuner。
func New(cfg fs.FS, name string) (*Tuner, error) {
	raw, err := fs.ReadFile(cfg, name)
	if err != nil {
		return nil, err
	}
	ts, err := getTunerSettingByYaml(raw)
	if err != nil {
		return nil, err
	}
	t := &Tuner{cfg: ts}
	t.eval = t.regretScore
	fmt.Printf("tuner: policy=%s method=%s budgets=%v trials=%d\n",
		ts.Policy, ts.Method, ts.Budgets, ts.Trials)
	return t, nil
}

// RegisterEval 替換分數函式（預設為 regretScore）。分數越小越好。
func (t *Tuner) RegisterEval(fn func(rep *stats.SweepReport) float64) {
	t.eval = fn
}

// Run 執行調參並回傳排序後的結果（最佳在前）。
//
// seed 同時用於候選抽樣與每個候選的 sweep base seed；
// 相同 (設定, seed) 的 Run 是決定性的。
func (t *Tuner) Run(sid spec.SID, lab *banditlab.Banditlab, seed int64) (*TuneReport, error) {
	if _, ok := lab.EntryById(sid); !ok {
		return nil, errs.Warnf("sid not found: %d", sid)
	}
	found := false
	for _, k := range lab.PolicyKeys() {
		if k == t.cfg.Policy {
			found = true
			break
		}
	}
	if !found {
		return nil, errs.Warnf("policy not registered: %s", t.cfg.Policy)
	}

	rng := core.New(core.Default().New(seed))
	params, err := t.makeCandidates(rng)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	fmt.Println("step1: evaluate candidates")
	bar := pb.StartNew(len(params))
	bar.Set(pb.CleanOnFinish, true)

	report := &TuneReport{
		Policy:     t.cfg.Policy,
		SID:        sid,
		Candidates: make([]Candidate, 0, len(params)),
	}
	for _, p := range params {
		cand, err := t.evalOne(sid, lab, seed, p)
		if err != nil {
			bar.Finish()
			return nil, err
		}
		report.Candidates = append(report.Candidates, cand)
		bar.Increment()
		if t.cfg.TargetScore > 0 && cand.Score <= t.cfg.TargetScore {
			break
		}
	}
	bar.Finish()

	fmt.Println("step2: rank")
	report.rank()
	report.UsedMs = time.Since(start).Milliseconds()
	fmt.Printf("best: %+v score=%.4f\n", report.Best.Params, report.Best.Score)
	return report, nil
}

// evalOne 以同一 base seed 對單一候選跑完整 sweep 並評分。
func (t *Tuner) evalOne(sid spec.SID, lab *banditlab.Banditlab, seed int64, p spec.PolicyParams) (Candidate, error) {
	set := &spec.SimSetting{
		Trials:   t.cfg.Trials,
		Budgets:  t.cfg.Budgets,
		Policies: []spec.PolicySetting{{Key: t.cfg.Policy, Params: p}},
		BaseSeed: seed,
		Workers:  t.cfg.Workers,
	}
	sim, err := lab.NewSimulatorWithSeed(sid, set, seed)
	if err != nil {
		return Candidate{}, err
	}
	var rep *stats.SweepReport
	if t.cfg.Workers > 1 {
		rep, _, err = sim.SweepMP(t.cfg.Workers, false)
	} else {
		rep, _, err = sim.Sweep(false)
	}
	if err != nil {
		return Candidate{}, err
	}
	avg, std := cellRegrets(rep)
	return Candidate{
		Params:    p,
		Score:     t.eval(rep),
		AvgRegret: avg,
		StdRegret: std,
	}, nil
}

// makeCandidates 依設定產生候選參數列表。
//
// 注意：值剛好落在 0 的維度會被 Normalize 換成該參數的預設值；
// 搜尋區間不要跨過 0（例如 alpha min 設 0.1 而不是 0）。
func (t *Tuner) makeCandidates(rng *core.Core) ([]spec.PolicyParams, error) {
	switch t.cfg.Method {
	case MethodGrid:
		return t.gridCandidates()
	case MethodRandom:
		return t.randomCandidates(rng), nil
	}
	return nil, errs.Warnf("method %s not supported", t.cfg.Method)
}

func (t *Tuner) randomCandidates(rng *core.Core) []spec.PolicyParams {
	draw := func(r ParamRange) func() float64 {
		if r.fixed() {
			return func() float64 { return r.Min }
		}
		u := distuv.Uniform{Min: r.Min, Max: r.Max, Src: rng}
		return u.Rand
	}
	alpha := draw(t.cfg.Space.Alpha)
	l := draw(t.cfg.Space.L)
	bmin := draw(t.cfg.Space.BMinCost)
	omega := draw(t.cfg.Space.OmegaBar)

	out := make([]spec.PolicyParams, t.cfg.Samples)
	for i := range out {
		out[i] = spec.PolicyParams{
			Alpha:    alpha(),
			L:        l(),
			BMinCost: bmin(),
			OmegaBar: omega(),
		}.Normalize()
	}
	return out
}

func (t *Tuner) gridCandidates() ([]spec.PolicyParams, error) {
	axis := func(r ParamRange) []float64 {
		if r.fixed() {
			return []float64{r.Min}
		}
		steps := t.cfg.GridSteps
		vals := make([]float64, steps)
		d := (r.Max - r.Min) / float64(steps-1)
		for i := range vals {
			vals[i] = r.Min + float64(i)*d
		}
		return vals
	}
	alphas := axis(t.cfg.Space.Alpha)
	ls := axis(t.cfg.Space.L)
	bmins := axis(t.cfg.Space.BMinCost)
	omegas := axis(t.cfg.Space.OmegaBar)

	total := len(alphas) * len(ls) * len(bmins) * len(omegas)
	if total > maxCandidates {
		return nil, errs.Warnf("grid too large: %d candidates (max %d)", total, maxCandidates)
	}
	out := make([]spec.PolicyParams, 0, total)
	for _, a := range alphas {
		for _, l := range ls {
			for _, b := range bmins {
				for _, o := range omegas {
					out = append(out, spec.PolicyParams{
						Alpha:    a,
						L:        l,
						BMinCost: b,
						OmegaBar: o,
					}.Normalize())
				}
			}
		}
	}
	return out, nil
}
