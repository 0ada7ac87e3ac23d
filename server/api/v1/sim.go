package v1

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strconv"

	"github.com/zintix-labs/banditlab"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/server/httperr"
	"github.com/zintix-labs/banditlab/spec"
	"github.com/zintix-labs/banditlab/stats"
)

type SimHandler struct {
	Lab *banditlab.Banditlab
}

func NewSimHandler(lab *banditlab.Banditlab) (*SimHandler, error) {
	return &SimHandler{Lab: lab}, nil
}

// simRequestBody 內部結構 不影響外部 也不被外部使用
type simRequestBody struct {
	SID      spec.SID             `json:"sid"`
	Trials   int                  `json:"trials"`
	Budgets  []float64            `json:"budgets"`
	Policies []spec.PolicySetting `json:"policies,omitempty"`
	Workers  int                  `json:"workers,omitempty"`
	Seed     *int64               `json:"seed,omitempty"`
}

// decodeSimRequest 解析 GET query 或 POST JSON。
// GET 只支援單一 budget/policy（快速驗證用）；完整矩陣請走 POST。
func (sh *SimHandler) decodeSimRequest(q *http.Request) (*simRequestBody, error) {
	req := new(simRequestBody)

	if q.Method == http.MethodGet {
		// sid
		if s := q.URL.Query().Get("sid"); s != "" {
			u, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return nil, errs.NewWarn("sid must be non-negative integer")
			}
			req.SID = spec.SID(u)
		} else {
			// 直接空值
			return nil, errs.NewWarn("sid is required")
		}

		// budget
		if b := q.URL.Query().Get("budget"); b != "" {
			f, err := strconv.ParseFloat(b, 64)
			if err != nil {
				return nil, errs.NewWarn("budget must be a number")
			}
			req.Budgets = []float64{f}
		} else {
			return nil, errs.NewWarn("budget is required")
		}

		// policy
		if p := q.URL.Query().Get("policy"); p != "" {
			req.Policies = []spec.PolicySetting{{Key: spec.PolicyKey(p)}}
		}

		// trials
		if t := q.URL.Query().Get("trials"); t != "" {
			u, err := strconv.ParseInt(t, 10, 64)
			if err != nil {
				return nil, errs.NewWarn("trials must be integer")
			}
			req.Trials = int(u)
		}

		// seed
		if s := q.URL.Query().Get("seed"); s != "" {
			u, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errs.NewWarn("seed must be int64")
			}
			v := u
			req.Seed = &v
		}
		return req, nil
	}

	if err := json.NewDecoder(q.Body).Decode(req); err != nil {
		return nil, errs.NewWarn("invalid json:" + err.Error())
	}
	return req, nil
}

// valid 業務檢驗，並補齊預設（全策略、自動種子）。
func (sh *SimHandler) valid(req *simRequestBody) error {
	if _, ok := sh.Lab.EntryById(req.SID); !ok {
		return errs.NewWarn("sid not found")
	}
	if req.Trials < 0 || req.Trials > 1_000_000 {
		return errs.NewWarn("trials must be between 1 to 1,000,000")
	}
	if len(req.Policies) == 0 {
		// 未指定就跑全部已註冊策略
		for _, k := range sh.Lab.PolicyKeys() {
			req.Policies = append(req.Policies, spec.PolicySetting{Key: k})
		}
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			return errs.NewWarn("seed generate failed")
		}
		v := rnd.Int64()
		req.Seed = &v
	}
	return nil
}

func (sh *SimHandler) newSweep(req *simRequestBody) (*stats.SweepReport, int64, error) {
	set := &spec.SimSetting{
		Trials:   req.Trials,
		Budgets:  req.Budgets,
		Policies: req.Policies,
		Workers:  req.Workers,
	}
	sim, err := sh.Lab.NewSimulatorWithSeed(req.SID, set, *req.Seed)
	if err != nil {
		// 這裡的錯誤是來自banditlab 尊重錯誤分級
		return nil, 0, errs.Wrap(err, fmt.Sprintf("build simulator err: %d", req.SID))
	}
	var report *stats.SweepReport
	var used int64
	if req.Workers > 1 {
		st, ut, err := sim.SweepMP(req.Workers, false)
		if err != nil {
			return nil, 0, errs.Wrap(err, "simulate err")
		}
		report, used = st, ut.Milliseconds()
	} else {
		st, ut, err := sim.Sweep(false)
		if err != nil {
			return nil, 0, errs.Wrap(err, "simulate err")
		}
		report, used = st, ut.Milliseconds()
	}
	return report, used, nil
}

// Sim 執行 策略 × 預算 掃描並回傳統計報表。
func (sh *SimHandler) Sim(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimResponse struct {
		Stats    *stats.SweepReport `json:"stats"`
		UsedTime int64              `json:"used_ms"`
	}
	// ---
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := sh.decodeSimRequest(q)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if err := sh.valid(req); err != nil {
		httperr.Errs(w, err)
		return
	}
	st, used, err := sh.newSweep(req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	resp := SimResponse{
		Stats:    st,
		UsedTime: used,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Estimate 執行掃描並對每格做試驗分布評估（遺憾分位/效率門檻/收斂）。
func (sh *SimHandler) Estimate(w http.ResponseWriter, q *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type CellEstimate struct {
		Policy spec.PolicyKey       `json:"policy"`
		Budget float64              `json:"budget"`
		Est    *stats.EstimatorCell `json:"est"`
	}
	type EstimateResponse struct {
		Stats    *stats.SweepReport `json:"stats"`
		Cells    []CellEstimate     `json:"cells"`
		UsedTime int64              `json:"used_ms"`
	}
	// ---
	if q.Method != http.MethodGet && q.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := sh.decodeSimRequest(q)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if err := sh.valid(req); err != nil {
		httperr.Errs(w, err)
		return
	}
	st, used, err := sh.newSweep(req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	cells := make([]CellEstimate, 0, len(st.Cells))
	for _, c := range st.Cells {
		cells = append(cells, CellEstimate{
			Policy: c.Policy,
			Budget: c.Budget,
			Est:    stats.EstimatorCellExp(c, st.Summary.OptimalRate),
		})
	}

	resp := &EstimateResponse{
		Stats:    st,
		Cells:    cells,
		UsedTime: used,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Scenarios 回傳 catalog summary（JSON）。
func (sh *SimHandler) Scenarios(w http.ResponseWriter, q *http.Request) {
	if q.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sum, err := sh.Lab.Summary()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sum)
}
