package v1

import (
	"crypto/rand"
	"encoding/json"
	"math"
	"math/big"
	"net/http"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/server/httperr"
	"github.com/zintix-labs/banditlab/spec"
)

// SetByJson 傳入 JSON 情境設定 以及掃描參數
//
// 情境本身必須對應到 catalog 已註冊的 sid/name（防止跑來路不明的設定），
// 但 arms 內容允許覆寫，方便微調後直接模擬比較。
func (sh *SimHandler) SetByJson(w http.ResponseWriter, r *http.Request) {
	type SimRequestByJson struct {
		Trials   int                  `json:"trials"`
		Budgets  []float64            `json:"budgets"`
		Policies []spec.PolicySetting `json:"policies,omitempty"`
		Workers  int                  `json:"workers,omitempty"`
		Scenario json.RawMessage      `json:"cfg"`
		Seed     *int64               `json:"seed,omitempty"`
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// 1. decode request
	req := new(SimRequestByJson)
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20) // 5MB
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		httperr.Errs(w, errs.Wrap(err, "json decode failed"))
		return
	}

	// 2. vaild sweep params
	if req.Trials < 0 || req.Trials > 1_000_000 {
		httperr.Errs(w, errs.NewWarn("trials must be between 1 to 1,000,000"))
		return
	}
	if len(req.Budgets) == 0 {
		httperr.Errs(w, errs.NewWarn("budgets is required"))
		return
	}
	if len(req.Policies) == 0 {
		for _, k := range sh.Lab.PolicyKeys() {
			req.Policies = append(req.Policies, spec.PolicySetting{Key: k})
		}
	}
	if req.Seed == nil {
		rnd, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			httperr.Errs(w, errs.NewWarn("seed generate failed"))
			return
		}
		v := rnd.Int64()
		req.Seed = &v
	}

	// 3. NewSimulator
	set := &spec.SimSetting{
		Trials:   req.Trials,
		Budgets:  req.Budgets,
		Policies: req.Policies,
		Workers:  req.Workers,
	}
	sim, err := sh.Lab.NewSimulatorByJSON(req.Scenario, set, *req.Seed)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	result, _, err := sim.Sweep(false)
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	// 4. 回傳Json
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
