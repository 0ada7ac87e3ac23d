package v1

import (
	"encoding/json"
	"net/http"

	"github.com/zintix-labs/banditlab/recorder"
	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/spec"
)

// TrialStat 外部送進來的逐場試驗資料（離線重算統計用）。
//
// 適用情境：別處（例如 Python 端）已經跑完試驗，只想借用本服務的
// 統計彙整（遺憾/效率分桶/收斂）重算報表。
type TrialStat struct {
	ScenarioName string         `json:"scenario_name"`
	TrueRates    []float64      `json:"true_rates"`
	OptimalArm   int            `json:"optimal_arm"`
	Policy       spec.PolicyKey `json:"policy"`
	Budget       float64        `json:"budget"`
	// 逐場結果（以最短長度對齊）
	Rewards []float64 `json:"rewards"`
	Costs   []float64 `json:"costs"`
	Epochs  []int     `json:"epochs"`
	// 每場的各臂拉次（可省略；省略則不計收斂統計）
	Pulls [][]int `json:"pulls,omitempty"`
}

func Stat(w http.ResponseWriter, r *http.Request) {
	// Post方法限定
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// 嘗試解析
	ts := new(TrialStat)
	if err := json.NewDecoder(r.Body).Decode(ts); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 對齊場數
	round := min(len(ts.Rewards), len(ts.Costs), len(ts.Epochs))
	if round < 1 {
		http.Error(w, "round must > 0", http.StatusBadRequest)
		return
	}
	if ts.Policy == "" {
		http.Error(w, "policy is required", http.StatusBadRequest)
		return
	}

	rec, err := recorder.NewTrialRecorder(ts.ScenarioName, 0, ts.TrueRates, ts.OptimalArm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 繞過引擎，自己構造 TrajectoryBuffer（只填彙總欄位）
	tb := &buf.TrajectoryBuffer{
		ScenarioName: ts.ScenarioName,
		Policy:       ts.Policy,
		Budget:       ts.Budget,
	}
	for i := 0; i < round; i++ {
		tb.TotalReward = ts.Rewards[i]
		tb.TotalCost = ts.Costs[i]
		tb.Epochs = ts.Epochs[i]
		if i < len(ts.Pulls) {
			tb.Pulls = ts.Pulls[i]
		} else {
			tb.Pulls = nil
		}
		// 紀錄
		rec.Record(tb)
	}
	st := rec.Done()
	st.Done()
	st.Summary.ScenarioName = ts.ScenarioName
	if err := json.NewEncoder(w).Encode(st); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
}
