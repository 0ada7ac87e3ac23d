package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/banditlab/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// SweepReport 掃描統計報告：單一情境下 策略 × 預算 的完整結果矩陣。
type SweepReport struct {
	Summary *ScenarioReport `json:"Summary"`
	Cells   []*CellReport   `json:"Cells"`
	isDone  bool
}

type ScenarioReport struct {
	ScenarioName string    `json:"ScenarioName"`
	ScenarioID   spec.SID  `json:"ScenarioID"`
	Arms         int       `json:"Arms"`
	TrueRates    []float64 `json:"TrueRates"`
	OptimalArm   int       `json:"OptimalArm"`
	OptimalRate  float64   `json:"OptimalRate"`
	Trials       int       `json:"Trials"`      // 每格試驗數
	TotalTrials  int       `json:"TotalTrials"` // 全矩陣總試驗數
}

// CellReport 是矩陣中的一格：一個 (policy, budget) 組合的彙總。
//
// 紀錄時只累積和/平方和，避免熱路徑上的轉型與重算。
// 紀錄完成後 Done() 會將最終統計結果整理填入。
type CellReport struct {
	Policy spec.PolicyKey `json:"Policy"`
	Budget float64        `json:"Budget"`
	Trials int            `json:"Trials"`

	RewardSum   float64 `json:"RewardSum"`
	RewardSqSum float64 `json:"RewardSqSum"` // 平方和
	RegretSum   float64 `json:"RegretSum"`
	RegretSqSum float64 `json:"RegretSqSum"` // 平方和
	EpochSum    int     `json:"EpochSum"`

	// OptimalMostPulled 統計有幾場試驗中最佳臂被拉最多次（嚴格最大）。
	OptimalMostPulled int `json:"OptimalMostPulled"`

	// 效率分桶：每場試驗實得率佔最佳率的百分比落點。
	EffBucket  []string  `json:"EffBucket"`
	EffCollect []int     `json:"EffCollect"`
	EffDist    []float64 `json:"EffDist"`

	AvgReward        float64   `json:"AvgReward"`
	StdReward        float64   `json:"StdReward"`
	AvgRegret        float64   `json:"AvgRegret"`
	StdRegret        float64   `json:"StdRegret"`
	RegretCI         CI        `json:"RegretCI"`
	RegretMedian     PointStat `json:"RegretMedian"`
	AvgEpochs        float64   `json:"AvgEpochs"`
	OptimalPullShare PointStat `json:"OptimalPullShare"`

	// 每場試驗的原始遺憾值與實得率；只供分位估計使用，不序列化。
	Regrets  []float64 `json:"-"`
	EffRates []float64 `json:"-"`
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 所有掃描統計過程因為性能原因只累積和/平方和，統計完成後
//
// 請使用 Done 來通知報表統計已經完成，可以一次性計算統計結果
func (s *SweepReport) Done() {
	if s.isDone {
		return
	}
	for _, c := range s.Cells {
		c.done()
	}
	s.isDone = true
}

func (c *CellReport) done() {
	c.AvgReward = meanOfSum(c.RewardSum, c.Trials)
	c.StdReward = c.stdReward()
	c.AvgRegret = meanOfSum(c.RegretSum, c.Trials)
	c.StdRegret = c.stdRegret()
	c.RegretCI = c.regretCI()
	c.AvgEpochs = meanOfSum(float64(c.EpochSum), c.Trials)

	hat, ci := proportionCICP(c.OptimalMostPulled, c.Trials, 0.95)
	c.OptimalPullShare = PointStat{Hat: hat, CI: ci}

	if len(c.Regrets) > 0 {
		med := quantilePoint(c.Regrets, 0.5)
		lo, hi := quantileCI(c.Regrets, 0.5, 0.95)
		c.RegretMedian = PointStat{Hat: med, CI: CI{Lo: lo, Hi: hi}}
	}

	if len(c.EffCollect) > 0 && c.Trials > 0 {
		c.EffDist = make([]float64, len(c.EffCollect))
		tf := float64(c.Trials)
		for i, n := range c.EffCollect {
			c.EffDist[i] = float64(n) / tf
		}
	}
}

func (c *CellReport) stdReward() float64 {
	return stdOfSums(c.RewardSum, c.RewardSqSum, c.Trials)
}

func (c *CellReport) stdRegret() float64 {
	return stdOfSums(c.RegretSum, c.RegretSqSum, c.Trials)
}

// regretCI 回傳平均遺憾的 95% 信賴區間（常態近似）。
func (c *CellReport) regretCI() CI {
	avg := meanOfSum(c.RegretSum, c.Trials)
	se := float64(0)
	if c.Trials > 1 {
		se = c.stdRegret() / math.Sqrt(float64(c.Trials))
	}
	return CI{Lo: avg - 1.96*se, Hi: avg + 1.96*se}
}

func (s *SweepReport) WriteWith(w io.Writer, rep SweepReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

func (s *SweepReport) StdOut(ut time.Duration) {
	s.Done()
	formatDuration(ut, s.Summary.TotalTrials)
	sk, sm := s.fmtScenario()
	fmt.Println(fmtTable(s.Summary.ScenarioName, sk, sm))
	ck, cm := s.fmtCells()
	fmt.Println(fmtTable("policy × budget", ck, cm))
}

// Cell 依 (policy, budget) 取出一格；找不到回傳 nil。
func (s *SweepReport) Cell(key spec.PolicyKey, budget float64) *CellReport {
	for _, c := range s.Cells {
		if c.Policy == key && c.Budget == budget {
			return c
		}
	}
	return nil
}

// ============================================================
// ** 內部方法 **
// ============================================================

func meanOfSum(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// stdOfSums 由和/平方和算樣本標準差（n-1 分母），變異為負時鉗到 0。
func stdOfSums(sum, sqSum float64, n int) float64 {
	if n < 2 {
		return 0
	}
	nf := float64(n)
	variance := (sqSum - sum*sum/nf) / (nf - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func formatDuration(d time.Duration, trials int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	tps := int(float64(trials) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\ntps : %d trials/sec\n", sec, tps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		s = s % 60
		p.Printf("used: %dm %ds\ntps : %d trials/sec\n", m, s, tps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\ntps : %d trials/sec\n", h, m, s, tps)
}

// StdOut

func (s *SweepReport) fmtScenario() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	sm := s.Summary
	basic := map[string]string{
		"Scenario":     p.Sprintf("%s", sm.ScenarioName),
		"Scenario ID":  fmt.Sprintf("%d", sm.ScenarioID),
		"Arms":         p.Sprintf("%d", sm.Arms),
		"Optimal Arm":  p.Sprintf("%d", sm.OptimalArm),
		"Optimal Rate": p.Sprintf("%.4f", sm.OptimalRate),
		"Trials/Cell":  p.Sprintf("%d", sm.Trials),
		"Total Trials": p.Sprintf("%d", sm.TotalTrials),
	}
	keys := []string{"Scenario", "Scenario ID", "Arms", "Optimal Arm", "Optimal Rate", "Trials/Cell", "Total Trials"}
	return keys, basic
}

func (s *SweepReport) fmtCells() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	keys := make([]string, 0, len(s.Cells))
	msg := make(map[string]string, len(s.Cells))
	for _, c := range s.Cells {
		k := p.Sprintf("%s @ %.0f", string(c.Policy), c.Budget)
		keys = append(keys, k)
		msg[k] = p.Sprintf("reward %.2f ±%.2f | regret %.2f ±%.2f | opt %.0f%%",
			c.AvgReward, c.StdReward, c.AvgRegret, c.StdRegret, 100*c.OptimalPullShare.Hat)
	}
	return keys, msg
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	fmtStr := top
	fmtStr += p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	fmtStr += divider
	for _, k := range keys {
		fmtStr += p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	fmtStr += divider

	return fmtStr
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
