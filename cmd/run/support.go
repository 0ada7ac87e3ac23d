package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/zintix-labs/banditlab/demo"
	"github.com/zintix-labs/banditlab/spec"
	"github.com/zintix-labs/banditlab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var cfg *config = new(config)

type config struct {
	name      string
	id        spec.SID
	worker    int
	trials    int
	budgets   string
	policies  string
	csv       string
	seed      int64
	pprofmode string
}

type sidFlag struct{ p *spec.SID }

func (f sidFlag) String() string { return fmt.Sprint(uint(*f.p)) }
func (f sidFlag) Set(s string) error {
	u, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return err
	}
	*f.p = spec.SID(uint(u))
	return nil
}

func bindVar() {
	// 綁定 Flag 到本地變數的指標 (&)
	flag.Var(sidFlag{&cfg.id}, "scenario", "target scenario id")
	flag.IntVar(&cfg.worker, "worker", 1, "number of workers")
	flag.IntVar(&cfg.trials, "trials", 200, "trials per (policy, budget) cell")
	flag.StringVar(&cfg.budgets, "budgets", "500,1000,2000,5000", "comma separated budgets")
	flag.StringVar(&cfg.policies, "policies", "", "comma separated policy keys (empty = all registered)")
	flag.StringVar(&cfg.csv, "csv", "", "write per-cell report to csv file")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")

	flag.Parse()

	// given seed illeagel -> default seed
	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

// 這裡解析設定並執行 策略 × 預算 掃描
func executeSimulator() {
	cfg.valid() // 基本檢查

	lab, err := demo.NewBanditLab()
	if err != nil {
		log.Fatal(err)
	}

	budgets, err := parseBudgets(cfg.budgets)
	if err != nil {
		log.Fatal(err)
	}
	policies := parsePolicies(cfg.policies)
	if len(policies) == 0 {
		for _, k := range lab.PolicyKeys() {
			policies = append(policies, spec.PolicySetting{Key: k})
		}
	}

	set := &spec.SimSetting{
		Trials:   cfg.trials,
		Budgets:  budgets,
		Policies: policies,
		BaseSeed: cfg.seed,
		Workers:  cfg.worker,
	}
	s, err := lab.NewSimulatorWithSeed(cfg.id, set, cfg.seed)
	if err != nil {
		log.Fatal(err)
	}
	ent, _ := lab.EntryById(cfg.id)
	cfg.name = ent.Name
	// 至此確保可執行
	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)

	var st *stats.SweepReport
	if cfg.worker == 1 { // 單線程
		p.Printf("%s[SCENARIO:%s] [POLICIES:%d] [BUDGETS:%d] [TRIALS:%d]%s\n", green, cfg.name, len(policies), len(budgets), cfg.trials, reset)
		report, used, err := s.Sweep(true)
		if err != nil {
			log.Fatal(err)
		}
		report.StdOut(used)
		st = report
	} else {
		p.Printf("%s[WORKERS:%d] [SCENARIO:%s] [POLICIES:%d] [BUDGETS:%d] [TRIALS:%d]%s\n", green, cfg.worker, cfg.name, len(policies), len(budgets), cfg.trials, reset)
		report, used, err := s.SweepMP(cfg.worker, true) // 併發
		if err != nil {
			log.Fatal(err)
		}
		report.StdOut(used)
		st = report
	}

	if cfg.csv != "" {
		if err := writeCSV(cfg.csv, st); err != nil {
			log.Fatal(err)
		}
		fmt.Println("csv report:", cfg.csv)
	}
}

func parseBudgets(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("bad budget %q: %w", p, err)
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("budgets required")
	}
	return out, nil
}

func parsePolicies(s string) []spec.PolicySetting {
	parts := strings.Split(s, ",")
	out := make([]spec.PolicySetting, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, spec.PolicySetting{Key: spec.PolicyKey(p)})
	}
	return out
}

func writeCSV(path string, st *stats.SweepReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	render := &stats.CSVSweepReportRender{}
	if err := render.Write(f, st); err != nil {
		return err
	}
	return f.Close()
}

func (cfg *config) valid() {
	p := message.NewPrinter(language.English)

	// 工作協程檢查(併發數)
	if cfg.worker < 1 {
		log.Fatal("value err : workers must > 0")
	}

	// 試驗數檢查
	if cfg.trials < 1 {
		log.Fatal("value err : trials must > 0")
	}

	// 試驗數太多 resize
	if cfg.trials > 1000000 {
		p.Printf("too much trials: %d resized to 1M trials per cell\n", cfg.trials)
		cfg.trials = 1000000
	}
}
