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

// Package banditlab 提供 Banditlab 引擎的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// 你可以把 Banditlab 視為一個「可被後端/模擬器使用的 runtime」，它負責把下列三個必需的地基組裝在一起，並提供建立 Bandit 的入口：
//  1. Catalog：情境目錄（Single Source of Truth / SSOT），定義有哪些多臂情境、各自對應的設定檔名稱（ConfigName）。
//  2. policy.Registry：策略註冊表，提供「如何依據調參（PolicyKey）建出選臂策略」的 builders。
//  3. PRNGFactory：亂數核心工廠，保證可重現（reproducible）與可審計（auditable）。
//
// 設計重點：
//   - Banditlab 本身不綁定任何「檔案路徑」概念：設定檔來源一律以 fs.FS 的形式注入。
//   - Banditlab 會持有一份 Catalog（你要跑哪一批情境/設定檔）與一份 Registry（你支援哪些策略）。
//   - Bandit 是對外提供 Play（單場預算試驗）的最小單位；策略開發者（數學家）主要操作的是 sdk 內的型別與資料結構。
//
// 典型使用情境：
//   - 後端服務（HTTP）：由 Banditlab 建立 Bandit，Bandit 對外提供 Play。
//   - 模擬器（sim）：由 Banditlab 建立多台 Bandit 進行大規模蒙地卡羅掃描。
//
// 注意：此套引擎以「預算受限的多臂問題」為中心（Play -> TrialResult），不是泛用實驗框架。
package banditlab

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io/fs"
	"math"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/banditlab/catalog"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/sdk/policy"
	"github.com/zintix-labs/banditlab/spec"
)

// Scenarios 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 為什麼是 fs.FS：
//   - 你可以用 go:embed 把 scenario 設定直接編進 binary（部署最穩定，不依賴工作目錄）。
//   - 也可以用 os.DirFS 在本機開發時讀取目錄。
//
// Banditlab 不解析「路徑」：它只依賴 fs.FS + ConfigName（檔名）來取得設定內容。
func Scenarios(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Policies 用來把一或多個策略註冊表（policy.Registry）打包成 New() 需要的參數。
//
// 一個 Registry 代表「一個策略模組」提供的 builders 集合。
// 例如：
//   - 內建模組提供四個 UCB 變體
//   - demo 模組提供 greedy 基線
//
// New() 會把多個 registries 合併成單一 registry；若出現重複 PolicyKey，會以 error 直接失敗（避免行為不確定）。
func Policies(regs ...*policy.Registry) []*policy.Registry {
	return regs
}

// Banditlab 是「組裝器（assembler）」與「運行入口（runtime entry）」：
//
// 它把三個必需的地基組合起來：
//  1. Catalog：情境目錄，定義有哪些情境、各自對應的設定檔名稱。
//  2. Registry：策略註冊表，提供依 PolicyKey 建出策略實例的 builders。
//  3. PRNGFactory：亂數核心工廠，保證可重現與可審計。
//
// 使用流程通常分成兩階段：
//   - 註冊/組裝階段（registration/build）：建立 catalog、合併 registries、檢查重複與缺漏。
//   - 執行階段（runtime）：依據情境 ID 產生 Bandit，並在 Bandit 上執行 Play。
//
// 重要設計原則：
//   - Catalog 的 ID 唯一性只保證在「同一個 Banditlab instance」內。
//   - 你要跑哪一批情境、哪一套設定檔、哪一批策略，必須由 New() 的參數明確決定。
//   - runtime 一旦開始（例如已建立 Bandit 並對外服務），不建議再變更 Catalog/Registry。
//
// 實務例子（概念示意）：
//
//	//	lab, _ := banditlab.New(cf, banditlab.Scenarios(cfgFS), banditlab.Policies(reg1, reg2))
//	//	b, _ := lab.NewBandit(1001, false)
//	//	// b.Play(...) -> 取得單場試驗結果（通常再轉成 DTO 回傳）
type Banditlab struct {
	cat    *catalog.Catalog
	reg    *policy.Registry
	cf     core.PRNGFactory
	tables fs.FS // 離散臂外部結果表來源（可為 nil）
	sum    []catalog.Summary
}

// New 建立一個 Banditlab instance。
//
// 這是「組裝階段（registration/build）」的入口：
//   - 會建立 Catalog（同時做檔名存在性/重複性檢查，避免 runtime 才爆）。
//   - 會合併多個 Registry 成為單一 registry（重複 PolicyKey 直接視為錯誤）。
//   - 會保存 PRNGFactory，確保由這個 Banditlab 建出來的 Bandit 在 RNG 行為上具有一致性。
//
// 參數要求（是合約的一部分）：
//   - cf 不能為 nil：沒有 RNG 工廠就無法建立可重現/可審計的核心。
//   - cfgs 至少一個：沒有設定檔來源，Catalog 無法解析 Scenario。
//   - pols 至少一個：沒有策略 builders，就算解析出情境也無法選臂。
func New(cf core.PRNGFactory, cfgs []fs.FS, pols []*policy.Registry) (*Banditlab, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	if len(pols) == 0 {
		return nil, errs.NewFatal("policy registry required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	reg, err := policy.MergeRegistry(pols...)
	if err != nil {
		return nil, err
	}
	lab := &Banditlab{
		cat: cata,
		reg: reg,
		cf:  cf,
	}
	return lab, nil
}

// NewAuto 建立一個直接進入執行階段的 Banditlab instance。
//
// 回傳的 Banditlab 會持有：cat（目錄）、reg（合併後 registry）、cf（RNG 工廠）。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS, pols []*policy.Registry) (*Banditlab, error) {
	lab, err := New(cf, cfgs, pols)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

// UseTables 指定離散臂外部結果表（zstd 壓縮 JSON）的來源。
// 請在建立任何 Bandit/Simulator 之前呼叫。
func (p *Banditlab) UseTables(tfs fs.FS) {
	p.tables = tfs
}

func (p *Banditlab) Register(ents ...catalog.Entry) error {
	return p.cat.Register(ents...)
}

// RegisterAll
//
// 會掃描 catalog 持有的設定檔來源（fs.FS），把所有可辨識的設定檔（.yaml/.yml/.json）嘗試解析成
// *spec.Scenario，並用設定檔內宣告的 ScenarioID/ScenarioName 產生對應的 catalog.Entry 來批次註冊。
//
// 行為特性（重要）：
//  1. Fail-fast：任何一個檔案讀取/解析/基本檢查失敗，都會立刻回傳 error（不會忽略、也不會繼續掃完）。
//  2. 原子性：只有當「全部檔案」都成功解析並通過基本檢查時，才會呼叫 Register(...) 一次性寫入。
//     因此不會出現只註冊了一半、導致 catalog 處於半完成狀態的情況。
//  3. 穩定性：WalkDir 依檔名序走訪，確保行為 determinism（方便重現與除錯）。
//
// 注意：
//   - RegisterAll 只負責「把設定檔宣告的情境資訊放進 Catalog」。
//   - 離散臂的外部結果表不在此階段載入；那是建機台時的責任。
func (p *Banditlab) RegisterAll() error {
	cfgs := p.cat.Cfg()
	sources := cfgs.Sources()
	if len(sources) == 0 {
		return errs.NewFatal("configs required")
	}

	entries := make([]catalog.Entry, 0, 64)
	seenID := map[spec.SID]string{}
	seenName := map[string]string{}

	for _, src := range sources {
		walkErr := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("configs must be flat (no subdir): %q", path))
			}

			base := filepath.Base(path)
			if strings.Contains(path, "/") && path != base {
				return errs.NewFatal(fmt.Sprintf("configs must be flat (nested path): %q", path))
			}
			if strings.HasPrefix(base, ".") {
				return nil
			}

			ext := strings.ToLower(filepath.Ext(base))
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				return nil
			}

			raw, rerr := fs.ReadFile(src, path)
			if rerr != nil {
				return errs.NewFatal(fmt.Sprintf("read config failed: %s", base))
			}

			var (
				sc   *spec.Scenario
				serr error
			)
			switch ext {
			case ".yaml", ".yml":
				sc, serr = spec.GetScenarioByYAML(raw)
			case ".json":
				sc, serr = spec.GetScenarioByJSON(raw)
			default:
				return errs.NewFatal(fmt.Sprintf("unsupported config format: %q", base))
			}
			if serr != nil {
				return errs.NewFatal(fmt.Sprintf("parse scenario failed: %s", base))
			}

			name := strings.TrimSpace(sc.ScenarioName)
			if name == "" {
				return errs.NewFatal(fmt.Sprintf("scenario name required: %s", base))
			}

			id := sc.ScenarioID
			if prev, ok := seenID[id]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate scenario id: %d (config=%s and %s)", id, prev, base))
			}
			if _, ok := p.cat.GetByID(id); ok {
				return errs.NewFatal(fmt.Sprintf("scenario id already registered: %d (config=%s)", id, base))
			}
			seenID[id] = base

			nameKey := strings.ToLower(name)
			if prev, ok := seenName[nameKey]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate scenario name: %s (config=%s and %s)", nameKey, prev, base))
			}
			if _, ok := p.cat.GetByName(name); ok {
				return errs.NewFatal(fmt.Sprintf("scenario name already registered: %s (config=%s)", name, base))
			}
			seenName[nameKey] = base

			entries = append(entries, catalog.Entry{
				SID:        id,
				Name:       name,
				ConfigName: base,
			})
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}

	return p.cat.Register(entries...)
}

func (p *Banditlab) Freeze() {
	p.cat.Freeze()
}

func (p *Banditlab) EntryById(id spec.SID) (catalog.Entry, bool) {
	return p.cat.GetByID(id)
}

func (p *Banditlab) EntryByName(name string) (catalog.Entry, bool) {
	return p.cat.GetByName(name)
}

func (p *Banditlab) IDs() []spec.SID {
	return p.cat.IDs()
}

func (p *Banditlab) All() []catalog.Entry {
	return p.cat.All()
}

// PolicyKeys 回傳已註冊的策略名稱（排序固定）。
func (p *Banditlab) PolicyKeys() []spec.PolicyKey {
	return p.reg.Keys()
}

func (p *Banditlab) Summary() ([]catalog.Summary, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if p.sum != nil {
		return p.sum, nil
	}
	ids := p.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		sc, err := p.cat.ScenarioById(id)
		if err != nil {
			return nil, errs.NewFatal("parse scenario failed")
		}
		fams := make([]string, 0, sc.K())
		for i := range sc.Arms {
			fams = append(fams, sc.Arms[i].FamilyStr)
		}
		s := catalog.Summary{
			SID:      id,
			Name:     sc.ScenarioName,
			Arms:     sc.K(),
			Families: fams,
			Note:     sc.Note,
		}
		cs = append(cs, s)
	}
	p.sum = cs
	return p.sum, nil
}

// scenarioById 取出情境並補載外部結果表（若有離散臂引用）。
func (p *Banditlab) scenarioById(id spec.SID) (*spec.Scenario, error) {
	sc, err := p.cat.ScenarioById(id)
	if err != nil {
		return nil, err
	}
	if !sc.Resolved() {
		if err := resolveScenarioTables(sc, p.tables); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// defaultPolicySettings 把 registry 內全部策略配上預設調參。
// 單場服務（Play）的機台掛全部策略，由請求端指定要跑哪一個。
func (p *Banditlab) defaultPolicySettings() []spec.PolicySetting {
	keys := p.reg.Keys()
	set := make([]spec.PolicySetting, 0, len(keys))
	for _, k := range keys {
		set = append(set, spec.PolicySetting{Key: k, Params: spec.PolicyParams{}.Normalize()})
	}
	return set
}

// NewBandit 依據 Catalog 內的情境 ID 建立一台 Bandit。
//
// 行為：
//  1. 由 Catalog 取得對應的 Scenario（通常來自 fs.FS 內的 YAML/JSON），並補載外部結果表。
//  2. 以 PRNGFactory 產生 RNG 核心（seed 由 crypto/rand 產生）。
//  3. 透過 Registry 把全部已註冊策略各建一份實例掛上機台。
//
// isSim 用於區分「模擬/分析」與「對外服務」的執行模式（例如逐回合軌跡只在 prod 保留以供重播）。
//
// 注意：seed 會被記錄在 Bandit 內（initseed），用於追溯/重現；真正的可審計能力以 Core 的 Snapshot/Restore 合約為準。
func (p *Banditlab) NewBandit(id spec.SID, isSim bool) (*Bandit, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := p.scenarioById(id)
	if err != nil {
		return nil, err
	}
	return newBandit(sc, p.reg, p.cf, p.defaultPolicySettings(), 0, isSim)
}

// NewBanditWithSeed 與 NewBandit 相同，但由呼叫端指定初始 seed。
//
// 使用情境：
//   - 可重現的測試：同一份設定 + 同一個 seed，應產生一致的隨機序列（取決於 Core 實作）。
//
// 注意：seed 只是「出生入口」。若要在任意時間點完整重現，請使用 Core 的 Snapshot/Restore（以 []byte 交換狀態）。
func (p *Banditlab) NewBanditWithSeed(id spec.SID, seed int64, isSim bool) (*Bandit, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := p.scenarioById(id)
	if err != nil {
		return nil, err
	}
	return newBanditWithSeed(sc, p.reg, p.cf, seed, p.defaultPolicySettings(), 0, isSim)
}

func (p *Banditlab) NewBanditByJSON(raw []byte, seed int64) (*Bandit, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := spec.GetScenarioByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(sc); err != nil {
		return nil, err
	}
	return newBanditWithSeed(sc, p.reg, p.cf, seed, p.defaultPolicySettings(), 0, true)
}

func (p *Banditlab) NewBanditByYAML(raw []byte, seed int64) (*Bandit, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := spec.GetScenarioByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(sc); err != nil {
		return nil, err
	}
	return newBanditWithSeed(sc, p.reg, p.cf, seed, p.defaultPolicySettings(), 0, true)
}

// validCfg 檢查外部送進來的設定是否對應到已註冊的情境，
// 並補載離散臂引用的外部結果表。
func (p *Banditlab) validCfg(sc *spec.Scenario) error {
	ent, ok := p.cat.GetByID(sc.ScenarioID)
	if !ok {
		return errs.NewWarn("sid not exist")
	}
	ent2, ok := p.cat.GetByName(sc.ScenarioName)
	if !ok {
		return errs.NewWarn("scenario name not exist")
	}
	if ent.SID != ent2.SID {
		return errs.NewWarn("scenario id is not matched scenario name")
	}
	if !sc.Resolved() {
		if err := resolveScenarioTables(sc, p.tables); err != nil {
			return err
		}
	}
	return nil
}

func (p *Banditlab) NewSimulator(id spec.SID, set *spec.SimSetting) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := p.scenarioById(id)
	if err != nil {
		return nil, err
	}
	return newSimulator(sc, p.reg, p.cf, set)
}

func (p *Banditlab) NewSimulatorWithSeed(id spec.SID, set *spec.SimSetting, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := p.scenarioById(id)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(sc, p.reg, p.cf, set, seed)
}

func (p *Banditlab) NewSimulatorByJSON(raw []byte, set *spec.SimSetting, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := spec.GetScenarioByJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(sc); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(sc, p.reg, p.cf, set, seed)
}

func (p *Banditlab) NewSimulatorByYAML(raw []byte, set *spec.SimSetting, seed int64) (*Simulator, error) {
	if !p.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	sc, err := spec.GetScenarioByYAML(raw)
	if err != nil {
		return nil, err
	}
	if err := p.validCfg(sc); err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(sc, p.reg, p.cf, set, seed)
}

func (p *Banditlab) BuildRuntime(poolSize int) (*LabRuntime, error) {
	// 1. 進入 runtime 前，catalog 必須 Freeze
	p.Freeze()

	ids := p.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no scenarios registered")
	}

	rt := &LabRuntime{
		lab:      p,
		pools:    make(map[spec.SID]*BanditPool, len(ids)),
		ids:      ids,
		done:     make(chan struct{}),
		poolSize: max(1, poolSize),
	}
	rt.reason.Store("")

	// 2. 先全建好（fail-fast + cleanup）
	for _, id := range ids {
		sc, err := p.scenarioById(id)
		if err != nil {
			return nil, err
		}

		seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		bp, err := newBanditPool(rt.poolSize, sc, p.reg, p.cf, p.defaultPolicySettings(), 0, seed.Int64())
		if err != nil {
			return nil, err
		}
		rt.pools[id] = bp
	}
	return rt, nil
}

// NewDevSimulator
//
// 注意只能由Banditlab起
// 只提供給Dev模式使用的模擬器，重點是保持單機台模式所以保持可重現性
func (p *Banditlab) NewDevSimulator(sid spec.SID, seed int64, set *spec.SimSetting) (*DevSimulator, error) {
	sim, err := p.NewSimulatorWithSeed(sid, set, seed)
	if err != nil {
		return nil, err
	}
	b, err := p.NewBanditWithSeed(sid, seed, false)
	if err != nil {
		return nil, err
	}
	simBe, err := sim.bBuf[0].SnapshotCore()
	if err != nil {
		return nil, err
	}
	bBe, err := b.SnapshotCore()
	if err != nil {
		return nil, err
	}
	simBe64 := base64.StdEncoding.EncodeToString(simBe)
	bBe64 := base64.StdEncoding.EncodeToString(bBe)
	if bBe64 != simBe64 {
		return nil, errs.NewFatal("seeds are not equal")
	}
	dev := &DevSimulator{
		sim:      sim,
		b:        b,
		sid:      sid,
		before:   bBe,
		before64: bBe64,
	}
	return dev, nil
}
