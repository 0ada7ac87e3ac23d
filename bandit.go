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

package banditlab

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/big"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/banditlab/dto"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/buf"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/sdk/env"
	"github.com/zintix-labs/banditlab/sdk/policy"
	"github.com/zintix-labs/banditlab/spec"
)

// Bandit 封裝一台「可對外提供試驗」的工作機。
//
// 你可以把 Bandit 視為 Environment 的「外殼（shell）」：
//   - 對外：提供 Play 入口（HTTP/模擬器通常只操作 Bandit）。
//   - 對內：持有 RNG（Core）、拉臂環境（sdk/env.Environment）與
//     已組裝好的各策略實例（sdk/policy.Policy）。
//
// 並發語意：
//   - Bandit 預設不是 lock-free 結構；它內含可重用的軌跡 buffer（熱路徑），
//     因此同一台 Bandit 不應被多 goroutine 同時 Play。
//   - 若要併發模擬，由更高層建立多台 Bandit 分散到不同 worker 並管理其生命週期。
//
// Buffer 語意（非常重要，影響 DX 與正確性）：
//   - TrajectoryBuffer 會被重用（避免 GC），每次 Play 會覆寫內容。
//   - 你若需要在 Play 後保留結果，請在離開臨界區前轉成 DTO（或自行 copy 你需要的欄位）。
//
// initseed 用於記錄出生時的 seed（追溯/重現的基礎資訊）；完整審計仍以 Core 的 Snapshot/Restore 為準。
type Bandit struct {
	scenarioName string     // 情境名稱（來自 Scenario.ScenarioName，主要用於觀測/日誌）
	scenarioID   spec.SID   // 情境 ID（Catalog 內唯一；用於路由與查表）
	core         *core.Core // RNG 核心（PRNG + Snapshot/Restore 合約；熱路徑會頻繁取樣）
	cf           core.PRNGFactory
	env          *env.Environment // 拉臂環境（由 Scenario 實例化；取樣全部走注入的 core）
	policies     map[spec.PolicyKey]policy.Policy
	Trajectory   *buf.TrajectoryBuffer // 可重用的軌跡 buffer（熱路徑；每次 Play 會覆寫）
	maxRounds    int                   // 單一試驗的防禦性回合上限
	mu           sync.Mutex            // 防併發鎖：保護可重用 buffer 與核心狀態一致性
	initseed     int64                 // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
}

// newBandit 以「隨機 seed」建立 Bandit。
//
// 這裡使用 crypto/rand 產生 seed 是為了：
//   - 在對外服務情境避免可預測 RNG
//   - 同時保留可追溯性（seed 會被記錄在 Bandit.initseed）
//
// seed 只保證了新建的Bandit起點，如果需要在任意試驗後將工作機"重設"到任意Core節點，請利用Snapshot Restore來操作
func newBandit(sc *spec.Scenario, reg *policy.Registry, cf core.PRNGFactory, settings []spec.PolicySetting, maxRounds int, isSim bool) (*Bandit, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return newBanditWithSeed(sc, reg, cf, seed.Int64(), settings, maxRounds, isSim)
}

// newBanditWithSeed 以指定 seed 建立 Bandit。
//
// 這是最常用的「可重現」入口：同一份 Scenario + 同一個 seed，應能得到一致的隨機序列（取決於 Core 實作）。
//
// 建立流程（概念）：
//  1. core.New(cf.New(seed)) 建出 RNG 核心
//  2. env.New(sc, core) 依場景建出拉臂環境
//  3. 依 settings 為每個策略組裝實例（同一台 Bandit 內不同策略共用環境）
//  4. 初始化可重用的軌跡 buffer（模擬模式不保留逐回合紀錄）
func newBanditWithSeed(sc *spec.Scenario, reg *policy.Registry, cf core.PRNGFactory, seed int64, settings []spec.PolicySetting, maxRounds int, isSim bool) (*Bandit, error) {
	if maxRounds <= 0 {
		maxRounds = spec.DefaultMaxRounds
	}
	b := &Bandit{
		scenarioName: sc.ScenarioName,
		scenarioID:   sc.ScenarioID,
		core:         core.New(cf.New(seed)),
		cf:           cf,
		maxRounds:    maxRounds,
		initseed:     seed,
	}
	var err error
	b.env, err = env.New(sc, b.core)
	if err != nil {
		return nil, err
	}

	b.policies = make(map[spec.PolicyKey]policy.Policy, len(settings))
	for _, ps := range settings {
		pol, err := reg.Build(ps.Key, b.env, ps.Params)
		if err != nil {
			return nil, err
		}
		b.policies[ps.Key] = pol
	}

	b.Trajectory = buf.NewTrajectoryBuffer(sc, !isSim)
	return b, nil
}

// Play 為主要公開入口，會驗證試驗請求，跑完一場完整試驗並回傳結果。
func (b *Bandit) Play(r *buf.PlayRequest) (dto.TrialResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 1. 校驗請求合法性
	if err := b.valid(r); err != nil {
		return dto.TrialResult{}, err
	}
	pol := b.policies[r.Policy]

	// 2. get start snapshot
	startsnap, err := b.SnapshotCore()
	if err != nil {
		return dto.TrialResult{}, errs.NewFatal("before snapshot error " + err.Error())
	}
	rem := startsnap

	// 2.5. 指定 seed：改從該 seed 的初始狀態起跑（可重現），跑完再還原
	if r.Seed != nil {
		snap, err := b.cf.New(*r.Seed).Snapshot()
		if err != nil {
			return dto.TrialResult{}, errs.NewWarn("seed snapshot err " + err.Error())
		}
		if err := b.RestoreCore(snap); err != nil {
			return dto.TrialResult{}, errs.NewWarn("restore core err " + err.Error())
		}
		startsnap = snap
	}

	// 3. run the trial
	tb := b.Trajectory
	tb.Reset(r.Policy, r.Budget)
	tb.SetTrace(r.Trace)
	if err := b.runTrial(pol, r.Budget); err != nil {
		if e := b.RestoreCore(rem); e != nil {
			return dto.TrialResult{}, errs.NewFatal("fall back err " + e.Error())
		}
		return dto.TrialResult{}, err
	}

	// 4. get after snapshot
	aftersnap, err := b.SnapshotCore()
	if err != nil {
		if e := b.RestoreCore(rem); e != nil {
			return dto.TrialResult{}, errs.NewFatal("fall back err " + e.Error())
		}
		return dto.TrialResult{}, errs.NewWarn("after snapshot error " + err.Error())
	}
	tb.State.StartCoreSnap = startsnap
	tb.State.AfterCoreSnap = aftersnap

	// 5. restore if needed
	if r.Seed != nil {
		if err := b.RestoreCore(rem); err != nil {
			return dto.TrialResult{}, errs.NewFatal("restore core back err " + err.Error())
		}
	}

	// 6. dto
	res, err := dto.NewTrialResultDTO(tb, b.env.OptimalRate())
	if err != nil {
		return dto.TrialResult{}, err
	}
	if d, ok := pol.(policy.Diagnoser); ok {
		res.Diag = dto.RenderDiag(r.Policy, d.Diag())
	}
	return res, nil
}

// PlayInternal 直接取得內部軌跡 buffer；常用於模擬器或測試
//
// 請勿在正式環境使用
//
// 此行為跳過所有檢查與快照，熱路徑上零額外配置。
func (b *Bandit) PlayInternal(key spec.PolicyKey, budget float64) (*buf.TrajectoryBuffer, error) {
	pol, ok := b.policies[key]
	if !ok {
		return nil, errs.Warnf("policy %q not built on this bandit", key)
	}
	b.Trajectory.Reset(key, budget)
	if err := b.runTrial(pol, budget); err != nil {
		return nil, err
	}
	return b.Trajectory, nil
}

// runTrial 執行單場試驗的主迴圈。
//
// 終止條件：totalCost 首次「嚴格超過」預算後結束——最後一次
// 超支的拉臂仍然成立、其報酬照算（結束時 TotalCost > budget）。
// maxRounds 是防禦性上限：mean_cost > 0 之下預算 almost surely
// 先耗盡，上限只擋重尾成本抽樣的極端壞運氣。
func (b *Bandit) runTrial(pol policy.Policy, budget float64) error {
	pol.Reset()
	tb := b.Trajectory

	epoch := 0
	for tb.TotalCost <= budget {
		epoch++
		if epoch > b.maxRounds {
			break
		}
		arm, err := pol.SelectArm(tb.TotalCost, epoch)
		if err != nil {
			return err
		}
		cost, reward, err := b.env.Pull(arm)
		if err != nil {
			return err
		}
		if err := pol.UpdateState(arm, cost, reward); err != nil {
			return err
		}
		tb.Record(epoch, arm, cost, reward)
	}
	return nil
}

func (b *Bandit) valid(req *buf.PlayRequest) error {
	if req == nil {
		return errs.NewWarn("nil play request")
	}
	if b.scenarioID != req.Scenario {
		return errs.NewWarn("scenario id is not matched")
	}
	if _, ok := b.policies[req.Policy]; !ok {
		return errs.Warnf("policy %q not available on scenario %q", req.Policy, b.scenarioName)
	}
	if req.Budget <= 0 {
		return errs.NewWarn("budget must be positive")
	}
	return nil
}

// Env 回傳工作機綁定的拉臂環境（唯讀用途：真實率、最佳臂）。
func (b *Bandit) Env() *env.Environment { return b.env }

// Policies 回傳這台工作機已組裝的策略名稱。
func (b *Bandit) Policies() []spec.PolicyKey {
	keys := make([]spec.PolicyKey, 0, len(b.policies))
	for k := range b.policies {
		keys = append(keys, k)
	}
	return keys
}

// SnapshotCore 取得Core狀態暫存 當前僅提供取得Core狀態
//
// 之後要實作中斷續跑時候提供checkpoint加入必要恢復資訊時實作
// SnapShot() <- 保留語意
func (b *Bandit) SnapshotCore() ([]byte, error) {
	return b.core.Snapshot()
}

// RestoreCore 恢復Core狀態暫存 當前僅提供恢復Core狀態
//
// 之後要實作中斷續跑時候提供checkpoint加入必要恢復資訊時實作
// Restore() <- 保留語意
func (b *Bandit) RestoreCore(src []byte) error {
	return b.core.Restore(src)
}

// loadOutcomeTable 從 tableFS 加載離散臂結果表（.json.zst 格式）。
func loadOutcomeTable(tableFS fs.FS, path string) ([]spec.Outcome, error) {
	if tableFS == nil {
		return nil, errs.NewWarn("tableFS is nil")
	}
	if path == "" {
		return nil, errs.NewWarn("table path is empty")
	}

	// 讀取壓縮文件
	compressed, err := fs.ReadFile(tableFS, path)
	if err != nil {
		return nil, errs.Wrap(err, "read outcome table failed")
	}

	// 解壓 zstd
	zr, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errs.Wrap(err, "create zstd reader failed")
	}
	defer zr.Close()

	// 讀取解壓後的 JSON
	jsonBytes, err := io.ReadAll(zr)
	if err != nil {
		return nil, errs.Wrap(err, "read decompressed data failed")
	}

	// 解析 JSON
	var outs []spec.Outcome
	if err := json.Unmarshal(jsonBytes, &outs); err != nil {
		return nil, errs.Wrap(err, "unmarshal outcome table failed")
	}
	if len(outs) == 0 {
		return nil, errs.Warnf("outcome table %q is empty", path)
	}

	return outs, nil
}

// resolveScenarioTables 把場景內所有等待外部表的離散臂補齊。
// 場景進 Catalog 前必須先解析完成，env.New 才不會踩到未載入的臂。
func resolveScenarioTables(sc *spec.Scenario, tableFS fs.FS) error {
	for i := range sc.Arms {
		a := &sc.Arms[i]
		if !a.TablePending() {
			continue
		}
		outs, err := loadOutcomeTable(tableFS, a.TableFile)
		if err != nil {
			return errs.Wrap(err, fmt.Sprintf("scenario %q arm %d: resolve table failed", sc.ScenarioName, i))
		}
		if err := a.SetOutcomes(outs); err != nil {
			return err
		}
	}
	return nil
}
