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
	"crypto/rand"
	"io"
	"math"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/recorder"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/sdk/policy"
	"github.com/zintix-labs/banditlab/spec"
	"github.com/zintix-labs/banditlab/stats"
)

const capPrepare int = 100

// Simulator 用於蒙地卡羅掃描，可建立多台工作機並平行紀錄統計。
//
// 一個 Simulator 綁定一個情境與一份掃描設定（SimSetting）；
// 掃描矩陣為 策略 × 預算，每格跑 Trials 場獨立試驗。
type Simulator struct {
	ScenarioName string                    // 情境名稱
	ScenarioID   spec.SID                  // 情境編號
	sc           *spec.Scenario            // 方便重用建立工作機
	reg          *policy.Registry          // 策略註冊表
	cf           core.PRNGFactory          // 亂數生成器
	set          *spec.SimSetting          // 掃描設定（policies/budgets/trials）
	initSeed     int64                     // 初始下的種子
	seedmaker    *seedMaker                // 種子生成器
	bBuf         []*Bandit                 // 併發執行工作機實例
	rBuf         []*recorder.TrialRecorder // 併發試驗紀錄員
}

func newSimulator(sc *spec.Scenario, reg *policy.Registry, cf core.PRNGFactory, set *spec.SimSetting) (*Simulator, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(sc, reg, cf, set, seed.Int64())
}

func newSimulatorWithSeed(sc *spec.Scenario, reg *policy.Registry, cf core.PRNGFactory, set *spec.SimSetting, seed int64) (*Simulator, error) {
	if set == nil {
		return nil, errs.NewFatal("nil sim setting")
	}
	if err := set.Init(); err != nil {
		return nil, err
	}
	s := &Simulator{
		ScenarioName: sc.ScenarioName,
		ScenarioID:   sc.ScenarioID,
		sc:           sc,
		reg:          reg,
		cf:           cf,
		set:          set,
		initSeed:     seed,
		seedmaker:    newSeedMaker(seed),
		bBuf:         make([]*Bandit, 1, capPrepare),
		rBuf:         make([]*recorder.TrialRecorder, 0, capPrepare),
	}
	b, err := newBanditWithSeed(sc, reg, cf, s.initSeed, set.Policies, set.MaxRounds, true)
	if err != nil {
		return nil, err
	}
	s.bBuf[0] = b
	return s, nil
}

// Sweep 單線掃描：以一台工作機依序跑完整個 策略 × 預算 矩陣，
// 回傳掃描統計結果與用時。
func (s *Simulator) Sweep(showpb bool) (*stats.SweepReport, time.Duration, error) {
	defer s.reset()
	if len(s.rBuf) == 0 {
		r, err := s.newRecorder()
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}
	r := s.rBuf[0]
	b := s.bBuf[0]

	total := s.set.Trials * len(s.set.Policies) * len(s.set.Budgets)
	bar := pb.StartNew(total)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for _, ps := range s.set.Policies {
		for _, budget := range s.set.Budgets {
			for i := 0; i < s.set.Trials; i++ {
				tb, err := b.PlayInternal(ps.Key, budget)
				if err != nil {
					return nil, 0, err
				}
				r.Record(tb)
				bar.Increment()
			}
		}
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	result := r.Done()
	result.Done()

	return result, used, nil
}

// SweepMP 平行掃描：mp 台工作機分食試驗，合併統計結果後
// 回傳掃描統計結果與用時。每格的 Trials 會平均攤給各工作機。
func (s *Simulator) SweepMP(mp int, showpb bool) (*stats.SweepReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	for len(s.bBuf) < mp {
		b, err := newBanditWithSeed(s.sc, s.reg, s.cf, s.seedmaker.next(), s.set.Policies, s.set.MaxRounds, true)
		if err != nil {
			return nil, 0, err
		}
		s.bBuf = append(s.bBuf, b)
	}

	for len(s.rBuf) < mp {
		r, err := s.newRecorder()
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	// 作一個有緩衝的任務通道 讓工作機依序處理
	jobs := make(chan sweepJob, 2048)

	wg := new(sync.WaitGroup)
	wg.Add(mp) // 併發工作機

	total := s.set.Trials * len(s.set.Policies) * len(s.set.Budgets)
	bar := pb.StartNew(total)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	// 併發執行
	errCh := make(chan error, mp)
	for w := 0; w < mp; w++ {
		go sweep(wg, s.bBuf[w], s.rBuf[w], jobs, bar, errCh)
	}
	// 此時併發已經完成，但由於所有workers都無法從jobs當中取出j(還沒塞進去) 所以不會結束

	// 塞進任務，開始掃描：每格拆成 mp 份攤給工作機
	for _, ps := range s.set.Policies {
		for _, budget := range s.set.Budgets {
			base := s.set.Trials / mp
			rem := s.set.Trials % mp
			for w := 0; w < mp; w++ {
				t := base
				if w < rem {
					t++
				}
				if t > 0 {
					jobs <- sweepJob{key: ps.Key, budget: budget, trials: t}
				}
			}
		}
	}
	close(jobs) // 任務送完關閉通道 通知所有工作機不會再有新資料
	wg.Wait()   // 等待工作機都執行完任務
	used := time.Since(bar.StartTime())
	bar.Finish()

	select {
	case err := <-errCh:
		return nil, 0, err
	default:
	}

	st, err := recorder.MergeTrialRecorder(s.rBuf)
	if err != nil {
		return nil, 0, err
	}
	result := st.Done()
	result.Done()

	return result, used, nil
}

type sweepJob struct {
	key    spec.PolicyKey
	budget float64
	trials int
}

func sweep(wg *sync.WaitGroup, b *Bandit, rec *recorder.TrialRecorder, jobs chan sweepJob, bar *pb.ProgressBar, errCh chan error) {
	defer wg.Done()
	for j := range jobs { // j := <- jobs
		for range j.trials {
			tb, err := b.PlayInternal(j.key, j.budget)
			if err != nil {
				select {
				case errCh <- err:
				default:
				}
				// 排空剩餘任務再退出；任務可能多於通道緩衝，
				// 不排空的話塞任務端會永遠卡在 jobs <-
				for range jobs {
				}
				return
			}
			rec.Record(tb)
			bar.Increment()
		}
	}
}

func (s *Simulator) newRecorder() (*recorder.TrialRecorder, error) {
	e := s.bBuf[0].Env()
	return recorder.NewTrialRecorder(s.ScenarioName, s.ScenarioID, e.TrueRates(), e.OptimalArm())
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// state 走全週期（不重複），再用可逆 mix63 打散
//
// 注意：此方法可能在併發環境下被多 goroutines 同時呼叫（例如 SweepMP 補機）。
// 因此 state 的推進必須是原子的：
//   - 使用 CAS（Compare-And-Swap）迴圈確保每次呼叫都會取得唯一的下一個 state。
//   - 回傳值使用推進後的 state 經 mix63 打散後的結果。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()                                            // always masked
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63 // 乘奇數 ⇒ mod 2^63 可逆
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
