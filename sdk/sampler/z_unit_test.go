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

package sampler

import (
	"crypto/rand"
	"math"
	"math/big"
	"testing"

	"github.com/zintix-labs/banditlab/errs"
	"github.com/zintix-labs/banditlab/sdk/core"
	"github.com/zintix-labs/banditlab/spec"
)

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// assertPanic 驗證函數是否如預期觸發 panic
func assertPanic(t *testing.T, f func(), msg string) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic for %s, but got none", msg)
		}
	}()
	f()
}

// checkDistribution 驗證抽樣結果的分佈是否符合預期權重
func checkDistribution(t *testing.T, name string, weights []int, samples []int, tolerance float64) {
	t.Helper()
	totalW := 0
	for _, w := range weights {
		totalW += w
	}
	if totalW == 0 {
		return
	}

	counts := make(map[int]int)
	for _, idx := range samples {
		counts[idx]++
	}

	totalSamples := len(samples)
	for i, w := range weights {
		if w == 0 {
			if counts[i] > 0 {
				t.Errorf("[%s] expected 0 samples for index %d (weight 0), got %d", name, i, counts[i])
			}
			continue
		}
		expectedProb := float64(w) / float64(totalW)
		actualProb := float64(counts[i]) / float64(totalSamples)
		diff := math.Abs(expectedProb - actualProb)

		if diff > tolerance {
			t.Errorf("[%s] index %d: expected prob %.3f, got %.3f (diff %.3f > tol %.3f)",
				name, i, expectedProb, actualProb, diff, tolerance)
		}
	}
}

// randomCore 以 crypto/rand 挑 seed，供只驗統計性質的測試使用
func randomCore(t *testing.T) *core.Core {
	t.Helper()
	seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	return core.New(core.Default().New(seed.Int64()))
}

// mustArm 建立並初始化一個拉臂描述，失敗直接終止測試
func mustArm(t *testing.T, a spec.ArmSetting) *spec.ArmSetting {
	t.Helper()
	if err := a.Init(); err != nil {
		t.Fatalf("arm init failed: %v", err)
	}
	return &a
}

// mustSampler 建立指定家族的配對取樣器
func mustSampler(t *testing.T, a *spec.ArmSetting, c *core.Core) PairSampler {
	t.Helper()
	ps, err := NewPairSampler(a, c)
	if err != nil {
		t.Fatalf("NewPairSampler failed: %v", err)
	}
	return ps
}

func gaussianArm() spec.ArmSetting {
	return spec.ArmSetting{
		ArmName: "g", FamilyStr: "gaussian",
		MeanCost: 1.0, MeanReward: 3.0,
		VarCost: 0.04, VarReward: 0.25, CovCostReward: 0.02,
	}
}

func boundedArm(corr float64) spec.ArmSetting {
	return spec.ArmSetting{
		ArmName: "b", FamilyStr: "bounded_uniform",
		MeanCost: 1.5, MeanReward: 5.0,
		MinCost: 1.0, MaxCost: 2.0,
		MinReward: 0.0, MaxReward: 10.0,
		Correlation: corr,
	}
}

func heavyArm(corr float64) spec.ArmSetting {
	return spec.ArmSetting{
		ArmName: "h", FamilyStr: "heavy_tailed",
		MeanCost: 2.0, MeanReward: 1.6,
		ParetoAlpha: 3.0, ParetoScale: 1.0,
		LogNormMu: 0.0, LogNormSig: 0.5,
		Correlation: corr,
	}
}

func discreteArm() spec.ArmSetting {
	return spec.ArmSetting{
		ArmName: "d", FamilyStr: "discrete",
		Outcomes: []spec.Outcome{
			{Cost: 1.0, Reward: 0.0, Weight: 1},
			{Cost: 2.0, Reward: 5.0, Weight: 2},
			{Cost: 3.0, Reward: 9.0, Weight: 7},
		},
	}
}

// -----------------------------------------------------------------------------
// Tests for PairSampler dispatch
// -----------------------------------------------------------------------------

// TestNewPairSamplerDispatch 驗證四個分布族都能建出取樣器
// 檢查項目: 每個家族的建構皆成功且能取樣
func TestNewPairSamplerDispatch(t *testing.T) {
	arms := []spec.ArmSetting{gaussianArm(), boundedArm(0), heavyArm(0), discreteArm()}
	for _, a := range arms {
		arm := mustArm(t, a)
		ps := mustSampler(t, arm, core.New(core.Default().New(1)))
		cost, reward := ps.Sample()
		if math.IsNaN(cost) || math.IsNaN(reward) {
			t.Fatalf("arm %s produced NaN sample (%v, %v)", arm.ArmName, cost, reward)
		}
	}
}

// TestNewPairSamplerRejectsBadInput 驗證壞輸入的錯誤等級
// 檢查項目: nil 臂、nil core、未知家族都回傳 Fatal 級錯誤
func TestNewPairSamplerRejectsBadInput(t *testing.T) {
	c := core.New(core.Default().New(1))

	if _, err := NewPairSampler(nil, c); errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("nil arm: expected fatal error, got %v", err)
	}

	arm := mustArm(t, gaussianArm())
	if _, err := NewPairSampler(arm, nil); errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("nil core: expected fatal error, got %v", err)
	}

	bogus := &spec.ArmSetting{ArmName: "x", Family: spec.ArmFamily(99), FamilyStr: "x"}
	if _, err := NewPairSampler(bogus, c); errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("unknown family: expected fatal error, got %v", err)
	}
}

// TestPairSamplerReproducible 驗證同 seed 同設定的序列重現
// 檢查項目: 四個家族在相同 seed 下產出逐 bit 相同的配對序列
func TestPairSamplerReproducible(t *testing.T) {
	arms := []spec.ArmSetting{gaussianArm(), boundedArm(0.5), heavyArm(0.3), discreteArm()}
	for _, a := range arms {
		armA := mustArm(t, a)
		armB := mustArm(t, a)
		psA := mustSampler(t, armA, core.New(core.Default().New(42)))
		psB := mustSampler(t, armB, core.New(core.Default().New(42)))

		for i := 0; i < 200; i++ {
			c1, r1 := psA.Sample()
			c2, r2 := psB.Sample()
			if c1 != c2 || r1 != r2 {
				t.Fatalf("arm %s diverged at draw %d: (%v,%v) vs (%v,%v)",
					armA.ArmName, i, c1, r1, c2, r2)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Tests for gaussianPair
// -----------------------------------------------------------------------------

// TestGaussianPairMoments 驗證二維常態取樣的一階矩
// 檢查項目: 大量抽樣的平均成本與平均報酬收斂到設定值
func TestGaussianPairMoments(t *testing.T) {
	arm := mustArm(t, gaussianArm())
	ps := mustSampler(t, arm, randomCore(t))

	const n = 100000
	var sumC, sumR float64
	for i := 0; i < n; i++ {
		c, r := ps.Sample()
		sumC += c
		sumR += r
	}
	meanC, meanR := sumC/n, sumR/n

	if math.Abs(meanC-arm.MeanCost) > 0.05 {
		t.Errorf("mean cost: expected ~%.2f, got %.4f", arm.MeanCost, meanC)
	}
	if math.Abs(meanR-arm.MeanReward) > 0.05 {
		t.Errorf("mean reward: expected ~%.2f, got %.4f", arm.MeanReward, meanR)
	}
}

// TestGaussianPairRejectsNonPD 驗證非正定共變異矩陣被擋下
// 檢查項目: cov^2 > varX*varR 的矩陣建構失敗且為 Fatal 級
func TestGaussianPairRejectsNonPD(t *testing.T) {
	arm := mustArm(t, spec.ArmSetting{
		ArmName: "bad", FamilyStr: "gaussian",
		MeanCost: 1.0, MeanReward: 1.0,
		VarCost: 1.0, VarReward: 1.0, CovCostReward: 2.0,
	})
	_, err := NewPairSampler(arm, core.New(core.Default().New(1)))
	if errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("expected fatal error for non-PD covariance, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Tests for boundedPair
// -----------------------------------------------------------------------------

// TestBoundedPairStaysInRange 驗證無相關時樣本落在設定區間內
// 檢查項目: correlation = 0 時成本與報酬不得超出 [min, max]
func TestBoundedPairStaysInRange(t *testing.T) {
	arm := mustArm(t, boundedArm(0))
	ps := mustSampler(t, arm, randomCore(t))

	for i := 0; i < 20000; i++ {
		c, r := ps.Sample()
		if c < arm.MinCost || c > arm.MaxCost {
			t.Fatalf("cost %v out of range [%v, %v]", c, arm.MinCost, arm.MaxCost)
		}
		if r < arm.MinReward || r > arm.MaxReward {
			t.Fatalf("reward %v out of range [%v, %v]", r, arm.MinReward, arm.MaxReward)
		}
	}
}

// TestBoundedPairCorrelation 驗證共同因子確實注入正相依
// 檢查項目: correlation = 0.8 時樣本相關係數顯著為正
func TestBoundedPairCorrelation(t *testing.T) {
	arm := mustArm(t, boundedArm(0.8))
	ps := mustSampler(t, arm, randomCore(t))

	const n = 20000
	var sumC, sumR, sumCC, sumRR, sumCR float64
	for i := 0; i < n; i++ {
		c, r := ps.Sample()
		sumC += c
		sumR += r
		sumCC += c * c
		sumRR += r * r
		sumCR += c * r
	}
	meanC, meanR := sumC/n, sumR/n
	varC := sumCC/n - meanC*meanC
	varR := sumRR/n - meanR*meanR
	cov := sumCR/n - meanC*meanR

	pearson := cov / math.Sqrt(varC*varR)
	if pearson < 0.2 {
		t.Errorf("expected clearly positive correlation, got pearson %.4f", pearson)
	}
}

// -----------------------------------------------------------------------------
// Tests for heavyTailPair
// -----------------------------------------------------------------------------

// TestHeavyTailPairSupport 驗證無相關時的分布支撐
// 檢查項目: Pareto 成本不低於 scale，對數常態報酬恆為正
func TestHeavyTailPairSupport(t *testing.T) {
	arm := mustArm(t, heavyArm(0))
	ps := mustSampler(t, arm, randomCore(t))

	for i := 0; i < 20000; i++ {
		c, r := ps.Sample()
		if c < arm.ParetoScale {
			t.Fatalf("pareto cost %v below scale %v", c, arm.ParetoScale)
		}
		if r <= 0 {
			t.Fatalf("lognormal reward must be positive, got %v", r)
		}
	}
}

// TestHeavyTailPairCorrelation 驗證共同常態因子注入正相依
// 檢查項目: correlation = 0.5 時樣本共變異顯著為正
func TestHeavyTailPairCorrelation(t *testing.T) {
	arm := mustArm(t, heavyArm(0.5))
	ps := mustSampler(t, arm, randomCore(t))

	const n = 50000
	var sumC, sumR, sumCR float64
	for i := 0; i < n; i++ {
		c, r := ps.Sample()
		sumC += c
		sumR += r
		sumCR += c * r
	}
	meanC, meanR := sumC/n, sumR/n
	cov := sumCR/n - meanC*meanR

	// 兩邊都加了 0.5 * N(0,1)，理論共變異至少 0.25
	if cov < 0.1 {
		t.Errorf("expected positive covariance from common factor, got %.4f", cov)
	}
}

// -----------------------------------------------------------------------------
// Tests for discretePair
// -----------------------------------------------------------------------------

// TestDiscretePairDistribution 驗證離散臂的結果分佈
// 檢查項目: 以成本值識別結果索引，分佈應符合權重比例
func TestDiscretePairDistribution(t *testing.T) {
	arm := mustArm(t, discreteArm())
	ps := mustSampler(t, arm, randomCore(t))

	costToIdx := map[float64]int{}
	weights := make([]int, len(arm.Outcomes))
	for i, o := range arm.Outcomes {
		costToIdx[o.Cost] = i
		weights[i] = o.Weight
	}

	trials := 100000
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		c, _ := ps.Sample()
		idx, ok := costToIdx[c]
		if !ok {
			t.Fatalf("sampled cost %v not in outcome table", c)
		}
		samples[i] = idx
	}
	checkDistribution(t, "discretePair", weights, samples, 0.01)
}

// TestNewIntPickerSelection 驗證查找結構的自動挑選
// 檢查項目: 總和 <= 100_000 用 LUT，超過改用 AliasTable
func TestNewIntPickerSelection(t *testing.T) {
	if _, ok := newIntPicker([]int{1, 2, 7}).(LUT); !ok {
		t.Fatal("small total should pick LUT")
	}
	if _, ok := newIntPicker([]int{60_000, 50_000}).(*AliasTable); !ok {
		t.Fatal("large total should pick AliasTable")
	}
}

// TestDiscretePairRejectsBadWeights 驗證壞權重被擋下
// 檢查項目: 權重 <= 0 的結果表建構失敗且為 Fatal 級
func TestDiscretePairRejectsBadWeights(t *testing.T) {
	arm := &spec.ArmSetting{
		ArmName: "d", Family: spec.FamilyDiscrete, FamilyStr: "discrete",
		Outcomes: []spec.Outcome{{Cost: 1, Reward: 1, Weight: 0}},
	}
	_, err := NewPairSampler(arm, core.New(core.Default().New(1)))
	if errs.LevelOf(err) != errs.Fatal {
		t.Fatalf("expected fatal error for zero weight, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Tests for AliasTable
// -----------------------------------------------------------------------------

// TestAliasTable_Distribution 驗證 Alias Table 的抽樣分佈
// 檢查項目: 大量抽樣結果應符合權重比例
func TestAliasTable_Distribution(t *testing.T) {
	c := randomCore(t)
	weights := []int{10, 20, 70}
	at := BuildAliasTable(weights)

	trials := 100000
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		samples[i] = at.Pick(c)
	}
	checkDistribution(t, "AliasTable", weights, samples, 0.01)
}

// TestAliasTable_Panics 驗證 Alias Table 的各種錯誤情境
// 檢查項目: 全零權重、負權重、總權重溢位應觸發 panic
func TestAliasTable_Panics(t *testing.T) {
	// All zero
	assertPanic(t, func() {
		BuildAliasTable([]int{0, 0, 0})
	}, "All zero weights")

	// Negative
	assertPanic(t, func() {
		BuildAliasTable([]int{10, -1})
	}, "Negative weight")

	// Total overflow check
	assertPanic(t, func() {
		BuildAliasTable([]int{math.MaxInt, 1})
	}, "Total overflow")
}

// -----------------------------------------------------------------------------
// Tests for Look-Up Table (LUT)
// -----------------------------------------------------------------------------

// TestLUT_Distribution 驗證 LUT 的抽樣分佈
// 檢查項目: 大量抽樣結果應符合權重比例
func TestLUT_Distribution(t *testing.T) {
	c := randomCore(t)
	weights := []int{1, 2, 7} // 適合 LUT 的小權重
	lut := BuildLUT(weights)

	trials := 10000
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		samples[i] = lut.Pick(c)
	}
	checkDistribution(t, "LUT", weights, samples, 0.015)
}

// TestLUT_Panics 驗證 LUT 的各種錯誤情境
// 檢查項目: 超過容量上限、負權重、全零權重應觸發 panic
func TestLUT_Panics(t *testing.T) {
	// Capacity Limit
	assertPanic(t, func() {
		// 模擬超過 MaxLUTCapacity
		weights := []int{int(maxLUTCap) + 1}
		BuildLUT(weights)
	}, "Exceed MaxLUTCapacity")

	// Negative
	assertPanic(t, func() {
		BuildLUT([]int{10, -10})
	}, "Negative weight")

	// All zero
	assertPanic(t, func() {
		BuildLUT([]int{0, 0})
	}, "All zero weights")
}
