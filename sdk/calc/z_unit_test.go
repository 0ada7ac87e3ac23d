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

package calc

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// sums builds the five running sums the LMMSE estimators consume.
func sums(xs, rs []float64) (sumX, sumR, sumXX, sumRR, sumXR float64, n int) {
	for i := range xs {
		sumX += xs[i]
		sumR += rs[i]
		sumXX += xs[i] * xs[i]
		sumRR += rs[i] * rs[i]
		sumXR += xs[i] * rs[i]
	}
	return sumX, sumR, sumXX, sumRR, sumXR, len(xs)
}

func TestEmpiricalMean(t *testing.T) {
	if got := EmpiricalMean(0, 0); got != 0.0 {
		t.Fatalf("EmpiricalMean(0,0) = %v, want 0", got)
	}
	if got := EmpiricalMean(15, 3); got != 5.0 {
		t.Fatalf("EmpiricalMean(15,3) = %v, want 5", got)
	}
	if got := EmpiricalMean(-4, 2); got != -2.0 {
		t.Fatalf("EmpiricalMean(-4,2) = %v, want -2", got)
	}
}

func TestEmpiricalVariance(t *testing.T) {
	// samples [1,2,3]: sumSq=14, sum=6, n=3 -> 2/3
	if got := EmpiricalVariance(14, 6, 3); !almostEqual(got, 2.0/3.0) {
		t.Fatalf("EmpiricalVariance(14,6,3) = %v, want 2/3", got)
	}
	if got := EmpiricalVariance(100, 10, 1); got != 0.0 {
		t.Fatalf("n<2 must return 0, got %v", got)
	}
	// constant samples: variance exactly 0, never negative
	if got := EmpiricalVariance(12, 6, 3); got != 0.0 {
		t.Fatalf("constant samples variance = %v, want 0", got)
	}
	// cancellation-prone input must clamp to 0
	big := 1e9
	if got := EmpiricalVariance(big*big*4, big*4, 4); got < 0 {
		t.Fatalf("variance went negative: %v", got)
	}
}

func TestEmpiricalVarianceNonNegative(t *testing.T) {
	seqs := [][]float64{
		{0.1, 0.1, 0.1, 0.1},
		{1e-9, 2e-9, 3e-9},
		{5, -5, 5, -5},
		{1e12, 1e12 + 1},
	}
	for _, s := range seqs {
		var sum, sumSq float64
		for _, v := range s {
			sum += v
			sumSq += v * v
		}
		if got := EmpiricalVariance(sumSq, sum, len(s)); got < 0 {
			t.Fatalf("negative variance for %v: %v", s, got)
		}
	}
}

func TestLMMSESlopeExactLinear(t *testing.T) {
	// R = 2*X over [1,2,3]
	sumX, sumR, sumXX, sumRR, sumXR, n := sums([]float64{1, 2, 3}, []float64{2, 4, 6})
	if got := LMMSESlope(sumX, sumR, sumXX, sumRR, sumXR, n); !almostEqual(got, 2.0) {
		t.Fatalf("slope = %v, want 2", got)
	}
	if got := LMMSEResidualVariance(sumX, sumR, sumXX, sumRR, sumXR, n, 2.0); !almostEqual(got, 0.0) {
		t.Fatalf("residual = %v, want 0", got)
	}
}

func TestLMMSESlopeHalf(t *testing.T) {
	// X=[1,2,3], R=[1,1,2]: slope 0.5, residual 0.5 at omega=0.5
	if got := LMMSESlope(6, 6, 14, 14, 13, 3); !almostEqual(got, 0.5) {
		t.Fatalf("slope = %v, want 0.5", got)
	}
	if got := LMMSEResidualVariance(6, 6, 14, 14, 13, 3, 0.5); !almostEqual(got, 0.5) {
		t.Fatalf("residual = %v, want 0.5", got)
	}
}

func TestLMMSEDegenerate(t *testing.T) {
	if got := LMMSESlope(1, 1, 1, 1, 1, 1); got != 0.0 {
		t.Fatalf("n<2 slope = %v, want 0", got)
	}
	// constant X=[2,2]: varX == 0 -> slope 0
	if got := LMMSESlope(4, 3, 8, 5, 6, 2); got != 0.0 {
		t.Fatalf("zero-variance slope = %v, want 0", got)
	}
	if got := LMMSEResidualVariance(1, 1, 1, 1, 1, 0, 1.0); got != 0.0 {
		t.Fatalf("n<2 residual = %v, want 0", got)
	}
	// residual never negative even with an absurd omega
	if got := LMMSEResidualVariance(6, 12, 14, 56, 28, 3, 100.0); got < 0 {
		t.Fatalf("residual went negative: %v", got)
	}
}

func TestMedian(t *testing.T) {
	if got := Median(nil); got != 0.0 {
		t.Fatalf("empty median = %v, want 0", got)
	}
	if got := Median([]float64{7}); got != 7.0 {
		t.Fatalf("single median = %v, want 7", got)
	}
	if got := Median([]float64{3, 1, 2}); got != 2.0 {
		t.Fatalf("odd median = %v, want 2", got)
	}
	if got := Median([]float64{4, 1, 3, 2}); !almostEqual(got, 2.5) {
		t.Fatalf("even median = %v, want 2.5", got)
	}
	// input must stay untouched
	src := []float64{9, 1, 5}
	_ = Median(src)
	if src[0] != 9 || src[1] != 1 || src[2] != 5 {
		t.Fatalf("median mutated input: %v", src)
	}
}

func TestStableArgmax(t *testing.T) {
	if got := StableArgmax(nil); got != -1 {
		t.Fatalf("empty argmax = %d, want -1", got)
	}
	if got := StableArgmax([]float64{1, 3, 3, 2}); got != 1 {
		t.Fatalf("tie argmax = %d, want 1 (lowest index wins)", got)
	}
	inf := math.Inf(1)
	if got := StableArgmax([]float64{1, inf, inf}); got != 1 {
		t.Fatalf("inf argmax = %d, want 1", got)
	}
	if got := StableArgmax([]float64{-1, -2, -3}); got != 0 {
		t.Fatalf("negative argmax = %d, want 0", got)
	}
}
