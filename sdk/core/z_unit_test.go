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

package core

import (
	"testing"
)

func TestCoreDeterminism(t *testing.T) {
	c1 := New(Default().New(7))
	c2 := New(Default().New(7))
	for i := 0; i < 8; i++ {
		if c1.Uint64() != c2.Uint64() {
			t.Fatalf("Uint64 mismatch at %d", i)
		}
	}
	if c1.IntN(10) != c2.IntN(10) {
		t.Fatalf("IntN mismatch")
	}
	if c1.UintN(10) != c2.UintN(10) {
		t.Fatalf("UintN mismatch")
	}
	if c1.Float64() != c2.Float64() {
		t.Fatalf("Float64 mismatch")
	}
}

func TestCoreSeedSeparation(t *testing.T) {
	c1 := New(Default().New(1))
	c2 := New(Default().New(2))
	same := 0
	for i := 0; i < 16; i++ {
		if c1.Uint64() == c2.Uint64() {
			same++
		}
	}
	if same == 16 {
		t.Fatalf("different seeds produced identical streams")
	}
}

func TestBoundedEdges(t *testing.T) {
	c := New(Default().New(3))
	if got := c.IntN(0); got != -1 {
		t.Fatalf("IntN(0) = %d, want -1", got)
	}
	if got := c.IntN(-5); got != -1 {
		t.Fatalf("IntN(-5) = %d, want -1", got)
	}
	if got := c.UintN(0); got != 0 {
		t.Fatalf("UintN(0) = %d, want 0", got)
	}
	for i := 0; i < 1000; i++ {
		if v := c.IntN(7); v < 0 || v >= 7 {
			t.Fatalf("IntN(7) out of range: %d", v)
		}
		if f := c.Float64(); f < 0 || f >= 1 {
			t.Fatalf("Float64 out of range: %v", f)
		}
	}
}

func TestSnapshotRestoreReplaysStream(t *testing.T) {
	for _, name := range []string{"pcg64", "pcg32"} {
		f, err := FactoryByName(name)
		if err != nil {
			t.Fatalf("factory %s: %v", name, err)
		}
		r := f.New(42)
		// burn a few draws so the snapshot is mid-stream
		for i := 0; i < 5; i++ {
			r.Uint64()
		}
		snap, err := r.Snapshot()
		if err != nil {
			t.Fatalf("%s snapshot: %v", name, err)
		}
		want := make([]uint64, 10)
		for i := range want {
			want[i] = r.Uint64()
		}
		if err := r.Restore(snap); err != nil {
			t.Fatalf("%s restore: %v", name, err)
		}
		for i := range want {
			if got := r.Uint64(); got != want[i] {
				t.Fatalf("%s replay diverged at %d", name, i)
			}
		}
	}
}

func TestFactoryByName(t *testing.T) {
	if _, err := FactoryByName(""); err != nil {
		t.Fatalf("empty name should default: %v", err)
	}
	if _, err := FactoryByName("xorshift"); err == nil {
		t.Fatalf("expected error for unknown factory")
	}
}

func TestPickSentinel(t *testing.T) {
	c := New(Default().New(9))
	if got := c.Pick(nil); got != -1 {
		t.Fatalf("expected -1 for empty pick, got %d", got)
	}
	src := []int{4, 5, 6}
	for i := 0; i < 50; i++ {
		v := c.Pick(src)
		if v < 4 || v > 6 {
			t.Fatalf("pick outside source: %d", v)
		}
	}
}
