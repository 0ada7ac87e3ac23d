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

package catalog_test

import (
	"testing"
	"testing/fstest"

	"github.com/zintix-labs/banditlab/catalog"
	"github.com/zintix-labs/banditlab/spec"
)

const twoArmYAML = `scenario_name: two_arms
scenario_id: 7
arms:
  - arm_name: strong
    family: gaussian
    mean_cost: 1.0
    mean_reward: 3.0
    var_cost: 0.04
    var_reward: 0.25
  - arm_name: weak
    family: gaussian
    mean_cost: 1.0
    mean_reward: 1.5
    var_cost: 0.04
    var_reward: 0.25
`

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cfgs := fstest.MapFS{
		"a.yaml": {Data: []byte(twoArmYAML)},
		"b.yaml": {Data: []byte(twoArmYAML)},
	}
	c, err := catalog.New(cfgs)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	return c
}

func TestRegisterAndLookup(t *testing.T) {
	c := newCatalog(t)

	if err := c.Register(catalog.Entry{SID: 7, Name: "Two_Arms", ConfigName: "a.yaml"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	// names are normalized to lower case on the way in
	if _, ok := c.GetByName("two_arms"); !ok {
		t.Fatalf("GetByName(two_arms) missing")
	}
	e, ok := c.GetByID(7)
	if !ok || e.ConfigName != "a.yaml" {
		t.Fatalf("GetByID(7) = %+v, %v", e, ok)
	}
	if ids := c.IDs(); len(ids) != 1 || ids[0] != spec.SID(7) {
		t.Fatalf("IDs = %v", ids)
	}

	sc, err := c.ScenarioById(7)
	if err != nil {
		t.Fatalf("scenario by id: %v", err)
	}
	if sc.ScenarioName != "two_arms" || len(sc.Arms) != 2 {
		t.Fatalf("parsed scenario: %s arms=%d", sc.ScenarioName, len(sc.Arms))
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := newCatalog(t)
	if err := c.Register(catalog.Entry{SID: 7, Name: "two_arms", ConfigName: "a.yaml"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := c.Register(catalog.Entry{SID: 7, Name: "other", ConfigName: "b.yaml"}); err == nil {
		t.Fatalf("duplicate sid must fail")
	}
	if err := c.Register(catalog.Entry{SID: 8, Name: "TWO_ARMS", ConfigName: "b.yaml"}); err == nil {
		t.Fatalf("duplicate name must fail (case-insensitive)")
	}
	if err := c.Register(catalog.Entry{SID: 8, Name: "other", ConfigName: "a.yaml"}); err == nil {
		t.Fatalf("duplicate config file must fail")
	}
	// a failed batch must not leave partial state behind
	err := c.Register(
		catalog.Entry{SID: 8, Name: "other", ConfigName: "b.yaml"},
		catalog.Entry{SID: 8, Name: "another", ConfigName: "b.yaml"},
	)
	if err == nil {
		t.Fatalf("duplicate within batch must fail")
	}
	if _, ok := c.GetByID(8); ok {
		t.Fatalf("failed batch leaked entries")
	}
}

func TestRegisterRejectsBadEntries(t *testing.T) {
	c := newCatalog(t)
	bads := []catalog.Entry{
		{SID: 1, Name: "", ConfigName: "a.yaml"},
		{SID: 1, Name: "x", ConfigName: "a.txt"},
		{SID: 1, Name: "x", ConfigName: "sub/a.yaml"},
		{SID: 1, Name: "x", ConfigName: ".yaml"},
		{SID: 1, Name: "x", ConfigName: "missing.yaml"},
	}
	for i, e := range bads {
		if err := c.Register(e); err == nil {
			t.Fatalf("case %d: entry %+v must fail", i, e)
		}
	}
}

func TestFreezeBlocksRegistration(t *testing.T) {
	c := newCatalog(t)
	c.Freeze()
	if !c.IsFrozen() {
		t.Fatalf("catalog must report frozen")
	}
	if err := c.Register(catalog.Entry{SID: 7, Name: "two_arms", ConfigName: "a.yaml"}); err == nil {
		t.Fatalf("register after freeze must fail")
	}
}
