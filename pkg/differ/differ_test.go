// SPDX-License-Identifier: Apache-2.0

package differ_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/differ"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

func emptyObserved() *gwschema.ObservedState {
	return &gwschema.ObservedState{
		Extensions: map[string]bool{},
		Types:      map[string]string{},
		Tables:     map[string]*gwschema.ObservedTable{},
		Migrations: map[string]string{},
		Functions:  map[string]gwschema.TrackedFunction{},
	}
}

func TestDiffFreshDeployEmitsCreateEverything(t *testing.T) {
	desired := gwschema.DesiredState{
		Extensions: []gwschema.Extension{{Name: "pgcrypto"}},
		Types:      []gwschema.Type{{Name: "status", Checksum: "c1"}},
		Migrations: []gwschema.Migration{{Filename: "001_x.sql", Checksum: "m1"}},
		Functions:  []gwschema.Function{{Name: "f", ParamTypes: gwschema.Signature{"integer"}, Checksum: "f1"}},
	}

	plan := differ.Diff(desired, emptyObserved(), true)

	assert.Empty(t, plan.Incompatible)
	assert.Empty(t, plan.DataLoss)
	assert.Len(t, plan.Safe, 4)
}

func TestDiffIdempotentOnUnchangedBundle(t *testing.T) {
	desired := gwschema.DesiredState{
		Extensions: []gwschema.Extension{{Name: "pgcrypto"}},
		Types:      []gwschema.Type{{Name: "status", Checksum: "c1"}},
		Migrations: []gwschema.Migration{{Filename: "001_x.sql", Checksum: "m1"}},
		Functions:  []gwschema.Function{{Name: "f", ParamTypes: gwschema.Signature{"integer"}, Checksum: "f1"}},
	}

	obs := emptyObserved()
	obs.Extensions["pgcrypto"] = true
	obs.Types["status"] = "c1"
	obs.Migrations["001_x.sql"] = "m1"
	key := gwschema.FunctionKey("f", gwschema.Signature{"integer"})
	obs.Functions[key] = gwschema.TrackedFunction{Name: "f", Signature: gwschema.Signature{"integer"}, Checksum: "f1"}

	plan := differ.Diff(desired, obs, false)

	assert.Empty(t, plan.Safe)
	assert.Empty(t, plan.DataLoss)
	assert.Empty(t, plan.Incompatible)
}

func TestDiffTypeChecksumMismatchIsIncompatible(t *testing.T) {
	desired := gwschema.DesiredState{Types: []gwschema.Type{{Name: "status", Checksum: "c2"}}}
	obs := emptyObserved()
	obs.Types["status"] = "c1"

	plan := differ.Diff(desired, obs, false)
	assert.Len(t, plan.Incompatible, 1)
}

func TestDiffMigrationChecksumMismatchIsCorruptedHistory(t *testing.T) {
	desired := gwschema.DesiredState{Migrations: []gwschema.Migration{{Filename: "001.sql", Checksum: "m2"}}}
	obs := emptyObserved()
	obs.Migrations["001.sql"] = "m1"

	plan := differ.Diff(desired, obs, false)
	assert.Len(t, plan.CorruptedHistory, 1)
	assert.True(t, plan.Blocked(true))
}

func TestDiffOrphanFunctionIsDropped(t *testing.T) {
	obs := emptyObserved()
	key := gwschema.FunctionKey("old_fn", gwschema.Signature{"text"})
	obs.Functions[key] = gwschema.TrackedFunction{Name: "old_fn", Signature: gwschema.Signature{"text"}, Checksum: "c"}

	plan := differ.Diff(gwschema.DesiredState{}, obs, false)
	assert.Len(t, plan.Safe, 1)
	assert.Equal(t, differ.ActionDrop, plan.Safe[0].Action)
}

func TestDiffTableColumnRules(t *testing.T) {
	desired := gwschema.DesiredState{
		Tables: []gwschema.Table{{
			Name: "orders",
			Columns: []gwschema.Column{
				{Name: "id", DeclaredType: "bigint"},
				{Name: "note", DeclaredType: "text", Nullable: true},
				{Name: "total", DeclaredType: "bigint"},
				{Name: "required_flag", DeclaredType: "boolean"},
			},
		}},
	}

	obs := emptyObserved()
	obs.Tables["orders"] = &gwschema.ObservedTable{
		Name: "orders",
		Columns: []gwschema.ObservedColumn{
			{Name: "id", DeclaredType: "bigint"},
			{Name: "total", DeclaredType: "integer"},
			{Name: "legacy_col", DeclaredType: "text"},
		},
		TrackedChecksum: "t1",
	}

	plan := differ.Diff(desired, obs, false)

	var sawAddSafe, sawAddDataLoss, sawAlterSafe, sawDropColumn bool
	for _, c := range plan.Safe {
		if c.Entity == "table" && c.Name == "orders.note" {
			sawAddSafe = true
		}
		if c.Entity == "table" && c.Name == "orders.total" {
			sawAlterSafe = true
		}
	}
	for _, c := range plan.DataLoss {
		if c.Entity == "table" && c.Name == "orders.required_flag" {
			sawAddDataLoss = true
		}
		if c.Entity == "table" && c.Name == "orders.legacy_col" {
			sawDropColumn = true
		}
	}

	assert.True(t, sawAddSafe, "nullable column addition should be safe")
	assert.True(t, sawAddDataLoss, "NOT NULL column without default should be data-loss")
	assert.True(t, sawAlterSafe, "integer -> bigint widening should be safe")
	assert.True(t, sawDropColumn, "column missing from bundle should be drop, data-loss")
}

func TestDiffDropTableIsDataLoss(t *testing.T) {
	obs := emptyObserved()
	obs.Tables["orphan"] = &gwschema.ObservedTable{
		Name:    "orphan",
		Columns: []gwschema.ObservedColumn{{Name: "id", DeclaredType: "bigint"}},
	}

	plan := differ.Diff(gwschema.DesiredState{}, obs, false)
	assert.Len(t, plan.DataLoss, 1)
	assert.Equal(t, differ.ActionDropTable, plan.DataLoss[0].Action)
}
