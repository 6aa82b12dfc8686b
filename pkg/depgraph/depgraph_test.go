// SPDX-License-Identifier: Apache-2.0

package depgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/depgraph"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

func names(tables []gwschema.Table) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

func TestOrderRespectsForeignKeys(t *testing.T) {
	tables := []gwschema.Table{
		{Name: "orders", FKRefs: map[string]bool{"customers": true}},
		{Name: "customers", FKRefs: map[string]bool{}},
		{Name: "line_items", FKRefs: map[string]bool{"orders": true, "products": true}},
		{Name: "products", FKRefs: map[string]bool{}},
	}

	ordered, err := depgraph.Order(tables)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, n := range names(ordered) {
		pos[n] = i
	}

	assert.Less(t, pos["customers"], pos["orders"])
	assert.Less(t, pos["orders"], pos["line_items"])
	assert.Less(t, pos["products"], pos["line_items"])
}

func TestOrderIsDeterministicAmongRoots(t *testing.T) {
	tables := []gwschema.Table{
		{Name: "zebra", FKRefs: map[string]bool{}},
		{Name: "alpha", FKRefs: map[string]bool{}},
	}

	ordered, err := depgraph.Order(tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zebra"}, names(ordered))
}

func TestOrderDetectsCycle(t *testing.T) {
	tables := []gwschema.Table{
		{Name: "a", FKRefs: map[string]bool{"b": true}},
		{Name: "b", FKRefs: map[string]bool{"a": true}},
	}

	_, err := depgraph.Order(tables)
	assert.Error(t, err)
}

func TestOrderIgnoresReferencesOutsideBundle(t *testing.T) {
	tables := []gwschema.Table{
		{Name: "orders", FKRefs: map[string]bool{"external_customers": true}},
	}

	ordered, err := depgraph.Order(tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, names(ordered))
}
