// SPDX-License-Identifier: Apache-2.0

package sqlsurface_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/sqlsurface"
)

func TestParseTableExtractsColumnsAndFK(t *testing.T) {
	body := `CREATE TABLE IF NOT EXISTS orders (
		id bigint PRIMARY KEY,
		customer_id bigint NOT NULL REFERENCES customers(id),
		note text,
		total numeric DEFAULT 0,
		CONSTRAINT orders_total_check CHECK (total >= 0)
	);`

	table, err := sqlsurface.ParseTable("orders.sql", body)
	require.NoError(t, err)

	assert.Equal(t, "orders", table.Name)
	assert.Len(t, table.Columns, 4)

	assert.Equal(t, "id", table.Columns[0].Name)
	assert.True(t, table.Columns[0].PrimaryKey)
	assert.False(t, table.Columns[0].Nullable)

	assert.Equal(t, "customer_id", table.Columns[1].Name)
	assert.False(t, table.Columns[1].Nullable)
	assert.Equal(t, "customers", table.Columns[1].References)
	assert.True(t, table.FKRefs["customers"])

	assert.Equal(t, "note", table.Columns[2].Name)
	assert.True(t, table.Columns[2].Nullable)

	assert.Equal(t, "total", table.Columns[3].Name)
	assert.True(t, table.Columns[3].HasDefault)
}

func TestParseTableMissingCreateFails(t *testing.T) {
	_, err := sqlsurface.ParseTable("broken.sql", "not sql at all")
	assert.Error(t, err)
}

func TestParseFunctionExtractsSignature(t *testing.T) {
	body := `CREATE OR REPLACE FUNCTION add_totals(a integer, b integer DEFAULT 0)
		RETURNS integer AS $$
		BEGIN
			RETURN a + b;
		END;
		$$ LANGUAGE plpgsql;`

	fn, err := sqlsurface.ParseFunction("add_totals.sql", body)
	require.NoError(t, err)

	assert.Equal(t, "add_totals", fn.Name)
	assert.Equal(t, []string{"integer", "integer"}, []string(fn.ParamTypes))
}

func TestParseTypeDetectsEnum(t *testing.T) {
	ty, err := sqlsurface.ParseType("status.sql", `CREATE TYPE order_status AS ENUM ('pending', 'paid', 'shipped');`)
	require.NoError(t, err)
	assert.Equal(t, "order_status", ty.Name)
	assert.Equal(t, "enum", string(ty.Kind))
}

func TestParseTypeDetectsDomain(t *testing.T) {
	ty, err := sqlsurface.ParseType("posint.sql", `CREATE DOMAIN positive_int AS integer CHECK (VALUE > 0);`)
	require.NoError(t, err)
	assert.Equal(t, "positive_int", ty.Name)
	assert.Equal(t, "domain", string(ty.Kind))
}

func TestParseExtensionReadsLeadingComments(t *testing.T) {
	body := "-- version: 1.4\n-- schema: extensions\nCREATE EXTENSION IF NOT EXISTS pgcrypto;"
	ext := sqlsurface.ParseExtension("pgcrypto.sql", body)

	assert.Equal(t, "pgcrypto", ext.Name)
	assert.Equal(t, "1.4", ext.Version)
	assert.Equal(t, "extensions", ext.Schema)
}
