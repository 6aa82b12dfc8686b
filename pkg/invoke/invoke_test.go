// SPDX-License-Identifier: Apache-2.0

package invoke_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/testutils"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/invoke"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestCallReturnsRows(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		_, err := conn.ExecContext(ctx, `CREATE FUNCTION add_totals(a integer, b integer) RETURNS integer AS $$
			BEGIN RETURN a + b; END;
		$$ LANGUAGE plpgsql;`)
		require.NoError(t, err)

		result, err := invoke.Call(ctx, &db.RDB{DB: conn}, "add_totals", []any{2, 3})
		require.NoError(t, err)
		require.Equal(t, 1, result.RowCount)
		assert.EqualValues(t, 5, result.Rows[0]["add_totals"])
	})
}

func TestCallFailureMapsToFunctionCallFailed(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		_, err := invoke.Call(context.Background(), &db.RDB{DB: conn}, "does_not_exist", nil)
		assert.Error(t, err)
	})
}
