// SPDX-License-Identifier: Apache-2.0

package gwschema_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/testutils"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestInsertChangelogReturnsDistinctUUIDs(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}
		require.NoError(t, gwschema.InitTracking(ctx, rdb))

		first, err := gwschema.InsertChangelog(ctx, rdb, gwschema.ChangeTypeDeployed, "widget", map[string]string{"k": "v"}, false)
		require.NoError(t, err)
		_, err = uuid.Parse(first)
		require.NoError(t, err)

		second, err := gwschema.InsertChangelog(ctx, rdb, gwschema.ChangeTypeDeployed, "widget", map[string]string{"k": "v"}, false)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})
}
