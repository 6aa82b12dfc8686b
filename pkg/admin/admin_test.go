// SPDX-License-Identifier: Apache-2.0

package admin_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/testutils"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/admin"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/pool"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/registry"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestCreateDatabaseThenRejectsDuplicate(t *testing.T) {
	adminDB, err := sql.Open("postgres", testutils.AdminConnectionString())
	require.NoError(t, err)
	defer adminDB.Close()

	cfg := config.Defaults()
	cfg.AdminDatabaseURL = testutils.AdminConnectionString()
	pools := pool.New(cfg, registry.New(t.TempDir()), glog.NewNoop())
	defer pools.Close()

	a := admin.New(adminDB, pools, "test")
	ctx := context.Background()

	require.NoError(t, a.CreateDatabase(ctx, "admin_test_db"))
	assert.Error(t, a.CreateDatabase(ctx, "admin_test_db"))

	dbs, err := a.ListDatabases(ctx, "admin_test")
	require.NoError(t, err)
	assert.Len(t, dbs, 1)
	assert.Equal(t, "admin_test_db", dbs[0].Name)
}

func TestSnapshotReportsConnected(t *testing.T) {
	adminDB, err := sql.Open("postgres", testutils.AdminConnectionString())
	require.NoError(t, err)
	defer adminDB.Close()

	cfg := config.Defaults()
	cfg.AdminDatabaseURL = testutils.AdminConnectionString()
	pools := pool.New(cfg, registry.New(t.TempDir()), glog.NewNoop())
	defer pools.Close()

	a := admin.New(adminDB, pools, "test")
	snap := a.Snapshot(context.Background())

	assert.True(t, snap.PostgresConnected)
	assert.Equal(t, "ok", snap.Status)
}
