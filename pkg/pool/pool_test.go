// SPDX-License-Identifier: Apache-2.0

package pool_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/testutils"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/pool"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/registry"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func createDatabase(t *testing.T, name string) {
	t.Helper()
	admin, err := sql.Open("postgres", testutils.AdminConnectionString())
	require.NoError(t, err)
	defer admin.Close()
	_, err = admin.Exec(fmt.Sprintf("CREATE DATABASE %q", name))
	require.NoError(t, err)
}

func TestGetLazilyCreatesAndReusesPool(t *testing.T) {
	createDatabase(t, "pool_test_a")

	cfg := config.Defaults()
	cfg.AdminDatabaseURL = testutils.AdminConnectionString()
	cfg.MaxPools = 10
	cfg.MaxTotalConnections = 50
	cfg.ConnectTimeout = 5 * time.Second

	m := pool.New(cfg, registry.New(t.TempDir()), glog.NewNoop())
	defer m.Close()

	conn1, err := m.Get(context.Background(), "pool_test_a")
	require.NoError(t, err)
	conn2, err := m.Get(context.Background(), "pool_test_a")
	require.NoError(t, err)

	assert.Same(t, conn1, conn2)
	assert.Equal(t, 1, m.ActivePools())
}

func TestGetEvictsLeastRecentlyUsedWhenPoolCapExceeded(t *testing.T) {
	createDatabase(t, "pool_test_b")
	createDatabase(t, "pool_test_c")

	cfg := config.Defaults()
	cfg.AdminDatabaseURL = testutils.AdminConnectionString()
	cfg.MaxPools = 1
	cfg.MaxTotalConnections = 50
	cfg.ConnectTimeout = 5 * time.Second

	m := pool.New(cfg, registry.New(t.TempDir()), glog.NewNoop())
	defer m.Close()

	_, err := m.Get(context.Background(), "pool_test_b")
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActivePools())

	_, err = m.Get(context.Background(), "pool_test_c")
	require.NoError(t, err)
	assert.Equal(t, 1, m.ActivePools(), "pool cap of 1 must evict the previous entry")
}
