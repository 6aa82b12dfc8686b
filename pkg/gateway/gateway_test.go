// SPDX-License-Identifier: Apache-2.0

package gateway_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/testutils"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gateway"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func trivialBundle(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "tables", "users.sql"),
		"CREATE TABLE users (id serial PRIMARY KEY, email text NOT NULL UNIQUE);")
	writeFile(t, filepath.Join(root, "functions", "get_user_by_id.sql"),
		"CREATE FUNCTION get_user_by_id(id integer) RETURNS users AS $$ SELECT * FROM users WHERE id = $1; $$ LANGUAGE sql;")
	return root
}

func newGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	cfg := config.Defaults()
	cfg.AdminDatabaseURL = testutils.AdminConnectionString()
	cfg.DataDir = t.TempDir()

	gw, err := gateway.New(cfg, glog.NewNoop(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestRegisterCreatesDatabaseAndDeploysBundle(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()

	result, err := gw.Register(ctx, "acme", "", trivialBundle(t))
	require.NoError(t, err)

	assert.Equal(t, "acme_main", result.Database)
	assert.Len(t, result.FunctionsDeployed, 1)

	_, err = gw.Register(ctx, "acme", "", trivialBundle(t))
	assert.Error(t, err)
}

func TestMigrateIsIdempotentAfterRegister(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()
	bundleRoot := trivialBundle(t)

	_, err := gw.Register(ctx, "globex", "", bundleRoot)
	require.NoError(t, err)

	result, err := gw.Migrate(ctx, "globex", "", bundleRoot, false)
	require.NoError(t, err)
	require.Len(t, result.PerDatabase, 1)
	assert.NoError(t, result.PerDatabase[0].Err)
	assert.Empty(t, result.PerDatabase[0].MigrationsApplied)
	assert.Equal(t, 1, result.PerDatabase[0].FunctionsSkipped)
}

func TestCallInvokesDeployedFunction(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()

	_, err := gw.Register(ctx, "initech", "", trivialBundle(t))
	require.NoError(t, err)

	_, err = gw.Call(ctx, "initech", "", "get_user_by_id", []any{1})
	require.NoError(t, err)
}

func TestPlatformRegistrationAndDedicatedTenantDatabase(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()

	p, err := gw.RegisterPlatform("umbrella", "", "")
	require.NoError(t, err)
	assert.False(t, p.HasDedicatedCredentials())

	database, err := gw.CreateDatabase(ctx, "umbrella", "tenant1", "")
	require.NoError(t, err)
	assert.Equal(t, "umbrella_tenant1", database)

	dbs, err := gw.ListDatabases(ctx, "umbrella")
	require.NoError(t, err)
	assert.Len(t, dbs, 1)
}

func TestHealthReportsConnected(t *testing.T) {
	gw := newGateway(t)
	h := gw.Health(context.Background())
	assert.True(t, h.PostgresConnected)
	assert.Equal(t, "ok", h.Status)
}
