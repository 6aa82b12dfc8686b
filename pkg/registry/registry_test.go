// SPDX-License-Identifier: Apache-2.0

package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/registry"
)

func TestRegisterAndGet(t *testing.T) {
	r := registry.New(t.TempDir())

	p, err := r.Register("acme", "", "")
	require.NoError(t, err)
	assert.Equal(t, "acme", p.Name)
	assert.False(t, p.HasDedicatedCredentials())

	got, err := r.Get("acme")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := registry.New(t.TempDir())
	_, err := r.Register("acme", "", "")
	require.NoError(t, err)

	_, err = r.Register("acme", "", "")
	assert.Error(t, err)
}

func TestGetUnknownPlatformFails(t *testing.T) {
	r := registry.New(t.TempDir())
	_, err := r.Get("nope")
	assert.Error(t, err)
}

func TestStoreSchemaCopiesTreeAndOverwrites(t *testing.T) {
	dir := t.TempDir()
	r := registry.New(dir)
	_, err := r.Register("acme", "", "")
	require.NoError(t, err)

	bundleRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(bundleRoot, "tables"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundleRoot, "tables", "t.sql"), []byte("CREATE TABLE t (id bigint);"), 0o644))

	require.NoError(t, r.StoreSchema("acme", "v1", bundleRoot))

	stored, err := os.ReadFile(filepath.Join(r.SchemaPath("acme", "v1"), "tables", "t.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(stored), "CREATE TABLE t")

	p, err := r.Get("acme")
	require.NoError(t, err)
	assert.Contains(t, p.Schemas, "v1")
}

func TestRecordDatabasePersists(t *testing.T) {
	r := registry.New(t.TempDir())
	_, err := r.Register("acme", "", "")
	require.NoError(t, err)

	require.NoError(t, r.RecordDatabase("acme", "acme_main", "v1"))

	p, err := r.Get("acme")
	require.NoError(t, err)
	require.Contains(t, p.Databases, "acme_main")
	assert.Equal(t, "v1", p.Databases["acme_main"].AppliedSchema)
}

func TestEnsureExistsCreatesThenReusesPlatform(t *testing.T) {
	r := registry.New(t.TempDir())

	p, err := r.EnsureExists("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", p.Name)

	require.NoError(t, r.RecordDatabase("acme", "acme_main", ""))

	again, err := r.EnsureExists("acme")
	require.NoError(t, err)
	assert.Contains(t, again.Databases, "acme_main")
}

func TestRegisterWithDedicatedCredentialsRoundTrips(t *testing.T) {
	r := registry.New(t.TempDir())

	p, err := r.Register("acme", "acme_svc", "s3cr3t")
	require.NoError(t, err)
	assert.True(t, p.HasDedicatedCredentials())
	assert.Equal(t, "acme_svc", p.DBUserString())
	assert.Equal(t, "s3cr3t", p.DBPasswordString())

	got, err := r.Get("acme")
	require.NoError(t, err)
	assert.True(t, got.HasDedicatedCredentials())
	assert.Equal(t, "acme_svc", got.DBUserString())
}

func TestStoreSchemaWritesValidManifest(t *testing.T) {
	dir := t.TempDir()
	r := registry.New(dir)
	_, err := r.Register("acme", "", "")
	require.NoError(t, err)

	bundleRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(bundleRoot, "tables"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundleRoot, "tables", "t.sql"), []byte("CREATE TABLE t (id bigint);"), 0o644))
	require.NoError(t, r.StoreSchema("acme", "v1", bundleRoot))

	raw, err := os.ReadFile(filepath.Join(dir, "acme", "schemas", "v1", "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"schema_name": "v1"`)
}

func TestDeleteRefusesPlatformWithDatabases(t *testing.T) {
	r := registry.New(t.TempDir())
	_, err := r.Register("acme", "", "")
	require.NoError(t, err)
	require.NoError(t, r.RecordDatabase("acme", "acme_main", "v1"))

	assert.Error(t, r.Delete("acme"))
}
