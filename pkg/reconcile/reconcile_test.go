// SPDX-License-Identifier: Apache-2.0

package reconcile_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/testutils"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/checksum"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/reconcile"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func desiredState() gwschema.DesiredState {
	tableBody := `CREATE TABLE customers (id bigint PRIMARY KEY, name text NOT NULL);`
	fnBody := `CREATE FUNCTION greet(name text) RETURNS text AS $$ BEGIN RETURN name; END; $$ LANGUAGE plpgsql;`

	return gwschema.DesiredState{
		Tables: []gwschema.Table{{
			Name:     "customers",
			Columns:  []gwschema.Column{{Name: "id", DeclaredType: "bigint", PrimaryKey: true}, {Name: "name", DeclaredType: "text"}},
			FKRefs:   map[string]bool{},
			BodyText: tableBody,
			Checksum: checksum.Sum(tableBody),
		}},
		Functions: []gwschema.Function{{
			Name:       "greet",
			ParamTypes: gwschema.Signature{"text"},
			BodyText:   fnBody,
			Checksum:   checksum.Sum(fnBody),
		}},
	}
}

func TestApplyFreshDeployThenIdempotentReapply(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}
		r := reconcile.New(glog.NewNoop())

		result, err := r.Apply(ctx, rdb, "testdb", desiredState(), true, false)
		require.NoError(t, err)
		assert.Len(t, result.FunctionsDeployed, 1)

		applied, err := gwschema.ListMigrations(ctx, rdb)
		require.NoError(t, err)
		assert.Empty(t, applied)

		result2, err := r.Apply(ctx, rdb, "testdb", desiredState(), false, false)
		require.NoError(t, err)
		assert.Empty(t, result2.MigrationsApplied)
		assert.Empty(t, result2.FunctionsDeployed)
		assert.Equal(t, 1, result2.FunctionsSkipped)
	})
}

// stateWithShortSeeder declares a table plus a seeder that only inserts one
// row while claiming to expect two, so a reconcile of an existing database
// always falls into the seeder row-count validation path.
func stateWithShortSeeder() gwschema.DesiredState {
	tableBody := `CREATE TABLE widgets (id bigint PRIMARY KEY, name text NOT NULL);`
	insert := `INSERT INTO widgets (id, name) VALUES (1, 'a');`

	return gwschema.DesiredState{
		Tables: []gwschema.Table{{
			Name:     "widgets",
			Columns:  []gwschema.Column{{Name: "id", DeclaredType: "bigint", PrimaryKey: true}, {Name: "name", DeclaredType: "text"}},
			FKRefs:   map[string]bool{},
			BodyText: tableBody,
			Checksum: checksum.Sum(tableBody),
		}},
		Seeders: []gwschema.Seeder{{
			Table:            "widgets",
			Statements:       []string{insert},
			ExpectedRowCount: 2,
		}},
	}
}

func lastChangelogForced(t *testing.T, ctx context.Context, rdb *db.RDB, changeType, objectName string) bool {
	t.Helper()
	row := rdb.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT forced FROM %s WHERE change_type = $1 AND object_name = $2 ORDER BY executed_at DESC LIMIT 1",
			pq.QuoteIdentifier(gwschema.TrackingPrefix+"changelog")),
		changeType, objectName)
	var forced bool
	require.NoError(t, row.Scan(&forced))
	return forced
}

func TestForceRecordsForcedChangelogOnSeederShortfall(t *testing.T) {
	testutils.WithConnectionToContainer(t, func(conn *sql.DB, _ string) {
		ctx := context.Background()
		rdb := &db.RDB{DB: conn}
		r := reconcile.New(glog.NewNoop())

		_, err := r.Apply(ctx, rdb, "testdb", stateWithShortSeeder(), true, false)
		require.NoError(t, err)

		_, err = r.Apply(ctx, rdb, "testdb", stateWithShortSeeder(), false, false)
		require.Error(t, err)

		result, err := r.Apply(ctx, rdb, "testdb", stateWithShortSeeder(), false, true)
		require.NoError(t, err)
		require.Len(t, result.SeederValidations, 1)
		assert.Equal(t, 1, result.SeederValidations[0].Found)
		assert.Equal(t, 2, result.SeederValidations[0].Expected)

		assert.True(t, lastChangelogForced(t, ctx, rdb, string(gwschema.ChangeSeederValidated), "widgets"))
	})
}
