// SPDX-License-Identifier: Apache-2.0

package gwschema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
)

// TrackingPrefix names every gateway-owned tracking table, per spec.md §3.
// The Schema Differ treats any table whose name carries this prefix as
// external/invisible so it never appears as an orphan in a diff.
const TrackingPrefix = "_stonescriptdb_gateway_"

const (
	migrationsTable = TrackingPrefix + "migrations"
	typesTable      = TrackingPrefix + "types"
	tablesTable     = TrackingPrefix + "tables"
	functionsTable  = TrackingPrefix + "functions"
	changelogTable  = TrackingPrefix + "changelog"
)

// initSQL creates the five tracking tables described in spec.md §3. Mirrors
// the teacher's sqlInit pattern in pkg/state.State: one fmt.Sprintf'd block
// run once per database, guarded by IF NOT EXISTS so it is safe to run on
// every reconcile.
const initSQL = `
CREATE TABLE IF NOT EXISTS %[1]s (
	filename    TEXT PRIMARY KEY,
	checksum    TEXT NOT NULL,
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %[2]s (
	name         TEXT PRIMARY KEY,
	checksum     TEXT NOT NULL,
	deployed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %[3]s (
	name         TEXT PRIMARY KEY,
	checksum     TEXT NOT NULL,
	deployed_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS %[4]s (
	name         TEXT NOT NULL,
	signature    TEXT NOT NULL,
	checksum     TEXT NOT NULL,
	deployed_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (name, signature)
);

CREATE TABLE IF NOT EXISTS %[5]s (
	id             UUID PRIMARY KEY,
	change_type    TEXT NOT NULL,
	object_name    TEXT NOT NULL,
	change_detail  JSONB NOT NULL DEFAULT '{}'::jsonb,
	forced         BOOLEAN NOT NULL DEFAULT false,
	executed_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// InitTracking creates the tracking tables in the database conn is
// connected to, if they do not already exist.
func InitTracking(ctx context.Context, conn db.DB) error {
	stmt := fmt.Sprintf(initSQL,
		pq.QuoteIdentifier(migrationsTable),
		pq.QuoteIdentifier(typesTable),
		pq.QuoteIdentifier(tablesTable),
		pq.QuoteIdentifier(functionsTable),
		pq.QuoteIdentifier(changelogTable),
	)
	_, err := conn.ExecContext(ctx, stmt)
	return err
}

// ChangeType enumerates the changelog's stable change_type values, per
// spec.md §4.F.
type ChangeType string

const (
	ChangeMigrationApplied    ChangeType = "migration_applied"
	ChangeFunctionDeployed    ChangeType = "function_deployed"
	ChangeFunctionDropped     ChangeType = "function_dropped"
	ChangeTypeDeployed        ChangeType = "type_deployed"
	ChangeExtensionInstalled  ChangeType = "extension_installed"
	ChangeSeederRun           ChangeType = "seeder_run"
	ChangeSeederValidated     ChangeType = "seeder_validated"
	ChangeTableAltered        ChangeType = "table_altered"
)

// InsertChangelog records one auditable change and returns its generated
// row ID. detail is marshalled to JSON; forced records whether the caller
// passed force=true. The ID is minted client-side (rather than left to a
// database sequence) so callers can correlate a changelog row with the
// gateway-level log line recorded in the same reconcile before the insert
// commits.
func InsertChangelog(ctx context.Context, conn db.DB, changeType ChangeType, objectName string, detail any, forced bool) (string, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("marshalling changelog detail: %w", err)
	}

	id := uuid.NewString()
	_, err = conn.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, change_type, object_name, change_detail, forced) VALUES ($1, $2, $3, $4, $5)",
			pq.QuoteIdentifier(changelogTable)),
		id, string(changeType), objectName, raw, forced)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecordMigration inserts a migrations tracking row. Callers run this
// inside the same transaction as the migration's DDL, per the invariant
// that a migration row exists iff it was successfully applied.
func RecordMigration(ctx context.Context, tx *sql.Tx, filename, checksum string) error {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (filename, checksum) VALUES ($1, $2)", pq.QuoteIdentifier(migrationsTable)),
		filename, checksum)
	return err
}

// RecordType upserts a types tracking row.
func RecordType(ctx context.Context, conn db.DB, name, checksum string) error {
	_, err := conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, checksum) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET checksum = excluded.checksum, deployed_at = now()`,
			pq.QuoteIdentifier(typesTable)),
		name, checksum)
	return err
}

// RecordTable upserts a tables tracking row.
func RecordTable(ctx context.Context, conn db.DB, name, checksum string) error {
	_, err := conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, checksum) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET checksum = excluded.checksum, deployed_at = now()`,
			pq.QuoteIdentifier(tablesTable)),
		name, checksum)
	return err
}

// RecordFunction upserts a functions tracking row keyed by (name, signature).
func RecordFunction(ctx context.Context, conn db.DB, name string, sig Signature, checksum string) error {
	_, err := conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, signature, checksum) VALUES ($1, $2, $3)
			ON CONFLICT (name, signature) DO UPDATE SET checksum = excluded.checksum, deployed_at = now()`,
			pq.QuoteIdentifier(functionsTable)),
		name, sig.String(), checksum)
	return err
}

// DeleteFunction removes a functions tracking row, used for orphan cleanup
// and for the drop half of a signature change.
func DeleteFunction(ctx context.Context, conn db.DB, name string, sig Signature) error {
	_, err := conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE name = $1 AND signature = $2", pq.QuoteIdentifier(functionsTable)),
		name, sig.String())
	return err
}

// TrackedMigration is one row of the migrations tracking table.
type TrackedMigration struct {
	Filename  string
	Checksum  string
	AppliedAt time.Time
}

// ListMigrations returns every applied migration, ordered by filename.
func ListMigrations(ctx context.Context, conn db.DB) ([]TrackedMigration, error) {
	rows, err := conn.QueryContext(ctx,
		fmt.Sprintf("SELECT filename, checksum, applied_at FROM %s ORDER BY filename", pq.QuoteIdentifier(migrationsTable)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackedMigration
	for rows.Next() {
		var m TrackedMigration
		if err := rows.Scan(&m.Filename, &m.Checksum, &m.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListTypes returns every deployed type's name -> checksum.
func ListTypes(ctx context.Context, conn db.DB) (map[string]string, error) {
	return listNameChecksum(ctx, conn, typesTable)
}

// ListTables returns every tracked table's name -> checksum.
func ListTables(ctx context.Context, conn db.DB) (map[string]string, error) {
	return listNameChecksum(ctx, conn, tablesTable)
}

func listNameChecksum(ctx context.Context, conn db.DB, table string) (map[string]string, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT name, checksum FROM %s", pq.QuoteIdentifier(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, checksum string
		if err := rows.Scan(&name, &checksum); err != nil {
			return nil, err
		}
		out[name] = checksum
	}
	return out, rows.Err()
}

// TrackedFunction is one row of the functions tracking table.
type TrackedFunction struct {
	Name      string
	Signature Signature
	Checksum  string
}

// ListFunctions returns every tracked function.
func ListFunctions(ctx context.Context, conn db.DB) ([]TrackedFunction, error) {
	rows, err := conn.QueryContext(ctx, fmt.Sprintf("SELECT name, signature, checksum FROM %s", pq.QuoteIdentifier(functionsTable)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackedFunction
	for rows.Next() {
		var name, sig, checksum string
		if err := rows.Scan(&name, &sig, &checksum); err != nil {
			return nil, err
		}
		out = append(out, TrackedFunction{Name: name, Signature: splitSignature(sig), Checksum: checksum})
	}
	return out, rows.Err()
}

func splitSignature(s string) Signature {
	if s == "" {
		return Signature{}
	}
	var out Signature
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
