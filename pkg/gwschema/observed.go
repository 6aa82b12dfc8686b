// SPDX-License-Identifier: Apache-2.0

package gwschema

import (
	"context"
	"fmt"
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
)

// ObservedColumn is one column as currently defined in the database's
// catalogue, read via information_schema rather than reconstructed from a
// tracking table, since column-level drift (an operator running manual DDL)
// has to be visible to the differ even when it never went through a
// migration.
type ObservedColumn struct {
	Name         string
	DeclaredType string
	Nullable     bool
	HasDefault   bool
}

// ObservedTable is a live table plus the checksum it was last deployed with,
// if the gateway has ever deployed it.
type ObservedTable struct {
	Name            string
	Columns         []ObservedColumn
	TrackedChecksum string // empty if this table was never recorded by the gateway
}

// ObservedState is everything the Schema Differ needs to know about a
// database's current reality: what the gateway itself previously deployed
// (read from the tracking tables) plus what the live catalogue actually
// contains (read from information_schema/pg_catalog), since an operator can
// always run DDL by hand between reconciles.
type ObservedState struct {
	Extensions map[string]bool             // installed extension name -> true
	Types      map[string]string           // type name -> last-deployed checksum
	Tables     map[string]*ObservedTable   // table name -> observed shape
	Migrations map[string]string           // filename -> applied checksum
	Functions  map[string]TrackedFunction  // FunctionKey -> tracked row
}

// ReadObserved builds an ObservedState for conn's database. It assumes
// InitTracking has already run; if the tracking tables do not exist, the
// first tracking-table query fails and ReadObserved returns that error.
func ReadObserved(ctx context.Context, conn db.DB) (*ObservedState, error) {
	obs := &ObservedState{
		Extensions: map[string]bool{},
		Tables:     map[string]*ObservedTable{},
		Functions:  map[string]TrackedFunction{},
	}

	exts, err := readExtensions(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading installed extensions: %w", err)
	}
	obs.Extensions = exts

	types, err := ListTypes(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading tracked types: %w", err)
	}
	obs.Types = types

	migrations, err := ListMigrations(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	obs.Migrations = map[string]string{}
	for _, m := range migrations {
		obs.Migrations[m.Filename] = m.Checksum
	}

	functions, err := ListFunctions(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading tracked functions: %w", err)
	}
	for _, f := range functions {
		obs.Functions[FunctionKey(f.Name, f.Signature)] = f
	}

	tableChecksums, err := ListTables(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading tracked tables: %w", err)
	}

	tables, err := readTables(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("reading live table catalogue: %w", err)
	}
	for name, t := range tables {
		t.TrackedChecksum = tableChecksums[name]
		obs.Tables[name] = t
	}
	// A table recorded in the tracking table but dropped by hand still
	// needs to surface to the differ as "missing", so synthesize an empty
	// entry rather than silently losing it.
	for name, checksum := range tableChecksums {
		if _, ok := obs.Tables[name]; !ok {
			obs.Tables[name] = &ObservedTable{Name: name, TrackedChecksum: checksum}
		}
	}

	return obs, nil
}

func readExtensions(ctx context.Context, conn db.DB) (map[string]bool, error) {
	rows, err := conn.QueryContext(ctx, "SELECT extname FROM pg_extension")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// readTables reads every base table in the public schema whose name does
// not carry the tracking-table prefix, with its columns, from
// information_schema. Tracking tables are invisible to the differ, so they
// never enter the result.
func readTables(ctx context.Context, conn db.DB) (map[string]*ObservedTable, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT c.table_name, c.column_name, c.data_type, c.character_maximum_length, c.is_nullable, c.column_default
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = 'public' AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]*ObservedTable{}
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		var charMaxLen *int
		var columnDefault *string
		if err := rows.Scan(&tableName, &columnName, &dataType, &charMaxLen, &isNullable, &columnDefault); err != nil {
			return nil, err
		}
		if strings.HasPrefix(tableName, TrackingPrefix) {
			continue
		}

		t, ok := out[tableName]
		if !ok {
			t = &ObservedTable{Name: tableName}
			out[tableName] = t
		}
		declaredType := dataType
		if charMaxLen != nil {
			// data_type alone drops the length a character/varchar column
			// was declared with (e.g. "character varying" instead of
			// "character varying(255)"); fold it back in so the differ
			// compares the same shape the bundle declared.
			declaredType = fmt.Sprintf("%s(%d)", dataType, *charMaxLen)
		}
		t.Columns = append(t.Columns, ObservedColumn{
			Name:         columnName,
			DeclaredType: declaredType,
			Nullable:     isNullable == "YES",
			HasDefault:   columnDefault != nil,
		})
	}
	return out, rows.Err()
}
