// SPDX-License-Identifier: Apache-2.0

// Package admin implements database lifecycle and health operations:
// create/drop databases, list databases per platform, and a health
// snapshot of the pool manager.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/pool"
)

// databaseExistsErrorCode is the Postgres error code raised by CREATE
// DATABASE when the name is already taken.
const databaseExistsErrorCode pq.ErrorCode = "42P04"

// Admin performs database lifecycle operations against the admin
// connection and reports pool manager health.
type Admin struct {
	adminDB   *sql.DB
	pools     *pool.Manager
	version   string
	startedAt time.Time
}

// New returns an Admin using adminDB (a connection to the "postgres"
// maintenance database) for CREATE/DROP DATABASE, reporting health figures
// from pools.
func New(adminDB *sql.DB, pools *pool.Manager, version string) *Admin {
	return &Admin{adminDB: adminDB, pools: pools, version: version, startedAt: time.Now()}
}

// CreateDatabase runs CREATE DATABASE "<name>" over the admin connection.
func (a *Admin) CreateDatabase(ctx context.Context, name string) error {
	_, err := a.adminDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(name)))
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == databaseExistsErrorCode {
		return gwerrors.DatabaseAlreadyExists{Database: name}
	}
	return err
}

// DropDatabase runs DROP DATABASE "<name>" over the admin connection.
func (a *Admin) DropDatabase(ctx context.Context, name string) error {
	_, err := a.adminDB.ExecContext(ctx, fmt.Sprintf("DROP DATABASE %s", pq.QuoteIdentifier(name)))
	return err
}

// DatabaseInfo is one row of a per-platform database listing.
type DatabaseInfo struct {
	Name string
	Type string // "main" or "tenant"
}

// ListDatabases queries pg_database for names starting with "<platform>_".
func (a *Admin) ListDatabases(ctx context.Context, platform string) ([]DatabaseInfo, error) {
	// Escape LIKE metacharacters so "_" in the prefix matches only itself.
	prefix := strings.NewReplacer(`\`, `\\`, `_`, `\_`, `%`, `\%`).Replace(platform + "_")
	rows, err := a.adminDB.QueryContext(ctx,
		"SELECT datname FROM pg_database WHERE datname LIKE $1", prefix+`%`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DatabaseInfo
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		kind := "tenant"
		if name == platform+"_main" {
			kind = "main"
		}
		out = append(out, DatabaseInfo{Name: name, Type: kind})
	}
	return out, rows.Err()
}

// Health is the /health response shape.
type Health struct {
	Status            string
	PostgresConnected bool
	ActivePools       int
	TotalConnections  int
	UptimeSeconds     int64
	Version           string
}

// Snapshot builds a Health reading against the admin connection and the
// pool manager.
func (a *Admin) Snapshot(ctx context.Context) Health {
	connected := a.adminDB.PingContext(ctx) == nil
	status := "ok"
	if !connected {
		status = "degraded"
	}

	return Health{
		Status:            status,
		PostgresConnected: connected,
		ActivePools:       a.pools.ActivePools(),
		TotalConnections:  a.pools.TotalConnections(),
		UptimeSeconds:     int64(time.Since(a.startedAt).Seconds()),
		Version:           a.version,
	}
}
