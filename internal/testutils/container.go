// SPDX-License-Identifier: Apache-2.0

package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/connstr"
)

// defaultPostgresVersion is used when POSTGRES_VERSION is not set in the
// test environment.
const defaultPostgresVersion = "15.3"

// tConnStr holds the admin connection string to the container created in
// SharedTestMain. All tests in a package share one container and create
// their own throwaway database inside it.
var tConnStr string

// SharedTestMain starts a single postgres container for all tests in a
// package, tearing it down once every test has run.
func SharedTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(5 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		log.Printf("failed to start postgres container: %v", err)
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("failed to obtain connection string: %v", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("failed to terminate postgres container: %v", err)
	}

	os.Exit(exitCode)
}

// AdminConnectionString returns the connection string for the shared
// container's default "postgres" database, suitable for CREATE/DROP DATABASE.
func AdminConnectionString() string {
	return tConnStr
}

// WithConnectionToContainer creates a fresh, randomly-named database in the
// shared container, connects to it, and invokes fn with the connection and
// its connection string. The database is left in place for inspection after
// the test; the container itself is torn down by SharedTestMain.
func WithConnectionToContainer(t *testing.T, fn func(conn *sql.DB, connStr string)) {
	t.Helper()
	ctx := context.Background()

	admin, err := sql.Open("postgres", tConnStr)
	if err != nil {
		t.Fatalf("failed to connect to container: %v", err)
	}
	defer admin.Close()

	dbName := randomDBName()
	if _, err := admin.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	connStr, err := connstr.WithDatabase(tConnStr, dbName)
	if err != nil {
		t.Fatalf("failed to build test database connection string: %v", err)
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	defer conn.Close()

	fn(conn, connStr)
}

func randomDBName() string {
	const length = 15
	const charset = "abcdefghijklmnopqrstuvwxyz"

	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))] // #nosec G404
	}

	return "testdb_" + string(b)
}
