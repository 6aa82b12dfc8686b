// SPDX-License-Identifier: Apache-2.0

// Package gwerrors defines the gateway's error taxonomy: one typed struct
// per semantic failure mode named in the design, so callers can
// distinguish them with errors.As instead of matching strings.
package gwerrors

import "fmt"

// BundleMalformed means the extracted postgresql/ tree could not be parsed
// into a Desired State. The deploy is rejected wholesale.
type BundleMalformed struct {
	Path   string
	Reason string
}

func (e BundleMalformed) Error() string {
	return fmt.Sprintf("bundle malformed at %q: %s", e.Path, e.Reason)
}

// ParseFailed means the SQL surface parser could not extract the structure
// it needs from a single artifact.
type ParseFailed struct {
	Artifact string
	Reason   string
}

func (e ParseFailed) Error() string {
	return fmt.Sprintf("failed to parse %q: %s", e.Artifact, e.Reason)
}

// CyclicSchema means the declared tables' foreign-key graph contains a
// cycle, so no creation order exists.
type CyclicSchema struct {
	Cycle []string
}

func (e CyclicSchema) Error() string {
	return fmt.Sprintf("cyclic foreign key dependency: %v", e.Cycle)
}

// SchemaIncompatible means a proposed change falls outside the
// type-compatibility matrix or changes a type/enum body in a way that
// cannot be auto-applied. Always blocks, force or not.
type SchemaIncompatible struct {
	Changes []IncompatibleChange
}

type IncompatibleChange struct {
	Entity     string
	Name       string
	Reason     string
	FromType   string
	ToType     string
}

func (e SchemaIncompatible) Error() string {
	return fmt.Sprintf("%d incompatible schema change(s)", len(e.Changes))
}

// SchemaDataLoss means a destructive change was detected. Blocks unless the
// caller set force=true.
type SchemaDataLoss struct {
	Changes []DataLossChange
}

type DataLossChange struct {
	Table      string
	Column     string
	ChangeType string
}

func (e SchemaDataLoss) Error() string {
	return fmt.Sprintf("%d data-loss schema change(s) require force=true", len(e.Changes))
}

// CorruptedHistory means a migration filename already recorded in the
// tracking table now has a different checksum than the one on disk.
type CorruptedHistory struct {
	Filename         string
	RecordedChecksum string
	LocalChecksum    string
}

func (e CorruptedHistory) Error() string {
	return fmt.Sprintf("migration %q checksum mismatch: recorded=%q local=%q", e.Filename, e.RecordedChecksum, e.LocalChecksum)
}

// MigrationFailed means a DDL statement inside a migration failed; the
// migration's transaction was rolled back and its tracking row was never
// inserted.
type MigrationFailed struct {
	Filename string
	Cause    error
}

func (e MigrationFailed) Error() string {
	return fmt.Sprintf("migration %q failed: %v", e.Filename, e.Cause)
}

func (e MigrationFailed) Unwrap() error {
	return e.Cause
}

// SeederValidationFailed means a reconcile found fewer rows in a seeded
// table than the bundle declares should be there after seeding.
type SeederValidationFailed struct {
	Table    string
	Expected int
	Found    int
}

func (e SeederValidationFailed) Error() string {
	return fmt.Sprintf("seeder validation failed for table %q: expected at least %d rows, found %d", e.Table, e.Expected, e.Found)
}

// DatabaseAlreadyExists means a fresh-deploy or create-database call
// targeted a database name that already exists.
type DatabaseAlreadyExists struct {
	Database string
}

func (e DatabaseAlreadyExists) Error() string {
	return fmt.Sprintf("database %q already exists", e.Database)
}

// DatabaseNotFound means a reconcile-existing or call targeted a database
// that has not been created yet.
type DatabaseNotFound struct {
	Database string
}

func (e DatabaseNotFound) Error() string {
	return fmt.Sprintf("database %q not found", e.Database)
}

// PoolExhausted means a global cap (max_pools or max_total_connections)
// would be exceeded. Transient: a retry after an eviction may succeed.
type PoolExhausted struct {
	Database string
	Reason   string
}

func (e PoolExhausted) Error() string {
	return fmt.Sprintf("pool exhausted for database %q: %s", e.Database, e.Reason)
}

// ConnectionFailed means a network or authentication error occurred talking
// to PostgreSQL.
type ConnectionFailed struct {
	Database string
	Cause    error
}

func (e ConnectionFailed) Error() string {
	return fmt.Sprintf("connection to database %q failed: %v", e.Database, e.Cause)
}

func (e ConnectionFailed) Unwrap() error {
	return e.Cause
}

// FunctionCallFailed means PostgreSQL raised an error executing a stored
// function invocation.
type FunctionCallFailed struct {
	Function string
	Cause    error
}

func (e FunctionCallFailed) Error() string {
	return fmt.Sprintf("function %q call failed: %v", e.Function, e.Cause)
}

func (e FunctionCallFailed) Unwrap() error {
	return e.Cause
}

// Unauthorized means a caller-supplied platform name does not match the
// prefix of the database it is trying to reach.
type Unauthorized struct {
	Platform string
	Database string
}

func (e Unauthorized) Error() string {
	return fmt.Sprintf("platform %q is not authorized to access database %q", e.Platform, e.Database)
}

// PlatformAlreadyExists means a platform registration targeted a name that
// is already registered.
type PlatformAlreadyExists struct {
	Platform string
}

func (e PlatformAlreadyExists) Error() string {
	return fmt.Sprintf("platform %q already exists", e.Platform)
}

// PlatformNotFound means an operation targeted a platform that has not been
// registered.
type PlatformNotFound struct {
	Platform string
}

func (e PlatformNotFound) Error() string {
	return fmt.Sprintf("platform %q not found", e.Platform)
}

// InvalidMigrationOrder means the local migration files on disk diverge
// from the order already recorded in the tracking table.
type InvalidMigrationOrder struct {
	Filename string
	Reason   string
}

func (e InvalidMigrationOrder) Error() string {
	return fmt.Sprintf("migration %q is out of order: %s", e.Filename, e.Reason)
}

// RegistryCorrupt means an on-disk registry file (platform.json or a stored
// schema's manifest.json) failed JSON-schema validation before the registry
// would trust it.
type RegistryCorrupt struct {
	Path   string
	Reason string
}

func (e RegistryCorrupt) Error() string {
	return fmt.Sprintf("registry file %q failed validation: %s", e.Path, e.Reason)
}
