// SPDX-License-Identifier: Apache-2.0

// Package gwschema holds the data model shared by every reconciliation
// component: the Desired State built from a bundle (component A/B/C), the
// Observed State read back from a database's catalogue and tracking
// tables (component E), and the tracking-table row shapes the Reconciler
// writes (component F). Kept as one package, the way the teacher keeps
// Schema/Table/Column together in pkg/schema, since every later component
// operates on the same vocabulary.
package gwschema

import "strings"

// TypeKind distinguishes the three custom-type flavours the SQL surface
// parser recognizes.
type TypeKind string

const (
	TypeKindEnum      TypeKind = "enum"
	TypeKindComposite TypeKind = "composite"
	TypeKindDomain    TypeKind = "domain"
)

// Extension is a requested `CREATE EXTENSION`.
type Extension struct {
	Name    string
	Version string // optional, empty if unset
	Schema  string // optional, empty if unset
}

// Type is a declared custom type: an enum, a composite, or a domain.
type Type struct {
	Name     string
	Kind     TypeKind
	BodyText string
	Checksum string
}

// Column is one column of a declarative table.
type Column struct {
	Name         string
	DeclaredType string
	Nullable     bool
	HasDefault   bool
	PrimaryKey   bool
	References   string // target table name, empty if not an FK
}

// Table is a declarative table definition.
type Table struct {
	Name     string
	Columns  []Column
	FKRefs   map[string]bool // set of target table names
	Checksum string
	BodyText string
}

// Migration is one ordered, idempotent DDL file.
type Migration struct {
	Filename string
	BodyText string
	Checksum string
}

// Signature is the ordered tuple of parameter type names identifying a
// function overload. ParamTypes are canonicalized (lowercased, trimmed) so
// two bundles that spell a type differently still collide correctly.
type Signature []string

// String renders the signature the way it appears in `DROP FUNCTION
// name(sig)` and in tracking-table rows: a comma-joined, lowercase type
// list.
func (s Signature) String() string {
	return strings.Join(s, ",")
}

// Function is a declared stored function. Its uniqueness key is
// (Name, Signature), supporting overloads.
type Function struct {
	Name       string
	ParamTypes Signature
	BodyText   string
	Checksum   string
}

// Seeder is a set of INSERT statements targeting one table, plus the row
// count the bundle author expects to find there once seeding has run.
type Seeder struct {
	Table               string
	Statements          []string
	ExpectedRowCount    int
}

// DesiredState is the complete, typed contents of a bundle, as produced by
// the Bundle Loader (component A) after the SQL Surface Parser (component
// B) and Checksum & Normalizer (component C) have run over every artifact.
type DesiredState struct {
	Extensions []Extension
	Types      []Type
	Tables     []Table
	Migrations []Migration
	Functions  []Function
	Seeders    []Seeder
}

// FunctionKey renders the map key used for Functions uniqueness:
// (name, signature).
func FunctionKey(name string, sig Signature) string {
	return name + "(" + sig.String() + ")"
}
