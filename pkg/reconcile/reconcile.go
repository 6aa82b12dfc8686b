// SPDX-License-Identifier: Apache-2.0

// Package reconcile applies a Schema Differ plan against a single database
// in the fixed phase order the design requires: extensions, types,
// tables & migrations, functions, seeders. Every change it makes is
// recorded in the gateway's tracking tables and changelog.
package reconcile

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/depgraph"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/differ"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

// SeederValidation reports one seeder's row-count check during a reconcile
// of an existing database.
type SeederValidation struct {
	Table    string
	Expected int
	Found    int
}

// Result summarizes what a reconcile actually did, for the /register and
// /migrate response shapes.
type Result struct {
	ExtensionsInstalled []string
	TypesDeployed       []string
	MigrationsApplied   []string
	FunctionsDeployed   []string
	FunctionsSkipped    int
	SeederValidations   []SeederValidation
	Plan                *differ.Plan
}

// Reconciler applies plans to databases. It holds no per-database state;
// all of that lives in the tracking tables it reads and writes.
type Reconciler struct {
	log glog.Logger
}

// New returns a Reconciler that logs through log. Pass glog.NewNoop() in
// tests that don't care about log output.
func New(log glog.Logger) *Reconciler {
	return &Reconciler{log: log}
}

// lockNamespace salts the database-name -> advisory-lock-key derivation so
// the resulting UUIDv5 space is private to this gateway rather than
// colliding with some other subsystem's SHA-1-of-a-name scheme.
var lockNamespace = uuid.MustParse("9b1f1e3e-9e4b-4c2e-8a7f-5f6f2c6c9d20")

// lockKey derives a stable advisory-lock key from a database name so
// concurrent reconciliations of the same database serialize. The name is
// folded through a namespaced UUIDv5 rather than hashed directly, so the
// same derivation could in principle be reused to key other per-database
// namespaced identifiers without risking collision with the lock keyspace.
func lockKey(database string) int64 {
	id := uuid.NewSHA1(lockNamespace, []byte(database))
	return int64(binary.BigEndian.Uint64(id[:8]))
}

// Plan computes, but does not apply, the change plan for desired against
// database's current observed state. Callers use this for the dry-run half
// of the Loaded -> Parsed -> Diffed -> (Blocked | Planned) state machine.
func (r *Reconciler) Plan(ctx context.Context, conn db.DB, desired gwschema.DesiredState, firstTimeDeploy bool) (*differ.Plan, error) {
	if err := gwschema.InitTracking(ctx, conn); err != nil {
		return nil, err
	}
	obs, err := gwschema.ReadObserved(ctx, conn)
	if err != nil {
		return nil, err
	}
	return differ.Diff(desired, obs, firstTimeDeploy), nil
}

// Apply reconciles database to desired. force permits data-loss changes to
// proceed; incompatible changes and corrupted history always block
// regardless of force.
func (r *Reconciler) Apply(ctx context.Context, conn *db.RDB, database string, desired gwschema.DesiredState, firstTimeDeploy bool, force bool) (*Result, error) {
	r.log.LogReconcileStart(database)

	if err := gwschema.InitTracking(ctx, conn); err != nil {
		return nil, err
	}

	var result *Result
	err := conn.WithAdvisoryLock(ctx, lockKey(database), func(ctx context.Context) error {
		obs, err := gwschema.ReadObserved(ctx, conn)
		if err != nil {
			return err
		}

		plan := differ.Diff(desired, obs, firstTimeDeploy)
		if plan.Blocked(force) {
			r.log.LogReconcileBlocked(database, len(plan.DataLoss), len(plan.Incompatible)+len(plan.CorruptedHistory))
			return blockedError(plan)
		}

		result, err = r.applyPlan(ctx, conn, database, desired, obs, plan, firstTimeDeploy, force)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.log.LogReconcileComplete(database)
	return result, nil
}

func blockedError(plan *differ.Plan) error {
	if len(plan.CorruptedHistory) > 0 {
		c := plan.CorruptedHistory[0]
		return gwerrors.CorruptedHistory{Filename: c.Name}
	}
	if len(plan.Incompatible) > 0 {
		changes := make([]gwerrors.IncompatibleChange, 0, len(plan.Incompatible))
		for _, c := range plan.Incompatible {
			changes = append(changes, gwerrors.IncompatibleChange{Entity: c.Entity, Name: c.Name, Reason: c.Detail})
		}
		return gwerrors.SchemaIncompatible{Changes: changes}
	}
	changes := make([]gwerrors.DataLossChange, 0, len(plan.DataLoss))
	for _, c := range plan.DataLoss {
		changes = append(changes, gwerrors.DataLossChange{Table: c.Name, ChangeType: string(c.Action)})
	}
	return gwerrors.SchemaDataLoss{Changes: changes}
}

func (r *Reconciler) applyPlan(
	ctx context.Context,
	conn *db.RDB,
	database string,
	desired gwschema.DesiredState,
	obs *gwschema.ObservedState,
	plan *differ.Plan,
	firstTimeDeploy, force bool,
) (*Result, error) {
	result := &Result{Plan: plan}

	r.log.LogPhaseStart(database, "extensions")
	if err := r.applyExtensions(ctx, conn, desired.Extensions, obs, force, result); err != nil {
		return nil, err
	}
	r.log.LogPhaseComplete(database, "extensions")

	r.log.LogPhaseStart(database, "types")
	if err := r.applyTypes(ctx, conn, desired.Types, obs, force, result); err != nil {
		return nil, err
	}
	r.log.LogPhaseComplete(database, "types")

	r.log.LogPhaseStart(database, "tables_and_migrations")
	if err := r.applyTablesAndMigrations(ctx, conn, desired, obs, force, result); err != nil {
		return nil, err
	}
	r.log.LogPhaseComplete(database, "tables_and_migrations")

	r.log.LogPhaseStart(database, "functions")
	if err := r.applyFunctions(ctx, conn, desired.Functions, obs, force, result); err != nil {
		return nil, err
	}
	r.log.LogPhaseComplete(database, "functions")

	r.log.LogPhaseStart(database, "seeders")
	if err := r.applySeeders(ctx, conn, desired.Seeders, firstTimeDeploy, force, result); err != nil {
		return nil, err
	}
	r.log.LogPhaseComplete(database, "seeders")

	return result, nil
}

func (r *Reconciler) applyExtensions(ctx context.Context, conn *db.RDB, extensions []gwschema.Extension, obs *gwschema.ObservedState, force bool, result *Result) error {
	for _, e := range extensions {
		if obs.Extensions[e.Name] {
			continue
		}
		stmt := fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", pq.QuoteIdentifier(e.Name))
		if e.Schema != "" {
			stmt += fmt.Sprintf(" WITH SCHEMA %s", pq.QuoteIdentifier(e.Schema))
		}
		if e.Version != "" {
			stmt += fmt.Sprintf(" VERSION %s", pq.QuoteLiteral(e.Version))
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("installing extension %q: %w", e.Name, err)
		}
		if _, err := gwschema.InsertChangelog(ctx, conn, gwschema.ChangeExtensionInstalled, e.Name, e, force); err != nil {
			return err
		}
		r.log.LogChange("", string(gwschema.ChangeExtensionInstalled), e.Name, force)
		result.ExtensionsInstalled = append(result.ExtensionsInstalled, e.Name)
	}
	return nil
}

func (r *Reconciler) applyTypes(ctx context.Context, conn *db.RDB, types []gwschema.Type, obs *gwschema.ObservedState, force bool, result *Result) error {
	for _, t := range types {
		if recorded, exists := obs.Types[t.Name]; exists {
			_ = recorded // checksum mismatch already blocked the whole apply upstream
			continue
		}
		if _, err := conn.ExecContext(ctx, t.BodyText); err != nil {
			return fmt.Errorf("deploying type %q: %w", t.Name, err)
		}
		if err := gwschema.RecordType(ctx, conn, t.Name, t.Checksum); err != nil {
			return err
		}
		if _, err := gwschema.InsertChangelog(ctx, conn, gwschema.ChangeTypeDeployed, t.Name, t, force); err != nil {
			return err
		}
		r.log.LogChange("", string(gwschema.ChangeTypeDeployed), t.Name, force)
		result.TypesDeployed = append(result.TypesDeployed, t.Name)
	}
	return nil
}

func (r *Reconciler) applyTablesAndMigrations(ctx context.Context, conn *db.RDB, desired gwschema.DesiredState, obs *gwschema.ObservedState, force bool, result *Result) error {
	ordered, err := depgraph.Order(desired.Tables)
	if err != nil {
		return err
	}

	for _, t := range ordered {
		observed, exists := obs.Tables[t.Name]
		if exists && observed != nil && len(observed.Columns) > 0 {
			continue
		}
		stmt := t.BodyText
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %q: %w", t.Name, err)
		}
	}

	migrations := append([]gwschema.Migration(nil), desired.Migrations...)
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Filename < migrations[j].Filename })

	for _, m := range migrations {
		if recorded, applied := obs.Migrations[m.Filename]; applied {
			if recorded != m.Checksum {
				return gwerrors.CorruptedHistory{Filename: m.Filename, RecordedChecksum: recorded, LocalChecksum: m.Checksum}
			}
			continue
		}
		if err := r.applyOneMigration(ctx, conn, m); err != nil {
			return err
		}
		if _, err := gwschema.InsertChangelog(ctx, conn, gwschema.ChangeMigrationApplied, m.Filename, m, force); err != nil {
			return err
		}
		r.log.LogChange("", string(gwschema.ChangeMigrationApplied), m.Filename, force)
		result.MigrationsApplied = append(result.MigrationsApplied, m.Filename)
	}

	for _, t := range desired.Tables {
		if err := gwschema.RecordTable(ctx, conn, t.Name, t.Checksum); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reconciler) applyOneMigration(ctx context.Context, conn *db.RDB, m gwschema.Migration) error {
	err := conn.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.BodyText); err != nil {
			return err
		}
		return gwschema.RecordMigration(ctx, tx, m.Filename, m.Checksum)
	})
	if err != nil {
		return gwerrors.MigrationFailed{Filename: m.Filename, Cause: err}
	}
	return nil
}

func (r *Reconciler) applyFunctions(ctx context.Context, conn *db.RDB, functions []gwschema.Function, obs *gwschema.ObservedState, force bool, result *Result) error {
	desiredKeys := map[string]bool{}
	for _, f := range functions {
		desiredKeys[gwschema.FunctionKey(f.Name, f.ParamTypes)] = true
	}

	for _, f := range functions {
		key := gwschema.FunctionKey(f.Name, f.ParamTypes)

		tracked, exists := obs.Functions[key]
		if exists && tracked.Checksum == f.Checksum {
			result.FunctionsSkipped++
			continue
		}

		if oldSig, ok := otherSignature(obs, f.Name, f.ParamTypes, desiredKeys); ok {
			if err := r.dropFunction(ctx, conn, f.Name, oldSig); err != nil {
				return err
			}
		}

		stmt := f.BodyText
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return gwerrors.MigrationFailed{Filename: f.Name, Cause: err}
		}
		if err := gwschema.RecordFunction(ctx, conn, f.Name, f.ParamTypes, f.Checksum); err != nil {
			return err
		}
		if _, err := gwschema.InsertChangelog(ctx, conn, gwschema.ChangeFunctionDeployed, key, f, force); err != nil {
			return err
		}
		r.log.LogChange("", string(gwschema.ChangeFunctionDeployed), key, force)
		result.FunctionsDeployed = append(result.FunctionsDeployed, key)
	}

	for key, f := range obs.Functions {
		if desiredKeys[key] {
			continue
		}
		if err := r.dropFunction(ctx, conn, f.Name, f.Signature); err != nil {
			return err
		}
		if _, err := gwschema.InsertChangelog(ctx, conn, gwschema.ChangeFunctionDropped, key, f, force); err != nil {
			return err
		}
		r.log.LogChange("", string(gwschema.ChangeFunctionDropped), key, force)
	}

	return nil
}

func otherSignature(obs *gwschema.ObservedState, name string, sig gwschema.Signature, desiredKeys map[string]bool) (gwschema.Signature, bool) {
	want := gwschema.FunctionKey(name, sig)
	for key, f := range obs.Functions {
		if f.Name == name && key != want && !desiredKeys[key] {
			return f.Signature, true
		}
	}
	return nil, false
}

func (r *Reconciler) dropFunction(ctx context.Context, conn *db.RDB, name string, sig gwschema.Signature) error {
	stmt := fmt.Sprintf("DROP FUNCTION IF EXISTS %s(%s)", pq.QuoteIdentifier(name), sig.String())
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("dropping function %q(%s): %w", name, sig.String(), err)
	}
	return gwschema.DeleteFunction(ctx, conn, name, sig)
}

func (r *Reconciler) applySeeders(ctx context.Context, conn *db.RDB, seeders []gwschema.Seeder, firstTimeDeploy, force bool, result *Result) error {
	for _, s := range seeders {
		count, err := countRows(ctx, conn, s.Table)
		if err != nil {
			return err
		}

		if firstTimeDeploy {
			if count == 0 {
				for _, stmt := range s.Statements {
					if _, err := conn.ExecContext(ctx, stmt); err != nil {
						return fmt.Errorf("running seeder for table %q: %w", s.Table, err)
					}
				}
				if _, err := gwschema.InsertChangelog(ctx, conn, gwschema.ChangeSeederRun, s.Table, s, force); err != nil {
					return err
				}
				r.log.LogChange("", string(gwschema.ChangeSeederRun), s.Table, force)
			}
			continue
		}

		if count < s.ExpectedRowCount && !force {
			return gwerrors.SeederValidationFailed{Table: s.Table, Expected: s.ExpectedRowCount, Found: count}
		}
		result.SeederValidations = append(result.SeederValidations, SeederValidation{Table: s.Table, Expected: s.ExpectedRowCount, Found: count})
		if _, err := gwschema.InsertChangelog(ctx, conn, gwschema.ChangeSeederValidated, s.Table, result.SeederValidations[len(result.SeederValidations)-1], force); err != nil {
			return err
		}
	}
	return nil
}

func countRows(ctx context.Context, conn *db.RDB, table string) (int, error) {
	row := conn.DB.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", pq.QuoteIdentifier(table)))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rows in %q: %w", table, err)
	}
	return n, nil
}
