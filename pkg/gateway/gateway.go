// SPDX-License-Identifier: Apache-2.0

// Package gateway wires every component into the operations the external
// front-end calls: register, migrate, call, platform management, database
// admin, and health. It is the single entry point embedders construct,
// following the shape of the teacher's pkg/roll.Roll.
package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/admin"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/bundle"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/config"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/differ"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/glog"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/invoke"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/pool"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/reconcile"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/registry"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/router"
)

// Gateway is the core's single entry point: every external operation named
// in the design (register, migrate, call, platform registration, schema
// storage, database admin, health) is a method on this type.
type Gateway struct {
	cfg        config.Config
	log        glog.Logger
	registry   *registry.Registry
	pools      *pool.Manager
	admin      *admin.Admin
	reconciler *reconcile.Reconciler
}

// New wires up a Gateway from cfg. It opens the admin connection eagerly
// (CREATE/DROP DATABASE and pg_database listings always use it) but every
// per-database pool is created lazily by the pool manager.
func New(cfg config.Config, log glog.Logger, version string) (*Gateway, error) {
	adminDB, err := sql.Open("postgres", cfg.AdminDatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening admin connection: %w", err)
	}

	reg := registry.New(cfg.DataDir)
	pools := pool.New(cfg, reg, log)
	adm := admin.New(adminDB, pools, version)

	return &Gateway{
		cfg:        cfg,
		log:        log,
		registry:   reg,
		pools:      pools,
		admin:      adm,
		reconciler: reconcile.New(log),
	}, nil
}

// Close releases every open pool.
func (g *Gateway) Close() error {
	return g.pools.Close()
}

// SeederReport is one seeder's outcome in a /register response.
type SeederReport struct {
	Table    string
	Inserted bool
}

// RegisterResult is the /register success response shape.
type RegisterResult struct {
	Database            string
	ExtensionsInstalled []string
	TypesDeployed       []string
	MigrationsApplied   []string
	FunctionsDeployed   []string
	Seeders             []SeederReport
	ExecutionTime       time.Duration
}

// Register performs a fresh deploy: the database is created if absent
// (DatabaseAlreadyExists if it already exists), every phase runs, and
// seeders run-if-empty.
func (g *Gateway) Register(ctx context.Context, platform, tenant, schemaRoot string) (*RegisterResult, error) {
	start := time.Now()
	database := router.Route(platform, tenant)

	if _, err := g.registry.EnsureExists(platform); err != nil {
		return nil, err
	}

	if err := g.admin.CreateDatabase(ctx, database); err != nil {
		return nil, err
	}

	desired, err := bundle.Load(schemaRoot)
	if err != nil {
		return nil, err
	}

	conn, err := g.pools.Get(ctx, database)
	if err != nil {
		return nil, err
	}

	result, err := g.reconciler.Apply(ctx, conn, database, desired, true, false)
	if err != nil {
		return nil, err
	}

	if err := g.registry.RecordDatabase(platform, database, ""); err != nil {
		return nil, err
	}

	seederReports := make([]SeederReport, len(result.SeederValidations))
	for i, v := range result.SeederValidations {
		seederReports[i] = SeederReport{Table: v.Table, Inserted: true}
	}

	return &RegisterResult{
		Database:            database,
		ExtensionsInstalled: result.ExtensionsInstalled,
		TypesDeployed:       result.TypesDeployed,
		MigrationsApplied:   result.MigrationsApplied,
		FunctionsDeployed:   result.FunctionsDeployed,
		Seeders:             seederReports,
		ExecutionTime:       time.Since(start),
	}, nil
}

// MigrateResult is the /migrate success response shape for one database.
type MigrateResult struct {
	Database          string
	Err               error
	MigrationsApplied []string
	FunctionsUpdated  []string
	FunctionsSkipped  int
	SeederValidations []reconcile.SeederValidation
	Plan              *differ.Plan
}

// MigrateOneResult is the overall /migrate response: one reconcile result
// per targeted database. Schema-validation buckets are reported per database
// in MigrateResult.Plan; no aggregate counts are computed.
type MigrateOneResult struct {
	DatabasesUpdated []string
	PerDatabase      []MigrateResult
	ExecutionTime    time.Duration
}

// Migrate reconciles an existing database (tenant non-empty or main) to
// desired. If tenant is empty, every database whose name begins with
// "<platform>_" is reconciled in sequence; a failure on one database
// records the error but does not stop the rest.
func (g *Gateway) Migrate(ctx context.Context, platform, tenant, schemaRoot string, force bool) (*MigrateOneResult, error) {
	start := time.Now()

	desired, err := bundle.Load(schemaRoot)
	if err != nil {
		return nil, err
	}

	var targets []string
	if tenant != "" {
		targets = []string{router.Route(platform, tenant)}
	} else {
		infos, err := g.admin.ListDatabases(ctx, platform)
		if err != nil {
			return nil, err
		}
		for _, i := range infos {
			targets = append(targets, i.Name)
		}
	}

	overall := &MigrateOneResult{}
	for _, database := range targets {
		mr := g.migrateOne(ctx, database, desired, force)
		overall.PerDatabase = append(overall.PerDatabase, mr)
		if mr.Err == nil {
			overall.DatabasesUpdated = append(overall.DatabasesUpdated, database)
		}
	}
	overall.ExecutionTime = time.Since(start)
	return overall, nil
}

func (g *Gateway) migrateOne(ctx context.Context, database string, desired gwschema.DesiredState, force bool) MigrateResult {
	conn, err := g.pools.Get(ctx, database)
	if err != nil {
		return MigrateResult{Database: database, Err: err}
	}

	result, err := g.reconciler.Apply(ctx, conn, database, desired, false, force)
	if err != nil {
		return MigrateResult{Database: database, Err: err}
	}

	return MigrateResult{
		Database:          database,
		MigrationsApplied: result.MigrationsApplied,
		FunctionsUpdated:  result.FunctionsDeployed,
		FunctionsSkipped:  result.FunctionsSkipped,
		SeederValidations: result.SeederValidations,
		Plan:              result.Plan,
	}
}

// CallResult is the /call success response shape.
type CallResult struct {
	Rows          []map[string]any
	RowCount      int
	ExecutionTime time.Duration
}

// Call routes (platform, tenant) to a database and invokes function with
// params.
func (g *Gateway) Call(ctx context.Context, platform, tenant, function string, params []any) (*CallResult, error) {
	start := time.Now()
	database := router.Route(platform, tenant)

	if err := router.Authorize(platform, database); err != nil {
		return nil, err
	}

	conn, err := g.pools.Get(ctx, database)
	if err != nil {
		return nil, err
	}

	result, err := invoke.Call(ctx, conn, function, params)
	if err != nil {
		return nil, err
	}

	return &CallResult{Rows: result.Rows, RowCount: result.RowCount, ExecutionTime: time.Since(start)}, nil
}

// RegisterPlatform registers a new platform, optionally with dedicated
// database credentials.
func (g *Gateway) RegisterPlatform(name, dbUser, dbPassword string) (registry.Platform, error) {
	return g.registry.Register(name, dbUser, dbPassword)
}

// StorePlatformSchema stores a named bundle under platform, overwriting
// any prior version with the same name.
func (g *Gateway) StorePlatformSchema(platform, schemaName, bundleRoot string) error {
	return g.registry.StoreSchema(platform, schemaName, bundleRoot)
}

// ListPlatforms returns every registered platform.
func (g *Gateway) ListPlatforms() ([]registry.Platform, error) {
	return g.registry.List()
}

// CreateDatabase creates <platform>_main or <platform>_<tenant> via the
// admin connection and records it under platform in the registry.
func (g *Gateway) CreateDatabase(ctx context.Context, platform, tenant, schemaName string) (string, error) {
	database := router.Route(platform, tenant)
	if _, err := g.registry.EnsureExists(platform); err != nil {
		return "", err
	}
	if err := g.admin.CreateDatabase(ctx, database); err != nil {
		return "", err
	}
	if err := g.registry.RecordDatabase(platform, database, schemaName); err != nil {
		return "", err
	}
	return database, nil
}

// ListDatabases lists databases belonging to platform.
func (g *Gateway) ListDatabases(ctx context.Context, platform string) ([]admin.DatabaseInfo, error) {
	return g.admin.ListDatabases(ctx, platform)
}

// Health returns the current health snapshot.
func (g *Gateway) Health(ctx context.Context) admin.Health {
	return g.admin.Snapshot(ctx)
}

// SchemaPath resolves a stored schema's postgresql/ root, failing with
// PlatformNotFound if platform is unknown.
func (g *Gateway) SchemaPath(platform, schemaName string) (string, error) {
	if _, err := g.registry.Get(platform); err != nil {
		return "", err
	}
	return g.registry.SchemaPath(platform, schemaName), nil
}
