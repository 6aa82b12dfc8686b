// SPDX-License-Identifier: Apache-2.0

// Package registry is the durable on-disk platform registry: one directory
// per platform holding platform.json and a schemas/<name>/postgresql/...
// tree per stored bundle. It is the source of truth for platform metadata
// and named schema storage; it is never the source of truth for what is
// actually deployed inside a database (the tracking tables are).
package registry

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/nullable"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
)

// DatabaseRecord is one entry in Platform.Databases: the database the
// platform owns and which stored schema it was last reconciled against.
// StampID is a fresh UUID minted every time the record is written, so two
// RecordDatabase calls for the same database are distinguishable in
// external logs even when AppliedSchema is unchanged.
type DatabaseRecord struct {
	CreatedAt     time.Time `json:"created_at"`
	AppliedSchema string    `json:"applied_schema,omitempty"`
	StampID       string    `json:"stamp_id,omitempty"`
}

// Platform is the persisted shape of platform.json. DBUser and DBPassword
// are Nullable so the registry can tell "no dedicated credentials were ever
// given" (unspecified, the common case) apart from "credentials were
// explicitly cleared" (explicit null), which a plain string cannot express.
type Platform struct {
	Name         string                    `json:"name"`
	RegisteredAt time.Time                 `json:"registered_at"`
	Schemas      []string                  `json:"schemas"`
	Databases    map[string]DatabaseRecord `json:"databases"`
	DBUser       nullable.Nullable[string] `json:"db_user,omitzero"`
	DBPassword   nullable.Nullable[string] `json:"db_password,omitzero"`
}

// HasDedicatedCredentials reports whether p carries its own, non-empty
// db_user.
func (p Platform) HasDedicatedCredentials() bool {
	user, ok := p.DBUser.Get()
	return ok && user != ""
}

// DBUserString and DBPasswordString return the plain credential values,
// empty if unspecified or explicitly null. Callers that need a DSN
// (pkg/pool) don't care about the three-state distinction, only the value.
func (p Platform) DBUserString() string {
	v, _ := p.DBUser.Get()
	return v
}

func (p Platform) DBPasswordString() string {
	v, _ := p.DBPassword.Get()
	return v
}

// nullableString wraps s as a Nullable: unspecified if empty, a value
// otherwise. Registration never needs to express "explicit null" from a
// plain string API (cobra flags can't distinguish absent from empty
// either), so empty always means unspecified.
func nullableString(s string) nullable.Nullable[string] {
	if s == "" {
		return nullable.Nullable[string]{}
	}
	return nullable.NewNullableWithValue(s)
}

// Registry reads and writes the on-disk platform registry rooted at Dir.
type Registry struct {
	Dir string
}

// New returns a Registry rooted at dataDir.
func New(dataDir string) *Registry {
	return &Registry{Dir: dataDir}
}

func (r *Registry) platformDir(name string) string {
	return filepath.Join(r.Dir, name)
}

func (r *Registry) platformFile(name string) string {
	return filepath.Join(r.platformDir(name), "platform.json")
}

func (r *Registry) schemaDir(platform, schemaName string) string {
	return filepath.Join(r.platformDir(platform), "schemas", schemaName, "postgresql")
}

// Register creates a new platform, failing with PlatformAlreadyExists if
// the name is already registered.
func (r *Registry) Register(name, dbUser, dbPassword string) (Platform, error) {
	if _, err := os.Stat(r.platformFile(name)); err == nil {
		return Platform{}, gwerrors.PlatformAlreadyExists{Platform: name}
	}

	p := Platform{
		Name:         name,
		RegisteredAt: nowFunc(),
		Schemas:      []string{},
		Databases:    map[string]DatabaseRecord{},
		DBUser:       nullableString(dbUser),
		DBPassword:   nullableString(dbPassword),
	}

	if err := os.MkdirAll(r.platformDir(name), 0o755); err != nil {
		return Platform{}, err
	}
	if err := r.writePlatform(p); err != nil {
		return Platform{}, err
	}
	return p, nil
}

// Get loads a single platform's metadata.
func (r *Registry) Get(name string) (Platform, error) {
	return r.readPlatform(name)
}

// EnsureExists returns platform's metadata, registering it with no
// dedicated credentials if it has never been seen before. /register and
// /database/create accept a platform name without requiring a prior
// /platform/register call; dedicated credentials are layered on later by
// an explicit registration.
func (r *Registry) EnsureExists(name string) (Platform, error) {
	p, err := r.readPlatform(name)
	if err == nil {
		return p, nil
	}

	var notFound gwerrors.PlatformNotFound
	if !errors.As(err, &notFound) {
		return Platform{}, err
	}

	p, err = r.Register(name, "", "")
	var alreadyExists gwerrors.PlatformAlreadyExists
	if errors.As(err, &alreadyExists) {
		return r.readPlatform(name)
	}
	return p, err
}

// List returns every registered platform's metadata, sorted by name.
func (r *Registry) List() ([]Platform, error) {
	entries, err := os.ReadDir(r.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Platform
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := r.readPlatform(e.Name())
		if err != nil {
			continue // directory without a valid platform.json is not a platform
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a platform's directory. Fails if it still owns databases,
// since dropping the metadata out from under a live database would orphan
// it from the registry's point of view.
func (r *Registry) Delete(name string) error {
	p, err := r.readPlatform(name)
	if err != nil {
		return err
	}
	if len(p.Databases) > 0 {
		return gwerrors.BundleMalformed{Path: name, Reason: "platform still owns databases; drop them first"}
	}
	return os.RemoveAll(r.platformDir(name))
}

// manifest is the persisted shape of a stored schema's manifest.json,
// written alongside the copied bundle tree so the registry can later prove
// when and as what a given schema name was stored.
type manifest struct {
	ID         string    `json:"id"`
	SchemaName string    `json:"schema_name"`
	StoredAt   time.Time `json:"stored_at"`
}

func (r *Registry) manifestFile(platform, schemaName string) string {
	return filepath.Join(r.platformDir(platform), "schemas", schemaName, "manifest.json")
}

// StoreSchema writes bundleRoot's contents under platform's schemas/name
// directory, overwriting any prior version stored under the same name, and
// writes a validated manifest.json recording when it was stored.
func (r *Registry) StoreSchema(platform, schemaName, bundleRoot string) error {
	return r.withLock(platform, func(p Platform) (Platform, error) {
		dest := r.schemaDir(platform, schemaName)
		if err := os.RemoveAll(dest); err != nil {
			return p, err
		}
		if err := copyTree(bundleRoot, dest); err != nil {
			return p, err
		}

		m := manifest{ID: uuid.NewString(), SchemaName: schemaName, StoredAt: nowFunc()}
		raw, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return p, err
		}
		if err := validateJSON(manifestSchema, r.manifestFile(platform, schemaName), raw); err != nil {
			return p, err
		}
		if err := os.WriteFile(r.manifestFile(platform, schemaName), raw, 0o644); err != nil {
			return p, err
		}

		found := false
		for _, s := range p.Schemas {
			if s == schemaName {
				found = true
				break
			}
		}
		if !found {
			p.Schemas = append(p.Schemas, schemaName)
			sort.Strings(p.Schemas)
		}
		return p, nil
	})
}

// SchemaPath returns the on-disk postgresql/ root for a stored schema.
func (r *Registry) SchemaPath(platform, schemaName string) string {
	return r.schemaDir(platform, schemaName)
}

// RecordDatabase records that database was created under platform, most
// recently reconciled against appliedSchema.
func (r *Registry) RecordDatabase(platform, database, appliedSchema string) error {
	return r.withLock(platform, func(p Platform) (Platform, error) {
		p.Databases[database] = DatabaseRecord{
			CreatedAt:     nowFunc(),
			AppliedSchema: appliedSchema,
			StampID:       uuid.NewString(),
		}
		return p, nil
	})
}

func (r *Registry) readPlatform(name string) (Platform, error) {
	path := r.platformFile(name)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Platform{}, gwerrors.PlatformNotFound{Platform: name}
	}
	if err != nil {
		return Platform{}, err
	}
	if err := validateJSON(platformSchema, path, raw); err != nil {
		return Platform{}, err
	}
	var p Platform
	if err := json.Unmarshal(raw, &p); err != nil {
		return Platform{}, err
	}
	if p.Databases == nil {
		p.Databases = map[string]DatabaseRecord{}
	}
	return p, nil
}

// writePlatform writes p atomically: write-temp then rename. The document is
// validated against the platform schema before it touches disk, so a future
// readPlatform of our own output never fails validation.
func (r *Registry) writePlatform(p Platform) error {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := validateJSON(platformSchema, r.platformFile(p.Name), raw); err != nil {
		return err
	}

	path := r.platformFile(p.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// nowFunc is indirected so tests can pin timestamps; production code always
// uses time.Now.
var nowFunc = func() time.Time { return time.Now() }
