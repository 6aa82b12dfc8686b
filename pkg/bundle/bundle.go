// SPDX-License-Identifier: Apache-2.0

// Package bundle walks an extracted postgresql/ tree and produces a typed
// Desired State, delegating per-artifact structure extraction to
// pkg/sqlsurface and content hashing to pkg/checksum.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/checksum"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/sqlsurface"
)

// subdirectories are the six conventional directories the loader reads.
// File extension within them is a convention only; content is parsed
// regardless of suffix.
var subdirectories = []string{"extensions", "types", "tables", "migrations", "functions", "seeders"}

// Load walks root (an extracted postgresql/ tree) and returns its Desired
// State. A missing subdirectory is treated as empty. root itself must
// exist and be readable.
func Load(root string) (gwschema.DesiredState, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return gwschema.DesiredState{}, gwerrors.BundleMalformed{Path: root, Reason: "bundle root is not a readable directory"}
	}

	var desired gwschema.DesiredState

	if desired.Extensions, err = loadExtensions(filepath.Join(root, "extensions")); err != nil {
		return gwschema.DesiredState{}, err
	}
	if desired.Types, err = loadTypes(filepath.Join(root, "types")); err != nil {
		return gwschema.DesiredState{}, err
	}
	if desired.Tables, err = loadTables(filepath.Join(root, "tables")); err != nil {
		return gwschema.DesiredState{}, err
	}
	if desired.Migrations, err = loadMigrations(filepath.Join(root, "migrations")); err != nil {
		return gwschema.DesiredState{}, err
	}
	if desired.Functions, err = loadFunctions(filepath.Join(root, "functions")); err != nil {
		return gwschema.DesiredState{}, err
	}
	if desired.Seeders, err = loadSeeders(filepath.Join(root, "seeders")); err != nil {
		return gwschema.DesiredState{}, err
	}

	return desired, nil
}

// listFiles returns the regular files directly inside dir, sorted by name,
// or an empty slice if dir does not exist.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, gwerrors.BundleMalformed{Path: dir, Reason: err.Error()}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func readFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", gwerrors.BundleMalformed{Path: path, Reason: err.Error()}
	}
	return string(raw), nil
}

func loadExtensions(dir string) ([]gwschema.Extension, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []gwschema.Extension
	for _, path := range files {
		body, err := readFile(path)
		if err != nil {
			return nil, err
		}
		ext := sqlsurface.ParseExtension(path, body)
		if ext.Name == "" {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: "extension name cannot be empty"}
		}
		if seen[ext.Name] {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: fmt.Sprintf("duplicate extension %q", ext.Name)}
		}
		if ext.Version != "" && !semver.IsValid(canonicalSemver(ext.Version)) {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: fmt.Sprintf("extension %q declares malformed version %q, want semver (e.g. 1.2.3)", ext.Name, ext.Version)}
		}
		seen[ext.Name] = true
		out = append(out, ext)
	}
	return out, nil
}

// canonicalSemver prefixes v with "v" if missing, since golang.org/x/mod/semver
// only recognizes versions written with a leading "v" ("v1.2", "v2.1.4") but
// extension authors write bare version numbers like "1.2" or "2.1.4".
func canonicalSemver(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func loadTypes(dir string) ([]gwschema.Type, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []gwschema.Type
	for _, path := range files {
		body, err := readFile(path)
		if err != nil {
			return nil, err
		}
		ty, err := sqlsurface.ParseType(path, body)
		if err != nil {
			return nil, err
		}
		if seen[ty.Name] {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: fmt.Sprintf("duplicate type %q", ty.Name)}
		}
		seen[ty.Name] = true
		ty.Checksum = checksum.Sum(body)
		out = append(out, ty)
	}
	return out, nil
}

func loadTables(dir string) ([]gwschema.Table, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []gwschema.Table
	for _, path := range files {
		body, err := readFile(path)
		if err != nil {
			return nil, err
		}
		table, err := sqlsurface.ParseTable(path, body)
		if err != nil {
			return nil, err
		}
		if seen[table.Name] {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: fmt.Sprintf("duplicate table %q", table.Name)}
		}
		seen[table.Name] = true
		table.Checksum = checksum.Sum(body)
		out = append(out, table)
	}
	return out, nil
}

func loadMigrations(dir string) ([]gwschema.Migration, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []gwschema.Migration
	for _, path := range files {
		body, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(body) == "" {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: "migration body cannot be empty"}
		}
		filename := filepath.Base(path)
		if seen[filename] {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: fmt.Sprintf("duplicate migration %q", filename)}
		}
		seen[filename] = true
		out = append(out, gwschema.Migration{
			Filename: filename,
			BodyText: body,
			Checksum: checksum.Sum(body),
		})
	}
	return out, nil
}

func loadFunctions(dir string) ([]gwschema.Function, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []gwschema.Function
	for _, path := range files {
		body, err := readFile(path)
		if err != nil {
			return nil, err
		}
		fn, err := sqlsurface.ParseFunction(path, body)
		if err != nil {
			return nil, err
		}
		key := gwschema.FunctionKey(fn.Name, fn.ParamTypes)
		if seen[key] {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: fmt.Sprintf("duplicate function %q", key)}
		}
		seen[key] = true
		fn.Checksum = checksum.Sum(body)
		out = append(out, fn)
	}
	return out, nil
}

// insertValuesRe matches the `INSERT INTO <table>` head of a seeder
// statement, used only to find the table a seeder targets. Rows are counted
// separately by countValueTuples.
var insertValuesRe = regexp.MustCompile(`(?is)insert\s+into\s+([a-zA-Z0-9_."]+)`)

func loadSeeders(dir string) ([]gwschema.Seeder, error) {
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []gwschema.Seeder
	for _, path := range files {
		body, err := readFile(path)
		if err != nil {
			return nil, err
		}

		table := seederTable(path, body)
		if table == "" {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: "seeder must target exactly one table via INSERT INTO"}
		}
		if seen[table] {
			return nil, gwerrors.BundleMalformed{Path: path, Reason: fmt.Sprintf("duplicate seeder for table %q", table)}
		}
		seen[table] = true

		statements := splitStatements(body)
		out = append(out, gwschema.Seeder{
			Table:            table,
			Statements:       statements,
			ExpectedRowCount: countValueTuples(body),
		})
	}
	return out, nil
}

func seederTable(path, body string) string {
	m := insertValuesRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	name := strings.Trim(m[1], `"`)
	if i := strings.LastIndex(name, "."); i != -1 {
		name = name[i+1:]
	}
	return name
}

// splitStatements splits a seeder file into its individual `;`-terminated
// statements, discarding empty ones produced by trailing whitespace.
func splitStatements(body string) []string {
	var out []string
	for _, stmt := range strings.Split(body, ";") {
		if trimmed := strings.TrimSpace(stmt); trimmed != "" {
			out = append(out, trimmed+";")
		}
	}
	return out
}

// valueTupleRe matches one top-level `(...)` value tuple following VALUES;
// used only to estimate how many rows a seeder inserts.
var valueTupleRe = regexp.MustCompile(`\(([^()]*|[^()]*\([^()]*\)[^()]*)*\)`)

func countValueTuples(body string) int {
	valuesIdx := regexp.MustCompile(`(?i)values`).FindAllStringIndex(body, -1)
	count := 0
	for _, loc := range valuesIdx {
		rest := body[loc[1]:]
		stop := strings.IndexByte(rest, ';')
		if stop == -1 {
			stop = len(rest)
		}
		count += len(valueTupleRe.FindAllString(rest[:stop], -1))
	}
	return count
}
