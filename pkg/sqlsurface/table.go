// SPDX-License-Identifier: Apache-2.0

package sqlsurface

import (
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

// tableConstraintPrefixes names the table-level clauses a column list entry
// can start with instead of a column name; these are preserved verbatim in
// BodyText but do not produce a Column.
var tableConstraintPrefixes = []string{"constraint", "primary key", "foreign key", "unique", "check"}

// ParseTable extracts the first `CREATE TABLE [IF NOT EXISTS] <name> ( ... )`
// from artifact. body is preserved verbatim as Table.BodyText.
func ParseTable(artifactName, body string) (gwschema.Table, error) {
	idx := findKeyword(body, "create", 0)
	if idx == -1 {
		return gwschema.Table{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "no CREATE TABLE statement found"}
	}
	rest := body[idx:]

	tableIdx := findKeyword(rest, "table", 0)
	if tableIdx == -1 {
		return gwschema.Table{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "no CREATE TABLE statement found"}
	}
	after := strings.TrimLeft(rest[tableIdx+len("table"):], " \t\r\n")

	if ifNot := findKeyword(after, "if not exists", 0); ifNot == 0 {
		after = after[len("if not exists"):]
	}

	nameEnd := strings.IndexByte(after, '(')
	if nameEnd == -1 {
		return gwschema.Table{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "table name not followed by column list"}
	}
	name := stripQuotes(strings.TrimSpace(after[:nameEnd]))
	if name == "" {
		return gwschema.Table{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "empty table name"}
	}

	inner, _, ok := findParenGroup(after, 0)
	if !ok {
		return gwschema.Table{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "unterminated column list"}
	}

	table := gwschema.Table{Name: name, BodyText: body, FKRefs: map[string]bool{}}

	for _, entry := range topLevelSplit(inner, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" || isTableConstraint(entry) {
			continue
		}
		col, ref := parseColumn(entry)
		table.Columns = append(table.Columns, col)
		if ref != "" {
			table.FKRefs[ref] = true
		}
	}

	return table, nil
}

func isTableConstraint(entry string) bool {
	lower := strings.ToLower(strings.TrimSpace(entry))
	for _, p := range tableConstraintPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// parseColumn extracts one column definition. The declared type is
// everything between the name and the first recognized clause keyword
// (NOT NULL, DEFAULT, PRIMARY KEY, REFERENCES); since Postgres type names
// can be multi-word ("double precision", "timestamp with time zone"), this
// is the only reliable stopping rule without a real grammar.
func parseColumn(entry string) (gwschema.Column, string) {
	toks := fields(entry)
	if len(toks) == 0 {
		return gwschema.Column{}, ""
	}

	col := gwschema.Column{Name: stripQuotes(toks[0])}

	rest := strings.TrimSpace(entry[len(toks[0]):])
	typeEnd := len(rest)
	for _, kw := range []string{"not null", "default", "primary key", "references", "unique", "check"} {
		if i := findKeyword(rest, kw, 0); i != -1 && i < typeEnd {
			typeEnd = i
		}
	}
	col.DeclaredType = strings.TrimSpace(rest[:typeEnd])
	col.Nullable = findKeyword(rest, "not null", 0) == -1

	if findKeyword(rest, "default", 0) != -1 {
		col.HasDefault = true
	}
	if findKeyword(rest, "primary key", 0) != -1 {
		col.PrimaryKey = true
		col.Nullable = false
	}

	var ref string
	if refIdx := findKeyword(rest, "references", 0); refIdx != -1 {
		after := strings.TrimSpace(rest[refIdx+len("references"):])
		nameEnd := len(after)
		if p := strings.IndexByte(after, '('); p != -1 && p < nameEnd {
			nameEnd = p
		}
		if toks := fields(after[:nameEnd]); len(toks) > 0 {
			ref = stripQuotes(toks[0])
			col.References = ref
		}
	}

	return col, ref
}
