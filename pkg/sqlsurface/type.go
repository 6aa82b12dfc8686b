// SPDX-License-Identifier: Apache-2.0

package sqlsurface

import (
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

// ParseType detects `CREATE TYPE ... AS ENUM`, `CREATE TYPE ... AS (...)`
// (composite), and `CREATE DOMAIN ...`.
func ParseType(artifactName, body string) (gwschema.Type, error) {
	createIdx := findKeyword(body, "create", 0)
	if createIdx == -1 {
		return gwschema.Type{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "no CREATE TYPE or CREATE DOMAIN statement found"}
	}
	rest := body[createIdx:]

	if domIdx := findKeyword(rest, "domain", 0); domIdx != -1 && isFirstKeywordAfterCreate(rest, domIdx) {
		after := rest[domIdx+len("domain"):]
		name, ok := firstIdentifier(after)
		if !ok {
			return gwschema.Type{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "empty domain name"}
		}
		return gwschema.Type{Name: name, Kind: gwschema.TypeKindDomain, BodyText: body}, nil
	}

	typeIdx := findKeyword(rest, "type", 0)
	if typeIdx == -1 {
		return gwschema.Type{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "no CREATE TYPE or CREATE DOMAIN statement found"}
	}
	after := rest[typeIdx+len("type"):]
	name, ok := firstIdentifier(after)
	if !ok {
		return gwschema.Type{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "empty type name"}
	}

	kind := gwschema.TypeKindComposite
	if findKeyword(after, "enum", 0) != -1 {
		kind = gwschema.TypeKindEnum
	}

	return gwschema.Type{Name: name, Kind: kind, BodyText: body}, nil
}

// isFirstKeywordAfterCreate reports whether kwIdx (an index into rest,
// which itself begins at CREATE) is the statement's very next keyword,
// distinguishing `CREATE DOMAIN foo` from a stray later mention of the word.
func isFirstKeywordAfterCreate(rest string, kwIdx int) bool {
	between := strings.TrimSpace(rest[len("create"):kwIdx])
	return between == ""
}

// firstIdentifier returns the first whitespace/paren-delimited identifier
// in s, unquoting it if it was double-quoted.
func firstIdentifier(s string) (string, bool) {
	s = strings.TrimSpace(s)
	end := len(s)
	for i, c := range s {
		if c == '(' || c == ' ' || c == '\t' || c == '\n' {
			end = i
			break
		}
	}
	name := stripQuotes(s[:end])
	return name, name != ""
}
