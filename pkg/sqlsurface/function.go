// SPDX-License-Identifier: Apache-2.0

package sqlsurface

import (
	"strings"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwschema"
)

// ParseFunction extracts name and ordered parameter type list from the
// first `CREATE [OR REPLACE] FUNCTION <name>(<params>) ...` in body.
// Argument names, OUT parameters, and DEFAULT clauses are ignored for
// signature purposes but remain part of BodyText verbatim.
func ParseFunction(artifactName, body string) (gwschema.Function, error) {
	idx := findKeyword(body, "create", 0)
	if idx == -1 {
		return gwschema.Function{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "no CREATE FUNCTION statement found"}
	}
	rest := body[idx:]

	fnIdx := findKeyword(rest, "function", 0)
	if fnIdx == -1 {
		return gwschema.Function{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "no CREATE FUNCTION statement found"}
	}
	after := rest[fnIdx+len("function"):]

	parenStart := strings.IndexByte(after, '(')
	if parenStart == -1 {
		return gwschema.Function{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "function name not followed by parameter list"}
	}
	name := stripQuotes(strings.TrimSpace(after[:parenStart]))
	if name == "" {
		return gwschema.Function{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "empty function name"}
	}

	inner, _, ok := findParenGroup(after, 0)
	if !ok {
		return gwschema.Function{}, gwerrors.ParseFailed{Artifact: artifactName, Reason: "unterminated parameter list"}
	}

	var sig gwschema.Signature
	for _, p := range topLevelSplit(inner, ',') {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if t := paramType(p); t != "" {
			sig = append(sig, strings.ToLower(t))
		}
	}

	return gwschema.Function{Name: name, ParamTypes: sig, BodyText: body}, nil
}

// paramType extracts just the type name from one parameter entry,
// discarding a leading IN/OUT/INOUT/VARIADIC mode, a leading argument name,
// and any trailing DEFAULT clause.
func paramType(p string) string {
	toks := fields(p)
	if len(toks) == 0 {
		return ""
	}

	i := 0
	switch strings.ToLower(toks[i]) {
	case "in", "out", "inout", "variadic":
		i++
	}
	if i >= len(toks) {
		return ""
	}

	// If there are at least two tokens left, the first is the argument
	// name and the rest is the type; a bare type with no name looks
	// identical to a one-word type, which Postgres itself disambiguates
	// by keyword matching — here we accept the common case of "name type".
	typeToks := toks[i:]
	if len(typeToks) > 1 {
		typeToks = typeToks[1:]
	}

	joined := strings.Join(typeToks, " ")
	if d := findKeyword(joined, "default", 0); d != -1 {
		joined = strings.TrimSpace(joined[:d])
	}
	if eq := strings.IndexByte(joined, '='); eq != -1 {
		joined = strings.TrimSpace(joined[:eq])
	}
	return joined
}
