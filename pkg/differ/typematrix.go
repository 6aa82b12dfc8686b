// SPDX-License-Identifier: Apache-2.0

package differ

import (
	"regexp"
	"strconv"
	"strings"
)

// widenings lists (from, to) pairs that are always Safe regardless of any
// length parameter, per the matrix in spec.md §4.E.
var widenings = map[string][]string{
	"smallint": {"integer", "bigint"},
	"integer":  {"bigint"},
	"real":     {"double precision"},
}

var varcharRe = regexp.MustCompile(`^(?:character varying|varchar)\((\d+)\)$`)

// aliasTypes maps a declared-side spelling to the vocabulary
// information_schema.columns.data_type actually reports. Postgres desugars
// "serial"/"bigserial"/"smallserial" to a plain integer/bigint/smallint
// column plus a sequence default before the catalogue ever sees it, and it
// always reports the long-form spelling for the short aliases below -
// without this mapping, a bundle's "serial" column and the catalogue's
// "integer" never compare equal and every reconcile of an already-deployed
// table reports a spurious incompatible type change.
var aliasTypes = map[string]string{
	"serial":      "integer",
	"serial4":     "integer",
	"int":         "integer",
	"int4":        "integer",
	"bigserial":   "bigint",
	"serial8":     "bigint",
	"int8":        "bigint",
	"smallserial": "smallint",
	"serial2":     "smallint",
	"int2":        "smallint",
	"bool":        "boolean",
	"float8":      "double precision",
	"float4":      "real",
	"timestamp":   "timestamp without time zone",
	"timestamptz": "timestamp with time zone",
	"time":        "time without time zone",
	"timetz":      "time with time zone",
}

var varcharAbbrevRe = regexp.MustCompile(`^varchar(\(\d+\))?$`)
var charAbbrevRe = regexp.MustCompile(`^char(\(\d+\))?$`)

// typesEqual reports whether two declared type strings name the same type
// once both are folded to the catalogue vocabulary.
func typesEqual(a, b string) bool {
	return canonicalType(a) == canonicalType(b)
}

func normalizeType(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}

// canonicalType maps a type string - bundle-declared or catalogue-observed
// - to the form information_schema.columns.data_type reports, so "serial"
// and "integer", or "varchar(255)" and "character varying(255)", compare
// and classify identically regardless of which side they came from.
func canonicalType(t string) string {
	t = normalizeType(t)
	if mapped, ok := aliasTypes[t]; ok {
		return mapped
	}
	if m := varcharAbbrevRe.FindStringSubmatch(t); m != nil {
		return "character varying" + m[1]
	}
	if m := charAbbrevRe.FindStringSubmatch(t); m != nil {
		return "character" + m[1]
	}
	return t
}

// classifyTypeChange applies the type-compatibility matrix: same type is
// unreachable here (the caller already filtered equal types out), widening
// numeric conversions and varchar growth are Safe, narrowing conversions
// are DataLoss, and anything else is Incompatible.
func classifyTypeChange(from, to string) Classification {
	from, to = canonicalType(from), canonicalType(to)

	if tos, ok := widenings[from]; ok {
		for _, t := range tos {
			if t == to {
				return Safe
			}
		}
	}

	if fm, tm := varcharRe.FindStringSubmatch(from), varcharRe.FindStringSubmatch(to); fm != nil && tm != nil {
		n, _ := strconv.Atoi(fm[1])
		m, _ := strconv.Atoi(tm[1])
		if m >= n {
			return Safe
		}
		return DataLoss
	}

	if fm := varcharRe.FindStringSubmatch(from); fm != nil && to == "text" {
		return Safe
	}

	if (from == "timestamp" || from == "timestamp without time zone") &&
		to == "timestamp with time zone" {
		return Safe
	}

	if isNarrowing(from, to) {
		return DataLoss
	}

	return Incompatible
}

// isNarrowing reports the reverse direction of a known-safe numeric
// widening or varchar growth, which the matrix classifies as DataLoss
// rather than Incompatible.
func isNarrowing(from, to string) bool {
	if tos, ok := widenings[to]; ok {
		for _, t := range tos {
			if t == from {
				return true
			}
		}
	}
	if fm, tm := varcharRe.FindStringSubmatch(from), varcharRe.FindStringSubmatch(to); fm != nil && tm != nil {
		n, _ := strconv.Atoi(fm[1])
		m, _ := strconv.Atoi(tm[1])
		return m < n
	}
	return false
}
