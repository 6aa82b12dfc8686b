// SPDX-License-Identifier: Apache-2.0

// Package checksum normalizes SQL artifact text and hashes the result, so
// that reformatting or re-commenting a bundle artifact never looks like a
// content change to the Schema Differ.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// keywords is the fixed set of SQL keywords the normalizer lowercases.
// Identifiers and string literals are left untouched even if they happen to
// collide with one of these words in a different case.
var keywords = map[string]bool{
	"create": true, "table": true, "if": true, "not": true, "exists": true,
	"column": true, "constraint": true, "primary": true, "key": true,
	"foreign": true, "references": true, "default": true, "null": true,
	"unique": true, "check": true, "function": true, "or": true, "replace": true,
	"returns": true, "language": true, "as": true, "type": true, "enum": true,
	"domain": true, "extension": true, "schema": true, "version": true,
	"alter": true, "add": true, "drop": true, "rename": true, "to": true,
	"select": true, "insert": true, "into": true, "values": true, "update": true,
	"set": true, "delete": true, "from": true, "where": true, "and": true,
	"order": true, "by": true, "conflict": true, "do": true, "nothing": true,
	"index": true, "on": true, "using": true, "cascade": true, "restrict": true,
	"with": true, "begin": true, "end": true, "declare": true, "return": true,
	"varchar": true, "text": true, "integer": true, "bigint": true,
	"smallint": true, "boolean": true, "timestamp": true, "timestamptz": true,
	"numeric": true, "jsonb": true, "json": true, "uuid": true, "real": true,
	"double": true, "precision": true,
}

// Normalize strips comments, collapses whitespace, and lowercases the fixed
// keyword set, per the invariant checksum(T) == checksum(reformat(T)).
func Normalize(sql string) string {
	stripped := stripComments(sql)
	collapsed := collapseWhitespace(stripped)
	return lowercaseKeywords(collapsed)
}

// Sum returns the hex-encoded SHA-256 digest of sql's normalized form.
func Sum(sql string) string {
	n := Normalize(sql)
	digest := sha256.Sum256([]byte(n))
	return hex.EncodeToString(digest[:])
}

// stripComments removes `-- ...` line comments and `/* ... */` block
// comments, respecting single-quoted string literals and dollar-quoted
// strings so a comment marker inside either is left untouched.
func stripComments(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '\'':
			j := i + 1
			for j < len(s) {
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			b.WriteString(s[i:j])
			i = j

		case strings.HasPrefix(s[i:], "$$") || isDollarTag(s, i):
			tag, end := dollarTag(s, i)
			closeIdx := strings.Index(s[end:], tag)
			if closeIdx == -1 {
				b.WriteString(s[i:])
				i = len(s)
				break
			}
			stop := end + closeIdx + len(tag)
			b.WriteString(s[i:stop])
			i = stop

		case strings.HasPrefix(s[i:], "--"):
			j := strings.IndexByte(s[i:], '\n')
			if j == -1 {
				i = len(s)
			} else {
				b.WriteByte('\n')
				i += j + 1
			}

		case strings.HasPrefix(s[i:], "/*"):
			j := strings.Index(s[i+2:], "*/")
			if j == -1 {
				i = len(s)
			} else {
				b.WriteByte(' ')
				i += j + 4
			}

		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// isDollarTag reports whether s[i] begins a dollar-quote tag, `$tag$`.
func isDollarTag(s string, i int) bool {
	if i >= len(s) || s[i] != '$' {
		return false
	}
	j := i + 1
	for j < len(s) && s[j] != '$' && (isAlnum(s[j]) || s[j] == '_') {
		j++
	}
	return j < len(s) && s[j] == '$'
}

func dollarTag(s string, i int) (tag string, end int) {
	j := i + 1
	for j < len(s) && s[j] != '$' {
		j++
	}
	tag = s[i : j+1]
	return tag, j + 1
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// collapseWhitespace reduces any run of whitespace (including newlines) to
// a single space, drops whitespace directly after "(" or directly before
// ")", and trims the result.
func collapseWhitespace(s string) string {
	var b strings.Builder
	pendingSpace := false
	var prev rune
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			pendingSpace = true
			continue
		}
		if pendingSpace && prev != 0 && prev != '(' && r != ')' {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// lowercaseKeywords lowercases any whitespace-delimited token that matches
// the fixed keyword set, leaving everything else (identifiers, literals,
// punctuation-glued tokens) untouched.
func lowercaseKeywords(s string) string {
	fields := strings.Split(s, " ")
	for i, f := range fields {
		trimmed, lead, trail := trimPunct(f)
		if keywords[strings.ToLower(trimmed)] {
			fields[i] = lead + strings.ToLower(trimmed) + trail
		}
	}
	return strings.Join(fields, " ")
}

// trimPunct splits off any leading/trailing non-identifier punctuation
// (parentheses, commas, semicolons) so "TABLE(" still recognizes "TABLE".
func trimPunct(s string) (core, lead, trail string) {
	start, end := 0, len(s)
	for start < end && !isIdentChar(s[start]) {
		start++
	}
	for end > start && !isIdentChar(s[end-1]) {
		end--
	}
	return s[start:end], s[:start], s[end:]
}

func isIdentChar(c byte) bool {
	return isAlnum(c) || c == '_'
}
