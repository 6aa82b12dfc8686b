// SPDX-License-Identifier: Apache-2.0

package checksum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/checksum"
)

func TestSumStableAcrossReformatting(t *testing.T) {
	a := `CREATE TABLE foo (
		id integer PRIMARY KEY,
		name text NOT NULL
	);`

	b := `-- a comment explaining foo
	create   table   foo (
	  id      integer primary key, -- trailing comment
	  name    text    not null
	);
	`

	assert.Equal(t, checksum.Sum(a), checksum.Sum(b))
}

func TestSumChangesOnContentChange(t *testing.T) {
	a := `CREATE TABLE foo (id integer PRIMARY KEY);`
	b := `CREATE TABLE foo (id bigint PRIMARY KEY);`

	assert.NotEqual(t, checksum.Sum(a), checksum.Sum(b))
}

func TestSumPreservesIdentifierCase(t *testing.T) {
	a := `CREATE TABLE "MyTable" (id integer);`
	b := `CREATE TABLE "mytable" (id integer);`

	assert.NotEqual(t, checksum.Sum(a), checksum.Sum(b))
}

func TestStripCommentsIgnoresMarkersInsideStringLiterals(t *testing.T) {
	a := `INSERT INTO foo (note) VALUES ('this -- is not a comment');`
	n := checksum.Normalize(a)

	assert.Contains(t, n, "this -- is not a comment")
}

func TestStripCommentsIgnoresMarkersInsideDollarQuotes(t *testing.T) {
	a := "CREATE FUNCTION f() RETURNS void AS $$ -- not a comment\nBEGIN END; $$ LANGUAGE plpgsql;"
	n := checksum.Normalize(a)

	assert.Contains(t, n, "-- not a comment")
}

func TestBlockCommentsAreStripped(t *testing.T) {
	a := `CREATE TABLE foo (/* inline */ id integer);`
	b := `CREATE TABLE foo (id integer);`

	assert.Equal(t, checksum.Sum(a), checksum.Sum(b))
}
