// SPDX-License-Identifier: Apache-2.0

// Package invoke resolves a pool and executes a stored function call,
// returning its result rows as JSON-friendly objects.
package invoke

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/db"
	"github.com/progalaxyelabs/stonescriptdb-gateway/pkg/gwerrors"
)

// Result is one function call's outcome.
type Result struct {
	Rows     []map[string]any
	RowCount int
}

// Call executes `SELECT * FROM <quoted function>($1, ..., $N)` against
// conn, binding params positionally. nil becomes SQL NULL; JSON objects
// and arrays are bound as their JSON text; every other element is handed to
// lib/pq's value converter directly, since JSON's scalar types already
// match what database/sql accepts.
func Call(ctx context.Context, conn *db.RDB, function string, params []any) (*Result, error) {
	placeholders := make([]string, len(params))
	args := make([]any, len(params))
	for i, p := range params {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		switch p.(type) {
		case map[string]any, []any:
			raw, err := json.Marshal(p)
			if err != nil {
				return nil, gwerrors.FunctionCallFailed{Function: function, Cause: err}
			}
			args[i] = string(raw)
		default:
			args[i] = p
		}
	}

	stmt := fmt.Sprintf("SELECT * FROM %s(%s)", pq.QuoteIdentifier(function), joinPlaceholders(placeholders))

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, gwerrors.FunctionCallFailed{Function: function, Cause: err}
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, gwerrors.FunctionCallFailed{Function: function, Cause: err}
	}
	return result, nil
}

func joinPlaceholders(ps []string) string {
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func scanRows(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		scanTargets := make([]any, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	return result, rows.Err()
}

// normalizeValue converts driver-returned []byte (the common case for
// text-ish Postgres types lib/pq hands back raw) to string so JSON
// marshaling produces a string rather than a base64 blob.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
