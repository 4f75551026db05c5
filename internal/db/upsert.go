package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// UpsertSQL builds a single-row INSERT ... ON CONFLICT DO UPDATE statement
// with positional parameters in column order. Every non-key column is
// updated on conflict.
func UpsertSQL(table string, columns, conflictKeys []string) string {
	keys := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		keys[k] = true
	}

	params := make([]string, len(columns))
	var sets []string
	for i, c := range columns {
		params[i] = fmt.Sprintf("$%d", i+1)
		if !keys[c] {
			id := pgx.Identifier{c}.Sanitize()
			sets = append(sets, id+" = EXCLUDED."+id)
		}
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		sanitizeTable(table),
		quoteAndJoin(columns),
		strings.Join(params, ", "),
		quoteAndJoin(conflictKeys),
		action,
	)
}

// sanitizeTable handles schema-qualified names like "groster.runs".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
