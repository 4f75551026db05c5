package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceConfig selects the row set replaced by ReplaceRows.
type ReplaceConfig struct {
	Table      string
	Columns    []string
	KeyColumns []string // columns identifying the set, e.g. region, realm, guild
	KeyValues  []any
}

// ReplaceRows deletes the rows matching the key columns and bulk-loads rows
// in their place with COPY, inside one transaction.
func ReplaceRows(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}
	if len(cfg.KeyColumns) == 0 || len(cfg.KeyColumns) != len(cfg.KeyValues) {
		return 0, eris.New("db: replace: key columns and values must match")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, deleteSQL(cfg), cfg.KeyValues...); err != nil {
		return 0, eris.Wrapf(err, "db: replace: delete from %s", cfg.Table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, identifier(cfg.Table), cfg.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY into %s", cfg.Table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

func deleteSQL(cfg ReplaceConfig) string {
	conds := make([]string, len(cfg.KeyColumns))
	for i, c := range cfg.KeyColumns {
		conds[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{c}.Sanitize(), i+1)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", sanitizeTable(cfg.Table), strings.Join(conds, " AND "))
}

func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}
