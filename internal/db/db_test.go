package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertSQL(t *testing.T) {
	got := UpsertSQL("guild_tables", []string{"region", "realm", "guild", "name", "payload"}, []string{"region", "realm", "guild", "name"})
	assert.Equal(t,
		`INSERT INTO "guild_tables" ("region", "realm", "guild", "name", "payload") VALUES ($1, $2, $3, $4, $5) `+
			`ON CONFLICT ("region", "realm", "guild", "name") DO UPDATE SET "payload" = EXCLUDED."payload"`,
		got)
}

func TestUpsertSQL_AllKeys(t *testing.T) {
	got := UpsertSQL("t", []string{"a"}, []string{"a"})
	assert.Equal(t, `INSERT INTO "t" ("a") VALUES ($1) ON CONFLICT ("a") DO NOTHING`, got)
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"simple"`, sanitizeTable("simple"))
	assert.Equal(t, `"groster"."runs"`, sanitizeTable("groster.runs"))
}

func TestReplaceRows(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	cfg := ReplaceConfig{
		Table:      "alt_records",
		Columns:    []string{"region", "realm", "guild", "id", "name", "alt", "main"},
		KeyColumns: []string{"region", "realm", "guild"},
		KeyValues:  []any{"eu", "terokkar", "moon"},
	}
	rows := [][]any{
		{"eu", "terokkar", "moon", int64(1), "A", false, "A"},
		{"eu", "terokkar", "moon", int64(2), "B", true, "A"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "alt_records" WHERE "region" = \$1 AND "realm" = \$2 AND "guild" = \$3`).
		WithArgs("eu", "terokkar", "moon").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"alt_records"}, cfg.Columns).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := ReplaceRows(context.Background(), mock, cfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_EmptyOnlyDeletes(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "alt_records"`).WithArgs("eu").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	n, err := ReplaceRows(context.Background(), mock, ReplaceConfig{
		Table: "alt_records", Columns: []string{"region"}, KeyColumns: []string{"region"}, KeyValues: []any{"eu"},
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceRows_Validation(t *testing.T) {
	_, err := ReplaceRows(context.Background(), nil, ReplaceConfig{Table: "t"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns")

	_, err = ReplaceRows(context.Background(), nil, ReplaceConfig{Table: "t", Columns: []string{"a"}, KeyColumns: []string{"a"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key columns")
}
