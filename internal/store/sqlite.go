package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/groster/groster/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Tables are stored
// as JSON documents, one row per guild table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS guild_tables (
	region     TEXT NOT NULL,
	realm      TEXT NOT NULL,
	guild      TEXT NOT NULL,
	name       TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (region, realm, guild, name)
);

CREATE TABLE IF NOT EXISTS character_payloads (
	region     TEXT NOT NULL,
	realm      TEXT NOT NULL,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (region, realm, name, kind)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	region     TEXT NOT NULL,
	realm      TEXT NOT NULL,
	guild      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_guild ON runs(region, realm, guild);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveTable(ctx context.Context, key model.GuildKey, table Table, rows any) error {
	if err := checkRows(rows); err != nil {
		return err
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "sqlite: marshal %s", table)
	}
	k := tableKey(key, table)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO guild_tables (region, realm, guild, name, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (region, realm, guild, name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		k.Region, k.Realm, k.Guild, string(table), string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save %s", table)
}

func (s *SQLiteStore) LoadTable(ctx context.Context, key model.GuildKey, table Table, out any) (time.Time, error) {
	k := tableKey(key, table)
	var data string
	var updated time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM guild_tables WHERE region = ? AND realm = ? AND guild = ? AND name = ?`,
		k.Region, k.Realm, k.Guild, string(table),
	).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, eris.Wrapf(ErrNotFound, "sqlite: table %s for %s", table, key)
	}
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: load %s", table)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: unmarshal %s", table)
	}
	return updated.UTC(), nil
}

func (s *SQLiteStore) SavePayload(ctx context.Context, ref PayloadRef, data []byte) error {
	ref = ref.normalized()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO character_payloads (region, realm, name, kind, payload, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (region, realm, name, kind) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		ref.Region, ref.Realm, ref.Name, string(ref.Kind), data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save %s payload for %s", ref.Kind, ref.Name)
}

func (s *SQLiteStore) LoadPayload(ctx context.Context, ref PayloadRef) ([]byte, error) {
	ref = ref.normalized()
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM character_payloads WHERE region = ? AND realm = ? AND name = ? AND kind = ?`,
		ref.Region, ref.Realm, ref.Name, string(ref.Kind),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: payload %s for %s", ref.Kind, ref.Name)
	}
	return data, eris.Wrap(err, "sqlite: load payload")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, key model.GuildKey) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, region, realm, guild, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, key.Region, key.Realm, key.Guild, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Guild:     key,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, stats *model.RunStats, runErr error) error {
	var statsJSON sql.NullString
	if stats != nil {
		data, err := json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal stats")
		}
		statsJSON = sql.NullString{String: string(data), Valid: true}
	}
	status, msg := finishState(runErr)

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), statsJSON, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const runColumns = `id, region, realm, guild, status, stats, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Guild != nil {
		query += ` AND region = ? AND realm = ? AND guild = ?`
		args = append(args, filter.Guild.Region, filter.Guild.Realm, filter.Guild.Guild)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var stats sql.NullString

	err := row.Scan(&r.ID, &r.Guild.Region, &r.Guild.Realm, &r.Guild.Guild,
		&r.Status, &stats, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "sqlite: run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if stats.Valid {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal([]byte(stats.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stats")
		}
	}
	return &r, nil
}
