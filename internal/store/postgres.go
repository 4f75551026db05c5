package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/groster/groster/internal/db"
	"github.com/groster/groster/internal/model"
)

// PostgresStore implements Store using pgxpool. Tables are JSONB documents;
// alt records are also kept in a relational alt_records table.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS guild_tables (
	region     TEXT NOT NULL,
	realm      TEXT NOT NULL,
	guild      TEXT NOT NULL,
	name       TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (region, realm, guild, name)
);

CREATE TABLE IF NOT EXISTS character_payloads (
	region     TEXT NOT NULL,
	realm      TEXT NOT NULL,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (region, realm, name, kind)
);

CREATE TABLE IF NOT EXISTS alt_records (
	region TEXT NOT NULL,
	realm  TEXT NOT NULL,
	guild  TEXT NOT NULL,
	id     BIGINT NOT NULL,
	name   TEXT NOT NULL,
	alt    BOOLEAN NOT NULL,
	main   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	region     TEXT NOT NULL,
	realm      TEXT NOT NULL,
	guild      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	stats      JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_alt_records_guild ON alt_records(region, realm, guild);
CREATE INDEX IF NOT EXISTS idx_alt_records_main ON alt_records(region, realm, guild, main);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_guild ON runs(region, realm, guild);
`

var (
	upsertTableSQL = db.UpsertSQL("guild_tables",
		[]string{"region", "realm", "guild", "name", "data", "updated_at"},
		[]string{"region", "realm", "guild", "name"})
	upsertPayloadSQL = db.UpsertSQL("character_payloads",
		[]string{"region", "realm", "name", "kind", "payload", "updated_at"},
		[]string{"region", "realm", "name", "kind"})
	altRecordColumns = []string{"region", "realm", "guild", "id", "name", "alt", "main"}
)

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) SaveTable(ctx context.Context, key model.GuildKey, table Table, rows any) error {
	if err := checkRows(rows); err != nil {
		return err
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal %s", table)
	}
	k := tableKey(key, table)
	if _, err := s.pool.Exec(ctx, upsertTableSQL, k.Region, k.Realm, k.Guild, string(table), data, time.Now().UTC()); err != nil {
		return eris.Wrapf(err, "postgres: save %s", table)
	}

	if records, ok := rows.([]model.AltRecord); ok {
		return s.replaceAltRecords(ctx, key, records)
	}
	return nil
}

func (s *PostgresStore) replaceAltRecords(ctx context.Context, key model.GuildKey, records []model.AltRecord) error {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{key.Region, key.Realm, key.Guild, r.ID, r.Name, r.Alt, r.Main}
	}
	n, err := db.ReplaceRows(ctx, s.pool, db.ReplaceConfig{
		Table:      "alt_records",
		Columns:    altRecordColumns,
		KeyColumns: []string{"region", "realm", "guild"},
		KeyValues:  []any{key.Region, key.Realm, key.Guild},
	}, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: replace alt records")
	}
	zap.L().Debug("postgres: alt records replaced", zap.Stringer("guild", key), zap.Int64("rows", n))
	return nil
}

func (s *PostgresStore) LoadTable(ctx context.Context, key model.GuildKey, table Table, out any) (time.Time, error) {
	k := tableKey(key, table)
	var data []byte
	var updated time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM guild_tables WHERE region = $1 AND realm = $2 AND guild = $3 AND name = $4`,
		k.Region, k.Realm, k.Guild, string(table),
	).Scan(&data, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, eris.Wrapf(ErrNotFound, "postgres: table %s for %s", table, key)
	}
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "postgres: load %s", table)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return time.Time{}, eris.Wrapf(err, "postgres: unmarshal %s", table)
	}
	return updated.UTC(), nil
}

func (s *PostgresStore) SavePayload(ctx context.Context, ref PayloadRef, data []byte) error {
	ref = ref.normalized()
	_, err := s.pool.Exec(ctx, upsertPayloadSQL, ref.Region, ref.Realm, ref.Name, string(ref.Kind), data, time.Now().UTC())
	return eris.Wrapf(err, "postgres: save %s payload for %s", ref.Kind, ref.Name)
}

func (s *PostgresStore) LoadPayload(ctx context.Context, ref PayloadRef) ([]byte, error) {
	ref = ref.normalized()
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM character_payloads WHERE region = $1 AND realm = $2 AND name = $3 AND kind = $4`,
		ref.Region, ref.Realm, ref.Name, string(ref.Kind),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: payload %s for %s", ref.Kind, ref.Name)
	}
	return data, eris.Wrap(err, "postgres: load payload")
}

func (s *PostgresStore) CreateRun(ctx context.Context, key model.GuildKey) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, region, realm, guild, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, key.Region, key.Realm, key.Guild, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{
		ID:        id,
		Guild:     key,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, stats *model.RunStats, runErr error) error {
	var statsJSON []byte
	if stats != nil {
		var err error
		if statsJSON, err = json.Marshal(stats); err != nil {
			return eris.Wrap(err, "postgres: marshal stats")
		}
	}
	status, msg := finishState(runErr)

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), statsJSON, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.Guild != nil {
		n := len(args)
		args = append(args, filter.Guild.Region, filter.Guild.Realm, filter.Guild.Guild)
		query += ` AND region = $` + strconv.Itoa(n+1) + ` AND realm = $` + strconv.Itoa(n+2) + ` AND guild = $` + strconv.Itoa(n+3)
	}
	args = append(args, filter.limit())
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var stats []byte
	var status string
	if err := row.Scan(&r.ID, &r.Guild.Region, &r.Guild.Realm, &r.Guild.Guild,
		&status, &stats, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if len(stats) > 0 {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal(stats, r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stats")
		}
	}
	return &r, nil
}
