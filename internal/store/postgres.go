package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/mc-extractor/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
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

	maxConns, minConns := int32(4), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
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
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	total       INTEGER NOT NULL DEFAULT 0,
	processed   INTEGER NOT NULL DEFAULT 0,
	persisted   INTEGER NOT NULL DEFAULT 0,
	tiers       JSONB NOT NULL DEFAULT '{}'::jsonb,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS result_rows (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	mc           BIGINT NOT NULL,
	company_name TEXT NOT NULL,
	address      TEXT NOT NULL,
	email        TEXT NOT NULL,
	phone        TEXT NOT NULL,
	tier         TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_result_rows_tier ON result_rows(run_id, tier);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string, total int) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.RunStatusRunning,
		Total:     total,
		Tiers:     map[model.Tier]int{},
		StartedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, status, total, started_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Source, string(run.Status), run.Total, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *model.Run) error {
	tiers, err := marshalTiers(run.Tiers)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, processed = $2, persisted = $3, tiers = $4, error = $5, finished_at = $6 WHERE id = $7`,
		string(run.Status), run.Processed, run.Persisted, tiers, run.Error, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", run.ID)
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
	query, args, err := listRunsQuery(filter, sq.Dollar)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list runs")
	}

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

func (s *PostgresStore) AppendRow(ctx context.Context, runID string, seq int, row model.ResultRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO result_rows (run_id, seq, mc, company_name, address, email, phone, tier)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, seq, int(row.MC), row.CompanyName, row.Address, row.Email, row.Phone, string(row.Tier),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert row %d for run %s", seq, runID)
	}
	return nil
}

func (s *PostgresStore) ListRows(ctx context.Context, filter RowFilter) ([]model.ResultRow, error) {
	query, args, err := listRowsQuery(filter, sq.Dollar)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list rows")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list rows for run %s", filter.RunID)
	}
	defer rows.Close()

	var out []model.ResultRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rows iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var (
		r      model.Run
		status string
		tiers  []byte
	)
	if err := row.Scan(&r.ID, &r.Source, &status, &r.Total, &r.Processed, &r.Persisted, &tiers, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := unmarshalTiers(string(tiers), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
