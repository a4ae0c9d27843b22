package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/mc-extractor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	total       INTEGER NOT NULL DEFAULT 0,
	processed   INTEGER NOT NULL DEFAULT 0,
	persisted   INTEGER NOT NULL DEFAULT 0,
	tiers       TEXT NOT NULL DEFAULT '{}',
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS result_rows (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	mc           INTEGER NOT NULL,
	company_name TEXT NOT NULL,
	address      TEXT NOT NULL,
	email        TEXT NOT NULL,
	phone        TEXT NOT NULL,
	tier         TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_result_rows_tier ON result_rows(run_id, tier);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string, total int) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Source:    source,
		Status:    model.RunStatusRunning,
		Total:     total,
		Tiers:     map[model.Tier]int{},
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, total, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.Total, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	tiers, err := marshalTiers(run.Tiers)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, processed = ?, persisted = ?, tiers = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.Processed, run.Persisted, tiers, run.Error, nullTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args, err := listRunsQuery(filter, sq.Question)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list runs")
	}

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

func (s *SQLiteStore) AppendRow(ctx context.Context, runID string, seq int, row model.ResultRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO result_rows (run_id, seq, mc, company_name, address, email, phone, tier, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, int(row.MC), row.CompanyName, row.Address, row.Email, row.Phone, string(row.Tier), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert row %d for run %s", seq, runID)
	}
	return nil
}

func (s *SQLiteStore) ListRows(ctx context.Context, filter RowFilter) ([]model.ResultRow, error) {
	query, args, err := listRowsQuery(filter, sq.Question)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list rows")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list rows for run %s", filter.RunID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ResultRow
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rows iterate")
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

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r        model.Run
		status   string
		tiers    string
		finished sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Source, &status, &r.Total, &r.Processed, &r.Persisted, &tiers, &r.Error, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "sqlite: get run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Status = model.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if err := unmarshalTiers(tiers, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRow(row scannable) (model.ResultRow, error) {
	var (
		r    model.ResultRow
		mc   int
		tier string
	)
	if err := row.Scan(&mc, &r.CompanyName, &r.Address, &r.Email, &r.Phone, &tier); err != nil {
		return model.ResultRow{}, err
	}
	r.MC = model.MCNumber(mc)
	r.Tier = model.Tier(tier)
	return r, nil
}
