package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mc-extractor/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var runCols = []string{"id", "source", "status", "total", "processed", "persisted", "tiers", "error", "started_at", "finished_at"}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs \(id, source, status, total, started_at\)`).
		WithArgs(pgxmock.AnyArg(), "range 1-2", "running", 2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "range 1-2", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(time.Minute)

	mock.ExpectQuery(`SELECT id, source, status, .* FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runCols).
			AddRow("run-1", "range 1-2", "completed", 2, 2, 1, []byte(`{"Success":1,"Failed":1}`), "", started, &finished))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Tiers[model.TierSuccess])
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, finished, *run.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, status, .* FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status = \$1`).
		WithArgs("stopped", 0, 0, "{}", "", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRun(context.Background(), &model.Run{ID: "gone", Status: model.RunStatusStopped})
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO result_rows`).
		WithArgs("run-1", 0, 1706527, "ACME TRUCKING", "100 MAIN ST", "ops@acme.example", "(217) 555-0100", "Success").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendRow(context.Background(), "run-1", 0, model.ResultRow{
		MC: 1706527, CompanyName: "ACME TRUCKING", Address: "100 MAIN ST",
		Email: "ops@acme.example", Phone: "(217) 555-0100", Tier: model.TierSuccess,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT mc, company_name, address, email, phone, tier FROM result_rows WHERE run_id = \$1 AND tier = \$2 ORDER BY seq LIMIT 10`).
		WithArgs("run-1", "Manual Check").
		WillReturnRows(pgxmock.NewRows([]string{"mc", "company_name", "address", "email", "phone", "tier"}).
			AddRow(5, "B", "C", model.EmailNotFound, model.PhoneNotFound, "Manual Check"))

	rows, err := s.ListRows(context.Background(), RowFilter{RunID: "run-1", Tier: model.TierManualCheck, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.MCNumber(5), rows[0].MC)
	assert.Equal(t, model.TierManualCheck, rows[0].Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, .* FROM runs WHERE status = \$1 ORDER BY started_at DESC LIMIT 100`).
		WithArgs("running").
		WillReturnError(errors.New("connection refused"))

	_, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusRunning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list runs")
	assert.NoError(t, mock.ExpectationsWereMet())
}
