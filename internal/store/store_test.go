package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mc-extractor/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "range 1706527-1706530", 4)
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "range 1706527-1706530", got.Source)
		assert.Equal(t, 4, got.Total)
		assert.Nil(t, got.FinishedAt)
	})

	t.Run("UpdateRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "file list.txt", 3)
		require.NoError(t, err)

		run.Count(model.TierSuccess)
		run.Count(model.TierFailed)
		run.Persisted = 1
		run.Status = model.RunStatusStopped
		finished := time.Now().UTC()
		run.FinishedAt = &finished
		require.NoError(t, s.UpdateRun(ctx, run))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusStopped, got.Status)
		assert.Equal(t, 2, got.Processed)
		assert.Equal(t, 1, got.Persisted)
		assert.Equal(t, 1, got.Tiers[model.TierSuccess])
		assert.Equal(t, 1, got.Tiers[model.TierFailed])
		require.NotNil(t, got.FinishedAt)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("UpdateRunNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateRun(context.Background(), &model.Run{ID: "missing"})
		assert.True(t, eris.Is(err, ErrNotFound))
	})

	t.Run("ListRuns", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, err := s.CreateRun(ctx, "a", 1)
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, "b", 1)
		require.NoError(t, err)

		first.Status = model.RunStatusCompleted
		require.NoError(t, s.UpdateRun(ctx, first))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		done, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusCompleted})
		require.NoError(t, err)
		require.Len(t, done, 1)
		assert.Equal(t, first.ID, done[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("Rows", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "range 1-3", 3)
		require.NoError(t, err)

		rows := []model.ResultRow{
			{MC: 1, CompanyName: "ACME TRUCKING", Address: "100 MAIN ST", Email: "ops@acme.example", Phone: "(217) 555-0100", Tier: model.TierSuccess},
			{MC: 2, CompanyName: model.NotAvailable, Address: model.NotAvailable, Email: "Not ACTIVE", Phone: "Not ACTIVE", Tier: model.TierFailed},
			{MC: 3, CompanyName: "B", Address: "C", Email: model.EmailNotFound, Phone: "555", Tier: model.TierPartialSuccess},
		}
		for i, r := range rows {
			require.NoError(t, s.AppendRow(ctx, run.ID, i, r))
		}

		got, err := s.ListRows(ctx, RowFilter{RunID: run.ID})
		require.NoError(t, err)
		assert.Equal(t, rows, got)

		failed, err := s.ListRows(ctx, RowFilter{RunID: run.ID, Tier: model.TierFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, model.MCNumber(2), failed[0].MC)

		page, err := s.ListRows(ctx, RowFilter{RunID: run.ID, Limit: 1, Offset: 2})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, model.MCNumber(3), page[0].MC)

		assert.Error(t, s.AppendRow(ctx, run.ID, 0, rows[0]), "sequence numbers are unique per run")
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}
