package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/mc-extractor/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RowFilter specifies criteria for listing result rows of a run.
type RowFilter struct {
	RunID  string     `json:"run_id"`
	Tier   model.Tier `json:"tier,omitempty"`
	Limit  int        `json:"limit,omitempty"`
	Offset int        `json:"offset,omitempty"`
}

// Store records batch runs and every result row they produce, including
// rows never written to the output sink.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string, total int) (*model.Run, error)
	UpdateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Rows
	AppendRow(ctx context.Context, runID string, seq int, row model.ResultRow) error
	ListRows(ctx context.Context, filter RowFilter) ([]model.ResultRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100
