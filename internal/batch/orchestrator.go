// Package batch runs the SAFER pipeline over a worklist on a single page
// session, one MC number at a time.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mc-extractor/internal/classify"
	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/page"
	"github.com/sells-group/mc-extractor/internal/resilience"
	"github.com/sells-group/mc-extractor/internal/sink"
	"github.com/sells-group/mc-extractor/internal/worklist"
)

// ErrAlreadyRunning is returned when Run is called on a used orchestrator.
var ErrAlreadyRunning = eris.New("batch: orchestrator already started")

// Processor runs the extraction pipeline for one MC number.
type Processor interface {
	Run(ctx context.Context, s page.Session, mc model.MCNumber) (model.Extraction, error)
}

// Recorder keeps run history. Recording failures never stop a batch.
type Recorder interface {
	CreateRun(ctx context.Context, source string, total int) (*model.Run, error)
	UpdateRun(ctx context.Context, run *model.Run) error
	AppendRow(ctx context.Context, runID string, seq int, row model.ResultRow) error
}

// Config tunes the orchestrator.
type Config struct {
	// ArtifactDir receives error_<mc>.<ext> snapshots. Empty means the
	// working directory.
	ArtifactDir string
	// MaxConsecutiveErrors ends the run as errored after that many
	// unmodeled failures in a row. Zero disables the limit.
	MaxConsecutiveErrors int
}

// Orchestrator drives one batch run. It is single-use.
type Orchestrator struct {
	cfg  Config
	open page.Factory
	proc Processor
	out  sink.Sink
	rec  Recorder
	log  *zap.Logger

	started atomic.Bool
	stop    atomic.Bool

	mu     sync.Mutex
	status model.RunStatus
}

// New builds an orchestrator. out and rec may be nil.
func New(cfg Config, open page.Factory, proc Processor, out sink.Sink, rec Recorder) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		open:   open,
		proc:   proc,
		out:    out,
		rec:    rec,
		log:    zap.L().With(zap.String("component", "batch")),
		status: model.RunStatusIdle,
	}
}

// Stop requests cancellation. It is honored before the next MC number
// starts; the one in flight always finishes.
func (o *Orchestrator) Stop() {
	o.stop.Store(true)
}

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() model.RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) setStatus(s model.RunStatus) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// Run processes every MC number in wl in order. Events, if events is
// non-nil, are delivered without ever blocking the worker; the channel is
// closed after the last one, so the caller must drain it. Only setup
// failures return an error: an empty worklist, a page session that cannot
// be opened, or a run that cannot be recorded. Once iteration begins the
// run always reaches a terminal status and the session is closed exactly
// once.
func (o *Orchestrator) Run(ctx context.Context, wl worklist.Worklist, events chan<- model.Event) (*model.Run, error) {
	if !o.started.CompareAndSwap(false, true) {
		if events != nil {
			close(events)
		}
		return nil, ErrAlreadyRunning
	}
	em := newEmitter(events)
	defer em.close()

	if wl.Len() == 0 {
		o.setStatus(model.RunStatusErrored)
		return nil, worklist.ErrEmpty
	}

	sess, err := o.open(ctx)
	if err != nil {
		o.setStatus(model.RunStatusErrored)
		return nil, eris.Wrap(err, "batch: open page session")
	}
	var closeOnce sync.Once
	closeSession := func() {
		closeOnce.Do(func() {
			if err := sess.Close(); err != nil {
				o.log.Warn("close page session", zap.Error(err))
			}
		})
	}
	defer closeSession()

	run, err := o.createRun(ctx, wl)
	if err != nil {
		o.setStatus(model.RunStatusErrored)
		return nil, err
	}
	log := o.log.With(zap.String("run_id", run.ID))

	o.setStatus(model.RunStatusRunning)
	em.emit(model.Event{Kind: model.EventStarted, RunID: run.ID, Total: run.Total, Status: model.RunStatusRunning})
	log.Info("batch started", zap.String("source", wl.Source), zap.Int("total", run.Total))

	var breaker *resilience.Breaker
	if o.cfg.MaxConsecutiveErrors > 0 {
		breaker = resilience.NewBreaker(resilience.BreakerConfig{
			Threshold: o.cfg.MaxConsecutiveErrors,
			OnStateChange: func(from, to resilience.State) {
				log.Warn("error breaker state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}

	status := model.RunStatusCompleted
	for i, mc := range wl.Numbers {
		if o.stop.Load() || ctx.Err() != nil {
			status = model.RunStatusStopped
			log.Info("batch stop requested", zap.Int("processed", run.Processed))
			break
		}

		outcome := o.process(ctx, sess, mc, breaker)
		row := outcome.Row()
		run.Count(row.Tier)
		em.emit(model.Event{Kind: model.EventRow, RunID: run.ID, Current: i + 1, Total: run.Total, Row: &row})

		if classify.Persist(row.Tier) && o.out != nil {
			if err := o.out.Write(row); err != nil {
				status = model.RunStatusErrored
				run.Error = eris.Wrapf(err, "batch: write row for mc %d", mc).Error()
				log.Error("sink write failed", zap.Int("mc", int(mc)), zap.Error(err))
			} else {
				run.Persisted++
			}
		}
		o.record(ctx, run, i, row)
		em.emit(model.Event{Kind: model.EventProgress, RunID: run.ID, Current: i + 1, Total: run.Total})

		if status == model.RunStatusErrored {
			break
		}
		if breaker != nil {
			if breaker.State() == resilience.StateOpen {
				status = model.RunStatusErrored
				run.Error = fmt.Sprintf("batch: %d consecutive session errors", o.cfg.MaxConsecutiveErrors)
				log.Error("too many consecutive errors", zap.Int("limit", o.cfg.MaxConsecutiveErrors))
				break
			}
		}
	}

	closeSession()

	finished := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &finished
	if o.rec != nil {
		if err := o.rec.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("record run result", zap.Error(err))
		}
	}
	o.setStatus(status)

	em.emit(model.Event{Kind: model.EventFinished, RunID: run.ID, Current: run.Processed, Total: run.Total, Status: status, Err: run.Error})
	log.Info("batch finished",
		zap.String("status", string(status)),
		zap.Int("processed", run.Processed),
		zap.Int("persisted", run.Persisted),
	)
	return run, nil
}

func (o *Orchestrator) createRun(ctx context.Context, wl worklist.Worklist) (*model.Run, error) {
	if o.rec == nil {
		return &model.Run{
			ID:        uuid.New().String(),
			Source:    wl.Source,
			Status:    model.RunStatusRunning,
			Total:     wl.Len(),
			Tiers:     map[model.Tier]int{},
			StartedAt: time.Now().UTC(),
		}, nil
	}
	run, err := o.rec.CreateRun(ctx, wl.Source, wl.Len())
	if err != nil {
		return nil, eris.Wrap(err, "batch: record run")
	}
	return run, nil
}

// process runs the pipeline for one MC number and always yields an
// outcome. The pipeline gets a context that survives cancellation so an
// in-flight record, tab cleanup included, runs to completion.
func (o *Orchestrator) process(ctx context.Context, sess page.Session, mc model.MCNumber, breaker *resilience.Breaker) model.Outcome {
	pctx := context.WithoutCancel(ctx)

	var out model.Outcome
	work := func(ctx context.Context) error {
		ext, err := o.runSafely(ctx, sess, mc)
		if err != nil {
			return err
		}
		out = classify.Outcome(mc, ext)
		return nil
	}

	var err error
	if breaker != nil {
		err = breaker.Execute(pctx, work)
	} else {
		err = work(pctx)
	}
	if err == nil {
		o.log.Debug("mc processed", zap.Int("mc", int(mc)), zap.String("tier", string(out.Tier)))
		return out
	}

	o.log.Error("mc processing failed", zap.Int("mc", int(mc)), zap.Error(err))
	o.saveArtifact(pctx, sess, mc)
	if cerr := sess.CloseExtraTabs(pctx); cerr != nil {
		o.log.Warn("close extra tabs after error", zap.Int("mc", int(mc)), zap.Error(cerr))
	}
	return classify.ErrorOutcome(mc, err)
}

func (o *Orchestrator) runSafely(ctx context.Context, sess page.Session, mc model.MCNumber) (ext model.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("batch: panic processing mc %d: %v", mc, r)
		}
	}()
	return o.proc.Run(ctx, sess, mc)
}

func (o *Orchestrator) saveArtifact(ctx context.Context, sess page.Session, mc model.MCNumber) {
	art, err := sess.Snapshot(ctx)
	if err != nil {
		o.log.Warn("capture diagnostic snapshot", zap.Int("mc", int(mc)), zap.Error(err))
		return
	}

	path := filepath.Join(o.cfg.ArtifactDir, fmt.Sprintf("error_%d.%s", mc, art.Ext))
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		o.log.Warn("write diagnostic snapshot", zap.String("path", path), zap.Error(err))
		return
	}
	o.log.Info("saved diagnostic snapshot", zap.Int("mc", int(mc)), zap.String("path", path))
}

func (o *Orchestrator) record(ctx context.Context, run *model.Run, seq int, row model.ResultRow) {
	if o.rec == nil {
		return
	}
	rctx := context.WithoutCancel(ctx)
	if err := o.rec.AppendRow(rctx, run.ID, seq, row); err != nil {
		o.log.Warn("record row", zap.String("run_id", run.ID), zap.Int("mc", int(row.MC)), zap.Error(err))
	}
	if err := o.rec.UpdateRun(rctx, run); err != nil {
		o.log.Warn("record progress", zap.String("run_id", run.ID), zap.Error(err))
	}
}
