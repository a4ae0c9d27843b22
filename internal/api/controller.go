// Package api exposes batch runs over HTTP: start a run, stop it, follow
// its progress and read back its rows.
package api

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mc-extractor/internal/batch"
	"github.com/sells-group/mc-extractor/internal/classify"
	"github.com/sells-group/mc-extractor/internal/model"
	"github.com/sells-group/mc-extractor/internal/sink"
	"github.com/sells-group/mc-extractor/internal/worklist"
)

var (
	// ErrRunActive is returned when a run is started while another is active.
	ErrRunActive = eris.New("api: a run is already active")
	// ErrNoActiveRun is returned when stopping with nothing running.
	ErrNoActiveRun = eris.New("api: no active run")
)

// Job is everything one run needs. Sink, if set, is closed when the run
// ends.
type Job struct {
	Orchestrator *batch.Orchestrator
	Sink         sink.Sink
}

// Launcher prepares a fresh Job for each run.
type Launcher func(ctx context.Context) (Job, error)

type activeRun struct {
	orch  *batch.Orchestrator
	run   model.Run
	rows  []model.ResultRow
	err   error
	ready chan struct{}
	done  chan struct{}
	once  sync.Once
}

func (a *activeRun) markReady() { a.once.Do(func() { close(a.ready) }) }

func (a *activeRun) finished() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (a *activeRun) snapshot() model.Run {
	r := a.run
	r.Tiers = maps.Clone(a.run.Tiers)
	return r
}

// Controller owns at most one running batch, since a page session is
// exclusive. Runs outlive the requests that start them and end when the
// controller's context does.
type Controller struct {
	ctx    context.Context
	launch Launcher
	hub    *Hub
	log    *zap.Logger

	mu  sync.Mutex
	cur *activeRun
}

// NewController returns a controller whose runs are bound to ctx.
func NewController(ctx context.Context, launch Launcher) *Controller {
	return &Controller{
		ctx:    ctx,
		launch: launch,
		hub:    NewHub(),
		log:    zap.L().With(zap.String("component", "api.controller")),
	}
}

// Hub returns the event hub runs publish to.
func (c *Controller) Hub() *Hub { return c.hub }

// Start launches a run over wl and returns once it has begun iterating, or
// with the setup error that kept it from starting.
func (c *Controller) Start(wl worklist.Worklist) (model.Run, error) {
	c.mu.Lock()
	if c.cur != nil && !c.cur.finished() {
		c.mu.Unlock()
		return model.Run{}, ErrRunActive
	}

	job, err := c.launch(c.ctx)
	if err != nil {
		c.mu.Unlock()
		return model.Run{}, eris.Wrap(err, "api: prepare run")
	}

	a := &activeRun{
		orch: job.Orchestrator,
		run: model.Run{
			Source:    wl.Source,
			Status:    model.RunStatusRunning,
			Total:     wl.Len(),
			Tiers:     map[model.Tier]int{},
			StartedAt: time.Now().UTC(),
		},
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	c.cur = a
	c.mu.Unlock()

	events := make(chan model.Event)
	consumed := make(chan struct{})
	go c.consume(a, events, consumed)
	go func() {
		run, err := a.orch.Run(c.ctx, wl, events)
		<-consumed
		if job.Sink != nil {
			if cerr := job.Sink.Close(); cerr != nil {
				c.log.Error("close run sink", zap.Error(cerr))
			}
		}
		c.finish(a, run, err)
	}()

	<-a.ready

	c.mu.Lock()
	defer c.mu.Unlock()
	if a.err != nil {
		return model.Run{}, a.err
	}
	return a.snapshot(), nil
}

func (c *Controller) consume(a *activeRun, events <-chan model.Event, consumed chan<- struct{}) {
	defer close(consumed)
	for ev := range events {
		c.mu.Lock()
		switch ev.Kind {
		case model.EventStarted:
			a.run.ID = ev.RunID
			a.run.Total = ev.Total
		case model.EventRow:
			a.rows = append(a.rows, *ev.Row)
			a.run.Count(ev.Row.Tier)
			if classify.Persist(ev.Row.Tier) {
				a.run.Persisted++
			}
		case model.EventFinished:
			a.run.Status = ev.Status
			a.run.Error = ev.Err
		}
		c.mu.Unlock()

		if ev.Kind == model.EventStarted {
			a.markReady()
		}
		c.hub.Publish(ev)
	}
}

func (c *Controller) finish(a *activeRun, run *model.Run, err error) {
	c.mu.Lock()
	if err != nil {
		a.err = err
		a.run.Status = model.RunStatusErrored
		a.run.Error = err.Error()
		c.log.Error("run failed to start", zap.Error(err))
	} else {
		a.run = *run
	}
	c.mu.Unlock()

	a.markReady()
	close(a.done)
}

// Stop asks the active run to stop before its next MC number.
func (c *Controller) Stop() (model.Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.cur.finished() {
		return model.Run{}, ErrNoActiveRun
	}
	c.cur.orch.Stop()
	c.log.Info("stop requested", zap.String("run_id", c.cur.run.ID))
	return c.cur.snapshot(), nil
}

// Current returns the most recent run, active or not.
func (c *Controller) Current() (model.Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.cur.run.ID == "" {
		return model.Run{}, false
	}
	return c.cur.snapshot(), true
}

// Rows returns the rows of the most recent run if it has the given id.
func (c *Controller) Rows(runID string) ([]model.ResultRow, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || c.cur.run.ID != runID {
		return nil, false
	}
	return slices.Clone(c.cur.rows), true
}

// Wait blocks until the most recent run has finished.
func (c *Controller) Wait() {
	c.mu.Lock()
	a := c.cur
	c.mu.Unlock()
	if a != nil {
		<-a.done
	}
}
