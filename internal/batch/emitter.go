package batch

import (
	"sync"

	"github.com/sells-group/mc-extractor/internal/model"
)

// emitter forwards events to a consumer channel through an unbounded
// queue, so emit never blocks the worker. The channel is closed once every
// queued event has been delivered after close.
type emitter struct {
	out  chan<- model.Event
	wake chan struct{}

	mu     sync.Mutex
	queue  []model.Event
	closed bool
}

func newEmitter(out chan<- model.Event) *emitter {
	e := &emitter{out: out, wake: make(chan struct{}, 1)}
	if out != nil {
		go e.loop()
	}
	return e
}

func (e *emitter) emit(ev model.Event) {
	if e.out == nil {
		return
	}
	e.mu.Lock()
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
	e.signal()
}

func (e *emitter) close() {
	if e.out == nil {
		return
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.signal()
}

func (e *emitter) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *emitter) loop() {
	defer close(e.out)
	for {
		e.mu.Lock()
		pending, closed := e.queue, e.closed
		e.queue = nil
		e.mu.Unlock()

		for _, ev := range pending {
			e.out <- ev
		}
		if len(pending) > 0 {
			continue
		}
		if closed {
			return
		}
		<-e.wake
	}
}
