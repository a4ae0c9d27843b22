package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/mc-extractor/internal/model"
)

func TestEmitter_NeverBlocksAndDeliversInOrder(t *testing.T) {
	out := make(chan model.Event)
	e := newEmitter(out)

	// No reader yet: emit must still return.
	for i := range 100 {
		e.emit(model.Event{Kind: model.EventProgress, Current: i + 1})
	}
	e.close()

	var got []int
	for ev := range out {
		got = append(got, ev.Current)
	}
	assert.Len(t, got, 100)
	for i, c := range got {
		assert.Equal(t, i+1, c)
	}
}

func TestEmitter_NilChannel(t *testing.T) {
	e := newEmitter(nil)
	assert.NotPanics(t, func() {
		e.emit(model.Event{Kind: model.EventStarted})
		e.close()
	})
}
