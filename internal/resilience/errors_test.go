package resilience

import (
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("element not found"), false},
		{"explicit", NewTransientError(errors.New("503"), 503), true},
		{"wrapped explicit", eris.Wrap(NewTransientError(errors.New("503"), 503), "page: fetch"), true},
		{"net timeout", timeoutErr{}, true},
		{"connection reset", eris.Wrap(syscall.ECONNRESET, "page: fetch"), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"message", errors.New("read tcp: i/o timeout"), true},
		{"broken pipe", errors.New("write: Broken Pipe"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 403, 404, 501} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestTransientError(t *testing.T) {
	inner := errors.New("service unavailable")
	te := NewTransientError(inner, 503)
	assert.Equal(t, "service unavailable", te.Error())
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, 503, te.StatusCode)
}
