package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "explicit", err: NewTransientError(errors.New("overloaded"), 503), want: true},
		{name: "eris wrapped", err: eris.Wrap(NewTransientError(errors.New("429"), 429), "boundary: fetch"), want: true},
		{name: "fmt wrapped", err: fmt.Errorf("download: %w", NewTransientError(errors.New("x"), 502)), want: true},
		{name: "net timeout", err: fmt.Errorf("get: %w", timeoutErr{}), want: true},
		{name: "connection reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: true},
		{name: "connection refused", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), want: true},
		{name: "io timeout text", err: errors.New("read tcp 10.0.0.1:443: i/o timeout"), want: true},
		{name: "ftp 421", err: errors.New("421 Service not available, closing control connection"), want: true},
		{name: "ftp 550", err: errors.New("550 No such file"), want: false},
		{name: "validation", err: errors.New("dataset: missing column latitude"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientError_UnwrapAndStatus(t *testing.T) {
	inner := errors.New("bad gateway")
	te := NewTransientError(inner, 502)
	assert.Equal(t, "bad gateway", te.Error())
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, 502, te.StatusCode)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 304, 400, 401, 403, 404, 422, 501} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}
