package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "explicit", err: NewTransientError(errors.New("x"), 503), want: true},
		{name: "wrapped explicit", err: fmt.Errorf("outer: %w", NewTransientError(errors.New("x"), 0)), want: true},
		{name: "net timeout", err: timeoutErr{}, want: true},
		{name: "conn reset", err: fmt.Errorf("write: %w", syscall.ECONNRESET), want: true},
		{name: "pattern", err: errors.New("read tcp: i/o timeout"), want: true},
		{name: "sqlite busy", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: true},
		{name: "plain", err: errors.New("bad input"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

func TestClassifyError(t *testing.T) {
	if c := ClassifyError(nil); c != "" {
		t.Errorf("expected empty class for nil, got %q", c)
	}
	if c := ClassifyError(NewTransientError(errors.New("x"), 0)); c != ClassTransient {
		t.Errorf("expected transient, got %q", c)
	}
	if c := ClassifyError(errors.New("duplicate key")); c != ClassPermanent {
		t.Errorf("expected permanent, got %q", c)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 429)
	if !errors.Is(te, inner) {
		t.Error("expected Unwrap to expose inner error")
	}
	if te.Error() != "inner" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
