package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry, optionally carrying the
// HTTP status that caused it.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// transientPatterns catch network failures that arrive as plain strings
// from drivers and HTTP clients.
var transientPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"unexpected eof",
	"i/o timeout",
	"no such host",
	"temporary failure in name resolution",
	"server closed idle connection",
	"conn closed",
	"closed pool",
	"database is locked",
}

// IsTransient reports whether err (or anything it wraps) is a
// TransientError, a network timeout, a connection-level syscall error, or
// matches a known transient message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// ErrorClass is the coarse classification recorded with a failed operation.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient"
	ClassPermanent ErrorClass = "permanent"
)

// ClassifyError labels err transient or permanent. A nil error has no class.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if IsTransient(err) {
		return ClassTransient
	}
	return ClassPermanent
}
