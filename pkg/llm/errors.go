package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Backend failure classes. Both are transient; retrying is left to the caller.
var (
	ErrBackendUnavailable = errors.New("generation backend unavailable")
	ErrBackendTimeout     = errors.New("generation backend timed out")
)

// StatusError reports a non-success HTTP status from a backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// backendError tags an underlying error with its failure class.
type backendError struct {
	class error
	err   error
}

func (e *backendError) Error() string {
	return e.class.Error() + ": " + e.err.Error()
}

func (e *backendError) Unwrap() []error {
	return []error{e.class, e.err}
}

// Classify tags err as ErrBackendTimeout or ErrBackendUnavailable.
// Errors that are already classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendTimeout) || errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return &backendError{class: classOf(err), err: err}
}

func classOf(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrBackendTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrBackendTimeout
	}
	// Connection refused, DNS failures, non-success statuses and SDK API
	// errors all mean the backend could not serve the request.
	return ErrBackendUnavailable
}
