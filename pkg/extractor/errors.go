package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/govextract/pkg/llm"
	"github.com/jmylchreest/govextract/pkg/schema"
)

// ErrorKind classifies an extraction failure.
type ErrorKind string

const (
	KindCompilation        ErrorKind = "CompilationError"
	KindSchemaParse        ErrorKind = "SchemaParseFailure"
	KindValidation         ErrorKind = "ValidationFailure"
	KindBackendUnavailable ErrorKind = "BackendUnavailable"
	KindBackendTimeout     ErrorKind = "BackendTimeout"
)

// Sentinels for errors.Is matching against an *Error.
var (
	ErrCompilation        = errors.New("prompt compilation failed")
	ErrSchemaParse        = errors.New("no JSON payload in model output")
	ErrValidation         = errors.New("payload does not match schema")
	ErrBackendUnavailable = llm.ErrBackendUnavailable
	ErrBackendTimeout     = llm.ErrBackendTimeout
)

var kindSentinels = map[ErrorKind]error{
	KindCompilation:        ErrCompilation,
	KindSchemaParse:        ErrSchemaParse,
	KindValidation:         ErrValidation,
	KindBackendUnavailable: ErrBackendUnavailable,
	KindBackendTimeout:     ErrBackendTimeout,
}

// Error is returned by Extract and the pipeline stages.
type Error struct {
	Kind ErrorKind

	// Raw is the model output of the last attempt, empty when no output was
	// received.
	Raw string

	// Attempts is the number of generation calls made.
	Attempts int

	// Violations is set for KindValidation.
	Violations []schema.ValidationError

	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Attempts > 0 {
		fmt.Fprintf(&sb, " after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Transient reports whether the failure may succeed when the same prompt is
// sent again. Only compilation failures are permanent.
func (e *Error) Transient() bool {
	return e.Kind != KindCompilation
}

// KindOf returns the kind of err, or "" when err is not an extraction error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// backendError wraps a classified generation failure.
func backendError(err error) *Error {
	kind := KindBackendUnavailable
	if errors.Is(err, llm.ErrBackendTimeout) {
		kind = KindBackendTimeout
	}
	return &Error{Kind: kind, Err: err}
}

type violationsError []schema.ValidationError

func (v violationsError) Error() string {
	msgs := make([]string, len(v))
	for i, ve := range v {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}
