package llm

import (
	"context"
	"time"

	"github.com/jmylchreest/govextract/internal/logger"
)

// Observer receives a notification after every generation attempt,
// successful or not. Implementations must be safe for concurrent use and
// should return quickly.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one generation attempt.
type CallEvent struct {
	Provider string
	Model    string
	Schema   string

	// Prompt is the compiled prompt sent to the backend.
	Prompt string

	// Response is nil when the call failed before a response was received.
	Response *Response

	// Err is the classified backend error, or the parse/validation error of
	// the attempt's output.
	Err error

	// Attempt number (0 = first attempt, 1 = first retry, etc.)
	Attempt int

	StartedAt time.Time
	Duration  time.Duration
}

// ObserverFunc is a convenience type for using a function as an Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches each event to several observers in order.
type MultiObserver []Observer

// OnCall implements Observer.
func (m MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m {
		obs.OnCall(ctx, event)
	}
}

// LogObserver logs every attempt at debug level.
type LogObserver struct{}

// OnCall implements Observer.
func (LogObserver) OnCall(ctx context.Context, event CallEvent) {
	args := []any{
		"provider", event.Provider,
		"model", event.Model,
		"schema", event.Schema,
		"attempt", event.Attempt + 1,
		"prompt_size", len(event.Prompt),
		"duration", event.Duration,
	}
	if event.Response != nil {
		args = append(args,
			"response_size", len(event.Response.Content),
			"input_tokens", event.Response.Usage.InputTokens,
			"output_tokens", event.Response.Usage.OutputTokens,
			"finish_reason", event.Response.FinishReason)
	}
	if event.Err != nil {
		args = append(args, "error", event.Err)
	}
	logger.DebugContext(ctx, "generation attempt", args...)
}
