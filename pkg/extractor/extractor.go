// Package extractor turns free text into schema-conforming fields by prompting
// a generation backend, parsing its output and retrying on malformed answers.
package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jmylchreest/govextract/internal/logger"
	"github.com/jmylchreest/govextract/pkg/llm"
	"github.com/jmylchreest/govextract/pkg/normalize"
	"github.com/jmylchreest/govextract/pkg/schema"
)

// DefaultMaxRetries is the number of extra attempts after the first one.
const DefaultMaxRetries = 2

// Generator produces raw text for a prompt. *llm.Client implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string, jsonSchema map[string]any) (*llm.Response, error)
}

// Result holds the extraction output.
type Result struct {
	// Schema is the name of the schema the fields were validated against.
	Schema string

	// Fields holds exactly the declared fields of the schema.
	Fields map[string]any

	// InputText is the text the fields were extracted from.
	InputText string

	// Raw is the model output of the successful attempt.
	Raw string

	// Attempts is the number of generation calls made, retries included.
	Attempts int

	Model    string
	Provider string

	// Usage is summed over all attempts.
	Usage llm.Usage

	Duration time.Duration
}

// Extractor runs the compile, generate, parse, normalise pipeline.
// It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	client     Generator
	maxRetries int
	retryDelay time.Duration
	observer   llm.Observer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxRetries sets how many times a failed attempt is retried.
// Negative values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(e *Extractor) {
		if n < 0 {
			n = 0
		}
		e.maxRetries = n
	}
}

// WithRetryDelay sets a fixed pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Extractor) { e.retryDelay = d }
}

// WithObserver sets the observer notified after every generation attempt.
func WithObserver(obs llm.Observer) Option {
	return func(e *Extractor) { e.observer = obs }
}

// New creates an Extractor that generates through client.
func New(client Generator, opts ...Option) *Extractor {
	e := &Extractor{
		client:     client,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxRetries returns the configured retry budget.
func (e *Extractor) MaxRetries() int { return e.maxRetries }

// Extract extracts the fields of s from inputText. norm may be nil.
//
// The prompt is compiled once and sent unchanged on every attempt. Backend,
// parse and validation failures are retried up to the retry budget; when it
// is exhausted the last failure is returned as an *Error carrying the last
// raw output and the number of attempts.
func (e *Extractor) Extract(ctx context.Context, s *schema.Schema, inputText string, norm normalize.Func) (*Result, error) {
	if s == nil {
		return nil, &Error{Kind: KindCompilation, Err: errors.New("schema is nil")}
	}

	logger.Debug("extractor starting",
		"schema", s.Name,
		"input_size", len(inputText),
		"max_retries", e.maxRetries)

	prompt, err := CompilePrompt(inputText, s.FormatInstructions())
	if err != nil {
		logger.Debug("extractor prompt compilation failed", "error", err)
		return nil, err
	}
	jsonSchema := s.JSONSchema()
	logger.Debug("extractor prompt built", "prompt_size", len(prompt))

	var (
		attempts int
		lastRaw  string
		usage    llm.Usage
		start    = time.Now()
	)

	result, err := retry.DoWithData(
		func() (*Result, error) {
			attempt := attempts
			attempts++

			resp, fields, err := e.attempt(ctx, s, prompt, jsonSchema, attempt)
			if resp != nil {
				lastRaw = resp.Content
				usage.InputTokens += resp.Usage.InputTokens
				usage.OutputTokens += resp.Usage.OutputTokens
			}
			if err != nil {
				return nil, err
			}
			return &Result{
				Schema: s.Name,
				Fields: fields,
				Raw:    resp.Content,
				Model:  resp.Model,
			}, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries+1)),
		retry.Delay(e.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug("extractor attempt failed", "attempt", n+1, "max_attempts", e.maxRetries+1, "error", err)
		}),
	)

	if err != nil {
		var xerr *Error
		if !errors.As(err, &xerr) {
			// The retry loop stopped on the caller's context.
			xerr = backendError(llm.Classify(err))
		}
		xerr.Attempts = attempts
		if xerr.Raw == "" {
			xerr.Raw = lastRaw
		}
		logger.Debug("extractor failed", "attempts", attempts, "kind", xerr.Kind, "error", xerr.Err)
		return nil, xerr
	}

	if norm != nil {
		norm(result.Fields)
	}

	result.InputText = inputText
	result.Attempts = attempts
	result.Usage = usage
	result.Duration = time.Since(start)
	result.Provider = e.providerName()
	if result.Model == "" {
		result.Model = e.providerModel()
	}

	logger.Debug("extractor success",
		"schema", s.Name,
		"total_attempts", attempts,
		"total_input_tokens", usage.InputTokens,
		"total_output_tokens", usage.OutputTokens,
		"duration", result.Duration)
	return result, nil
}

// attempt performs one generate and parse cycle. The response is returned
// whenever the backend answered, even if its content was unusable.
func (e *Extractor) attempt(ctx context.Context, s *schema.Schema, prompt string, jsonSchema map[string]any, attempt int) (*llm.Response, map[string]any, error) {
	startedAt := time.Now()
	resp, err := e.client.Generate(ctx, prompt, jsonSchema)
	var fields map[string]any
	if err != nil {
		err = backendError(err)
	} else {
		fields, err = Parse(resp.Content, s)
	}

	if e.observer != nil {
		event := llm.CallEvent{
			Provider:  e.providerName(),
			Model:     e.providerModel(),
			Schema:    s.Name,
			Prompt:    prompt,
			Response:  resp,
			Err:       err,
			Attempt:   attempt,
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
		}
		if resp != nil && resp.Model != "" {
			event.Model = resp.Model
		}
		e.observer.OnCall(ctx, event)
	}

	return resp, fields, err
}

// isRetryable reports whether a failed attempt should be repeated.
func isRetryable(err error) bool {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Transient()
	}
	return false
}

func (e *Extractor) providerName() string {
	if p := e.provider(); p != nil {
		return p.Name()
	}
	return ""
}

func (e *Extractor) providerModel() string {
	if p := e.provider(); p != nil {
		return p.Model()
	}
	return ""
}

func (e *Extractor) provider() llm.Provider {
	if c, ok := e.client.(interface{ Provider() llm.Provider }); ok {
		return c.Provider()
	}
	return nil
}
