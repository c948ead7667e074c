// Package govextract provides the public API for extracting costs and
// organisations from Flemish government service descriptions.
package govextract

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/govextract/pkg/extractor"
	"github.com/jmylchreest/govextract/pkg/llm"
)

// Config holds all Service configuration.
type Config struct {
	// LLM settings
	Provider string `validate:"required"`
	Model    string
	APIKey   string
	BaseURL  string `validate:"omitempty,url"`

	// Generation settings, fixed for every call
	Temperature float64       `validate:"gte=0,lte=2"`
	MaxTokens   int           `validate:"gt=0"`
	Timeout     time.Duration `validate:"gt=0"`

	// Retry settings
	MaxRetries int           `validate:"gte=0"`
	RetryDelay time.Duration `validate:"gte=0"`
}

// DefaultConfig returns the deterministic defaults: a local Ollama mistral
// model at temperature 0.
func DefaultConfig() Config {
	gen := llm.DefaultGenerationConfig()
	return Config{
		Provider:    "ollama",
		Model:       llm.DefaultOllamaModel,
		Temperature: gen.Temperature,
		MaxTokens:   gen.MaxTokens,
		Timeout:     gen.Timeout,
		MaxRetries:  extractor.DefaultMaxRetries,
	}
}

// Option configures a Service beyond its Config.
type Option func(*options)

type options struct {
	provider llm.Provider
	observer llm.Observer
}

// WithProvider uses p instead of creating a provider from the Config.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithObserver sets an observer notified after every generation attempt.
func WithObserver(obs llm.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Kind names one of the builtin extraction schemas.
type Kind string

const (
	KindCost         Kind = "cost"
	KindOrganisation Kind = "organisation"
)

// Kinds lists the builtin kinds.
func Kinds() []Kind {
	return []Kind{KindCost, KindOrganisation}
}

// ParseKind converts a name such as "cost" or "organisation" to a Kind.
// The American spelling "organization" is accepted as well.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cost":
		return KindCost, nil
	case "organisation", "organization":
		return KindOrganisation, nil
	}
	return "", fmt.Errorf("unknown kind %q (use cost or organisation)", name)
}
