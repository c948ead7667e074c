package llm

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

// GenerationConfig holds the fixed settings used for every call.
type GenerationConfig struct {
	Temperature float64       `validate:"gte=0,lte=2"`
	MaxTokens   int           `validate:"gt=0"`
	Timeout     time.Duration `validate:"gt=0"`
}

// DefaultGenerationConfig returns deterministic defaults: temperature 0 and a
// fixed output cap.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature: 0,
		MaxTokens:   512,
		Timeout:     DefaultTimeout,
	}
}

// Client sends prompts to a Provider with fixed generation settings.
// The configuration is read-only after construction, so a Client is safe
// for concurrent use. It never retries.
type Client struct {
	provider Provider
	config   GenerationConfig
}

// NewClient creates a Client for the given provider.
func NewClient(p Provider, cfg GenerationConfig) (*Client, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return &Client{provider: p, config: cfg}, nil
}

// Generate sends prompt as a single user message and returns the raw response.
// Failures are classified as ErrBackendTimeout or ErrBackendUnavailable.
func (c *Client) Generate(ctx context.Context, prompt string, jsonSchema map[string]any) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Execute(ctx, Request{
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		JSONSchema:  jsonSchema,
	})
	if err != nil {
		return nil, Classify(err)
	}
	if resp.Duration == 0 {
		resp.Duration = time.Since(start)
	}
	return resp, nil
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider { return c.provider }

// Config returns the generation settings.
func (c *Client) Config() GenerationConfig { return c.config }
