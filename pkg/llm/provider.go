// Package llm provides the generation backends used for extraction.
//
// A Provider talks to one text-generation service. A Client wraps a Provider
// with fixed, read-only generation settings and classifies its failures.
package llm

import (
	"context"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request to the LLM.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONSchema  map[string]any // Optional output constraint for backends that support it
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response represents the result of an LLM execution.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string // Actual model reported by the backend
	Duration     time.Duration
}

// Provider is the interface that all generation backends implement.
// Implementations must be safe for concurrent use and must not retry on
// their own.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// Pinger is an optional interface for providers that can check reachability
// without generating.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration // Transport-level timeout; the Client applies its own per-call bound
}

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second
