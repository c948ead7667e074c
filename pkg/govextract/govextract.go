package govextract

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/govextract/internal/logger"
	"github.com/jmylchreest/govextract/pkg/extractor"
	"github.com/jmylchreest/govextract/pkg/llm"
	"github.com/jmylchreest/govextract/pkg/normalize"
	"github.com/jmylchreest/govextract/pkg/schema"
)

// ErrEmptyInput is returned when the input text is empty.
var ErrEmptyInput = errors.New("input text is empty")

// Result is the outcome of one extraction.
type Result = extractor.Result

// Version returns the module version of the govextract library.
// Returns "(devel)" when built from source without version info.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.Main.Version
	}
	return "(unknown)"
}

type kindSpec struct {
	schema *schema.Schema
	norm   normalize.Func
}

var kinds = map[Kind]kindSpec{
	KindCost: {schema: schema.Cost},
	KindOrganisation: {
		schema: schema.Organisation,
		norm:   normalize.Fields("organisations_list", "organisations_list_string"),
	},
}

// SchemaFor returns the builtin schema for kind.
func SchemaFor(kind Kind) (*schema.Schema, error) {
	def, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	return def.schema, nil
}

// Service is the main entry point. It is safe for concurrent use.
type Service struct {
	client    *llm.Client
	extractor *extractor.Extractor
	config    Config
}

// New creates a Service from cfg.
func New(cfg Config, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider := o.provider
	if provider == nil {
		var err error
		provider, err = llm.NewProvider(cfg.Provider, llm.ProviderConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
	}

	client, err := llm.NewClient(provider, llm.GenerationConfig{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	extOpts := []extractor.Option{
		extractor.WithMaxRetries(cfg.MaxRetries),
		extractor.WithRetryDelay(cfg.RetryDelay),
	}
	if o.observer != nil {
		extOpts = append(extOpts, extractor.WithObserver(o.observer))
	}

	logger.Debug("govextract service created",
		"provider", provider.Name(),
		"model", provider.Model(),
		"max_tokens", cfg.MaxTokens,
		"max_retries", cfg.MaxRetries)

	return &Service{
		client:    client,
		extractor: extractor.New(client, extOpts...),
		config:    cfg,
	}, nil
}

// Extract extracts the fields of the builtin schema for kind from inputText.
// Organisation results are normalised into separate name and abbreviation
// entries.
func (s *Service) Extract(ctx context.Context, kind Kind, inputText string) (*Result, error) {
	def, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	if inputText == "" {
		return nil, ErrEmptyInput
	}
	return s.extractor.Extract(ctx, def.schema, inputText, def.norm)
}

// ExtractWithSchema extracts the fields of a custom schema. No normalisation
// is applied.
func (s *Service) ExtractWithSchema(ctx context.Context, sch *schema.Schema, inputText string) (*Result, error) {
	if inputText == "" {
		return nil, ErrEmptyInput
	}
	return s.extractor.Extract(ctx, sch, inputText, nil)
}

// Ping checks that the backend is reachable when the provider supports it.
// Providers without a health check are assumed reachable.
func (s *Service) Ping(ctx context.Context) error {
	p, ok := s.client.Provider().(llm.Pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return llm.Classify(err)
	}
	return nil
}

// Provider returns the name of the generation backend.
func (s *Service) Provider() string { return s.client.Provider().Name() }

// Model returns the configured model.
func (s *Service) Model() string { return s.client.Provider().Model() }

// Config returns the configuration the Service was created with.
func (s *Service) Config() Config { return s.config }
