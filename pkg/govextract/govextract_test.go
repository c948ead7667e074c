package govextract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/jmylchreest/govextract/pkg/extractor"
	"github.com/jmylchreest/govextract/pkg/llm"
	"github.com/jmylchreest/govextract/pkg/schema"
)

// scriptedProvider returns its outputs in order, repeating the last one.
type scriptedProvider struct {
	mu       sync.Mutex
	outputs  []string
	err      error
	requests []llm.Request
}

func (p *scriptedProvider) Execute(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.requests)
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.Response{Content: p.outputs[min(i, len(p.outputs)-1)]}, nil
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func newService(t *testing.T, p llm.Provider, mutate ...func(*Config)) *Service {
	t.Helper()
	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := New(cfg, WithProvider(p))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestService_ExtractCostTextualOnly(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{"cost": null, "cost_string": "twintig euro"}`}}
	svc := newService(t, p)

	input := "Voor deze aanvraag betaalt u twintig euro."
	result, err := svc.Extract(context.Background(), KindCost, input)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if result.Fields["cost"] != nil {
		t.Errorf("expected cost null, got %v", result.Fields["cost"])
	}
	if result.Fields["cost_string"] != "twintig euro" {
		t.Errorf("expected cost_string, got %v", result.Fields["cost_string"])
	}
	if result.InputText != input {
		t.Errorf("expected input text to be carried, got %q", result.InputText)
	}
	if result.Provider != "scripted" || result.Model != "scripted-1" {
		t.Errorf("unexpected provider/model %s/%s", result.Provider, result.Model)
	}

	req := p.requests[0]
	if req.Temperature != 0 || req.MaxTokens != 512 {
		t.Errorf("expected temperature 0 and 512 tokens, got %v/%d", req.Temperature, req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser {
		t.Errorf("expected a single user message, got %+v", req.Messages)
	}
}

func TestService_ExtractOrganisation(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{
		"organisations_list": ["Agentschap Wonen (AW)", "Departement Omgeving"],
		"organisations_list_string": ["Agentschap Wonen (AW)"]
	}`}}
	svc := newService(t, p)

	result, err := svc.Extract(context.Background(), KindOrganisation, "Contacteer Agentschap Wonen (AW).")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []string{"Agentschap Wonen", "AW", "Departement Omgeving"}
	if got := result.Fields["organisations_list"]; !reflect.DeepEqual(got, want) {
		t.Errorf("organisations_list = %#v, want %#v", got, want)
	}
	if got := result.Fields["organisations_list_string"]; !reflect.DeepEqual(got, []string{"Agentschap Wonen", "AW"}) {
		t.Errorf("organisations_list_string not normalised: %#v", got)
	}
}

func TestService_RetryBudgetFromConfig(t *testing.T) {
	p := &scriptedProvider{outputs: []string{"no json here"}}
	svc := newService(t, p, func(c *Config) { c.MaxRetries = 3 })

	_, err := svc.Extract(context.Background(), KindCost, "text")
	if !errors.Is(err, extractor.ErrSchemaParse) {
		t.Fatalf("expected schema parse failure, got %v", err)
	}
	if len(p.requests) != 4 {
		t.Errorf("expected 4 calls, got %d", len(p.requests))
	}
}

func TestService_BackendUnavailable(t *testing.T) {
	p := &scriptedProvider{err: &llm.StatusError{Provider: "scripted", StatusCode: 503}}
	svc := newService(t, p, func(c *Config) { c.MaxRetries = 0 })

	_, err := svc.Extract(context.Background(), KindCost, "text")
	if !errors.Is(err, extractor.ErrBackendUnavailable) {
		t.Errorf("expected backend unavailable, got %v", err)
	}
}

func TestService_EmptyInput(t *testing.T) {
	p := &scriptedProvider{outputs: []string{`{}`}}
	svc := newService(t, p)

	if _, err := svc.Extract(context.Background(), KindCost, ""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
	if len(p.requests) != 0 {
		t.Error("empty input must not reach the backend")
	}
}

func TestService_UnknownKind(t *testing.T) {
	svc := newService(t, &scriptedProvider{outputs: []string{`{}`}})
	if _, err := svc.Extract(context.Background(), Kind("price"), "text"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestService_ExtractWithSchema(t *testing.T) {
	s := schema.MustNew("fee", "A fee",
		schema.Field{Name: "amount", Type: schema.TypeNumber, Required: true},
	)
	p := &scriptedProvider{outputs: []string{`{"amount": 35}`}}
	svc := newService(t, p)

	result, err := svc.ExtractWithSchema(context.Background(), s, "35 euro")
	if err != nil {
		t.Fatalf("ExtractWithSchema: %v", err)
	}
	if result.Fields["amount"] != 35.0 || result.Schema != "fee" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero max tokens", mutate: func(c *Config) { c.MaxTokens = 0 }},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }},
		{name: "temperature too high", mutate: func(c *Config) { c.Temperature = 3 }},
		{name: "empty provider", mutate: func(c *Config) { c.Provider = "" }},
		{name: "bad base url", mutate: func(c *Config) { c.BaseURL = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "nope"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestService_PingOllama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := svc.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if svc.Provider() != "ollama" || svc.Model() != "mistral" {
		t.Errorf("unexpected defaults %s/%s", svc.Provider(), svc.Model())
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "cost", want: KindCost},
		{in: "Organisation", want: KindOrganisation},
		{in: "organization", want: KindOrganisation},
		{in: "price", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSchemaFor(t *testing.T) {
	for _, k := range Kinds() {
		s, err := SchemaFor(k)
		if err != nil {
			t.Fatalf("SchemaFor(%s): %v", k, err)
		}
		if s.Name != string(k) {
			t.Errorf("expected schema %q, got %q", k, s.Name)
		}
	}
}
