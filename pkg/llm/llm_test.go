package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func newOllamaServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaProvider_Execute(t *testing.T) {
	var got ollamaRequest
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "mistral",
			"message":           map[string]string{"role": "assistant", "content": `{"cost": 20}`},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 42,
			"eval_count":        7,
		})
	})

	p, err := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}

	resp, err := p.Execute(context.Background(), Request{
		Messages:    []Message{{Role: RoleUser, Content: "hello"}},
		MaxTokens:   512,
		Temperature: 0,
		JSONSchema:  map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if resp.Content != `{"cost": 20}` {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.InputTokens != 42 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
	if got.Model != DefaultOllamaModel {
		t.Errorf("expected default model %q, got %q", DefaultOllamaModel, got.Model)
	}
	if got.Stream {
		t.Error("stream must be disabled")
	}
	if got.Options.NumPredict != 512 {
		t.Errorf("expected num_predict 512, got %d", got.Options.NumPredict)
	}
	if string(got.Format) != `{"type":"object"}` {
		t.Errorf("expected schema format, got %s", got.Format)
	}
}

func TestOllamaProvider_SendsZeroTemperature(t *testing.T) {
	var raw map[string]any
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"message":{"content":"{}"}}`))
	})

	p, _ := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	if _, err := p.Execute(context.Background(), Request{MaxTokens: 10}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	opts := raw["options"].(map[string]any)
	if v, ok := opts["temperature"]; !ok || v != 0.0 {
		t.Errorf("temperature 0 must be sent explicitly, got %v", opts)
	}
}

func TestOllamaProvider_StatusError(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})

	p, _ := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	_, err := p.Execute(context.Background(), Request{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", statusErr.StatusCode)
	}
}

func TestOllamaProvider_Ping(t *testing.T) {
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	})

	p, _ := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "nil", err: nil, want: nil},
		{name: "deadline", err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), want: ErrBackendTimeout},
		{name: "status", err: &StatusError{Provider: "ollama", StatusCode: 500}, want: ErrBackendUnavailable},
		{name: "other", err: errors.New("connection refused"), want: ErrBackendUnavailable},
		{name: "already classified", err: Classify(context.DeadlineExceeded), want: ErrBackendTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error must wrap the original, got %v", got)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	p, _ := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	c, err := NewClient(p, GenerationConfig{MaxTokens: 16, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = c.Generate(context.Background(), "prompt", nil)
	if !errors.Is(err, ErrBackendTimeout) {
		t.Errorf("expected ErrBackendTimeout, got %v", err)
	}
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens on url any more

	p, _ := NewOllamaProvider(ProviderConfig{BaseURL: url})
	c, _ := NewClient(p, DefaultGenerationConfig())

	_, err := c.Generate(context.Background(), "prompt", nil)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestClient_SendsFixedSettings(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	srv := newOllamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b, _ := json.Marshal(req)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"message":{"content":"{}"}}`))
	})

	p, _ := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	c, _ := NewClient(p, DefaultGenerationConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Generate(context.Background(), "same prompt", nil); err != nil {
				t.Errorf("Generate: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(bodies) != 8 {
		t.Fatalf("expected 8 requests, got %d", len(bodies))
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("requests differ:\n%s\n%s", bodies[0], b)
		}
	}
	if !strings.Contains(bodies[0], `"num_predict":512`) {
		t.Errorf("expected default max tokens in request, got %s", bodies[0])
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	p, _ := NewOllamaProvider(ProviderConfig{})
	if _, err := NewClient(p, GenerationConfig{Temperature: -1, MaxTokens: 10, Timeout: time.Second}); err == nil {
		t.Error("expected error for negative temperature")
	}
	if _, err := NewClient(p, GenerationConfig{MaxTokens: 0, Timeout: time.Second}); err == nil {
		t.Error("expected error for zero max tokens")
	}
}

func TestRegistry(t *testing.T) {
	providers := AvailableProviders()
	want := []string{"anthropic", "ollama", "openai"}
	for _, name := range want {
		found := false
		for _, p := range providers {
			if p == name {
				found = true
			}
		}
		if !found {
			t.Errorf("expected provider %q to be registered, got %v", name, providers)
		}
	}

	p, err := NewProvider("ollama", ProviderConfig{Model: "llama3.2"})
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Name() != "ollama" || p.Model() != "llama3.2" {
		t.Errorf("unexpected provider %s/%s", p.Name(), p.Model())
	}

	if _, err := NewProvider("nope", ProviderConfig{}); err == nil {
		t.Error("expected error for unknown provider")
	}

	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewProvider("openai", ProviderConfig{}); err == nil {
		t.Error("expected error for missing OpenAI key")
	}

	if GetDefaultModel("ollama") != "mistral" {
		t.Errorf("unexpected default model %q", GetDefaultModel("ollama"))
	}
}

func TestMultiObserver(t *testing.T) {
	var calls []int
	obs := MultiObserver{
		ObserverFunc(func(ctx context.Context, e CallEvent) { calls = append(calls, 1) }),
		ObserverFunc(func(ctx context.Context, e CallEvent) { calls = append(calls, 2) }),
		LogObserver{},
	}
	obs.OnCall(context.Background(), CallEvent{Provider: "ollama", Response: &Response{Content: "{}"}})

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("observers called out of order: %v", calls)
	}
}
