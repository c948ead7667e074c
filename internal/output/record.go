package output

import (
	"github.com/jmylchreest/govextract/pkg/extractor"
)

// Record is one rendered result: the extracted fields merged with the input
// text, the same shape the HTTP API returns.
type Record map[string]any

// Meta describes how a result was produced.
type Meta struct {
	Schema       string  `json:"schema" yaml:"schema"`
	Provider     string  `json:"provider" yaml:"provider"`
	Model        string  `json:"model" yaml:"model"`
	Attempts     int     `json:"attempts" yaml:"attempts"`
	InputTokens  int     `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int     `json:"output_tokens" yaml:"output_tokens"`
	DurationMS   float64 `json:"duration_ms" yaml:"duration_ms"`
	Source       string  `json:"source,omitempty" yaml:"source,omitempty"`
}

// RecordOption adjusts a Record built by FromResult.
type RecordOption func(Record, *extractor.Result)

// WithMeta adds a "_meta" entry describing the extraction.
func WithMeta(source string) RecordOption {
	return func(rec Record, r *extractor.Result) {
		rec["_meta"] = Meta{
			Schema:       r.Schema,
			Provider:     r.Provider,
			Model:        r.Model,
			Attempts:     r.Attempts,
			InputTokens:  r.Usage.InputTokens,
			OutputTokens: r.Usage.OutputTokens,
			DurationMS:   float64(r.Duration.Microseconds()) / 1000,
			Source:       source,
		}
	}
}

// WithRaw adds the raw model output under "_raw".
func WithRaw() RecordOption {
	return func(rec Record, r *extractor.Result) {
		rec["_raw"] = r.Raw
	}
}

// FromResult builds a Record from an extraction result.
func FromResult(r *extractor.Result, opts ...RecordOption) Record {
	rec := make(Record, len(r.Fields)+1)
	for k, v := range r.Fields {
		rec[k] = v
	}
	rec["input_text"] = r.InputText
	for _, opt := range opts {
		opt(rec, r)
	}
	return rec
}
