// Package output renders extraction results for the CLI.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat converts a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatJSONL, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported output format: %s (use json, jsonl or yaml)", name)
}

// Writer serializes records. Formats that cannot stream buffer records
// until Close.
type Writer interface {
	Write(r Record) error
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	indent string
}

// WithIndent sets the indentation used by the JSON writer. An empty indent
// produces compact output.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) { c.indent = indent }
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{indent: "  "}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return &jsonWriter{out: w, indent: cfg.indent}, nil
	case FormatJSONL:
		return &jsonlWriter{out: w}, nil
	case FormatYAML:
		return &yamlWriter{out: w}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
