package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// jsonWriter buffers records and writes them on Close: a single record as an
// object, several as an array.
type jsonWriter struct {
	out     io.Writer
	indent  string
	records []Record
}

func (w *jsonWriter) Write(r Record) error {
	w.records = append(w.records, r)
	return nil
}

func (w *jsonWriter) Close() error {
	if len(w.records) == 0 {
		return nil
	}

	enc := json.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}

	if len(w.records) == 1 {
		return enc.Encode(w.records[0])
	}
	return enc.Encode(w.records)
}

// jsonlWriter writes each record as one JSON line as soon as it arrives.
type jsonlWriter struct {
	out io.Writer
}

func (w *jsonlWriter) Write(r Record) error {
	enc := json.NewEncoder(w.out)
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

func (w *jsonlWriter) Close() error { return nil }

// yamlWriter writes each record as its own YAML document.
type yamlWriter struct {
	out io.Writer
	enc *yaml.Encoder
}

func (w *yamlWriter) Write(r Record) error {
	if w.enc == nil {
		w.enc = yaml.NewEncoder(w.out)
		w.enc.SetIndent(2)
	}
	return w.enc.Encode(map[string]any(r))
}

func (w *yamlWriter) Close() error {
	if w.enc == nil {
		return nil
	}
	return w.enc.Close()
}
