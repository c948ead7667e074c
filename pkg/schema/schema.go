package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Schema defines the fields an extraction must produce.
// A Schema is safe for concurrent use. The exported fields describe the schema
// as it was built; the prompt rendering and validation work on a private copy
// taken by New or From*, so changing them afterwards has no effect.
type Schema struct {
	Name        string  `json:"name" yaml:"name" validate:"required"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields" validate:"required,min=1,unique=Name,dive"`

	description string
	fields      []Field
	compiled    *jsonschema.Schema
}

// New creates a Schema from field descriptors.
func New(name, description string, fields ...Field) (*Schema, error) {
	s := &Schema{
		Name:        name,
		Description: description,
		Fields:      append([]Field(nil), fields...),
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for package-level schemas.
func MustNew(name, description string, fields ...Field) *Schema {
	s, err := New(name, description, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// FromFile loads a schema from a JSON or YAML file.
func FromFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return FromJSON(data)
	case ".yaml", ".yml":
		return FromYAML(data)
	default:
		return nil, fmt.Errorf("unsupported schema file format: %s", ext)
	}
}

// FromJSON creates a schema from JSON data.
func FromJSON(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return &s, nil
}

// FromYAML creates a schema from YAML data.
func FromYAML(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML schema: %w", err)
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return &s, nil
}

// build checks the descriptor invariants and compiles the JSON Schema validator.
func (s *Schema) build() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, formatDescriptorError(e))
			}
			return fmt.Errorf("invalid schema %q: %s", s.Name, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid schema %q: %w", s.Name, err)
	}

	s.description = s.Description
	s.fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		f.Examples = append([]string(nil), f.Examples...)
		s.fields[i] = f
	}

	doc, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return fmt.Errorf("failed to marshal JSON schema: %w", err)
	}

	url := "mem://schema/" + s.Name + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return fmt.Errorf("failed to load JSON schema: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("failed to compile JSON schema: %w", err)
	}
	s.compiled = compiled
	return nil
}

// Field returns the descriptor with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks a decoded payload against the schema.
//
// On success it returns a map holding exactly the declared fields: optional
// fields the model left out are present with a nil value, extraneous keys are
// dropped and string lists are converted to []string.
func (s *Schema) Validate(payload map[string]any) (map[string]any, []ValidationError) {
	if s.compiled == nil {
		return nil, []ValidationError{{Message: "schema was not built with New or From*"}}
	}

	if err := s.compiled.Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return nil, []ValidationError{{Message: err.Error()}}
		}
		return nil, s.classify(payload, ve)
	}

	fields := make(map[string]any, len(s.fields))
	var errs []ValidationError
	for _, f := range s.fields {
		v, err := f.project(payload[f.Name])
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   f.Name,
				Reason:  ReasonTypeMismatch,
				Message: err.Error(),
				Value:   payload[f.Name],
			})
			continue
		}
		fields[f.Name] = v
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return fields, nil
}

// classify flattens a JSON Schema validation error into per-field errors.
func (s *Schema) classify(payload map[string]any, ve *jsonschema.ValidationError) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)

	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}

		switch {
		case strings.HasSuffix(e.KeywordLocation, "/required"):
			for _, f := range s.fields {
				if _, ok := payload[f.Name]; f.Required && !ok && !seen[f.Name] {
					seen[f.Name] = true
					errs = append(errs, ValidationError{
						Field:   f.Name,
						Reason:  ReasonMissingRequired,
						Message: "required field is missing",
					})
				}
			}
		default:
			name := fieldFromPointer(e.InstanceLocation)
			if seen[name] {
				return
			}
			seen[name] = true
			errs = append(errs, ValidationError{
				Field:   name,
				Reason:  ReasonTypeMismatch,
				Message: e.Message,
				Value:   payload[name],
			})
		}
	}
	walk(ve)
	return errs
}

// fieldFromPointer returns the top-level property named by a JSON pointer.
func fieldFromPointer(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if i := strings.IndexByte(ptr, '/'); i >= 0 {
		ptr = ptr[:i]
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(ptr)
}

// formatDescriptorError creates a human-readable error message.
func formatDescriptorError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Namespace() + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", e.Namespace(), e.Param())
	case "unique":
		return "field names must be unique"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", e.Namespace(), e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s'", e.Namespace(), e.Tag())
	}
}
