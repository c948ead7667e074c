// Package schema provides field schema definitions for LLM extraction.
package schema

import (
	"fmt"
)

// FieldType represents the type of a schema field.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeNumber     FieldType = "number"
	TypeStringList FieldType = "string_list"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeStringList:
		return true
	}
	return false
}

// Field represents a single field in the schema.
type Field struct {
	Name        string    `json:"name" yaml:"name" validate:"required"`
	Type        FieldType `json:"type" yaml:"type" validate:"required,oneof=string number string_list"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Examples    []string  `json:"examples,omitempty" yaml:"examples,omitempty"` // Example values
}

// Reason classifies a validation failure.
type Reason string

const (
	ReasonMissingRequired Reason = "missing_required"
	ReasonTypeMismatch    Reason = "type_mismatch"
)

// ValidationError represents a validation failure for one field.
type ValidationError struct {
	Field   string
	Reason  Reason
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (f Field) jsonType() any {
	var t string
	switch f.Type {
	case TypeNumber:
		t = "number"
	case TypeStringList:
		t = "array"
	default:
		t = "string"
	}
	if f.Required {
		return t
	}
	return []any{t, "null"}
}

// project converts a decoded JSON value into the Go value carried by a result.
// The value must already have passed schema validation.
func (f Field) project(val any) (any, error) {
	if val == nil {
		return nil, nil
	}

	switch f.Type {
	case TypeString:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", val)
		}
		return s, nil
	case TypeNumber:
		n, ok := val.(float64)
		if !ok {
			return nil, fmt.Errorf("expected number, got %T", val)
		}
		return n, nil
	case TypeStringList:
		arr, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", val)
		}
		out := make([]string, 0, len(arr))
		for i, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d: expected string, got %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported field type: %s", f.Type)
}
