package schema

import (
	"encoding/json"
	"strings"
)

// JSONSchema converts the schema to a JSON Schema document.
// Extraneous properties are allowed so that stray keys from the model are
// ignored rather than rejected.
func (s *Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.fields))
	required := make([]string, 0)

	for _, field := range s.fields {
		properties[field.Name] = fieldToJSONSchema(field)
		if field.Required {
			required = append(required, field.Name)
		}
	}

	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		doc["required"] = required
	}

	if s.description != "" {
		doc["description"] = s.description
	}

	return doc
}

// fieldToJSONSchema converts a Field to JSON Schema format.
func fieldToJSONSchema(f Field) map[string]any {
	doc := map[string]any{
		"type": f.jsonType(),
	}

	if f.Description != "" {
		doc["description"] = f.Description
	}

	if len(f.Examples) > 0 {
		doc["examples"] = f.Examples
	}

	if f.Type == TypeStringList {
		doc["items"] = map[string]any{"type": "string"}
	}

	return doc
}

// FormatInstructions renders the schema as the output contract embedded in a prompt.
// The text is identical for every call on the same schema.
func (s *Schema) FormatInstructions() string {
	var sb strings.Builder

	sb.WriteString("The output must be a single JSON object that conforms to the JSON schema below.\n\n")

	if s.description != "" {
		sb.WriteString(s.description)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Fields:\n")
	for _, field := range s.fields {
		writeFieldDescription(&sb, field)
	}

	sb.WriteString("\nFor example, for the schema {\"properties\": {\"foo\": {\"type\": \"array\", \"items\": {\"type\": \"string\"}}}, \"required\": [\"foo\"]}\n")
	sb.WriteString("the object {\"foo\": [\"bar\", \"baz\"]} is well-formatted. ")
	sb.WriteString("The object {\"properties\": {\"foo\": [\"bar\", \"baz\"]}} is not.\n\n")

	// encoding/json sorts map keys, which keeps the rendering stable.
	doc, _ := json.MarshalIndent(s.JSONSchema(), "", "  ")
	sb.WriteString("Here is the output schema:\n```\n")
	sb.Write(doc)
	sb.WriteString("\n```")

	return sb.String()
}

// writeFieldDescription writes a field description to the string builder.
func writeFieldDescription(sb *strings.Builder, f Field) {
	sb.WriteString("- ")
	sb.WriteString(f.Name)
	sb.WriteString(" (")
	sb.WriteString(string(f.Type))

	if f.Required {
		sb.WriteString(", required")
	} else {
		sb.WriteString(", optional: use null if not found")
	}

	sb.WriteString(")")

	if f.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Description)
	}

	sb.WriteString("\n")
}
