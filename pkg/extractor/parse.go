package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/govextract/pkg/schema"
)

// Parse locates the single JSON object in raw model output and validates it
// against s. The returned map holds exactly the fields declared by s.
//
// Surrounding whitespace, a markdown code fence and prose before or after the
// object are tolerated. No object, or more than one, is a KindSchemaParse
// error; a payload that breaks the schema is a KindValidation error.
func Parse(raw string, s *schema.Schema) (map[string]any, error) {
	payload, err := locatePayload(raw)
	if err != nil {
		return nil, &Error{Kind: KindSchemaParse, Raw: raw, Err: err}
	}

	fields, violations := s.Validate(payload)
	if len(violations) > 0 {
		return nil, &Error{
			Kind:       KindValidation,
			Raw:        raw,
			Violations: violations,
			Err:        violationsError(violations),
		}
	}
	return fields, nil
}

func locatePayload(raw string) (map[string]any, error) {
	content := StripMarkdownCodeBlock(raw)
	if content == "" {
		return nil, errors.New("empty output")
	}

	var whole map[string]any
	if err := json.Unmarshal([]byte(content), &whole); err == nil && whole != nil {
		return whole, nil
	}

	objects, err := scanObjects(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, truncateForError(raw))
	}
	switch len(objects) {
	case 0:
		return nil, fmt.Errorf("no JSON object found in output: %s", truncateForError(raw))
	case 1:
		return objects[0], nil
	default:
		return nil, fmt.Errorf("found %d JSON objects in output, expected one", len(objects))
	}
}

// scanObjects decodes every top-level JSON object embedded in prose. Only a
// brace outside any object starts a candidate; an object that fails to decode
// is skipped as a whole, and one that never closes ends the scan with an
// error. An array of objects is rejected instead of being unwrapped.
func scanObjects(text string) ([]map[string]any, error) {
	var objects []map[string]any
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			if strings.HasPrefix(strings.TrimLeft(text[i+1:], " \t\r\n"), "{") {
				return nil, errors.New("found a JSON array, expected a single object")
			}
		case '{':
			dec := json.NewDecoder(strings.NewReader(text[i:]))
			var obj map[string]any
			if err := dec.Decode(&obj); err == nil {
				objects = append(objects, obj)
				i += int(dec.InputOffset()) - 1
				continue
			}
			end := closingBrace(text, i)
			if end < 0 {
				return nil, errors.New("unterminated JSON object in output")
			}
			i = end
		}
	}
	return objects, nil
}

// closingBrace returns the index of the brace closing the one at start, or -1.
// Braces inside JSON strings are not counted.
func closingBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// StripMarkdownCodeBlock removes a markdown code fence around the output.
// Some models wrap their JSON in ```json ... ``` blocks.
func StripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	} else {
		return s
	}

	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
