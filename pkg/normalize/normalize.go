// Package normalize post-processes validated extraction fields.
package normalize

import (
	"regexp"
	"strings"
)

var (
	// abbreviation matches the first parenthesised group of an entry.
	abbreviation = regexp.MustCompile(`\((.*?)\)`)
	// parenthesised matches every parenthesised group of an entry.
	parenthesised = regexp.MustCompile(`\(.*?\)`)
)

// Organisations splits "Full Name (Abbreviation)" entries into two entries,
// the name followed by the abbreviation. Entries without parentheses are kept
// verbatim. Order is preserved and duplicates are not collapsed.
func Organisations(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		m := abbreviation.FindStringSubmatch(entry)
		if m == nil {
			out = append(out, entry)
			continue
		}
		name := strings.TrimSpace(parenthesised.ReplaceAllString(entry, ""))
		out = append(out, name, m[1])
	}
	return out
}

// Func rewrites the validated fields of a result in place.
type Func func(fields map[string]any)

// Fields returns a Func that applies Organisations to the named string list fields.
// Fields that are absent or not string lists are left untouched.
func Fields(names ...string) Func {
	return func(fields map[string]any) {
		for _, name := range names {
			if list, ok := fields[name].([]string); ok {
				fields[name] = Organisations(list)
			}
		}
	}
}
