// Package interpolate substitutes session variable placeholders in text.
//
// Both {name} and {{name}} forms are supported, matched case-insensitively
// against the variable bag. Unknown variables resolve to the empty string;
// interpolation is a pure, total function and never fails.
package interpolate

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}|\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}`)

// Interpolate replaces every {var} and {{var}} occurrence in text with the
// matching value from variables. Lookup is case-insensitive.
func Interpolate(text string, variables map[string]string) string {
	if text == "" || !strings.ContainsRune(text, '{') {
		return text
	}

	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)

		name := groups[1]
		if name == "" {
			name = groups[2]
		}

		return lookup(variables, name)
	})
}

// Map applies Interpolate to every value of a string map, returning a copy.
// A nil input yields nil.
func Map(values map[string]string, variables map[string]string) map[string]string {
	if values == nil {
		return nil
	}

	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = Interpolate(v, variables)
	}

	return out
}

func lookup(variables map[string]string, name string) string {
	if v, ok := variables[name]; ok {
		return v
	}

	for k, v := range variables {
		if strings.EqualFold(k, name) {
			return v
		}
	}

	return ""
}
