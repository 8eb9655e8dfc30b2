// File: internal/observability/template.go
package observability

import "regexp"

var tokenPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Interpolate replaces {{key}} tokens in template with values from data.
// Tokens with no matching key are left verbatim rather than treated as an
// error, so a stale message template degrades to a readable message instead
// of breaking alert firing.
func Interpolate(template string, data map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := token[2 : len(token)-2]
		if value, ok := data[key]; ok {
			return value
		}
		return token
	})
}
