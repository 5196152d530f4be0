// Package content renders notification message templates.
package content

import "regexp"

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Render substitutes every {key} token in tmpl with its value from vars.
// Tokens without a matching variable are left verbatim; rendering never
// fails.
func Render(tmpl string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(token string) string {
		key := token[1 : len(token)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		return token
	})
}
