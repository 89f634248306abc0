// Package prompt renders the {{.var}} placeholders in a call's prompt
// template before it is handed to the mode adapter.
package prompt

import (
	"fmt"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{\.([A-Za-z0-9_]+)\}\}`)

// Render expands every {{.key}} placeholder in template against vars in a
// single pass. Unlike a find-and-replace per variable, a placeholder with
// no matching entry in vars is a hard error rather than being left in
// place: an unresolved placeholder reaching the provider as literal text
// inside the prompt would silently corrupt the call the rest of this
// engine is built to get right.
func Render(template string, vars map[string]any) (string, error) {
	var missing []string

	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return fmt.Sprint(value)
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("prompt: unresolved template variable(s): %v", missing)
	}

	return rendered, nil
}
