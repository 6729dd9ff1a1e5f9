// Package template renders batch variables into step commands and wait
// patterns with text/template.
package template

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/hiltest/hiltest/internal/envfilter"
)

// Render executes tmpl against vars. A reference to an undefined variable
// is an error. Text without actions is returned unchanged.
func Render(tmpl string, vars map[string]string) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("step").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// MergeVarsFiltered copies vars and lets a non-empty environment variable
// of the same name override each entry, unless the name matches one of
// denyPatterns. A denied variable keeps its batch value. The sorted names
// of denied overrides are returned alongside the merged map.
func MergeVarsFiltered(vars map[string]string, denyPatterns []string) (map[string]string, []string) {
	result := make(map[string]string, len(vars))
	var denied []string

	for k, v := range vars {
		result[k] = v
		envVal := os.Getenv(k)
		if envVal == "" {
			continue
		}
		if envfilter.IsDenied(k, denyPatterns) {
			denied = append(denied, k)
			continue
		}
		result[k] = envVal
	}

	sort.Strings(denied)
	return result, denied
}
