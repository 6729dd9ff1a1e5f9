// Package envfilter deny-lists environment variables by glob pattern. It
// keeps secrets of the operator's environment out of batch variables and
// out of the environment handed to a spawned device shell.
package envfilter

import (
	"path"
	"strings"
)

// controlVars are hiltest's own settings; no pattern ever denies them.
var controlVars = []string{
	"HILTEST_LOG_LEVEL",
	"HILTEST_TRACE",
	"HILTEST_COLOR",
	"HILTEST_CHAIN",
}

// IsDenied reports whether name matches one of the glob patterns. Patterns
// use path.Match syntax; a malformed pattern matches nothing. Control
// variables are never denied.
func IsDenied(name string, patterns []string) bool {
	if IsExempt(name) {
		return false
	}
	for _, pattern := range patterns {
		if matched, err := path.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// IsExempt reports whether name is a hiltest control variable.
func IsExempt(name string) bool {
	for _, v := range controlVars {
		if strings.EqualFold(name, v) {
			return true
		}
	}
	return false
}

// Filter returns the KEY=VALUE entries of environ whose key is not denied.
// Entries without '=' are kept as they are.
func Filter(environ, patterns []string) []string {
	if len(patterns) == 0 {
		return environ
	}
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		if IsDenied(name, patterns) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
