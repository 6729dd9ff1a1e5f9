package runner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hiltest/hiltest/internal/batch"
)

// TraceEnvVar is the environment variable name for enabling trace mode.
const TraceEnvVar = "HILTEST_TRACE"

// WriteTraceOutput writes one trace line for a finished step.
func WriteTraceOutput(w io.Writer, stepIndex int, step batch.Step, outcome string, elapsed time.Duration) {
	_, _ = fmt.Fprintf(w, "[hiltest] step=%d kind=%s label=%q outcome=%s elapsed=%s\n",
		stepIndex, step.Kind, step.Label(), outcome, elapsed.Round(time.Millisecond))
}

// IsTraceEnabled returns true if trace mode should be enabled.
func IsTraceEnabled(envValue string) bool {
	switch strings.ToLower(envValue) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
