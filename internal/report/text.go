package report

import (
	"fmt"
	"io"
	"strings"
)

// FormatText writes a human summary: one line per step and a verdict.
func FormatText(w io.Writer, result *RunResult) error {
	var b strings.Builder
	for _, s := range result.Steps {
		mark := "✓"
		switch {
		case s.Skipped:
			mark = "-"
		case !s.Passed:
			mark = "✗"
		}
		fmt.Fprintf(&b, "  %s step[%d] %s: %s", mark, s.Index, s.Kind, s.Label)
		if !s.Skipped {
			fmt.Fprintf(&b, " (%.3fs)", s.Duration)
		}
		b.WriteByte('\n')
	}

	if result.Passed {
		fmt.Fprintf(&b, "✓ Batch %q passed: %d/%d steps\n", result.Batch, result.PassedSteps, result.TotalSteps)
	} else {
		fmt.Fprintf(&b, "✗ Batch %q failed: %d/%d steps passed\n", result.Batch, result.PassedSteps, result.TotalSteps)
		if result.Error != "" {
			fmt.Fprintf(&b, "  error: %s\n", result.Error)
		}
	}
	fmt.Fprintf(&b, "  session: %s\n", result.Session)

	_, err := io.WriteString(w, b.String())
	return err
}
