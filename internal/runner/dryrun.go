package runner

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hiltest/hiltest/internal/batch"
	"github.com/hiltest/hiltest/internal/executor"
)

// markerPlaceholder stands in for the random completion marker in plans.
const markerPlaceholder = "<marker>"

// DryRunReport describes what a batch would do without touching a device.
type DryRunReport struct {
	BatchName    string
	Description  string
	Target       string
	TotalSteps   int
	SudoSteps    int
	Steps        []DryRunStep
	TemplateVars []string
	DeniedVars   []string
}

// DryRunStep is one planned step.
type DryRunStep struct {
	Index int
	Kind  batch.Kind
	Label string
	// Writes lists the lines sent to the device, in order.
	Writes []string
	// Waits is the text waited for, empty for direct steps.
	Waits   string
	Timeout string
}

// BuildDryRunReport plans the rendered steps of b. denied names the
// environment overrides suppressed while rendering.
func BuildDryRunReport(b *batch.Batch, steps []batch.Step, denied []string) *DryRunReport {
	report := &DryRunReport{
		BatchName:   b.Meta.Name,
		Description: b.Meta.Description,
		Target:      "from command line",
		TotalSteps:  len(steps),
		DeniedVars:  denied,
	}
	if b.Target != nil {
		report.Target = b.Target.Transport.Kind()
	}

	for k := range b.Meta.Vars {
		report.TemplateVars = append(report.TemplateVars, k)
	}
	sort.Strings(report.TemplateVars)

	for i, step := range steps {
		ds := DryRunStep{Index: i, Kind: step.Kind, Label: step.Label()}
		if step.Kind.Waits() {
			ds.Timeout = step.Timeout.String()
		}
		if step.Kind.Sudo() {
			report.SudoSteps++
		}

		switch step.Kind {
		case batch.KindDirect:
			ds.Writes = []string{step.Cmd + "\n"}
		case batch.KindRun:
			ds.Writes = []string{executor.CommandLine(step.Cmd, markerPlaceholder, false)}
			ds.Waits = markerPlaceholder
		case batch.KindAssertRun:
			ds.Writes = []string{executor.CommandLine(step.Cmd, markerPlaceholder, true)}
			ds.Waits = markerPlaceholder
		case batch.KindSudoRun:
			ds.Writes = []string{executor.CommandLine("sudo "+step.Cmd, markerPlaceholder, false)}
			ds.Waits = markerPlaceholder
		case batch.KindSudoAssertRun:
			ds.Writes = []string{executor.CommandLine("sudo "+step.Cmd, markerPlaceholder, true)}
			ds.Waits = markerPlaceholder
		case batch.KindWait:
			ds.Waits = step.Pattern
		case batch.KindWaitRun:
			ds.Writes = []string{step.Cmd + "\n"}
			ds.Waits = step.Pattern
		}
		report.Steps = append(report.Steps, ds)
	}
	return report
}

// FormatDryRunReport writes a human-readable dry-run report to the writer.
func FormatDryRunReport(report *DryRunReport, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "Batch: %s\n", report.BatchName)
	if report.Description != "" {
		_, _ = fmt.Fprintf(w, "Description: %s\n", report.Description)
	}
	_, _ = fmt.Fprintf(w, "Target: %s\n", report.Target)
	_, _ = fmt.Fprintf(w, "Steps: %d | Sudo steps: %d\n", report.TotalSteps, report.SudoSteps)

	if len(report.TemplateVars) > 0 {
		_, _ = fmt.Fprintf(w, "\nTemplate Variables: %s\n", strings.Join(report.TemplateVars, ", "))
	}
	if len(report.DeniedVars) > 0 {
		_, _ = fmt.Fprintf(w, "Denied env overrides: %s\n", strings.Join(report.DeniedVars, ", "))
	}

	sep := strings.Repeat("─", 60)
	_, _ = fmt.Fprintf(w, "\n%s\n", sep)
	_, _ = fmt.Fprintf(w, " %-4s %-16s %-30s %s\n", "#", "Kind", "Step", "Timeout")
	_, _ = fmt.Fprintf(w, "%s\n", sep)

	for _, step := range report.Steps {
		timeout := step.Timeout
		if timeout == "" {
			timeout = "—"
		}
		_, _ = fmt.Fprintf(w, " %-4d %-16s %-30s %s\n",
			step.Index+1, step.Kind, truncate(step.Label, 30), timeout)
		for _, line := range step.Writes {
			_, _ = fmt.Fprintf(w, "     → write %q\n", line)
		}
		if step.Waits != "" {
			_, _ = fmt.Fprintf(w, "     ↳ wait  %q\n", step.Waits)
		}
	}
	_, _ = fmt.Fprintf(w, "%s\n", sep)
	_, _ = fmt.Fprintln(w, "✓ No validation errors")

	return nil
}

// truncate truncates a string to maxLen, adding "..." if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
