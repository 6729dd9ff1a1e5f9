package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/hiltest/hiltest/internal/batch"
	"github.com/hiltest/hiltest/internal/tty"
)

// ColorEnvVar forces color on or off.
const ColorEnvVar = "HILTEST_COLOR"

// colorMode controls ANSI color output in error messages.
type colorMode int

const (
	colorAuto colorMode = iota
	colorOn
	colorOff
)

// resolveColor determines whether to emit ANSI color codes.
// Priority: HILTEST_COLOR env > NO_COLOR env > auto-detect stderr TTY.
func resolveColor() colorMode {
	if v := os.Getenv(ColorEnvVar); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return colorOn
		case "0", "false", "no", "off":
			return colorOff
		}
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return colorOff
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return colorOn
	}
	return colorOff
}

func red(s string, c colorMode) string {
	if c == colorOn {
		return "\033[31m" + s + "\033[0m"
	}
	return s
}

func green(s string, c colorMode) string {
	if c == colorOn {
		return "\033[32m" + s + "\033[0m"
	}
	return s
}

func bold(s string, c colorMode) string {
	if c == colorOn {
		return "\033[1m" + s + "\033[0m"
	}
	return s
}

// maxBufferPreview is how much of the accumulated output a timeout report
// shows, counted from the end.
const maxBufferPreview = 400

// FormatStepError formats a failed step for the terminal: what was sent,
// what was expected, and what the device printed instead.
func FormatStepError(batchName string, err *StepError) string {
	color := resolveColor()
	var sb strings.Builder

	sb.WriteString(bold(fmt.Sprintf("Step %d of %q failed (%s):\n",
		err.Index+1, batchName, err.Step.Kind), color))
	sb.WriteString("\n")

	if err.Step.Kind != batch.KindWait {
		fmt.Fprintf(&sb, "  Command:  %s\n", err.Step.Cmd)
	}

	var te *tty.TimeoutError
	var ue *tty.UnsupportedError
	switch {
	case errors.As(err.Err, &te):
		fmt.Fprintf(&sb, "  Expected: %s\n", green(fmt.Sprintf("%q", te.Expected), color))
		fmt.Fprintf(&sb, "  Waited:   %s\n", te.Timeout)
		if err.Step.Kind == batch.KindAssertRun || err.Step.Kind == batch.KindSudoAssertRun {
			sb.WriteString("  Note: the marker is only echoed when the command exits 0.\n")
		}
		fmt.Fprintf(&sb, "  Received (last %d chars):\n", maxBufferPreview)
		sb.WriteString(red(indentPreview(tail(te.Actual, maxBufferPreview)), color))
	case errors.As(err.Err, &ue):
		fmt.Fprintf(&sb, "  Error:    %s\n", red(ue.Error(), color))
		if err.Step.Kind.Sudo() {
			sb.WriteString("  Hint: enable exec.sudo in the chain configuration.\n")
		}
	case errors.Is(err.Err, context.Canceled), errors.Is(err.Err, context.DeadlineExceeded):
		fmt.Fprintf(&sb, "  Run interrupted before this step: %v\n", err.Err)
	default:
		fmt.Fprintf(&sb, "  Error:    %s\n", red(err.Err.Error(), color))
	}

	return sb.String()
}

// tail returns the last n bytes of s, marking the cut.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// indentPreview quotes control characters and indents every line by six
// spaces.
func indentPreview(s string) string {
	if s == "" {
		return "      (nothing)\n"
	}
	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		q := fmt.Sprintf("%q", line)
		sb.WriteString("      " + q[1:len(q)-1] + "\n")
	}
	return sb.String()
}
