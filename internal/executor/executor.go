// Package executor runs shell command lines over a Tty and detects their
// completion.
//
// Each script operation appends an echo of a random sentinel to the command
// line and waits until the sentinel shows up in the output. The shell's
// echo of the command line itself is filtered out first so it cannot be
// mistaken for the marker.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/metrics"
	"github.com/hiltest/hiltest/internal/tty"
)

// DefaultPollInterval is the fallback wake-up period of a wait when the
// wrapped Tty cannot signal new data.
const DefaultPollInterval = 100 * time.Millisecond

// Operation kinds, used as metric labels.
const (
	KindScriptRun        = "script_run"
	KindAssertScriptRun  = "assert_script_run"
	KindScriptSudo       = "script_sudo"
	KindAssertScriptSudo = "assert_script_sudo"
	KindWaitSerial       = "wait_serial"
)

// Options configures an Executor.
type Options struct {
	// PollInterval bounds how long a wait sleeps between reads when no
	// arrival signal fires. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Sentinel generates completion markers. Defaults to NewSentinel.
	Sentinel func() string
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Script is the capability of running commands to completion.
type Script interface {
	tty.Tty
	ScriptRun(cmd string, timeout time.Duration) (string, error)
	AssertScriptRun(cmd string, timeout time.Duration) (string, error)
	BackgroundScriptRun(cmd string) error
	Writeln(cmd string) error
	WaitSerial(expected string, timeout time.Duration) (string, error)
}

// Executor wraps a Tty with command execution. Read, ReadLine and Write
// pass straight through and bypass completion detection.
type Executor struct {
	*tty.Base

	interval time.Duration
	sentinel func() string
	log      *slog.Logger
	metrics  *metrics.Metrics

	// mu serializes waits and guards retained, which keeps output that
	// arrived after the last match for the next wait.
	mu       sync.Mutex
	retained []byte
}

// New wraps inner.
func New(inner tty.Tty, opts Options) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Sentinel == nil {
		opts.Sentinel = NewSentinel
	}
	return &Executor{
		Base:     tty.NewBase(inner),
		interval: opts.PollInterval,
		sentinel: opts.Sentinel,
		log:      logger.OrDiscard(opts.Logger).With("component", "executor"),
		metrics:  opts.Metrics,
	}
}

// Read drains the wrapped Tty.
func (e *Executor) Read() ([]byte, error) {
	var out []byte
	err := e.Do(func(inner tty.Tty) error {
		data, err := inner.Read()
		out = data
		return err
	})
	return out, err
}

// ReadLine reads one line from the wrapped Tty.
func (e *Executor) ReadLine() ([]byte, error) {
	var out []byte
	err := e.Do(func(inner tty.Tty) error {
		line, err := inner.ReadLine()
		out = line
		return err
	})
	return out, err
}

// Write forwards data unchanged.
func (e *Executor) Write(data []byte) error {
	return e.Do(func(inner tty.Tty) error {
		return inner.Write(data)
	})
}

// ScriptRun runs cmd and returns what it printed. The marker is echoed
// whatever the exit status of cmd.
func (e *Executor) ScriptRun(cmd string, timeout time.Duration) (string, error) {
	return e.script(KindScriptRun, cmd, false, timeout)
}

// AssertScriptRun runs cmd and returns what it printed. The marker is only
// echoed when cmd exits zero, so a failing command ends in a TimeoutError.
func (e *Executor) AssertScriptRun(cmd string, timeout time.Duration) (string, error) {
	return e.script(KindAssertScriptRun, cmd, true, timeout)
}

// BackgroundScriptRun starts cmd as a background job and returns at once.
func (e *Executor) BackgroundScriptRun(cmd string) error {
	return e.send(cmd + " &\n")
}

// Writeln writes cmd followed by a newline without waiting for anything.
func (e *Executor) Writeln(cmd string) error {
	return e.send(cmd + "\n")
}

// WaitSerial waits until expected shows up in the output and returns
// everything that came before it.
func (e *Executor) WaitSerial(expected string, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	out, err := e.wait(expected, "", timeout)
	e.observe(KindWaitSerial, start, err)
	if err != nil {
		return "", err
	}
	return out, nil
}

// CommandLine returns the line written to run cmd: the command followed by
// an echo of marker, chained with "&&" when assert is set and ";" otherwise.
func CommandLine(cmd, marker string, assert bool) string {
	sep := ";"
	if assert {
		sep = "&&"
	}
	return cmd + " " + sep + " echo " + marker + " \n"
}

func (e *Executor) script(kind, cmd string, assert bool, timeout time.Duration) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	marker := e.sentinel()
	line := CommandLine(cmd, marker, assert)
	start := time.Now()
	if err := e.send(line); err != nil {
		e.observe(kind, start, err)
		return "", err
	}

	out, err := e.wait(marker, marker, timeout)
	e.observe(kind, start, err)
	if err != nil {
		var te *tty.TimeoutError
		if errors.As(err, &te) {
			te.Command = cmd
		}
		return "", err
	}
	return out, nil
}

func (e *Executor) send(line string) error {
	e.log.Info("write to shell", "line", line)
	if err := e.Write([]byte(line)); err != nil {
		return fmt.Errorf("failed to write %q: %w", line, err)
	}
	return nil
}

// wait accumulates output until expected appears. When echoMarker is set,
// the shell's echo of "echo <marker>" is dropped once it shows up; channels
// that do not echo their input still complete.
func (e *Executor) wait(expected, echoMarker string, timeout time.Duration) (string, error) {
	e.log.Debug("waiting for pattern", "expected", expected, "timeout", timeout)
	m := newMatcher([]byte(expected))
	filtered := echoMarker == ""

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	expired := false
	for {
		ready := e.Ready()
		data, err := e.Read()
		if err != nil {
			return "", fmt.Errorf("waiting for %q: %w", expected, err)
		}
		e.retained = append(e.retained, data...)

		if !filtered {
			e.retained, filtered = filterEcho(e.retained, echoMarker)
		}
		if i := indexOutsideEcho(m, e.retained, echoMarker != ""); i >= 0 {
			out := string(e.retained[:i])
			e.retained = append([]byte(nil), e.retained[i+len(expected):]...)
			e.log.Debug("matched pattern", "expected", expected)
			return out, nil
		}

		if expired {
			actual := string(e.retained)
			e.log.Error("timeout", "expected", expected, "actual", actual, "timeout", timeout)
			return "", &tty.TimeoutError{Expected: expected, Actual: actual, Timeout: timeout}
		}

		select {
		case <-deadline.C:
			// One last read so output that arrived with the deadline
			// still counts.
			expired = true
		case <-ready:
		case <-ticker.C:
		}
	}
}

// indexOutsideEcho returns the first match of m in buf. With skipEcho set,
// a match directly preceded by "echo " is part of the echoed command line
// and is skipped.
func indexOutsideEcho(m *matcher, buf []byte, skipEcho bool) int {
	const echo = "echo "
	for off := 0; off <= len(buf); {
		i := m.index(buf[off:])
		if i < 0 {
			return -1
		}
		i += off
		if !skipEcho || i < len(echo) || string(buf[i-len(echo):i]) != echo {
			return i
		}
		off = i + 1
	}
	return -1
}

func (e *Executor) observe(kind string, start time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, tty.ErrTimeout):
		outcome = metrics.OutcomeTimeout
	default:
		outcome = metrics.OutcomeError
	}
	e.metrics.ObserveCommand(kind, outcome, time.Since(start))
}

// As reports whether t itself can run scripts.
func As(t tty.Tty) (Script, error) {
	if s, ok := t.(Script); ok {
		return s, nil
	}
	return nil, tty.Unsupported(t, "script execution")
}

// Verify compile-time interface compliance.
var (
	_ Script            = (*Executor)(nil)
	_ tty.Wrapper       = (*Executor)(nil)
	_ tty.InnerAccessor = (*Executor)(nil)
	_ tty.Signaler      = (*Executor)(nil)
)
