// Package runner executes batches of command descriptors against a script
// executor. Execution is fail-fast: the first failing step ends the run and
// every later step is reported as not run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hiltest/hiltest/internal/batch"
	"github.com/hiltest/hiltest/internal/executor"
	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/metrics"
	"github.com/hiltest/hiltest/internal/report"
	"github.com/hiltest/hiltest/internal/tty"
)

// StepError reports the step that stopped a run.
type StepError struct {
	Index int
	Step  batch.Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Option configures a CmdRunner.
type Option func(*CmdRunner)

// WithName sets the batch name used in results.
func WithName(name string) Option {
	return func(r *CmdRunner) { r.name = name }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *CmdRunner) { r.log = logger.OrDiscard(log) }
}

// WithMetrics counts every step.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *CmdRunner) { r.metrics = m }
}

// WithTrace writes one trace line per step to w.
func WithTrace(w io.Writer) Option {
	return func(r *CmdRunner) { r.trace = w }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *CmdRunner) { r.now = now }
}

// CmdRunner runs steps in order against a script executor.
type CmdRunner struct {
	target  executor.Script
	steps   []batch.Step
	name    string
	log     *slog.Logger
	metrics *metrics.Metrics
	trace   io.Writer
	now     func() time.Time
}

// New creates a runner. Sudo steps need a target that also implements
// executor.SudoScript.
func New(target executor.Script, steps []batch.Step, opts ...Option) *CmdRunner {
	r := &CmdRunner{
		target: target,
		steps:  steps,
		name:   "batch",
		log:    logger.OrDiscard(nil),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Renew replaces the steps run by the next Run.
func (r *CmdRunner) Renew(steps []batch.Step) {
	r.steps = steps
}

// Target returns the executor the runner drives.
func (r *CmdRunner) Target() executor.Script {
	return r.target
}

// Run executes every step in order. The returned result always covers all
// steps. The error is a *StepError when a step failed or the context was
// cancelled between steps.
func (r *CmdRunner) Run(ctx context.Context) (*report.RunResult, error) {
	result := report.New(r.name, r.now())
	r.log.Info("batch started", "batch", r.name, "steps", len(r.steps), "session", result.Session)

	var runErr error
	for i, step := range r.steps {
		sr := report.StepResult{Index: i, Kind: string(step.Kind), Label: step.Label()}
		if runErr != nil {
			sr.Skipped = true
			result.Add(sr)
			continue
		}

		if err := ctx.Err(); err != nil {
			runErr = &StepError{Index: i, Step: step, Err: err}
			sr.Skipped = true
			result.Add(sr)
			r.log.Warn("batch cancelled", "step", i, "error", err)
			continue
		}

		start := r.now()
		out, err := r.exec(step)
		elapsed := r.now().Sub(start)

		sr.Duration = elapsed.Seconds()
		sr.Output = out
		outcome := metrics.OutcomeOK
		if err != nil {
			runErr = &StepError{Index: i, Step: step, Err: err}
			sr.Error = err.Error()
			sr.TimedOut = errors.Is(err, tty.ErrTimeout)
			outcome = metrics.OutcomeError
			if sr.TimedOut {
				outcome = metrics.OutcomeTimeout
			}
			r.log.Error("step failed", "step", i, "kind", step.Kind, "label", sr.Label, "error", err)
		} else {
			sr.Passed = true
			r.log.Debug("step passed", "step", i, "kind", step.Kind, "elapsed", elapsed)
		}
		result.Add(sr)
		r.metrics.ObserveStep(string(step.Kind), outcome)
		if r.trace != nil {
			WriteTraceOutput(r.trace, i, step, outcome, elapsed)
		}
	}

	result.Finish(runErr, r.now())
	r.log.Info("batch finished", "batch", r.name, "passed", result.Passed,
		"passed_steps", result.PassedSteps, "total_steps", result.TotalSteps)
	return result, runErr
}

// exec maps one descriptor onto executor calls.
func (r *CmdRunner) exec(step batch.Step) (string, error) {
	switch step.Kind {
	case batch.KindDirect:
		return "", r.target.Writeln(step.Cmd)
	case batch.KindRun:
		return r.target.ScriptRun(step.Cmd, step.Timeout)
	case batch.KindAssertRun:
		return r.target.AssertScriptRun(step.Cmd, step.Timeout)
	case batch.KindSudoRun, batch.KindSudoAssertRun:
		sudo, err := executor.AsSudo(r.target)
		if err != nil {
			return "", err
		}
		if step.Kind == batch.KindSudoRun {
			return sudo.ScriptSudo(step.Cmd, step.Timeout)
		}
		return sudo.AssertScriptSudo(step.Cmd, step.Timeout)
	case batch.KindWait:
		return r.target.WaitSerial(step.Pattern, step.Timeout)
	case batch.KindWaitRun:
		if err := r.target.Writeln(step.Cmd); err != nil {
			return "", err
		}
		return r.target.WaitSerial(step.Pattern, step.Timeout)
	default:
		return "", fmt.Errorf("unknown step kind %q", step.Kind)
	}
}
