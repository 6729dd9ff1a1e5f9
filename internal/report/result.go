// Package report provides the result of a batch run and its text, JSON and
// JUnit XML renderings.
package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hiltest/hiltest/internal/archive"
)

// RunResult is the structured outcome of one batch run.
type RunResult struct {
	Batch       string       `json:"batch"`
	Session     string       `json:"session"`
	Digest      string       `json:"digest,omitempty"`
	Started     time.Time    `json:"started"`
	Duration    float64      `json:"duration"`
	Passed      bool         `json:"passed"`
	TotalSteps  int          `json:"total_steps"`
	PassedSteps int          `json:"passed_steps"`
	Error       string       `json:"error,omitempty"`
	Steps       []StepResult `json:"steps"`
}

// StepResult is the outcome of a single step. A step that was never
// reached because an earlier one failed is Skipped.
type StepResult struct {
	Index    int     `json:"index"`
	Kind     string  `json:"kind"`
	Label    string  `json:"label"`
	Passed   bool    `json:"passed"`
	Skipped  bool    `json:"skipped,omitempty"`
	Duration float64 `json:"duration"`
	Output   string  `json:"output,omitempty"`
	Error    string  `json:"error,omitempty"`
	TimedOut bool    `json:"timed_out,omitempty"`
}

// New starts a result for the named batch with a fresh session id.
func New(batch string, started time.Time) *RunResult {
	return &RunResult{
		Batch:   batch,
		Session: uuid.NewString(),
		Started: started,
		Steps:   []StepResult{},
	}
}

// SetDigestFromFile records the content digest of the batch file.
func (r *RunResult) SetDigestFromFile(path string) error {
	d, err := archive.DigestFile(path)
	if err != nil {
		return fmt.Errorf("failed to digest batch file: %w", err)
	}
	r.Digest = d
	return nil
}

// Add appends a step outcome.
func (r *RunResult) Add(s StepResult) {
	r.Steps = append(r.Steps, s)
}

// Finish computes the totals. runErr is the error that ended the run, if
// any.
func (r *RunResult) Finish(runErr error, end time.Time) {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	for _, s := range r.Steps {
		if s.Passed {
			r.PassedSteps++
		}
	}
	r.Passed = runErr == nil && r.PassedSteps == r.TotalSteps
	if runErr != nil {
		r.Error = runErr.Error()
	}
	r.Duration = end.Sub(r.Started).Seconds()
}

// Failed returns the failing step, or nil.
func (r *RunResult) Failed() *StepResult {
	for i := range r.Steps {
		if !r.Steps[i].Passed && !r.Steps[i].Skipped {
			return &r.Steps[i]
		}
	}
	return nil
}

// ErrorResult describes a run that could not start, for example because
// the chain failed to build.
func ErrorResult(batch string, started time.Time, err error) *RunResult {
	r := New(batch, started)
	r.Finish(err, started)
	return r
}
