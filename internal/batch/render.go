package batch

import (
	"fmt"

	"github.com/hiltest/hiltest/internal/template"
)

// Render returns a copy of the steps with meta vars substituted into every
// command and pattern. Environment variables override vars unless their
// name matches Meta.DenyEnvVars; the names that were denied are returned
// for trace output.
func (b *Batch) Render() ([]Step, []string, error) {
	vars, denied := template.MergeVarsFiltered(b.Meta.Vars, b.Meta.DenyEnvVars)

	steps := make([]Step, len(b.Steps))
	for i, step := range b.Steps {
		cmd, err := template.Render(step.Cmd, vars)
		if err != nil {
			return nil, denied, fmt.Errorf("step %d: cmd: %w", i, err)
		}
		pattern, err := template.Render(step.Pattern, vars)
		if err != nil {
			return nil, denied, fmt.Errorf("step %d: pattern: %w", i, err)
		}
		step.Cmd, step.Pattern = cmd, pattern
		steps[i] = step
	}
	return steps, denied, nil
}
