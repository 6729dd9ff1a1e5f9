package executor

import (
	"time"

	"github.com/hiltest/hiltest/internal/tty"
)

// SudoScript is the capability of running commands with elevated
// privileges.
type SudoScript interface {
	Script
	ScriptSudo(cmd string, timeout time.Duration) (string, error)
	AssertScriptSudo(cmd string, timeout time.Duration) (string, error)
}

// SudoExecutor is an Executor that can also run commands through sudo.
type SudoExecutor struct {
	*Executor
}

// NewSudo wraps inner.
func NewSudo(inner tty.Tty, opts Options) *SudoExecutor {
	return &SudoExecutor{Executor: New(inner, opts)}
}

// ScriptSudo behaves like ScriptRun with cmd prefixed by "sudo ".
func (s *SudoExecutor) ScriptSudo(cmd string, timeout time.Duration) (string, error) {
	return s.script(KindScriptSudo, "sudo "+cmd, false, timeout)
}

// AssertScriptSudo behaves like AssertScriptRun with cmd prefixed by
// "sudo ".
func (s *SudoExecutor) AssertScriptSudo(cmd string, timeout time.Duration) (string, error) {
	return s.script(KindAssertScriptSudo, "sudo "+cmd, true, timeout)
}

// AsSudo reports whether t itself can run privileged scripts.
func AsSudo(t tty.Tty) (SudoScript, error) {
	if s, ok := t.(SudoScript); ok {
		return s, nil
	}
	return nil, tty.Unsupported(t, "privileged script execution")
}

// Verify compile-time interface compliance.
var (
	_ SudoScript        = (*SudoExecutor)(nil)
	_ tty.Wrapper       = (*SudoExecutor)(nil)
	_ tty.InnerAccessor = (*SudoExecutor)(nil)
)
