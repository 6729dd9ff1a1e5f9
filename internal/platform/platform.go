// Package platform defines the OS abstraction used to run helper programs
// such as the SD-mux controller.
//
// Concrete implementations are selected at compile time via build tags.
package platform

import (
	"os/exec"
)

// ShellExecutor wraps command execution in the native shell.
type ShellExecutor interface {
	// WrapCommand returns an exec.Cmd that runs args through sh -c.
	WrapCommand(args []string, env []string) *exec.Cmd
}

// CommandResolver locates binaries on PATH.
type CommandResolver interface {
	// Resolve returns the absolute path to command, skipping any match
	// found inside excludeDir.
	Resolve(command string, excludeDir string) (string, error)
}

// Platform is the composite interface grouping all OS-specific strategies.
// Obtained via New() which is defined in build-tagged files.
type Platform interface {
	ShellExecutor
	CommandResolver

	// Name returns a human-readable platform identifier.
	Name() string
}
