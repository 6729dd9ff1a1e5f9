//go:build !windows

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Shell is the interpreter used by WrapCommand.
const Shell = "sh"

type unixPlatform struct{}

// New returns the Platform for the current OS.
func New() Platform {
	return &unixPlatform{}
}

// Name returns "unix".
func (u *unixPlatform) Name() string {
	return "unix"
}

// WrapCommand returns an exec.Cmd wrapping args in sh -c.
func (u *unixPlatform) WrapCommand(args []string, env []string) *exec.Cmd {
	cmdStr := strings.Join(args, " ")
	cmd := exec.Command(Shell, "-c", cmdStr) //nolint:gosec // user command is intentionally executed
	if len(env) > 0 {
		cmd.Env = env
	}
	return cmd
}

// Resolve locates command on PATH, ignoring excludeDir, and falls back to
// the usual system directories. sd-mux-ctrl is commonly installed under
// /usr/local/sbin, which is missing from many user PATHs.
func (u *unixPlatform) Resolve(command string, excludeDir string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("command must be non-empty")
	}
	if strings.ContainsRune(command, filepath.Separator) {
		if isExecutable(command) {
			return filepath.Abs(command)
		}
		return "", fmt.Errorf("command not found: %s", command)
	}

	for _, dir := range filepath.SplitList(filterPath(os.Getenv("PATH"), excludeDir)) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, command)
		if isExecutable(candidate) {
			return filepath.Abs(candidate)
		}
	}

	for _, dir := range []string{"/usr/bin", "/usr/local/bin", "/bin", "/usr/sbin", "/usr/local/sbin", "/sbin"} {
		if dir == excludeDir {
			continue
		}
		candidate := filepath.Join(dir, command)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("command not found: %s", command)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}

// filterPath removes excludeDir from a PATH string.
func filterPath(pathEnv, excludeDir string) string {
	if excludeDir == "" {
		return pathEnv
	}
	parts := filepath.SplitList(pathEnv)
	filtered := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != excludeDir {
			filtered = append(filtered, p)
		}
	}
	return strings.Join(filtered, string(os.PathListSeparator))
}
