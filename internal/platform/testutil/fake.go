// Package testutil provides test helpers for code that depends on the
// platform package.
package testutil

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hiltest/hiltest/internal/platform"
)

// FakePlatform is a configurable test double implementing platform.Platform.
// Test authors set the function fields to control behavior per test case.
type FakePlatform struct {
	// NameValue is returned by Name(). Default: "fake".
	NameValue string

	// WrapCommandFunc overrides WrapCommand. If nil, the joined args are
	// printed by "echo" instead of being executed.
	WrapCommandFunc func(args []string, env []string) *exec.Cmd

	// ResolveFunc overrides Resolve. If nil, returns "/fake/bin/<command>".
	ResolveFunc func(command string, excludeDir string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Call records a single method invocation on FakePlatform.
type Call struct {
	Method string
	Args   []string
}

// NewFakePlatform returns a FakePlatform with sensible defaults.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{NameValue: "fake"}
}

// Replying returns a FakePlatform whose commands print output and exit with
// code, whatever they were asked to run.
func Replying(output string, code int) *FakePlatform {
	f := NewFakePlatform()
	f.WrapCommandFunc = func(_ []string, _ []string) *exec.Cmd {
		return exec.Command("sh", "-c", `printf '%s' "$0"; exit $1`, output, strconv.Itoa(code)) //nolint:gosec // test helper
	}
	return f
}

// Name returns the configured platform name.
func (f *FakePlatform) Name() string {
	return f.NameValue
}

// WrapCommand returns an exec.Cmd or delegates to WrapCommandFunc.
func (f *FakePlatform) WrapCommand(args []string, env []string) *exec.Cmd {
	f.record("WrapCommand", args)
	if f.WrapCommandFunc != nil {
		return f.WrapCommandFunc(args, env)
	}
	cmd := exec.Command("echo", strings.Join(args, " ")) //nolint:gosec // test helper
	if len(env) > 0 {
		cmd.Env = env
	}
	return cmd
}

// Resolve returns the binary path or delegates to ResolveFunc.
func (f *FakePlatform) Resolve(command string, excludeDir string) (string, error) {
	f.record("Resolve", []string{command, excludeDir})
	if f.ResolveFunc != nil {
		return f.ResolveFunc(command, excludeDir)
	}
	return filepath.Join("/fake/bin", command), nil
}

func (f *FakePlatform) record(method string, args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: method, Args: append([]string(nil), args...)})
}

// Calls returns a copy of the recorded invocations.
func (f *FakePlatform) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns the number of times a method was called.
func (f *FakePlatform) CallCount(method string) int {
	count := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			count++
		}
	}
	return count
}

// CalledWith returns true if the method was called with the given args.
// Each arg matches when it is a substring of the recorded one.
func (f *FakePlatform) CalledWith(method string, args ...string) bool {
	for _, c := range f.Calls() {
		if c.Method != method || len(args) > len(c.Args) {
			continue
		}
		match := true
		for i, a := range args {
			if !strings.Contains(c.Args[i], a) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Verify compile-time interface compliance.
var _ platform.Platform = (*FakePlatform)(nil)
