package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltest/hiltest/internal/batch"
)

func TestExecKind(t *testing.T) {
	tests := []struct {
		sudo, assert bool
		want         batch.Kind
	}{
		{want: batch.KindRun},
		{assert: true, want: batch.KindAssertRun},
		{sudo: true, want: batch.KindSudoRun},
		{sudo: true, assert: true, want: batch.KindSudoAssertRun},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, execKind(tt.sudo, tt.assert))
		})
	}
}

func TestWriteOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "echo remainder only", in: "\r\n", want: ""},
		{name: "crlf normalized", in: "\r\nLinux dut\r\n", want: "Linux dut\n"},
		{name: "newline added", in: "\r\npartial", want: "partial\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeOutput(&buf, tt.in)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestExec_MissingDash(t *testing.T) {
	_, _, err := executeCommand(t, "exec", "uname")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing '--' separator")
}

func TestExec_ArgumentsBeforeDash(t *testing.T) {
	_, _, err := executeCommand(t, "exec", "extra", "--", "uname")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected arguments before '--': extra")
}

func TestExec_MissingCommand(t *testing.T) {
	_, _, err := executeCommand(t, "exec", "--")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing command after '--'")
}

func TestExec_InvalidTimeout(t *testing.T) {
	_, _, err := executeCommand(t, "exec", "--timeout", "0s", "--", "true")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}

func TestExec_PrintsOutput(t *testing.T) {
	requireShell(t)
	stdout, stderr, err := executeCommand(t, "exec", "--chain", localChain, "--", "echo", "hello", "board")
	require.NoError(t, err, "stderr: %s", stderr.String())
	assert.Equal(t, "hello board\n", stdout.String())
}

func TestExec_AssertFailure(t *testing.T) {
	requireShell(t)
	t.Setenv("HILTEST_COLOR", "0")

	_, stderr, err := executeCommand(t, "exec", "--chain", localChain, "--assert", "--timeout", "300ms", "--", "false")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, stderr.String(), `Step 1 of "exec" failed (assert_run)`)
	assert.Contains(t, stderr.String(), "Command:  false")
}

func TestExec_SudoEnabledByFlag(t *testing.T) {
	requireShell(t)
	// An interactive sh sources $ENV, which stands in a sudo that only
	// reports what it was asked to run.
	rc := writeFile(t, "rc.sh", "sudo() { echo \"as root: $*\"; }\n")
	chainPath := writeFile(t, "sudo.yaml", `transport:
  shell:
    env: ["PS1=$ ", "PATH=/usr/bin:/bin", "TERM=dumb", "ENV=`+rc+`"]
filters: [deansi]
poll_interval: 20ms
`)

	stdout, stderr, err := executeCommand(t, "exec", "--chain", chainPath, "--sudo", "--", "whoami")
	require.NoError(t, err, "stderr: %s", stderr.String())
	assert.Equal(t, "as root: whoami\n", stdout.String())
}
