package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltest/hiltest/internal/recorder"
)

func TestValidateRecordOutputPath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "valid", path: filepath.Join(dir, "out.cast")},
		{name: "current directory", path: "out.cast"},
		{name: "empty", path: "", wantErr: "--output flag is required"},
		{name: "missing directory", path: filepath.Join(dir, "nope", "out.cast"), wantErr: "output directory does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRecordOutputPath(tt.path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRecord_MissingOutputFlag(t *testing.T) {
	_, _, err := executeCommand(t, "record", "--", "uname")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
}

func TestRecord_MissingDash(t *testing.T) {
	_, _, err := executeCommand(t, "record", "--output", filepath.Join(t.TempDir(), "x.cast"), "uname")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing '--' separator")
}

func TestRecord_SingleCommand(t *testing.T) {
	requireShell(t)
	castPath := filepath.Join(t.TempDir(), "hello.cast")

	stdout, stderr, err := executeCommand(t, "record", "--chain", localChain, "--output", castPath, "--", "echo", "recorded")
	require.NoError(t, err, "stderr: %s", stderr.String())
	assert.Equal(t, "recorded\n", stdout.String())
	assert.Contains(t, stderr.String(), `✓ Recorded "echo recorded" to `+castPath)

	c, err := recorder.LoadCast(castPath)
	require.NoError(t, err)
	assert.Equal(t, recorder.CastVersion, c.Header.Version)
	assert.Equal(t, "echo recorded", c.Header.Title)
	assert.Contains(t, c.Output(), "recorded")
	for _, e := range c.Entries {
		assert.Equal(t, recorder.EventOutput, e.Type)
	}
}

func TestRecord_InputAndTitle(t *testing.T) {
	requireShell(t)
	castPath := filepath.Join(t.TempDir(), "uptime.cast.lz4")

	_, stderr, err := executeCommand(t, "record", "--chain", localChain, "--input", "--title", "uptime check",
		"--output", castPath, "--", "echo", "up")
	require.NoError(t, err, "stderr: %s", stderr.String())

	c, err := recorder.LoadCast(castPath)
	require.NoError(t, err)
	assert.Equal(t, "uptime check", c.Header.Title)

	var input string
	for _, e := range c.Entries {
		if e.Type == recorder.EventInput {
			input += e.Data
		}
	}
	assert.Contains(t, input, "echo up ; echo ")
}
