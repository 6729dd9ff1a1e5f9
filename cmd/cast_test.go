package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltest/hiltest/internal/recorder"
)

const sampleCast = `{"version":2,"width":80,"height":24,"title":"boot","env":{"SHELL":"/bin/sh","TERM":"VT100"}}
[0.1,"o","U-Boot 2024.01\r\n"]
[0.5,"i","root\n"]
[1.25,"o","login: "]

`

func writeSampleCast(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, recorder.SaveCast(path, sampleCast))
	return path
}

func TestCast_PrintsOutput(t *testing.T) {
	path := writeSampleCast(t, "boot.cast")
	stdout, _, err := executeCommand(t, "cast", path)
	require.NoError(t, err)
	assert.Equal(t, "U-Boot 2024.01\r\nlogin: ", stdout.String())
}

func TestCast_JSONSummary(t *testing.T) {
	path := writeSampleCast(t, "boot.cast.zst")
	stdout, _, err := executeCommand(t, "cast", "--format", "json", path)
	require.NoError(t, err)

	var s CastSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &s))
	assert.Equal(t, CastSummary{
		File:          path,
		Version:       2,
		Width:         80,
		Height:        24,
		Title:         "boot",
		Duration:      1.25,
		Entries:       3,
		OutputEntries: 2,
		InputEntries:  1,
	}, s)
}

func TestCast_Convert(t *testing.T) {
	src := writeSampleCast(t, "boot.cast")
	dst := filepath.Join(t.TempDir(), "boot.cast.lz4")

	_, stderr, err := executeCommand(t, "cast", "--convert", dst, src)
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "✓ Wrote 3 entries to "+dst)

	c, err := recorder.LoadCast(dst)
	require.NoError(t, err)
	assert.Equal(t, "boot", c.Header.Title)
	assert.Len(t, c.Entries, 3)
}

func TestCast_Errors(t *testing.T) {
	_, _, err := executeCommand(t, "cast", filepath.Join(t.TempDir(), "missing.cast"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open transcript")

	_, _, err = executeCommand(t, "cast", "--format", "yaml", "x.cast")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}
