package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidFiles(t *testing.T) {
	_, stderr, err := executeCommand(t, "validate", smokeBatch, boardBatch, localChain, boardChain)
	require.NoError(t, err, "stderr: %s", stderr.String())

	out := stderr.String()
	assert.Contains(t, out, "✓ "+smokeBatch+": valid batch")
	assert.Contains(t, out, "✓ "+localChain+": valid chain")
	assert.Contains(t, out, "✓ "+boardChain+": valid chain")
	assert.Contains(t, out, "Result: 4/4 files valid")
}

func TestValidate_InvalidFile(t *testing.T) {
	result := validateFile("../testdata/batches/invalid.yaml")
	assert.False(t, result.Valid)
	assert.Equal(t, fileKindBatch, result.Kind)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step has several kinds: run, assert_run")
}

func TestValidate_ExitCodeOnErrors(t *testing.T) {
	_, stderr, err := executeCommand(t, "validate", smokeBatch, "../testdata/batches/invalid.yaml")
	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, stderr.String(), "Result: 1/2 files valid")
}

func TestValidate_FileNotFound(t *testing.T) {
	result := validateFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidate_RenderErrorsReported(t *testing.T) {
	path := writeFile(t, "render.yaml", `meta: {name: render}
steps:
  - run: "echo {{ .undefined }}"
`)
	result := validateFile(path)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 0")
}

func TestValidate_ChainErrors(t *testing.T) {
	path := writeFile(t, "two.yaml", `transport:
  shell: {}
  serial: {port: /dev/ttyS0}
`)
	result := validateFile(path)
	assert.Equal(t, fileKindChain, result.Kind)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "mutually exclusive")
}

func TestDetectFileKind(t *testing.T) {
	tests := []struct {
		path string
		data string
		want string
	}{
		{path: "board.jsonc", data: "{}", want: fileKindChain},
		{path: "board.json", data: "{}", want: fileKindChain},
		{path: "board.yaml", data: "transport: {shell: {}}", want: fileKindChain},
		{path: "smoke.yaml", data: "meta: {name: x}\nsteps: []", want: fileKindBatch},
		{path: "broken.yaml", data: "[unterminated", want: fileKindBatch},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, detectFileKind(tt.path, []byte(tt.data)))
		})
	}
}

func TestValidate_FormatJSON(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "--format", "json", smokeBatch, "../testdata/batches/invalid.yaml")
	require.Error(t, err)

	var results []ValidationResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.Equal(t, []string{}, results[0].Errors)
	assert.False(t, results[1].Valid)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &raw))
	for _, key := range []string{"file", "kind", "valid", "errors"} {
		assert.Contains(t, raw[0], key)
	}
}

func TestValidate_InvalidFormat(t *testing.T) {
	_, _, err := executeCommand(t, "validate", "--format", "xml", smokeBatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestFormatValidateText_SingleFile(t *testing.T) {
	var buf bytes.Buffer
	formatValidateText(&buf, []ValidationResult{{File: "a.yaml", Kind: fileKindBatch, Valid: true}})
	assert.Equal(t, "✓ a.yaml: valid batch\n", buf.String())
}
