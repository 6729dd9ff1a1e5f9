package cmd

import (
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltest/hiltest/internal/archive"
	"github.com/hiltest/hiltest/internal/recorder"
	"github.com/hiltest/hiltest/internal/report"
)

func TestRun_DryRun(t *testing.T) {
	stdout, _, err := executeCommand(t, "run", "--dry-run", boardBatch)
	require.NoError(t, err)

	out := stdout.String()
	assert.Contains(t, out, "Batch: board boot")
	assert.Contains(t, out, "Target: serial")
	assert.Contains(t, out, "Steps: 6 | Sudo steps: 1")
	assert.Contains(t, out, `→ write "sudo fw_printenv bootcmd && echo <marker> \n"`)
	assert.Contains(t, out, `↳ wait  "login:"`)
	assert.Contains(t, out, "Template Variables: image")
}

func TestRun_InvalidFormat(t *testing.T) {
	_, _, err := executeCommand(t, "run", "--format", "yaml", smokeBatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestRun_InvalidBatch(t *testing.T) {
	_, _, err := executeCommand(t, "run", "../testdata/batches/invalid.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load batch")
	assert.False(t, Reported(err))
}

func TestRun_RenderError(t *testing.T) {
	path := writeFile(t, "bad.yaml", `meta: {name: bad}
steps:
  - run: "echo {{ .missing }}"
`)
	_, _, err := executeCommand(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render batch")
}

func TestRun_LocalShellJSON(t *testing.T) {
	requireShell(t)
	stdout, stderr, err := executeCommand(t, "run", "--chain", localChain, "--format", "json", smokeBatch)
	require.NoError(t, err, "stderr: %s", stderr.String())

	var result report.RunResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	assert.Equal(t, "local smoke", result.Batch)
	assert.True(t, result.Passed)
	assert.Equal(t, 4, result.TotalSteps)
	assert.Equal(t, 4, result.PassedSteps)
	assert.NotEmpty(t, result.Session)
	assert.Len(t, result.Digest, 64)
	require.Len(t, result.Steps, 4)
	assert.Equal(t, "greet", result.Steps[1].Label)
	assert.Contains(t, result.Steps[1].Output, "hello from hiltest")
}

func TestRun_RecordCompressed(t *testing.T) {
	requireShell(t)
	castPath := filepath.Join(t.TempDir(), "smoke.cast.zst")

	_, stderr, err := executeCommand(t, "run", "--chain", localChain, "--record", castPath, smokeBatch)
	require.NoError(t, err, "stderr: %s", stderr.String())
	assert.Contains(t, stderr.String(), "session recorded to "+castPath)

	c, err := recorder.LoadCast(castPath)
	require.NoError(t, err)
	assert.Equal(t, "local smoke", c.Header.Title)
	assert.Contains(t, c.Output(), "hello from hiltest")
}

func TestRun_FailingStep(t *testing.T) {
	requireShell(t)
	path := writeFile(t, "fail.yaml", `meta: {name: failing}
steps:
  - run: "echo before"
    timeout: 5s
  - assert_run: "false"
    timeout: 300ms
  - run: "echo never"
`)
	t.Setenv("HILTEST_COLOR", "0")

	stdout, stderr, err := executeCommand(t, "run", "--chain", localChain, path)
	require.Error(t, err)
	assert.True(t, Reported(err))
	assert.Equal(t, 1, ExitCode(err))

	assert.Contains(t, stdout.String(), `✗ Batch "failing" failed: 1/3 steps passed`)
	assert.Contains(t, stdout.String(), "  - step[2] run: echo never")
	assert.Contains(t, stderr.String(), `Step 2 of "failing" failed (assert_run)`)
	assert.Contains(t, stderr.String(), "Note: the marker is only echoed when the command exits 0.")
}

func TestRun_JUnitReportFile(t *testing.T) {
	requireShell(t)
	reportPath := filepath.Join(t.TempDir(), "results.xml")

	stdout, stderr, err := executeCommand(t, "run", "--chain", localChain,
		"--format", "junit", "--report-file", reportPath, smokeBatch)
	require.NoError(t, err, "stderr: %s", stderr.String())
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var suites report.JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &suites))
	require.Len(t, suites.Suites, 1)
	assert.Equal(t, 4, suites.Suites[0].Tests)
	assert.Equal(t, 0, suites.Suites[0].Failures)
}

func TestRun_ChainBuildFailure(t *testing.T) {
	chainPath := writeFile(t, "broken.yaml", `transport:
  shell: {path: /nonexistent/shell}
`)
	reportPath := filepath.Join(t.TempDir(), "report.json.lz4")

	_, _, err := executeCommand(t, "run", "--chain", chainPath,
		"--format", "json", "--report-file", reportPath, smokeBatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build chain")

	data, err := archive.ReadFile(reportPath)
	require.NoError(t, err)
	var result report.RunResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.False(t, result.Passed)
	assert.Contains(t, result.Error, "failed to build chain")
	assert.Len(t, result.Digest, 64)
}
