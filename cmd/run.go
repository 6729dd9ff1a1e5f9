package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiltest/hiltest/internal/archive"
	"github.com/hiltest/hiltest/internal/batch"
	"github.com/hiltest/hiltest/internal/chain"
	"github.com/hiltest/hiltest/internal/recorder"
	"github.com/hiltest/hiltest/internal/report"
	"github.com/hiltest/hiltest/internal/runner"
)

var (
	runChainFlag      string
	runShellFlag      string
	runRecordFlag     string
	runFormatFlag     string
	runReportFileFlag string
	runDryRunFlag     bool
)

var runCmd = &cobra.Command{
	Use:   "run <batch.yaml>",
	Short: "Run a batch of commands against a target",
	Long: `Run a batch of commands against a target and report the outcome.

The target chain is taken from --chain, then HILTEST_CHAIN, then the
batch's own "target" section. Without any of those a local /bin/sh with
ANSI filtering is used. --shell replaces the transport with a local shell.

Steps run in order and the first failing step ends the run. Later steps are
reported as not run.

Exit codes:
  0  every step passed
  1  a step failed, timed out or the run was interrupted

Formats:
  text   Human-readable summary (default)
  json   Structured JSON
  junit  JUnit XML for CI systems

Examples:
  hiltest run smoke.yaml
  hiltest run --chain board.yaml --record boot.cast.zst boot.yaml
  hiltest run --format junit --report-file results.xml smoke.yaml
  hiltest run --dry-run boot.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	runCmd.Flags().StringVar(&runChainFlag, "chain", "", "Chain config file (YAML or JSONC)")
	runCmd.Flags().StringVar(&runShellFlag, "shell", "", "Run against a local shell at this path")
	runCmd.Flags().StringVar(&runRecordFlag, "record", "", "Record the session to this transcript (.cast, .cast.zst, .cast.lz4)")
	runCmd.Flags().StringVar(&runFormatFlag, "format", "text", "Report format: text, json, junit")
	runCmd.Flags().StringVar(&runReportFileFlag, "report-file", "", "Write the report to a file instead of stdout")
	runCmd.Flags().BoolVar(&runDryRunFlag, "dry-run", false, "Print the execution plan without connecting to the target")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	batchPath := args[0]
	format := strings.ToLower(runFormatFlag)
	if err := checkReportFormat(format); err != nil {
		return err
	}

	b, err := batch.LoadFile(batchPath)
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}
	steps, denied, err := b.Render()
	if err != nil {
		return fmt.Errorf("failed to render batch: %w", err)
	}

	if runDryRunFlag {
		plan := runner.BuildDryRunReport(b, steps, denied)
		return runner.FormatDryRunReport(plan, cmd.OutOrStdout())
	}

	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close(cmd.ErrOrStderr())

	cfg, err := resolveChain(b.Target, runChainFlag, runShellFlag)
	if err != nil {
		return err
	}
	if runRecordFlag != "" {
		ensureRecorder(cfg)
	}
	if cfg.Title == "" {
		cfg.Title = b.Meta.Name
	}

	started := time.Now()
	c, err := chain.Build(cmd.Context(), *cfg, env.log, env.metrics)
	if err != nil {
		err = fmt.Errorf("failed to build chain: %w", err)
		result := report.ErrorResult(b.Meta.Name, started, err)
		_ = result.SetDigestFromFile(batchPath)
		if writeErr := writeRunReport(cmd.OutOrStdout(), result, format, batchPath); writeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "hiltest: warning: failed to write report: %v\n", writeErr)
		}
		return err
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "hiltest: warning: %v\n", closeErr)
		}
	}()

	if runRecordFlag != "" {
		if err := c.Recorder.Begin(); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
	}

	opts := []runner.Option{
		runner.WithName(b.Meta.Name),
		runner.WithLogger(env.log),
		runner.WithMetrics(env.metrics),
	}
	if runner.IsTraceEnabled(os.Getenv(runner.TraceEnvVar)) {
		opts = append(opts, runner.WithTrace(cmd.ErrOrStderr()))
	}
	result, runErr := runner.New(c.Exec, steps, opts...).Run(cmd.Context())
	if err := result.SetDigestFromFile(batchPath); err != nil {
		env.log.Warn("batch digest unavailable", "error", err)
	}

	if runRecordFlag != "" {
		if err := saveRecording(c.Recorder.End, runRecordFlag); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "hiltest: warning: %v\n", err)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "hiltest: session recorded to %s\n", runRecordFlag)
		}
	}

	if err := writeRunReport(cmd.OutOrStdout(), result, format, batchPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		var stepErr *runner.StepError
		if errors.As(runErr, &stepErr) {
			fmt.Fprint(cmd.ErrOrStderr(), runner.FormatStepError(b.Meta.Name, stepErr))
			return &exitError{code: 1}
		}
		return runErr
	}
	return nil
}

func checkReportFormat(format string) error {
	switch format {
	case "text", "json", "junit":
		return nil
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json, junit", format)
	}
}

// writeRunReport renders result to --report-file when set, otherwise to w.
// Report files ending in .zst or .lz4 are compressed.
func writeRunReport(w io.Writer, result *report.RunResult, format, batchFile string) error {
	var buf bytes.Buffer
	var err error
	switch format {
	case "json":
		err = report.FormatJSON(&buf, result)
	case "junit":
		err = report.FormatJUnit(&buf, result, batchFile)
	default:
		err = report.FormatText(&buf, result)
	}
	if err != nil {
		return err
	}

	if runReportFileFlag != "" {
		return archive.WriteFile(runReportFileFlag, buf.Bytes(), 0o644)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// saveRecording ends the recording session and stores the transcript.
func saveRecording(end func() (string, error), path string) error {
	text, err := end()
	if err != nil {
		return fmt.Errorf("failed to end recording: %w", err)
	}
	return recorder.SaveCast(path, text)
}
