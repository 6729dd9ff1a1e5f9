package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiltest/hiltest/internal/batch"
	"github.com/hiltest/hiltest/internal/chain"
)

var (
	recordOutputPath string
	recordChainFlag  string
	recordShellFlag  string
	recordTitle      string
	recordInput      bool
	recordTimeout    time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record [flags] -- <command> [args...]",
	Short: "Record a command run on the target as an asciicast transcript",
	Long: `Record runs one command on the target and saves the session as an
asciicast v2 transcript that any asciicast player can replay.

The transcript is compressed when the output path ends in .zst or .lz4.
When the chain config names no recorder, an asciicast recorder is added.

Examples:
  # Record a command in a local shell
  hiltest record --output demo.cast -- ls -la /

  # Record a board's boot log over its serial console
  hiltest record --chain board.yaml --output dmesg.cast.zst -- dmesg

  # Also capture what was typed
  hiltest record --input --title "uptime" --output uptime.cast -- uptime`,
	RunE: runRecord,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	recordCmd.Flags().StringVarP(&recordOutputPath, "output", "o", "", "Transcript file path (required)")
	recordCmd.Flags().StringVar(&recordChainFlag, "chain", "", "Chain config file (YAML or JSONC)")
	recordCmd.Flags().StringVar(&recordShellFlag, "shell", "", "Record a local shell at this path")
	recordCmd.Flags().StringVar(&recordTitle, "title", "", "Transcript title (default: the command line)")
	recordCmd.Flags().BoolVar(&recordInput, "input", false, "Also record the bytes written to the target")
	recordCmd.Flags().DurationVar(&recordTimeout, "timeout", batch.DefaultTimeout, "How long to wait for the command to complete")
	_ = recordCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	if err := validateRecordOutputPath(recordOutputPath); err != nil {
		return err
	}
	line, err := commandAfterDash(cmd, args, "hiltest record --output <file> -- <command> [args...]")
	if err != nil {
		return err
	}
	if recordTimeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}

	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close(cmd.ErrOrStderr())

	cfg, err := resolveChain(nil, recordChainFlag, recordShellFlag)
	if err != nil {
		return err
	}
	ensureRecorder(cfg)
	if recordInput {
		cfg.RecordInput = true
	}
	cfg.Title = recordTitle
	if cfg.Title == "" {
		cfg.Title = line
	}

	c, err := chain.Build(cmd.Context(), *cfg, env.log, env.metrics)
	if err != nil {
		return fmt.Errorf("failed to build chain: %w", err)
	}
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "hiltest: warning: %v\n", closeErr)
		}
	}()

	if err := c.Recorder.Begin(); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	out, runErr := c.Exec.ScriptRun(line, recordTimeout)
	writeOutput(cmd.OutOrStdout(), out)

	if err := saveRecording(c.Recorder.End, recordOutputPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "✓ Recorded %q to %s\n", line, recordOutputPath)

	if runErr != nil {
		return fmt.Errorf("command did not complete: %w", runErr)
	}
	return nil
}

// validateRecordOutputPath checks that the transcript can be written.
func validateRecordOutputPath(path string) error {
	if path == "" {
		return fmt.Errorf("--output flag is required")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
	}
	return nil
}
