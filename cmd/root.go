// Package cmd implements the hiltest Cobra command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/metrics"
)

// Version, Commit, and Date are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	logLevelFlag    string
	logFormatFlag   string
	logFileFlag     string
	metricsFileFlag string
)

var rootCmd = &cobra.Command{
	Use:   "hiltest",
	Short: "Hardware-in-the-loop shell test harness",
	Long: `hiltest - Hardware-in-the-loop shell test harness

Drives a command shell on a local pseudo-terminal, a serial line or an SSH
session, runs batches of commands against it, detects command completion
with unique markers and records the session as an asciicast v2 transcript.

Examples:
  # Run a batch against a local shell
  hiltest run smoke.yaml

  # Run a batch against a board described by a chain config
  hiltest run --chain board.yaml --record boot.cast.zst boot.yaml

  # Run one command and print its output
  hiltest exec --chain board.yaml --assert -- uname -a

  # Flip the SD card to the device under test
  hiltest mux dut --serial sdw-0042

Environment:
  HILTEST_LOG_LEVEL   overrides --log-level
  HILTEST_CHAIN       default chain config when --chain is not given
  HILTEST_TRACE       one trace line per batch step when set to 1
  HILTEST_COLOR       1 or 0 forces colour in failure reports on or off`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context
// handed to every command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	rootCmd.SetVersionTemplate(fmt.Sprintf("hiltest version {{.Version}} (commit: %s, built: %s)\n", Commit, Date))
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevelFlag, "log-level", "warn", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormatFlag, "log-format", "text", "Log format: text, json")
	pf.StringVar(&logFileFlag, "log-file", "", "Also append log records to this file")
	pf.StringVar(&metricsFileFlag, "metrics-file", "", "Write Prometheus metrics to this file on exit (textfile collector format)")
}

// exitError carries a process exit code for a failure that has already been
// reported on stderr.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// Reported reports whether err was already described to the user.
func Reported(err error) bool {
	var ee *exitError
	return errors.As(err, &ee)
}

// runtimeEnv holds the per-invocation logger and metrics.
type runtimeEnv struct {
	log      *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closeLog func() error
}

// newRuntimeEnv builds the logger from the persistent flags. Log records go
// to the command's stderr.
func newRuntimeEnv(cmd *cobra.Command) (*runtimeEnv, error) {
	log, closeLog, err := logger.New(cmd.ErrOrStderr(), logger.Config{
		Level:  logLevelFlag,
		Format: logFormatFlag,
		File:   logFileFlag,
	})
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	return &runtimeEnv{
		log:      log,
		registry: reg,
		metrics:  metrics.New(reg),
		closeLog: closeLog,
	}, nil
}

// close writes the metrics file if requested and releases the log file.
func (e *runtimeEnv) close(status io.Writer) {
	if metricsFileFlag != "" {
		if err := metrics.WriteTextfile(metricsFileFlag, e.registry); err != nil {
			fmt.Fprintf(status, "hiltest: warning: failed to write metrics: %v\n", err)
		}
	}
	if err := e.closeLog(); err != nil {
		fmt.Fprintf(status, "hiltest: warning: failed to close log file: %v\n", err)
	}
}
