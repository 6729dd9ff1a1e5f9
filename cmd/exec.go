package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiltest/hiltest/internal/batch"
	"github.com/hiltest/hiltest/internal/chain"
	"github.com/hiltest/hiltest/internal/runner"
)

var (
	execChainFlag   string
	execShellFlag   string
	execSudoFlag    bool
	execAssertFlag  bool
	execTimeoutFlag time.Duration
)

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command> [args...]",
	Short: "Run one command on the target and print its output",
	Long: `Run one command on the target and print its output.

The words after -- are joined with spaces and sent as a single shell line.
The command's output, with the echoed command line removed, goes to stdout.

Without --assert the command counts as complete as soon as it returns,
whatever its exit status. With --assert a non-zero exit status leaves the
completion marker unprinted and the command fails once --timeout expires.

Examples:
  hiltest exec -- uname -a
  hiltest exec --chain board.yaml --assert --timeout 5s -- test -e /dev/mmcblk0
  hiltest exec --chain board.yaml --sudo -- dmesg`,
	RunE: runExec,
}

func init() { //nolint:gochecknoinits // Standard cobra pattern
	execCmd.Flags().StringVar(&execChainFlag, "chain", "", "Chain config file (YAML or JSONC)")
	execCmd.Flags().StringVar(&execShellFlag, "shell", "", "Run against a local shell at this path")
	execCmd.Flags().BoolVar(&execSudoFlag, "sudo", false, "Run the command through sudo")
	execCmd.Flags().BoolVar(&execAssertFlag, "assert", false, "Fail unless the command exits with status 0")
	execCmd.Flags().DurationVar(&execTimeoutFlag, "timeout", batch.DefaultTimeout, "How long to wait for the command to complete")
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	line, err := commandAfterDash(cmd, args, "hiltest exec [flags] -- <command> [args...]")
	if err != nil {
		return err
	}
	step := batch.Step{Kind: execKind(execSudoFlag, execAssertFlag), Cmd: line, Timeout: execTimeoutFlag}
	if err := step.Validate(); err != nil {
		return err
	}

	env, err := newRuntimeEnv(cmd)
	if err != nil {
		return err
	}
	defer env.close(cmd.ErrOrStderr())

	cfg, err := resolveChain(nil, execChainFlag, execShellFlag)
	if err != nil {
		return err
	}
	if execSudoFlag {
		cfg.Exec.Sudo = true
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

	result, runErr := runner.New(c.Exec, []batch.Step{step},
		runner.WithName("exec"),
		runner.WithLogger(env.log),
		runner.WithMetrics(env.metrics),
	).Run(cmd.Context())

	if len(result.Steps) > 0 {
		writeOutput(cmd.OutOrStdout(), result.Steps[0].Output)
	}
	if runErr != nil {
		var stepErr *runner.StepError
		if errors.As(runErr, &stepErr) {
			fmt.Fprint(cmd.ErrOrStderr(), runner.FormatStepError("exec", stepErr))
			return &exitError{code: 1}
		}
		return runErr
	}
	return nil
}

// execKind maps the exec flags to a step kind.
func execKind(sudo, assert bool) batch.Kind {
	switch {
	case sudo && assert:
		return batch.KindSudoAssertRun
	case sudo:
		return batch.KindSudoRun
	case assert:
		return batch.KindAssertRun
	default:
		return batch.KindRun
	}
}

// commandAfterDash joins the words after "--" into one shell line.
func commandAfterDash(cmd *cobra.Command, args []string, usage string) (string, error) {
	dashIdx := cmd.ArgsLenAtDash()
	if dashIdx < 0 {
		return "", fmt.Errorf("missing '--' separator: usage: %s", usage)
	}
	if dashIdx > 0 {
		return "", fmt.Errorf("unexpected arguments before '--': %s", strings.Join(args[:dashIdx], " "))
	}
	if len(args) == 0 {
		return "", fmt.Errorf("missing command after '--': usage: %s", usage)
	}
	return strings.Join(args, " "), nil
}

// writeOutput prints command output with terminal line endings normalized.
// The leading line break left by the echoed command line is dropped.
func writeOutput(w io.Writer, out string) {
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.TrimPrefix(out, "\n")
	if out == "" {
		return
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, _ = io.WriteString(w, out)
}
