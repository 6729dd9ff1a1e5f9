package transport

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/platform"
	"github.com/hiltest/hiltest/internal/tty"
)

// DefaultShell is spawned when ShellOptions.Path is empty.
const DefaultShell = "/bin/sh"

// ShellOptions configures a Shell transport.
type ShellOptions struct {
	// Path of the shell binary. Defaults to DefaultShell.
	Path string
	// Args passed to the shell. Defaults to ["-i"].
	Args []string
	// Env replaces the child environment when non-empty.
	Env []string
	// Dir is the working directory of the child.
	Dir string
	// Width and Height of the pseudo-terminal. Default 80x24.
	Width, Height uint16
	// PollInterval bounds each read of the pty. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	Logger       *slog.Logger
}

func (o *ShellOptions) setDefaults() {
	if o.Path == "" {
		o.Path = DefaultShell
	}
	if o.Args == nil {
		o.Args = []string{"-i"}
	}
	if o.Width == 0 {
		o.Width = 80
	}
	if o.Height == 0 {
		o.Height = 24
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
}

// Shell is a child shell process attached to a pseudo-terminal.
type Shell struct {
	cmd   *exec.Cmd
	pty   *os.File
	fd    int
	chunk []byte
	poll  *poller
	log   *slog.Logger

	wmu      sync.Mutex
	stopOnce sync.Once
	stopErr  error
}

// NewShell spawns the shell and starts draining its output.
func NewShell(opts ShellOptions) (*Shell, error) {
	opts.setDefaults()
	log := logger.OrDiscard(opts.Logger).With("transport", "shell")

	cmd := exec.Command(opts.Path, opts.Args...) //nolint:gosec // shell path is configured by the user
	if len(opts.Env) > 0 {
		cmd.Env = opts.Env
	}
	cmd.Dir = opts.Dir

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: opts.Width, Rows: opts.Height})
	if err != nil {
		log.Error("failed to spawn shell", "path", opts.Path, "error", err)
		return nil, &tty.IOError{Op: "spawn " + opts.Path, Err: err}
	}
	log.Info("shell spawned", "path", opts.Path, "pid", cmd.Process.Pid)

	s := &Shell{
		cmd:   cmd,
		pty:   f,
		fd:    int(f.Fd()),
		chunk: make([]byte, 4096),
		poll:  newPoller("shell", opts.PollInterval, log),
		log:   log,
	}
	s.poll.start(s.readChunk)
	return s, nil
}

// readChunk reads one chunk from the pty, giving up after one poll interval
// so the stop flag is checked regularly.
func (s *Shell) readChunk() ([]byte, error) {
	return readFD(s.fd, s.poll.interval, s.chunk)
}

// Read drains everything the shell printed since the previous call.
func (s *Shell) Read() ([]byte, error) {
	return s.poll.buf.Drain()
}

// ReadLine blocks until the shell has printed a full line.
func (s *Shell) ReadLine() ([]byte, error) {
	return s.poll.buf.ReadLine()
}

// Write sends data to the shell's terminal.
func (s *Shell) Write(data []byte) error {
	if s.poll.stopping() {
		return tty.ErrAlreadyReleased
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := tty.WriteAll(s.pty, data); err != nil {
		s.log.Error("write failed", "error", err)
		return err
	}
	s.log.Debug("write", "data", string(data))
	return nil
}

// Ready implements tty.Signaler.
func (s *Shell) Ready() <-chan struct{} {
	return s.poll.buf.Ready()
}

// Resize changes the terminal dimensions.
func (s *Shell) Resize(width, height uint16) error {
	return pty.Setsize(s.pty, &pty.Winsize{Cols: width, Rows: height})
}

// Pid returns the process id of the shell.
func (s *Shell) Pid() int {
	return s.cmd.Process.Pid
}

// Stop ends the poller, terminates the shell and releases the pty. The
// child's exit code is logged. Calling Stop again returns the first result.
func (s *Shell) Stop() error {
	s.stopOnce.Do(func() {
		s.poll.halt()
		if !s.poll.wait(4*s.poll.interval + time.Second) {
			s.log.Warn("poller did not stop in time")
		}
		_ = s.cmd.Process.Kill()
		closeErr := s.pty.Close()
		waitErr := s.cmd.Wait()
		s.log.Info("shell stopped", "exit_code", platform.ExitCode(waitErr))
		if closeErr != nil {
			s.stopErr = fmt.Errorf("failed to close pty: %w", closeErr)
		}
	})
	return s.stopErr
}

// Verify compile-time interface compliance.
var (
	_ tty.Tty      = (*Shell)(nil)
	_ tty.Signaler = (*Shell)(nil)
	_ tty.Stopper  = (*Shell)(nil)
)
