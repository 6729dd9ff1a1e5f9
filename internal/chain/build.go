package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hiltest/hiltest/internal/envfilter"
	"github.com/hiltest/hiltest/internal/executor"
	"github.com/hiltest/hiltest/internal/filter"
	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/metrics"
	"github.com/hiltest/hiltest/internal/recorder"
	"github.com/hiltest/hiltest/internal/transport"
	"github.com/hiltest/hiltest/internal/tty"
)

// Chain is a constructed Tty chain.
type Chain struct {
	// Exec is the top of the chain. It is an *executor.SudoExecutor when
	// the config enables sudo.
	Exec executor.Script
	// Recorder is nil when the config names none.
	Recorder tty.Recorder
	// Transport is the leaf device, kept for shutdown.
	Transport tty.Tty

	// layers holds every wrapper bottom-up.
	layers []tty.Wrapper
	log    *slog.Logger
}

// Build constructs the chain bottom-up: transport, filters, recorder,
// executor. On failure everything built so far is torn down again.
func Build(ctx context.Context, cfg Config, log *slog.Logger, m *metrics.Metrics) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrDiscard(log)

	leaf, err := openTransport(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	c := &Chain{Transport: leaf, log: log}

	top := leaf
	for i, f := range cfg.Filters {
		var w tty.Wrapper
		switch f.Kind {
		case FilterDeANSI:
			w = filter.NewDeANSI(top)
		case FilterTee:
			tee, err := filter.NewTee(top, f.Path)
			if err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("filter %d: %w", i, err)
			}
			w = tee
		}
		c.layers = append(c.layers, w)
		top = w
	}

	if rec := newRecorder(top, cfg, log, m); rec != nil {
		c.Recorder = rec
		c.layers = append(c.layers, rec)
		top = rec
	}

	opts := executor.Options{PollInterval: cfg.PollInterval, Logger: log, Metrics: m}
	if cfg.Exec.Sudo {
		e := executor.NewSudo(top, opts)
		c.Exec, c.layers = e, append(c.layers, e)
	} else {
		e := executor.New(top, opts)
		c.Exec, c.layers = e, append(c.layers, e)
	}

	log.Info("chain built", "transport", cfg.Transport.Kind(), "filters", len(cfg.Filters),
		"recorder", cfg.Recorder, "sudo", cfg.Exec.Sudo)
	return c, nil
}

func openTransport(ctx context.Context, cfg Config, log *slog.Logger) (tty.Tty, error) {
	t := cfg.Transport
	switch {
	case t.Shell != nil:
		return transport.NewShell(transport.ShellOptions{
			Path:   t.Shell.Path,
			Args:   t.Shell.Args,
			Env:    shellEnv(t.Shell),
			Dir:    t.Shell.Dir,
			Width:  t.Shell.Width,
			Height: t.Shell.Height,
			Logger: log,
		})
	case t.Serial != nil:
		return transport.NewSerial(transport.SerialOptions{
			Port:      t.Serial.Port,
			Baud:      t.Serial.Baud,
			WriteRate: t.Serial.WriteRate,
			Logger:    log,
		})
	default:
		return transport.NewSSH(ctx, transport.SSHOptions{
			Host:          t.SSH.Host,
			Port:          t.SSH.Port,
			User:          t.SSH.User,
			Password:      t.SSH.Password,
			KeyFile:       t.SSH.KeyFile,
			KeyPassphrase: t.SSH.KeyPassphrase,
			KnownHosts:    t.SSH.KnownHosts,
			Insecure:      t.SSH.Insecure,
			Timeout:       t.SSH.Timeout,
			Logger:        log,
		})
	}
}

// shellEnv composes the child environment. A nil result lets the child
// inherit the environment unfiltered.
func shellEnv(sc *ShellConfig) []string {
	if !sc.InheritEnv {
		if len(sc.Env) == 0 {
			return nil
		}
		return sc.Env
	}
	env := envfilter.Filter(os.Environ(), sc.EnvDeny)
	return append(env, sc.Env...)
}

func newRecorder(inner tty.Tty, cfg Config, log *slog.Logger, m *metrics.Metrics) tty.Recorder {
	h := recorder.DefaultHeader()
	h.Title = cfg.Title
	if sc := cfg.Transport.Shell; sc != nil {
		if sc.Width > 0 {
			h.Width = int(sc.Width)
		}
		if sc.Height > 0 {
			h.Height = int(sc.Height)
		}
		if sc.Path != "" {
			h.Env["SHELL"] = sc.Path
		}
	}
	opts := recorder.Options{
		Header:       &h,
		RecordInput:  cfg.RecordInput,
		PollInterval: cfg.PollInterval,
		Logger:       log,
		Metrics:      m,
	}

	switch cfg.Recorder {
	case RecorderSimple:
		return recorder.NewSimple(inner, opts)
	case RecorderAsciicast:
		return recorder.NewAsciicast(inner, opts)
	case RecorderAsciicastMulti:
		return recorder.NewAsciicastMulti(inner, opts)
	default:
		return nil
	}
}

// Sudo returns the top executor as a privileged executor.
func (c *Chain) Sudo() (executor.SudoScript, error) {
	return executor.AsSudo(c.Exec)
}

// Close exits the wrappers top-down and stops the transport. A transport
// swapped in below a recorder after Build is stopped too, as is the one it
// replaced. Every layer is released even when an earlier one fails.
func (c *Chain) Close() error {
	var errs []error
	var stopped []tty.Stopper
	stop := func(t tty.Tty) {
		s, ok := t.(tty.Stopper)
		if !ok {
			return
		}
		for _, done := range stopped {
			if done == s {
				return
			}
		}
		stopped = append(stopped, s)
		if err := s.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop transport: %w", err))
		}
	}

	for i := len(c.layers) - 1; i >= 0; i-- {
		inner, err := c.layers[i].Exit()
		if err != nil {
			if !errors.Is(err, tty.ErrAlreadyReleased) {
				errs = append(errs, fmt.Errorf("exit layer %d: %w", i, err))
			}
			continue
		}
		if i > 0 && inner == tty.Tty(c.layers[i-1]) {
			continue
		}
		// Swapped in after Build: release whatever stack sits below.
		for inner != nil {
			stop(inner)
			w, ok := inner.(tty.Wrapper)
			if !ok {
				break
			}
			if inner, err = w.Exit(); err != nil {
				break
			}
		}
	}
	c.layers = nil
	stop(c.Transport)
	c.log.Info("chain closed")
	return errors.Join(errs...)
}
