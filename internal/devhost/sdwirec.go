// Package devhost drives the lab hardware around a device under test. It
// currently controls SDWireC SD-card multiplexers through sd-mux-ctrl.
package devhost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/platform"
)

// ControlBinary is the SD-mux control program.
const ControlBinary = "sd-mux-ctrl"

// ErrUnknownStatus is returned when sd-mux-ctrl prints no recognizable
// status line.
var ErrUnknownStatus = errors.New("unrecognized sd-mux status")

// ctrlMu serializes every sd-mux-ctrl invocation in the process. The
// multiplexers share one FTDI bus, so two concurrent calls can fail.
var ctrlMu sync.Mutex

// Target is the side the SD card is connected to.
type Target int

const (
	// TS is the test server.
	TS Target = iota
	// DUT is the device under test.
	DUT
)

func (t Target) String() string {
	if t == DUT {
		return "DUT"
	}
	return "TS"
}

// ParseTarget accepts "ts" or "dut" in any case.
func ParseTarget(s string) (Target, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TS":
		return TS, nil
	case "DUT":
		return DUT, nil
	default:
		return 0, fmt.Errorf("unknown sd-mux target %q (want ts or dut)", s)
	}
}

type chooserKind int

const (
	byID chooserKind = iota
	bySerial
	byVendor
	byProduct
)

// Chooser selects one multiplexer on the USB bus.
type Chooser struct {
	kind   chooserKind
	number uint16
	serial string
}

// ByID selects the multiplexer by its enumeration id.
func ByID(id uint16) Chooser { return Chooser{kind: byID, number: id} }

// BySerial selects the multiplexer by FTDI serial number.
func BySerial(serial string) Chooser { return Chooser{kind: bySerial, serial: serial} }

// ByVendor selects the multiplexer by USB vendor id.
func ByVendor(vendor uint16) Chooser { return Chooser{kind: byVendor, number: vendor} }

// ByProduct selects the multiplexer by USB product id.
func ByProduct(product uint16) Chooser { return Chooser{kind: byProduct, number: product} }

// Args returns the sd-mux-ctrl flags selecting the device.
func (c Chooser) Args() []string {
	switch c.kind {
	case bySerial:
		return []string{"-e", c.serial}
	case byVendor:
		return []string{"-x", fmt.Sprintf("0x%02x", c.number)}
	case byProduct:
		return []string{"-a", fmt.Sprintf("0x%02x", c.number)}
	default:
		return []string{"-v", strconv.Itoa(int(c.number))}
	}
}

func (c Chooser) String() string {
	return strings.Join(c.Args(), " ")
}

// CommandError reports a failed sd-mux-ctrl run.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Sdwirec controls one SDWireC multiplexer.
type Sdwirec struct {
	Chooser  Chooser
	Platform platform.Platform
	// Sudo prefixes every invocation with sudo.
	Sudo bool
	Log  *slog.Logger
}

// NewSdwirec returns a controller that runs sd-mux-ctrl through sudo.
func NewSdwirec(chooser Chooser, p platform.Platform, log *slog.Logger) *Sdwirec {
	return &Sdwirec{Chooser: chooser, Platform: p, Sudo: true, Log: logger.OrDiscard(log)}
}

// GetStatus asks the multiplexer where the card is connected.
func (s *Sdwirec) GetStatus(ctx context.Context) (Target, error) {
	ctrlMu.Lock()
	defer ctrlMu.Unlock()
	return s.status(ctx)
}

// SwitchTo connects the card to target. It does nothing when the card is
// already there.
func (s *Sdwirec) SwitchTo(ctx context.Context, target Target) error {
	ctrlMu.Lock()
	defer ctrlMu.Unlock()

	current, err := s.status(ctx)
	if err != nil {
		return err
	}
	if current == target {
		s.log().Debug("sd-mux already connected", "device", s.Chooser.String(), "target", target)
		return nil
	}

	flag := "-ts"
	if target == DUT {
		flag = "-d"
	}
	if _, err := s.run(ctx, flag); err != nil {
		return fmt.Errorf("failed to switch %s to %s: %w", s.Chooser, target, err)
	}
	s.log().Info("switched sd-mux", "device", s.Chooser.String(), "target", target)
	return nil
}

func (s *Sdwirec) status(ctx context.Context) (Target, error) {
	out, err := s.run(ctx, "-u")
	if err != nil {
		return 0, fmt.Errorf("failed to get status of %s: %w", s.Chooser, err)
	}
	return parseStatus(out)
}

// parseStatus reads the "SD connected to: TS|DUT" line.
func parseStatus(out string) (Target, error) {
	switch {
	case strings.Contains(out, "SD connected to: TS"):
		return TS, nil
	case strings.Contains(out, "SD connected to: DUT"):
		return DUT, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownStatus, strings.TrimSpace(out))
	}
}

// run executes sd-mux-ctrl with the chooser flags and flag, returning its
// standard output.
func (s *Sdwirec) run(ctx context.Context, flag string) (string, error) {
	bin := ControlBinary
	if path, err := s.Platform.Resolve(ControlBinary, ""); err == nil {
		bin = path
	}
	args := []string{bin}
	if s.Sudo {
		args = append([]string{"sudo"}, args...)
	}
	args = append(args, s.Chooser.Args()...)
	args = append(args, flag)

	cmd := s.Platform.WrapCommand(args, nil)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	s.log().Debug("running sd-mux-ctrl", "args", args)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %s: %w", ControlBinary, err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return "", &CommandError{
				Command:  strings.Join(args, " "),
				ExitCode: platform.ExitCode(err),
				Stderr:   stderr.String(),
			}
		}
		return stdout.String(), nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return "", ctx.Err()
	}
}

func (s *Sdwirec) log() *slog.Logger {
	return logger.OrDiscard(s.Log)
}
