package filter

import (
	"fmt"
	"io"
	"sync"

	"github.com/hiltest/hiltest/internal/archive"
	"github.com/hiltest/hiltest/internal/tty"
)

// Tee appends everything read through it to a log. Writes are forwarded
// without being logged.
type Tee struct {
	*tty.Base

	logMu  sync.Mutex
	log    io.Writer
	closer io.Closer
	closed bool
}

// NewTee wraps inner and logs to path. A path ending in .zst or .lz4 is
// written compressed.
func NewTee(inner tty.Tty, path string) (*Tee, error) {
	w, err := archive.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tee log: %w", err)
	}
	t := NewTeeWriter(inner, w)
	t.closer = w
	return t, nil
}

// NewTeeWriter wraps inner and logs to w, which the Tee does not close.
func NewTeeWriter(inner tty.Tty, w io.Writer) *Tee {
	return &Tee{Base: tty.NewBase(inner), log: w}
}

// Read forwards to the inner Tty and logs the result.
func (t *Tee) Read() ([]byte, error) {
	var out []byte
	err := t.Do(func(inner tty.Tty) error {
		data, err := inner.Read()
		if err != nil {
			return err
		}
		out = data
		return t.record(data)
	})
	return out, err
}

// ReadLine forwards to the inner Tty and logs the line.
func (t *Tee) ReadLine() ([]byte, error) {
	var out []byte
	err := t.Do(func(inner tty.Tty) error {
		line, err := inner.ReadLine()
		if err != nil {
			return err
		}
		out = line
		return t.record(line)
	})
	return out, err
}

// Write forwards data unchanged.
func (t *Tee) Write(data []byte) error {
	return t.Do(func(inner tty.Tty) error {
		return inner.Write(data)
	})
}

func (t *Tee) record(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	t.logMu.Lock()
	defer t.logMu.Unlock()
	if t.closed {
		return nil
	}
	if _, err := t.log.Write(data); err != nil {
		return &tty.IOError{Op: "tee log", Err: err}
	}
	return nil
}

// Exit closes the log and returns the inner Tty.
func (t *Tee) Exit() (tty.Tty, error) {
	inner, err := t.Base.Exit()
	if err != nil {
		return nil, err
	}
	if cerr := t.Close(); cerr != nil {
		return inner, cerr
	}
	return inner, nil
}

// Close flushes and closes the log file. Reads after Close are no longer
// logged.
func (t *Tee) Close() error {
	t.logMu.Lock()
	defer t.logMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.closer == nil {
		return nil
	}
	if err := t.closer.Close(); err != nil {
		return fmt.Errorf("failed to close tee log: %w", err)
	}
	return nil
}

// Verify compile-time interface compliance.
var (
	_ tty.Wrapper       = (*Tee)(nil)
	_ tty.InnerAccessor = (*Tee)(nil)
	_ tty.Signaler      = (*Tee)(nil)
)
