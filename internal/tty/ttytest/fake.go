// Package ttytest provides test doubles for the tty package.
package ttytest

import (
	"strings"
	"sync"

	"github.com/hiltest/hiltest/internal/tty"
)

// Fake is a scriptable in-memory Tty. Bytes queued with Feed are returned by
// Read and ReadLine; every Write is recorded and handed to OnWrite.
type Fake struct {
	// Name distinguishes fakes in swap tests.
	Name string

	// OnWrite is called after each successful write. It may call Feed to
	// simulate the device answering.
	OnWrite func(f *Fake, data []byte)

	// WriteErr, when set, is returned by every Write.
	WriteErr error

	// ReadErr, when set, is returned by every Read and ReadLine.
	ReadErr error

	mu     sync.Mutex
	writes []string
	reads  int
	buf    *tty.Buffer
}

// NewFake returns an empty Fake.
func NewFake(name string) *Fake {
	return &Fake{Name: name, buf: tty.NewBuffer()}
}

// Feed queues s as device output.
func (f *Fake) Feed(s string) {
	f.buf.Append([]byte(s))
}

// Close ends the fake stream with err.
func (f *Fake) Close(err error) {
	f.buf.Close(err)
}

// Read drains queued output.
func (f *Fake) Read() ([]byte, error) {
	f.mu.Lock()
	f.reads++
	err := f.ReadErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.buf.Drain()
}

// ReadLine blocks until a queued line is available.
func (f *Fake) ReadLine() ([]byte, error) {
	f.mu.Lock()
	f.reads++
	err := f.ReadErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.buf.ReadLine()
}

// Write records data and runs OnWrite.
func (f *Fake) Write(data []byte) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.mu.Lock()
	f.writes = append(f.writes, string(data))
	hook := f.OnWrite
	f.mu.Unlock()
	if hook != nil {
		hook(f, data)
	}
	return nil
}

// Ready exposes the arrival signal of the queued output.
func (f *Fake) Ready() <-chan struct{} {
	return f.buf.Ready()
}

// Writes returns a copy of every recorded write.
func (f *Fake) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

// Written returns all recorded writes joined together.
func (f *Fake) Written() string {
	return strings.Join(f.Writes(), "")
}

// ReadCount returns how many times Read or ReadLine was called.
func (f *Fake) ReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Verify compile-time interface compliance.
var (
	_ tty.Tty      = (*Fake)(nil)
	_ tty.Signaler = (*Fake)(nil)
)
