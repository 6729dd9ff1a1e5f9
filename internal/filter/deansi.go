// Package filter provides pass-through Tty wrappers that transform or
// observe the bytes flowing through a chain.
package filter

import (
	"bytes"

	"github.com/charmbracelet/x/ansi"

	"github.com/hiltest/hiltest/internal/tty"
)

const esc = 0x1b

// DeANSI strips ANSI escape sequences from everything read from and
// written to the wrapped Tty.
type DeANSI struct {
	*tty.Base
	// pending holds an escape sequence cut off at the end of the last read.
	pending []byte
}

// NewDeANSI wraps inner.
func NewDeANSI(inner tty.Tty) *DeANSI {
	return &DeANSI{Base: tty.NewBase(inner)}
}

// Read drains the inner Tty and returns the text with escape sequences
// removed. A sequence split across two reads is held back until it is
// complete.
func (d *DeANSI) Read() ([]byte, error) {
	var out []byte
	err := d.Do(func(inner tty.Tty) error {
		data, err := inner.Read()
		if err != nil {
			return err
		}
		d.pending = append(d.pending, data...)
		cut := len(d.pending)
		if i := trailingEscape(d.pending); i >= 0 {
			cut = i
		}
		out = strip(d.pending[:cut])
		d.pending = append([]byte(nil), d.pending[cut:]...)
		return nil
	})
	return out, err
}

// ReadLine reads one line from the inner Tty and strips it.
func (d *DeANSI) ReadLine() ([]byte, error) {
	var out []byte
	err := d.Do(func(inner tty.Tty) error {
		line, err := inner.ReadLine()
		if err != nil {
			return err
		}
		line = append(d.pending, line...)
		d.pending = nil
		out = strip(line)
		return nil
	})
	return out, err
}

// Write strips escape sequences from data and forwards the rest.
func (d *DeANSI) Write(data []byte) error {
	return d.Do(func(inner tty.Tty) error {
		return inner.Write(strip(data))
	})
}

func strip(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return []byte(ansi.Strip(string(data)))
}

// trailingEscape returns the offset of an escape sequence at the end of
// data that has not been terminated yet, or -1.
func trailingEscape(data []byte) int {
	i := bytes.LastIndexByte(data, esc)
	if i < 0 {
		return -1
	}
	rest := data[i+1:]
	if len(rest) == 0 {
		return i
	}
	switch rest[0] {
	case '[':
		// CSI: parameter and intermediate bytes, then one final byte.
		for _, b := range rest[1:] {
			if b >= 0x40 && b <= 0x7e {
				return -1
			}
		}
		return i
	case ']', 'P', '_', '^':
		// OSC, DCS, APC, PM: terminated by BEL or by ST, whose own ESC
		// would have been found as the last one.
		if bytes.IndexByte(rest, 0x07) >= 0 {
			return -1
		}
		return i
	default:
		return -1
	}
}

// Verify compile-time interface compliance.
var (
	_ tty.Wrapper       = (*DeANSI)(nil)
	_ tty.InnerAccessor = (*DeANSI)(nil)
	_ tty.Signaler      = (*DeANSI)(nil)
)
