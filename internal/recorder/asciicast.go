package recorder

import (
	"github.com/hiltest/hiltest/internal/tty"
)

// Asciicast records output chunks as timestamped asciicast v2 events. Each
// Read and ReadLine result becomes one "o" entry; with RecordInput each
// Write also becomes an "i" entry.
type Asciicast struct {
	*tty.Base
	s           *session
	header      Header
	recordInput bool
}

// NewAsciicast wraps inner. Capture starts with Begin.
func NewAsciicast(inner tty.Tty, opts Options) *Asciicast {
	return &Asciicast{
		Base:        tty.NewBase(inner),
		s:           newSession(opts, "asciicast"),
		header:      opts.header(),
		recordInput: opts.RecordInput,
	}
}

// Read forwards to the inner Tty and records the chunk.
func (a *Asciicast) Read() ([]byte, error) {
	var out []byte
	err := a.Do(func(inner tty.Tty) error {
		data, err := inner.Read()
		out = data
		a.s.event(EventOutput, data)
		return err
	})
	return out, err
}

// ReadLine forwards to the inner Tty and records the line.
func (a *Asciicast) ReadLine() ([]byte, error) {
	var out []byte
	err := a.Do(func(inner tty.Tty) error {
		line, err := inner.ReadLine()
		out = line
		a.s.event(EventOutput, line)
		return err
	})
	return out, err
}

// Write forwards data.
func (a *Asciicast) Write(data []byte) error {
	return a.Do(func(inner tty.Tty) error {
		if err := inner.Write(data); err != nil {
			return err
		}
		if a.recordInput {
			a.s.event(EventInput, data)
		}
		return nil
	})
}

// Header returns the configured transcript header.
func (a *Asciicast) Header() Header {
	return a.header
}

// Begin clears the transcript, resets the time origin and starts recording.
func (a *Asciicast) Begin() error {
	if a.Released() {
		return tty.ErrAlreadyReleased
	}
	a.s.begin()
	return nil
}

// End stops recording and returns the serialized transcript.
func (a *Asciicast) End() (string, error) {
	if a.Released() {
		return "", tty.ErrAlreadyReleased
	}
	entries, _, origin, err := a.s.finish()
	if err != nil {
		return "", err
	}
	return encodeCast(a.header, entries, origin, a.s.clock()), nil
}

// Start resumes recording after Pause.
func (a *Asciicast) Start() error {
	if a.Released() {
		return tty.ErrAlreadyReleased
	}
	return a.s.resume()
}

// Pause suspends recording.
func (a *Asciicast) Pause() error {
	if a.Released() {
		return tty.ErrAlreadyReleased
	}
	return a.s.pause()
}

// Recording reports whether events are being captured.
func (a *Asciicast) Recording() bool {
	return a.s.isRecording()
}

// Swap replaces the wrapped Tty. The transcript is kept.
func (a *Asciicast) Swap(next tty.Tty) (tty.Tty, error) {
	prev, err := a.Replace(next)
	if err != nil {
		return nil, err
	}
	a.s.swapped()
	return prev, nil
}

// Verify compile-time interface compliance.
var (
	_ tty.Recorder      = (*Asciicast)(nil)
	_ tty.InnerAccessor = (*Asciicast)(nil)
	_ tty.Signaler      = (*Asciicast)(nil)
)
