package recorder

import (
	"github.com/hiltest/hiltest/internal/tty"
)

// SimpleRecorder captures the raw bytes read from and written to the
// wrapped Tty.
type SimpleRecorder struct {
	*tty.Base
	s *session
}

// NewSimple wraps inner. Capture starts with Begin.
func NewSimple(inner tty.Tty, opts Options) *SimpleRecorder {
	return &SimpleRecorder{Base: tty.NewBase(inner), s: newSession(opts, "simple")}
}

// Read forwards to the inner Tty and captures the result.
func (r *SimpleRecorder) Read() ([]byte, error) {
	var out []byte
	err := r.Do(func(inner tty.Tty) error {
		data, err := inner.Read()
		out = data
		r.s.bytes(data)
		return err
	})
	return out, err
}

// ReadLine forwards to the inner Tty and captures the line.
func (r *SimpleRecorder) ReadLine() ([]byte, error) {
	var out []byte
	err := r.Do(func(inner tty.Tty) error {
		line, err := inner.ReadLine()
		out = line
		r.s.bytes(line)
		return err
	})
	return out, err
}

// Write forwards data and captures it once the inner Tty accepted it.
func (r *SimpleRecorder) Write(data []byte) error {
	return r.Do(func(inner tty.Tty) error {
		if err := inner.Write(data); err != nil {
			return err
		}
		r.s.bytes(data)
		return nil
	})
}

// Begin clears the capture and starts recording.
func (r *SimpleRecorder) Begin() error {
	if r.Released() {
		return tty.ErrAlreadyReleased
	}
	r.s.begin()
	return nil
}

// End stops recording and returns everything captured as text.
func (r *SimpleRecorder) End() (string, error) {
	if r.Released() {
		return "", tty.ErrAlreadyReleased
	}
	_, raw, _, err := r.s.finish()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Start resumes recording after Pause.
func (r *SimpleRecorder) Start() error {
	if r.Released() {
		return tty.ErrAlreadyReleased
	}
	return r.s.resume()
}

// Pause suspends recording.
func (r *SimpleRecorder) Pause() error {
	if r.Released() {
		return tty.ErrAlreadyReleased
	}
	return r.s.pause()
}

// Recording reports whether bytes are being captured.
func (r *SimpleRecorder) Recording() bool {
	return r.s.isRecording()
}

// Swap replaces the wrapped Tty. The capture is kept.
func (r *SimpleRecorder) Swap(next tty.Tty) (tty.Tty, error) {
	prev, err := r.Replace(next)
	if err != nil {
		return nil, err
	}
	r.s.swapped()
	return prev, nil
}

// Verify compile-time interface compliance.
var (
	_ tty.Recorder      = (*SimpleRecorder)(nil)
	_ tty.InnerAccessor = (*SimpleRecorder)(nil)
	_ tty.Signaler      = (*SimpleRecorder)(nil)
)
