package recorder

import (
	"errors"
	"sync"
	"time"

	"github.com/hiltest/hiltest/internal/tty"
)

// DefaultPollInterval is the fallback wake-up period of AsciicastMulti when
// the wrapped Tty cannot signal new data.
const DefaultPollInterval = 20 * time.Millisecond

// AsciicastMulti records like Asciicast, but a background goroutine owns
// every read of the wrapped Tty. Output is captured as soon as it arrives,
// whether or not anyone is reading, and callers are served from an
// internal buffer.
//
// Because the goroutine reads the wrapped Tty concurrently, Inner is not
// supported.
type AsciicastMulti struct {
	base        *tty.Base
	s           *session
	header      Header
	recordInput bool
	buf         *tty.Buffer
	interval    time.Duration

	kick     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	exitMu   sync.Mutex
}

// NewAsciicastMulti wraps inner and starts the reader goroutine.
func NewAsciicastMulti(inner tty.Tty, opts Options) *AsciicastMulti {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m := &AsciicastMulti{
		base:        tty.NewBase(inner),
		s:           newSession(opts, "asciicast_multi"),
		header:      opts.header(),
		recordInput: opts.RecordInput,
		buf:         tty.NewBuffer(),
		interval:    interval,
		kick:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go m.loop()
	return m
}

func (m *AsciicastMulti) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		// Taken before reading so an arrival during the read still wakes us.
		ready := m.base.Ready()
		err := m.base.Do(func(inner tty.Tty) error {
			data, err := inner.Read()
			if len(data) > 0 {
				m.s.event(EventOutput, data)
				m.buf.Append(data)
			}
			return err
		})
		if err != nil {
			if errors.Is(err, tty.ErrAlreadyReleased) {
				m.buf.Close(tty.ErrAlreadyReleased)
				return
			}
			m.s.log.Error("read failed, stopping recorder goroutine", "error", err)
			m.buf.Close(err)
			return
		}

		select {
		case <-m.stop:
			return
		case <-ready:
		case <-m.kick:
		case <-ticker.C:
		}
	}
}

// Read drains the output collected by the reader goroutine.
func (m *AsciicastMulti) Read() ([]byte, error) {
	if m.base.Released() {
		return nil, tty.ErrAlreadyReleased
	}
	return m.buf.Drain()
}

// ReadLine blocks until the reader goroutine has collected a full line.
func (m *AsciicastMulti) ReadLine() ([]byte, error) {
	if m.base.Released() {
		return nil, tty.ErrAlreadyReleased
	}
	return m.buf.ReadLine()
}

// Write forwards data to the wrapped Tty.
func (m *AsciicastMulti) Write(data []byte) error {
	return m.base.Do(func(inner tty.Tty) error {
		if err := inner.Write(data); err != nil {
			return err
		}
		if m.recordInput {
			m.s.event(EventInput, data)
		}
		return nil
	})
}

// Ready implements tty.Signaler.
func (m *AsciicastMulti) Ready() <-chan struct{} {
	return m.buf.Ready()
}

// Inner always fails: the wrapped Tty is owned by the reader goroutine.
func (m *AsciicastMulti) Inner() (tty.Tty, error) {
	return nil, tty.Unsupported(m, "inner access")
}

// Exit stops the reader goroutine and returns the wrapped Tty.
func (m *AsciicastMulti) Exit() (tty.Tty, error) {
	m.exitMu.Lock()
	defer m.exitMu.Unlock()
	if m.base.Released() {
		return nil, tty.ErrAlreadyReleased
	}
	m.halt()
	inner, err := m.base.Exit()
	if err != nil {
		return nil, err
	}
	m.buf.Close(tty.ErrAlreadyReleased)
	return inner, nil
}

func (m *AsciicastMulti) halt() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Header returns the configured transcript header.
func (m *AsciicastMulti) Header() Header {
	return m.header
}

// Begin clears the transcript, resets the time origin and starts recording.
func (m *AsciicastMulti) Begin() error {
	if m.base.Released() {
		return tty.ErrAlreadyReleased
	}
	m.s.begin()
	return nil
}

// End stops recording and returns the serialized transcript.
func (m *AsciicastMulti) End() (string, error) {
	if m.base.Released() {
		return "", tty.ErrAlreadyReleased
	}
	entries, _, origin, err := m.s.finish()
	if err != nil {
		return "", err
	}
	return encodeCast(m.header, entries, origin, m.s.clock()), nil
}

// Start resumes recording after Pause.
func (m *AsciicastMulti) Start() error {
	if m.base.Released() {
		return tty.ErrAlreadyReleased
	}
	return m.s.resume()
}

// Pause suspends recording. The reader goroutine keeps draining.
func (m *AsciicastMulti) Pause() error {
	if m.base.Released() {
		return tty.ErrAlreadyReleased
	}
	return m.s.pause()
}

// Recording reports whether events are being captured.
func (m *AsciicastMulti) Recording() bool {
	return m.s.isRecording()
}

// Swap replaces the wrapped Tty under the lock the reader goroutine takes
// for every read, so no chunk is read from the old Tty afterwards. The
// transcript is kept.
func (m *AsciicastMulti) Swap(next tty.Tty) (tty.Tty, error) {
	prev, err := m.base.Replace(next)
	if err != nil {
		return nil, err
	}
	m.s.swapped()
	select {
	case m.kick <- struct{}{}:
	default:
	}
	return prev, nil
}

// Verify compile-time interface compliance.
var (
	_ tty.Recorder      = (*AsciicastMulti)(nil)
	_ tty.InnerAccessor = (*AsciicastMulti)(nil)
	_ tty.Signaler      = (*AsciicastMulti)(nil)
)
