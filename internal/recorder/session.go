// Package recorder captures transcripts of the traffic flowing through a
// Tty chain.
//
// All recorders share the same life cycle: Begin starts a fresh session,
// Pause and Start suspend and resume capture, End serializes and clears
// the transcript. Any of them can hot-swap the transport they wrap while a
// session is in progress.
package recorder

import (
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/metrics"
	"github.com/hiltest/hiltest/internal/tty"
)

// Options configures a recorder.
type Options struct {
	// Header is written at the top of asciicast transcripts. Defaults to
	// DefaultHeader().
	Header *Header
	// RecordInput captures writes as "i" entries (asciicast only).
	RecordInput bool
	// PollInterval is the fallback wake-up period of AsciicastMulti.
	PollInterval time.Duration
	// Clock replaces time.Now in tests.
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (o Options) header() Header {
	if o.Header != nil {
		h := *o.Header
		if h.Version == 0 {
			h.Version = CastVersion
		}
		return h
	}
	return DefaultHeader()
}

// session holds the state machine and captured data shared by every
// recorder.
type session struct {
	mu        sync.Mutex
	begun     bool
	recording bool
	origin    time.Time
	entries   []Entry
	raw       []byte
	// partial holds an incomplete trailing UTF-8 sequence per direction
	// until the rest of it arrives.
	partial map[EventType][]byte

	clock   func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics
}

func newSession(opts Options, kind string) *session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &session{
		clock:   clock,
		log:     logger.OrDiscard(opts.Logger).With("recorder", kind),
		metrics: opts.Metrics,
	}
}

func (s *session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.raw = nil
	s.partial = nil
	s.origin = s.clock()
	s.begun = true
	s.recording = true
	s.log.Info("recording started")
}

func (s *session) pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begun {
		return tty.ErrNotRecording
	}
	s.recording = false
	s.log.Info("recording paused", "entries", len(s.entries))
	return nil
}

func (s *session) resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.begun {
		return tty.ErrNotRecording
	}
	s.recording = true
	s.log.Info("recording resumed")
	return nil
}

// finish ends the session and hands back what was captured.
func (s *session) finish() (entries []Entry, raw []byte, origin time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return nil, nil, time.Time{}, tty.ErrNotRecording
	}
	for _, kind := range []EventType{EventOutput, EventInput} {
		if held := s.partial[kind]; len(held) > 0 {
			s.appendEntry(kind, held)
		}
	}
	entries, raw, origin = s.entries, s.raw, s.origin
	s.entries = nil
	s.raw = nil
	s.partial = nil
	s.begun = false
	s.recording = false
	s.log.Info("recording ended", "entries", len(entries), "bytes", len(raw))
	return entries, raw, origin, nil
}

func (s *session) isRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// event appends an entry stamped relative to Begin.
func (s *session) event(kind EventType, data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	if held := s.partial[kind]; len(held) > 0 {
		data = append(held, data...)
	}
	cut := len(data) - incompleteTail(data)
	if cut < len(data) {
		if s.partial == nil {
			s.partial = make(map[EventType][]byte)
		}
		s.partial[kind] = append([]byte(nil), data[cut:]...)
	} else {
		delete(s.partial, kind)
	}
	if cut > 0 {
		s.appendEntry(kind, data[:cut])
	}
}

func (s *session) appendEntry(kind EventType, data []byte) {
	elapsed := s.clock().Sub(s.origin)
	s.entries = append(s.entries, Entry{
		Time: float64(elapsed.Microseconds()) / 1e6,
		Type: kind,
		Data: string(data),
	})
	s.metrics.AddTranscriptEntry()
}

// incompleteTail returns the length of a UTF-8 sequence at the end of data
// that has started but not finished.
func incompleteTail(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(data[i]) {
			if data[i] >= utf8.RuneSelf && !utf8.FullRune(data[i:]) {
				return len(data) - i
			}
			return 0
		}
	}
	return 0
}

// bytes appends raw data.
func (s *session) bytes(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return
	}
	s.raw = append(s.raw, data...)
}

func (s *session) swapped() {
	s.metrics.AddSwap()
	s.log.Info("transport swapped")
}

// encodeCast serializes a finished session. Timestamp and duration are
// filled in when the header does not carry them.
func encodeCast(h Header, entries []Entry, origin, end time.Time) string {
	if h.Timestamp == nil {
		ts := origin.Unix()
		h.Timestamp = &ts
	}
	if h.Duration == nil {
		d := float64(end.Sub(origin).Microseconds()) / 1e6
		h.Duration = &d
	}
	c := Cast{Header: h, Entries: entries}
	return c.String()
}
