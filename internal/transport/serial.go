package transport

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/tty"
)

// SerialPollInterval is the read timeout used for serial ports.
const SerialPollInterval = 50 * time.Millisecond

// SerialOptions configures a Serial transport.
type SerialOptions struct {
	Port string
	Baud int
	// WriteRate paces writes in bytes per second. Zero disables pacing.
	WriteRate int
	// PollInterval bounds each read. Defaults to SerialPollInterval.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Serial is a raw-mode serial line.
type Serial struct {
	port  string
	file  *os.File
	fd    int
	chunk []byte
	poll  *poller
	limit *rate.Limiter
	log   *slog.Logger

	wmu      sync.Mutex
	stopOnce sync.Once
	stopErr  error
}

// NewSerial opens the port, switches it to raw mode at the given baud and
// starts draining it.
func NewSerial(opts SerialOptions) (*Serial, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = SerialPollInterval
	}
	log := logger.OrDiscard(opts.Logger).With("transport", "serial", "port", opts.Port)

	f, err := openSerial(opts.Port, opts.Baud)
	if err != nil {
		log.Error("open serial port failed", "error", err)
		return nil, &tty.IOError{Op: "open " + opts.Port, Err: err}
	}
	log.Info("serial port opened", "baud", opts.Baud)

	s := &Serial{
		port:  opts.Port,
		file:  f,
		fd:    int(f.Fd()),
		chunk: make([]byte, 1024),
		poll:  newPoller("serial", opts.PollInterval, log),
		log:   log,
	}
	if opts.WriteRate > 0 {
		s.limit = rate.NewLimiter(rate.Limit(opts.WriteRate), writeBurst(opts.WriteRate))
	}
	s.poll.start(s.readChunk)
	return s, nil
}

// writeBurst keeps each paced chunk at roughly a tenth of a second of data.
func writeBurst(bytesPerSecond int) int {
	if b := bytesPerSecond / 10; b > 1 {
		return b
	}
	return 1
}

func (s *Serial) readChunk() ([]byte, error) {
	data, err := readFD(s.fd, s.poll.interval, s.chunk)
	if err != nil || len(data) == 0 {
		return data, err
	}
	return dropNUL(data), nil
}

// dropNUL removes the NUL bytes some UARTs emit on line noise or reset.
func dropNUL(data []byte) []byte {
	out := data[:0]
	for _, b := range data {
		if b != 0 {
			out = append(out, b)
		}
	}
	return out
}

// Read drains everything received since the previous call.
func (s *Serial) Read() ([]byte, error) {
	return s.poll.buf.Drain()
}

// ReadLine blocks until a full line was received.
func (s *Serial) ReadLine() ([]byte, error) {
	return s.poll.buf.ReadLine()
}

// Write sends data to the port, pacing it when a write rate is set.
func (s *Serial) Write(data []byte) error {
	if s.poll.stopping() {
		return tty.ErrAlreadyReleased
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.limit == nil {
		return s.writeRaw(data)
	}
	burst := s.limit.Burst()
	for len(data) > 0 {
		n := min(burst, len(data))
		if err := s.limit.WaitN(context.Background(), n); err != nil {
			return &tty.IOError{Op: "serial write", Err: err}
		}
		if err := s.writeRaw(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (s *Serial) writeRaw(data []byte) error {
	if err := tty.WriteAll(s.file, data); err != nil {
		s.log.Error("write failed", "error", err)
		return err
	}
	s.log.Debug("write", "data", string(data))
	return nil
}

// Ready implements tty.Signaler.
func (s *Serial) Ready() <-chan struct{} {
	return s.poll.buf.Ready()
}

// Stop ends the poller and closes the port.
func (s *Serial) Stop() error {
	s.stopOnce.Do(func() {
		s.poll.halt()
		if !s.poll.wait(4*s.poll.interval + time.Second) {
			s.log.Warn("poller did not stop in time")
		}
		if err := s.file.Close(); err != nil {
			s.stopErr = &tty.IOError{Op: "close " + s.port, Err: err}
		}
		s.log.Info("serial port closed")
	})
	return s.stopErr
}

// Verify compile-time interface compliance.
var (
	_ tty.Tty      = (*Serial)(nil)
	_ tty.Signaler = (*Serial)(nil)
	_ tty.Stopper  = (*Serial)(nil)
)
