// Package transport implements the leaf Tty devices: a shell on a
// pseudo-terminal, a serial port and an SSH shell session.
//
// Every transport owns exactly one background goroutine that drains the OS
// stream into a tty.Buffer, so callers never block on the device itself.
package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/tty"
)

// DefaultPollInterval bounds how long a poller waits on the device before
// checking its stop flag again.
const DefaultPollInterval = 20 * time.Millisecond

// readFunc reads whatever the device has. A nil slice with a nil error
// means the poll interval expired with nothing to read.
type readFunc func() ([]byte, error)

// poller runs the drain loop shared by all transports.
type poller struct {
	name     string
	buf      *tty.Buffer
	interval time.Duration
	log      *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newPoller(name string, interval time.Duration, log *slog.Logger) *poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &poller{
		name:     name,
		buf:      tty.NewBuffer(),
		interval: interval,
		log:      logger.OrDiscard(log),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// start launches the drain loop.
func (p *poller) start(read readFunc) {
	go p.loop(read)
}

func (p *poller) loop(read readFunc) {
	defer close(p.done)
	for {
		select {
		case <-p.stop:
			p.log.Debug("poller stopped")
			p.buf.Close(tty.ErrAlreadyReleased)
			return
		default:
		}

		data, err := read()
		if err != nil {
			if p.stopping() {
				p.buf.Close(tty.ErrAlreadyReleased)
				return
			}
			p.log.Error("read failed, stopping poller", "error", err)
			p.buf.Close(&tty.IOError{Op: p.name + " read", Err: err})
			return
		}
		if len(data) > 0 {
			p.log.Debug("read", "bytes", len(data))
			p.buf.Append(data)
		}
	}
}

func (p *poller) stopping() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}

// halt asks the loop to finish. It is safe to call more than once.
func (p *poller) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// wait blocks until the loop has exited or the timeout elapses.
func (p *poller) wait(timeout time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// stopped reports whether the loop has exited.
func (p *poller) stopped() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
