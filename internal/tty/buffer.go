package tty

import (
	"bytes"
	"sync"
)

// Buffer is the mutex-guarded byte buffer a background poller fills and
// callers drain. Every Append closes the current ready channel and installs
// a fresh one, so any number of blocked readers wake up on new data without
// spinning.
type Buffer struct {
	mu    sync.Mutex
	data  []byte
	ready chan struct{}
	err   error
}

// NewBuffer returns an empty, open buffer.
func NewBuffer() *Buffer {
	return &Buffer{ready: make(chan struct{})}
}

// Append copies p into the buffer and wakes waiting readers. Appends after
// Close are dropped.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return
	}
	b.data = append(b.data, p...)
	close(b.ready)
	b.ready = make(chan struct{})
}

// Drain returns and clears everything buffered. Once the buffer is closed
// and empty it returns the close error.
func (b *Buffer) Drain() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return nil, b.err
	}
	out := b.data
	b.data = nil
	return out, nil
}

// ReadLine blocks until a '\n'-terminated run is buffered and consumes it,
// terminator included. If the buffer is closed first, the close error is
// returned and any partial line stays buffered.
func (b *Buffer) ReadLine() ([]byte, error) {
	for {
		b.mu.Lock()
		if i := bytes.IndexByte(b.data, '\n'); i >= 0 {
			line := make([]byte, i+1)
			copy(line, b.data[:i+1])
			b.data = b.data[i+1:]
			b.mu.Unlock()
			return line, nil
		}
		if b.err != nil {
			err := b.err
			b.mu.Unlock()
			return nil, err
		}
		ready := b.ready
		b.mu.Unlock()
		<-ready
	}
}

// Ready returns a channel closed on the next Append or on Close.
func (b *Buffer) Ready() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Len reports the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Close marks the buffer as finished with err and wakes every waiter. Only
// the first call has an effect.
func (b *Buffer) Close(err error) {
	if err == nil {
		err = ErrAlreadyReleased
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return
	}
	b.err = err
	close(b.ready)
}
