package tty

import "sync"

// Base holds the wrapped Tty of a wrapper behind a mutex, together with an
// explicit taken state. Wrappers embed *Base to get Exit, Inner and Ready
// for free and run every access to the inner channel through Do.
//
// The same lock guards reads, writes, Replace and Exit, so a background
// poller calling Do can never observe a half-finished swap.
type Base struct {
	mu    sync.Mutex
	inner Tty
	taken bool
}

// NewBase wraps inner.
func NewBase(inner Tty) *Base {
	return &Base{inner: inner}
}

// Do runs fn against the inner Tty while holding the lock.
func (b *Base) Do(fn func(Tty) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.taken {
		return ErrAlreadyReleased
	}
	return fn(b.inner)
}

// Exit marks the inner Tty as taken and returns it.
func (b *Base) Exit() (Tty, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.taken {
		return nil, ErrAlreadyReleased
	}
	inner := b.inner
	b.inner = nil
	b.taken = true
	return inner, nil
}

// Inner returns the live inner Tty.
func (b *Base) Inner() (Tty, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.taken {
		return nil, ErrAlreadyReleased
	}
	return b.inner, nil
}

// Replace installs next as the inner Tty and returns the previous one.
func (b *Base) Replace(next Tty) (Tty, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.taken {
		return nil, ErrAlreadyReleased
	}
	prev := b.inner
	b.inner = next
	return prev, nil
}

// Released reports whether Exit has been called.
func (b *Base) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.taken
}

// Ready forwards the arrival signal of the inner Tty. It returns nil, a
// channel that never fires, when the inner Tty cannot signal.
func (b *Base) Ready() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.inner.(Signaler); ok && !b.taken {
		return s.Ready()
	}
	return nil
}
