// Package tty defines the byte-stream contract shared by every transport,
// filter, recorder and executor in hiltest, together with the helpers used
// to compose them into chains.
package tty

// Tty is a byte-oriented device that can be read from and written to.
//
// Read drains whatever has accumulated since the previous call and never
// blocks; an empty slice means nothing was available. ReadLine blocks until
// a '\n'-terminated run is available and consumes exactly that run,
// terminator included. Write blocks until the device has accepted every
// byte.
type Tty interface {
	Read() ([]byte, error)
	ReadLine() ([]byte, error)
	Write(data []byte) error
}

// Wrapper is a Tty that owns another Tty.
type Wrapper interface {
	Tty

	// Exit gives up the wrapped Tty and returns it. Every later call on the
	// wrapper fails with ErrAlreadyReleased.
	Exit() (Tty, error)
}

// InnerAccessor exposes the wrapped Tty in place. The returned value is the
// live inner channel, so operations on it act on the chain directly.
type InnerAccessor interface {
	Inner() (Tty, error)
}

// Swapper replaces the wrapped Tty at runtime and returns the previous one.
type Swapper interface {
	Swap(next Tty) (Tty, error)
}

// Recorder captures a transcript of the traffic flowing through it.
type Recorder interface {
	Wrapper
	Swapper

	// Begin clears any previous transcript, resets the time origin and
	// starts capturing.
	Begin() error
	// End stops capturing, returns the serialized transcript and clears it.
	End() (string, error)
	// Start resumes capturing after Pause without clearing the transcript.
	Start() error
	// Pause stops capturing without clearing the transcript.
	Pause() error
	// Recording reports whether bytes are currently being captured.
	Recording() bool
}

// Signaler is implemented by channels that can notify blocked readers when
// new bytes arrive. The returned channel is closed on the next arrival.
type Signaler interface {
	Ready() <-chan struct{}
}

// Stopper is implemented by transports that own OS resources.
type Stopper interface {
	Stop() error
}
