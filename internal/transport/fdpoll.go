package transport

import (
	"errors"
	"io"
	"time"

	"golang.org/x/sys/unix"
)

// readFD waits up to timeout for fd to become readable and then reads
// whatever is available into chunk. It returns (nil, nil) when nothing
// arrived in time.
func readFD(fd int, timeout time.Duration, chunk []byte) ([]byte, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}} //nolint:gosec // fd fits in int32
	ready, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	if ready == 0 {
		return nil, nil
	}

	n, err := unix.Read(fd, chunk)
	if err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	out := make([]byte, n)
	copy(out, chunk[:n])
	return out, nil
}
