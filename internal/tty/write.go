package tty

import (
	"errors"
	"io"
	"syscall"
)

// WriteAll writes every byte of data to w. Short writes are continued and
// EINTR is retried; any other error is returned as an *IOError.
func WriteAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		data = data[n:]
		if err == nil {
			continue
		}
		if errors.Is(err, syscall.EINTR) {
			continue
		}
		return &IOError{Op: "write", Err: err}
	}
	return nil
}
