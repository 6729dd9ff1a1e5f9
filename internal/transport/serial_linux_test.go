//go:build linux

package transport

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltest/hiltest/internal/tty"
)

// openPair returns a pty pair whose slave stands in for a UART.
func openPair(t *testing.T) (*os.File, *os.File) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("pty not available: %v", err)
	}
	t.Cleanup(func() {
		_ = master.Close()
		_ = slave.Close()
	})
	return master, slave
}

func readN(t *testing.T, r io.Reader, n int, timeout time.Duration) string {
	t.Helper()
	got := make(chan string, 1)
	go func() {
		buf := make([]byte, n)
		_, err := io.ReadFull(r, buf)
		if err != nil {
			got <- ""
			return
		}
		got <- string(buf)
	}()
	select {
	case s := <-got:
		return s
	case <-time.After(timeout):
		t.Fatalf("timed out reading %d bytes", n)
		return ""
	}
}

func TestSerial_ReadDropsNUL(t *testing.T) {
	master, slave := openPair(t)
	s, err := NewSerial(SerialOptions{Port: slave.Name(), Baud: 115200})
	require.NoError(t, err)
	defer s.Stop() //nolint:errcheck

	_, err = master.Write([]byte("\x00U-Boot\x00 2024\n"))
	require.NoError(t, err)
	out := readUntil(t, s, "\n", 3*time.Second)
	assert.Equal(t, "U-Boot 2024\n", out)
}

func TestSerial_Write(t *testing.T) {
	master, slave := openPair(t)
	s, err := NewSerial(SerialOptions{Port: slave.Name(), Baud: 9600})
	require.NoError(t, err)
	defer s.Stop() //nolint:errcheck

	require.NoError(t, s.Write([]byte("root\n")))
	assert.Equal(t, "root\n", readN(t, master, 5, 3*time.Second))
}

func TestSerial_WriteRatePaces(t *testing.T) {
	master, slave := openPair(t)
	s, err := NewSerial(SerialOptions{Port: slave.Name(), Baud: 115200, WriteRate: 1000})
	require.NoError(t, err)
	defer s.Stop() //nolint:errcheck

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 'a'
	}
	done := make(chan string, 1)
	go func() {
		buf := make([]byte, len(payload))
		_, _ = io.ReadFull(master, buf)
		done <- string(buf)
	}()

	start := time.Now()
	require.NoError(t, s.Write(payload))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	select {
	case got := <-done:
		assert.Equal(t, string(payload), got)
	case <-time.After(5 * time.Second):
		t.Fatal("paced payload never arrived")
	}
}

func TestSerial_OpenErrors(t *testing.T) {
	_, slave := openPair(t)
	tests := []struct {
		name string
		opts SerialOptions
	}{
		{"bad baud", SerialOptions{Port: slave.Name(), Baud: 1234}},
		{"missing port", SerialOptions{Port: "/dev/nonexistent-tty-xyz", Baud: 115200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSerial(tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tty.ErrTransportIO)
		})
	}
}

func TestSerial_StopReleases(t *testing.T) {
	_, slave := openPair(t)
	s, err := NewSerial(SerialOptions{Port: slave.Name(), Baud: 115200})
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Write([]byte("x")), tty.ErrAlreadyReleased)
	_, err = s.Read()
	assert.ErrorIs(t, err, tty.ErrAlreadyReleased)
}
