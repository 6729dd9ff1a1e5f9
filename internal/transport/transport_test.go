package transport

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hiltest/hiltest/internal/tty"
)

// readUntil accumulates Read results until want shows up.
func readUntil(t *testing.T, r tty.Tty, want string, timeout time.Duration) string {
	t.Helper()
	var got strings.Builder
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		data, err := r.Read()
		require.NoError(t, err)
		got.Write(data)
		if strings.Contains(got.String(), want) {
			return got.String()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, got %q", want, got.String())
	return ""
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(DefaultShell); err != nil {
		t.Skipf("%s not available", DefaultShell)
	}
}

func TestDropNUL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"login:", "login:"},
		{"\x00\x00boot\x00ing\n", "booting\n"},
		{"\x00", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(dropNUL([]byte(tt.in))))
	}
}

func TestWriteBurst(t *testing.T) {
	assert.Equal(t, 1, writeBurst(5))
	assert.Equal(t, 96, writeBurst(960))
	assert.Equal(t, 11520, writeBurst(115200))
}

func TestShell_EchoAndOutput(t *testing.T) {
	requireShell(t)
	sh, err := NewShell(ShellOptions{
		Env: []string{"PS1=$ ", "PATH=/usr/bin:/bin", "TERM=dumb"},
	})
	require.NoError(t, err)
	defer sh.Stop() //nolint:errcheck
	assert.Positive(t, sh.Pid())

	require.NoError(t, sh.Write([]byte("echo hi-$((1+2))\n")))
	readUntil(t, sh, "hi-3", 5*time.Second)
	require.NoError(t, sh.Resize(120, 40))
}

func TestShell_ReadLine(t *testing.T) {
	requireShell(t)
	sh, err := NewShell(ShellOptions{Env: []string{"PS1=", "PATH=/usr/bin:/bin"}})
	require.NoError(t, err)
	defer sh.Stop() //nolint:errcheck

	require.NoError(t, sh.Write([]byte("echo line-one\n")))
	deadline := time.After(5 * time.Second)
	for {
		lines := make(chan string, 1)
		go func() {
			line, err := sh.ReadLine()
			if err != nil {
				lines <- ""
				return
			}
			lines <- string(line)
		}()
		select {
		case line := <-lines:
			require.NotEmpty(t, line)
			assert.True(t, strings.HasSuffix(line, "\n"))
			if strings.TrimRight(line, "\r\n") == "line-one" {
				return
			}
		case <-deadline:
			t.Fatal("no line-one output")
		}
	}
}

func TestShell_StopReleases(t *testing.T) {
	requireShell(t)
	sh, err := NewShell(ShellOptions{})
	require.NoError(t, err)

	require.NoError(t, sh.Stop())
	require.NoError(t, sh.Stop())
	assert.ErrorIs(t, sh.Write([]byte("true\n")), tty.ErrAlreadyReleased)

	for i := 0; i < 100; i++ {
		if _, err := sh.Read(); err != nil {
			assert.ErrorIs(t, err, tty.ErrAlreadyReleased)
			return
		}
	}
	t.Fatal("Read never reported the released channel")
}

func TestShell_SpawnFailure(t *testing.T) {
	_, err := NewShell(ShellOptions{Path: "/nonexistent/shell-xyz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, tty.ErrTransportIO)
}
