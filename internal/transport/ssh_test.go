package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/hiltest/hiltest/internal/tty"
)

type testServer struct {
	addr    string
	hostKey ssh.PublicKey
}

// startTestServer runs an SSH server on loopback whose shell echoes input
// back after printing a banner.
func startTestServer(t *testing.T, password string) *testServer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, cfg)
		}
	}()
	return &testServer{addr: ln.Addr().String(), hostKey: signer.PublicKey()}
}

func serveConn(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range chReqs {
				switch req.Type {
				case "pty-req":
					_ = req.Reply(true, nil)
				case "shell":
					_ = req.Reply(true, nil)
					_, _ = ch.Write([]byte("welcome\r\n$ "))
					go func() {
						_, _ = io.Copy(ch, ch)
						_ = ch.Close()
					}()
				default:
					_ = req.Reply(false, nil)
				}
			}
		}()
	}
}

func (s *testServer) options(t *testing.T) SSHOptions {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return SSHOptions{Host: host, Port: port, User: "tester", Timeout: 5 * time.Second}
}

func (s *testServer) knownHosts(t *testing.T, key ssh.PublicKey) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(s.addr)}, key)
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))
	return path
}

func TestSSH_ShellRoundTrip(t *testing.T) {
	srv := startTestServer(t, "secret")
	opts := srv.options(t)
	opts.Password = "secret"
	opts.KnownHosts = srv.knownHosts(t, srv.hostKey)

	s, err := NewSSH(context.Background(), opts)
	require.NoError(t, err)
	defer s.Stop() //nolint:errcheck

	readUntil(t, s, "welcome", 5*time.Second)
	require.NoError(t, s.Write([]byte("uname -a\n")))
	readUntil(t, s, "uname -a", 5*time.Second)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Write([]byte("x")), tty.ErrAlreadyReleased)
}

func TestSSH_InjectedDialer(t *testing.T) {
	srv := startTestServer(t, "secret")
	opts := srv.options(t)
	opts.Password = "secret"
	opts.Insecure = true
	opts.Host = "dut.invalid"

	var dialed atomic.Value
	opts.Dial = func(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		dialed.Store(addr)
		return DialTCP(ctx, srv.addr, config)
	}

	s, err := NewSSH(context.Background(), opts)
	require.NoError(t, err)
	defer s.Stop() //nolint:errcheck

	assert.Equal(t, net.JoinHostPort("dut.invalid", strconv.Itoa(opts.Port)), dialed.Load())
	readUntil(t, s, "welcome", 5*time.Second)
}

func TestSSH_HostKeyMismatch(t *testing.T) {
	srv := startTestServer(t, "secret")
	_, other, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherSigner, err := ssh.NewSignerFromKey(other)
	require.NoError(t, err)

	opts := srv.options(t)
	opts.Password = "secret"
	opts.KnownHosts = srv.knownHosts(t, otherSigner.PublicKey())

	_, err = NewSSH(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, tty.ErrTransportIO)
}

func TestSSH_WrongPassword(t *testing.T) {
	srv := startTestServer(t, "secret")
	opts := srv.options(t)
	opts.Password = "guess"
	opts.Insecure = true

	_, err := NewSSH(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, tty.ErrTransportIO)
}

func TestSSH_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    SSHOptions
		wantErr string
	}{
		{"no auth", SSHOptions{Host: "h", Insecure: true}, "no authentication method"},
		{"missing key", SSHOptions{Host: "h", KeyFile: "/nonexistent/id_ed25519", Insecure: true}, "failed to read key file"},
		{"missing known_hosts", SSHOptions{Host: "h", Password: "p", KnownHosts: "/nonexistent/known_hosts"}, "failed to load known_hosts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSSH(context.Background(), tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
