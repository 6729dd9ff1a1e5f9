package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/hiltest/hiltest/internal/logger"
	"github.com/hiltest/hiltest/internal/tty"
)

// DialFunc opens an SSH client connection. Tests replace it to avoid real
// network servers.
type DialFunc func(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

// DialTCP is the default DialFunc.
func DialTCP(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// SSHOptions configures an SSH transport.
type SSHOptions struct {
	Host string
	Port int
	User string
	// Password enables password authentication.
	Password string
	// KeyFile enables public-key authentication with a PEM/OpenSSH key.
	KeyFile       string
	KeyPassphrase string
	// KnownHosts is the known_hosts file used to check the server key.
	// Defaults to ~/.ssh/known_hosts.
	KnownHosts string
	// Insecure accepts any host key.
	Insecure bool
	// Term, Width and Height describe the remote pseudo-terminal.
	Term          string
	Width, Height int
	Timeout       time.Duration
	PollInterval  time.Duration
	Dial          DialFunc
	Logger        *slog.Logger
}

func (o *SSHOptions) setDefaults() {
	if o.Port == 0 {
		o.Port = 22
	}
	if o.Term == "" {
		o.Term = "vt100"
	}
	if o.Width == 0 {
		o.Width = 80
	}
	if o.Height == 0 {
		o.Height = 24
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Dial == nil {
		o.Dial = DialTCP
	}
}

// Addr returns host:port.
func (o SSHOptions) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// SSH is an interactive shell on a remote host.
type SSH struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
	chunk   []byte
	poll    *poller
	log     *slog.Logger

	wmu      sync.Mutex
	stopOnce sync.Once
	stopErr  error
}

// NewSSH connects, requests a pty and starts a login shell.
func NewSSH(ctx context.Context, opts SSHOptions) (*SSH, error) {
	opts.setDefaults()
	log := logger.OrDiscard(opts.Logger).With("transport", "ssh", "addr", opts.Addr())

	config, err := clientConfig(opts)
	if err != nil {
		return nil, err
	}

	client, err := opts.Dial(ctx, opts.Addr(), config)
	if err != nil {
		log.Error("ssh connect failed", "error", err)
		return nil, &tty.IOError{Op: "ssh connect " + opts.Addr(), Err: err}
	}

	s, err := startShell(client, opts, log)
	if err != nil {
		_ = client.Close()
		log.Error("ssh shell failed", "error", err)
		return nil, &tty.IOError{Op: "ssh shell", Err: err}
	}
	log.Info("ssh shell started", "user", opts.User)
	return s, nil
}

func startShell(client *ssh.Client, opts SSHOptions, log *slog.Logger) (*SSH, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 115200,
		ssh.TTY_OP_OSPEED: 115200,
	}
	if err := session.RequestPty(opts.Term, opts.Height, opts.Width, modes); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}
	if err := session.Shell(); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	s := &SSH{
		client:  client,
		session: session,
		stdin:   stdin,
		stdout:  stdout,
		chunk:   make([]byte, 4096),
		poll:    newPoller("ssh", opts.PollInterval, log),
		log:     log,
	}
	s.poll.start(s.readChunk)
	return s, nil
}

func clientConfig(opts SSHOptions) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if opts.KeyFile != "" {
		signer, err := loadSigner(opts.KeyFile, opts.KeyPassphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh: no authentication method configured (password or key_file)")
	}

	hostKey, err := hostKeyCallback(opts)
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         opts.Timeout,
	}, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %s: %w", path, err)
	}
	return signer, nil
}

func hostKeyCallback(opts SSHOptions) (ssh.HostKeyCallback, error) {
	if opts.Insecure {
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicitly requested
	}
	path := opts.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return cb, nil
}

// readChunk blocks on the session output. Stop unblocks it by closing the
// session.
func (s *SSH) readChunk() ([]byte, error) {
	n, err := s.stdout.Read(s.chunk)
	if n > 0 {
		out := make([]byte, n)
		copy(out, s.chunk[:n])
		if err == io.EOF {
			err = nil
		}
		return out, err
	}
	return nil, err
}

// Read drains everything the remote shell printed since the previous call.
func (s *SSH) Read() ([]byte, error) {
	return s.poll.buf.Drain()
}

// ReadLine blocks until the remote shell has printed a full line.
func (s *SSH) ReadLine() ([]byte, error) {
	return s.poll.buf.ReadLine()
}

// Write sends data to the remote shell's stdin.
func (s *SSH) Write(data []byte) error {
	if s.poll.stopping() {
		return tty.ErrAlreadyReleased
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := tty.WriteAll(s.stdin, data); err != nil {
		s.log.Error("write failed", "error", err)
		return err
	}
	s.log.Debug("write", "data", string(data))
	return nil
}

// Ready implements tty.Signaler.
func (s *SSH) Ready() <-chan struct{} {
	return s.poll.buf.Ready()
}

// Stop closes the session and the connection and waits for the poller.
func (s *SSH) Stop() error {
	s.stopOnce.Do(func() {
		s.poll.halt()
		_ = s.session.Close()
		if err := s.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.stopErr = &tty.IOError{Op: "ssh close", Err: err}
		}
		if !s.poll.wait(time.Second) {
			s.log.Warn("poller did not stop in time")
		}
		s.log.Info("ssh session closed")
	})
	return s.stopErr
}

// Verify compile-time interface compliance.
var (
	_ tty.Tty      = (*SSH)(nil)
	_ tty.Signaler = (*SSH)(nil)
	_ tty.Stopper  = (*SSH)(nil)
)
