package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Dialer opens the network connection to a host. Each call is one connect
// attempt.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Link, error)
}

// Link is one transport to a remote host. Disconnect releases it whether
// or not Authenticate succeeded.
type Link interface {
	Authenticate(cfg *ssh.ClientConfig) error
	OpenChannel() (Channel, error)
	Disconnect() error
}

// Channel runs exactly one command.
type Channel interface {
	Start(command string, stdout, stderr io.Writer) error
	// Wait blocks until the command exits. A non-zero exit status is not
	// an error.
	Wait() (exitStatus int, err error)
	Close() error
}

// NetDialer dials plain TCP.
type NetDialer struct{}

func (NetDialer) Dial(ctx context.Context, addr string) (Link, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &clientLink{addr: addr, conn: conn}, nil
}

type clientLink struct {
	addr   string
	conn   net.Conn
	client *ssh.Client
}

// Authenticate runs the ssh handshake, including user authentication, on
// the dialed connection. cfg.Timeout bounds the whole handshake.
func (l *clientLink) Authenticate(cfg *ssh.ClientConfig) error {
	if cfg.Timeout > 0 {
		if err := l.conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
			return err
		}
	}
	c, chans, reqs, err := ssh.NewClientConn(l.conn, l.addr, cfg)
	if err != nil {
		return err
	}
	if err := l.conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return err
	}
	l.client = ssh.NewClient(c, chans, reqs)
	return nil
}

func (l *clientLink) OpenChannel() (Channel, error) {
	if l.client == nil {
		return nil, errors.New("not authenticated")
	}
	s, err := l.client.NewSession()
	if err != nil {
		return nil, err
	}
	return &sessionChannel{s: s}, nil
}

func (l *clientLink) Disconnect() error {
	if l.client != nil {
		return l.client.Close()
	}
	return l.conn.Close()
}

type sessionChannel struct {
	s *ssh.Session
}

func (c *sessionChannel) Start(command string, stdout, stderr io.Writer) error {
	c.s.Stdout = stdout
	c.s.Stderr = stderr
	return c.s.Start(command)
}

func (c *sessionChannel) Wait() (int, error) {
	err := c.s.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return -1, fmt.Errorf("remote side closed the channel without an exit status: %w", err)
	}
	return -1, err
}

// Close tears the channel down. io.EOF means it was already closed by the
// remote side.
func (c *sessionChannel) Close() error {
	if err := c.s.Close(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
