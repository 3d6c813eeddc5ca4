package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/ssh"
)

// fakeDialer fails the first failDials calls, then hands out link.
type fakeDialer struct {
	failDials int
	dials     int
	link      *fakeLink
}

func (d *fakeDialer) Dial(ctx context.Context, addr string) (Link, error) {
	d.dials++
	if d.dials <= d.failDials {
		return nil, errors.New("connection refused")
	}
	d.link.addr = addr
	return d.link, nil
}

type fakeLink struct {
	addr        string
	authErr     error
	openErr     error
	channel     *fakeChannel
	user        string
	disconnects int
	events      *[]string
}

func (l *fakeLink) Authenticate(cfg *ssh.ClientConfig) error {
	l.user = cfg.User
	return l.authErr
}

func (l *fakeLink) OpenChannel() (Channel, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	return l.channel, nil
}

func (l *fakeLink) Disconnect() error {
	l.disconnects++
	*l.events = append(*l.events, "disconnect")
	return nil
}

type fakeChannel struct {
	stdout   string
	stderr   string
	status   int
	startErr error
	waitErr  error
	// hang makes Wait block until Close.
	hang bool

	mu      sync.Mutex
	command string
	closes  int
	closed  chan struct{}
	events  *[]string
}

func (c *fakeChannel) Start(command string, stdout, stderr io.Writer) error {
	c.command = command
	if c.startErr != nil {
		return c.startErr
	}
	io.WriteString(stdout, c.stdout)
	io.WriteString(stderr, c.stderr)
	return nil
}

func (c *fakeChannel) Wait() (int, error) {
	if c.hang {
		<-c.closed
		return -1, errors.New("channel closed")
	}
	return c.status, c.waitErr
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closes == 1 {
		close(c.closed)
	}
	*c.events = append(*c.events, "close channel")
	return nil
}

func newFakes(ch *fakeChannel) (*fakeDialer, *fakeLink, *[]string) {
	events := &[]string{}
	ch.events = events
	ch.closed = make(chan struct{})
	link := &fakeLink{channel: ch, events: events}
	return &fakeDialer{link: link}, link, events
}
