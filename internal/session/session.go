// Package session runs one command on one remote host over ssh:
// connect, authenticate, open a channel, execute, collect output, close.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/ssh"

	"github.com/andrej220/sshop/internal/credential"
	"github.com/andrej220/sshop/internal/operr"
	"github.com/andrej220/sshop/pkg/lg"
	"github.com/andrej220/sshop/pkg/retry"
)

const (
	DefaultPort           = 22
	DefaultCommandTimeout = 60 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

var ErrCommandTimeout = errors.New("command did not complete in time")

// Request describes one command execution. It is not modified after
// construction.
type Request struct {
	Host           string        `validate:"required"`
	Port           int           `validate:"gte=1,lte=65535"`
	User           string        `validate:"required"`
	Command        string        `validate:"required"`
	CommandTimeout time.Duration `validate:"gt=0"`
	ConnectTimeout time.Duration `validate:"gte=0"`
	// KnownHosts enables strict host key checking against this file.
	KnownHosts string
	StdoutLog  bool
	StderrLog  bool
	Retry      retry.Policy
}

var validate = validator.New()

func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return operr.New(operr.KindConfiguration, "request", err)
	}
	return nil
}

func (r Request) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Outcome is what the command produced.
type Outcome struct {
	ExitStatus int
	Stdout     []byte
	Stderr     []byte
}

type Runner struct {
	dialer Dialer
	logger lg.Logger
}

func NewRunner(dialer Dialer, logger lg.Logger) *Runner {
	if dialer == nil {
		dialer = NetDialer{}
	}
	if logger == nil {
		logger = lg.Discard
	}
	return &Runner{dialer: dialer, logger: logger}
}

// Execute runs req.Command. Only the dial is retried. The channel is closed
// and then the link disconnected on every return path once dialing
// succeeded.
func (r *Runner) Execute(ctx context.Context, req Request, creds credential.Credentials) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	auth, err := creds.AuthMethods()
	if err != nil {
		return nil, err
	}
	hostKey, err := HostKeyCallback(req.KnownHosts)
	if err != nil {
		return nil, operr.New(operr.KindConfiguration, "host key", err)
	}

	addr := req.Addr()
	log := r.logger.With(lg.String("addr", addr))
	if req.KnownHosts == "" {
		log.Debug("host key verification disabled, accepting any host key")
	}

	log.Info("connecting")
	link, err := retry.Do(ctx, req.Retry, log, func() (Link, error) {
		return r.dial(ctx, addr, req.ConnectTimeout)
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return nil, operr.New(operr.KindRetryExhausted, "connect", err)
		}
		return nil, operr.New(operr.KindExecution, "connect", err)
	}
	defer func() {
		if err := link.Disconnect(); err != nil {
			log.Debug("disconnect", lg.Err(err))
		}
	}()

	err = link.Authenticate(&ssh.ClientConfig{
		User:            req.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         req.ConnectTimeout,
		BannerCallback:  func(message string) error { return nil }, //ignore banner
	})
	if err != nil {
		return nil, operr.New(operr.KindAuthentication, "authenticate", err)
	}
	log.Info("authenticated", lg.String("user", req.User), lg.String("method", creds.Method()))

	ch, err := link.OpenChannel()
	if err != nil {
		return nil, operr.New(operr.KindExecution, "open channel", err)
	}
	defer func() {
		if err := ch.Close(); err != nil {
			log.Debug("close channel", lg.Err(err))
		}
	}()

	var stdout, stderr bytes.Buffer
	log.Info("executing command", lg.String("command", req.Command))
	if err := ch.Start(req.Command, &stdout, &stderr); err != nil {
		return nil, operr.New(operr.KindExecution, "exec", err)
	}

	status, err := wait(ctx, ch, req.CommandTimeout)
	if err != nil {
		return nil, operr.New(operr.KindExecution, "exec", err)
	}

	return &Outcome{ExitStatus: status, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

func (r *Runner) dial(ctx context.Context, addr string, timeout time.Duration) (Link, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.dialer.Dial(ctx, addr)
}

// wait blocks until ch exits or timeout elapses. On timeout the caller is
// expected to close the channel, which also releases the waiting goroutine.
func wait(ctx context.Context, ch Channel, timeout time.Duration) (int, error) {
	type result struct {
		status int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		status, err := ch.Wait()
		done <- result{status, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.status, res.err
	case <-timer.C:
		return -1, fmt.Errorf("%w: %s elapsed", ErrCommandTimeout, timeout)
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}
