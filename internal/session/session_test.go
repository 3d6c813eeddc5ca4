package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrej220/sshop/internal/credential"
	"github.com/andrej220/sshop/internal/operr"
	"github.com/andrej220/sshop/pkg/lg"
	"github.com/andrej220/sshop/pkg/retry"
)

func testRequest() Request {
	return Request{
		Host:           "build01.example.org",
		Port:           22,
		User:           "deploy",
		Command:        "echo hello",
		CommandTimeout: time.Second,
		Retry:          retry.Policy{InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond, MaxAttempts: 3},
	}
}

var password = credential.Password{Value: "hunter2"}

func TestExecuteSuccess(t *testing.T) {
	ch := &fakeChannel{stdout: "hello\n", stderr: "warn\n", status: 0}
	dialer, link, events := newFakes(ch)

	out, err := NewRunner(dialer, lg.Discard).Execute(context.Background(), testRequest(), password)

	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitStatus)
	assert.Equal(t, "hello\n", string(out.Stdout))
	assert.Equal(t, "warn\n", string(out.Stderr))
	assert.Equal(t, "echo hello", ch.command)
	assert.Equal(t, "deploy", link.user)
	assert.Equal(t, "build01.example.org:22", link.addr)
	assert.Equal(t, []string{"close channel", "disconnect"}, *events)
}

func TestExecuteNonZeroExitIsAnOutcome(t *testing.T) {
	dialer, link, _ := newFakes(&fakeChannel{status: 2})

	out, err := NewRunner(dialer, nil).Execute(context.Background(), testRequest(), password)

	require.NoError(t, err)
	assert.Equal(t, 2, out.ExitStatus)
	assert.Equal(t, 1, link.disconnects)
}

func TestExecuteRetriesConnect(t *testing.T) {
	dialer, link, _ := newFakes(&fakeChannel{})
	dialer.failDials = 2

	_, err := NewRunner(dialer, nil).Execute(context.Background(), testRequest(), password)

	require.NoError(t, err)
	assert.Equal(t, 3, dialer.dials)
	assert.Equal(t, 1, link.disconnects)
}

func TestExecuteRetryExhausted(t *testing.T) {
	dialer, link, _ := newFakes(&fakeChannel{})
	dialer.failDials = 100

	_, err := NewRunner(dialer, nil).Execute(context.Background(), testRequest(), password)

	assert.True(t, errors.Is(err, operr.ErrRetryExhausted))
	assert.True(t, errors.Is(err, retry.ErrExhausted))
	assert.Equal(t, 3, dialer.dials)
	assert.Zero(t, link.disconnects)
}

func TestExecuteFailuresReleaseOnce(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(*fakeLink, *fakeChannel)
		req         func(*Request)
		want        error
		wantChannel int
	}{
		{
			name:  "auth",
			setup: func(l *fakeLink, _ *fakeChannel) { l.authErr = errors.New("ssh: unable to authenticate") },
			want:  operr.ErrAuthentication,
		},
		{
			name:  "open channel",
			setup: func(l *fakeLink, _ *fakeChannel) { l.openErr = errors.New("channel open rejected") },
			want:  operr.ErrExecution,
		},
		{
			name:        "exec",
			setup:       func(_ *fakeLink, c *fakeChannel) { c.startErr = errors.New("exec rejected") },
			want:        operr.ErrExecution,
			wantChannel: 1,
		},
		{
			name:        "read",
			setup:       func(_ *fakeLink, c *fakeChannel) { c.waitErr = errors.New("connection reset by peer") },
			want:        operr.ErrExecution,
			wantChannel: 1,
		},
		{
			name:        "timeout",
			setup:       func(_ *fakeLink, c *fakeChannel) { c.hang = true },
			req:         func(r *Request) { r.CommandTimeout = 20 * time.Millisecond },
			want:        ErrCommandTimeout,
			wantChannel: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			dialer, link, _ := newFakes(ch)
			tt.setup(link, ch)
			req := testRequest()
			if tt.req != nil {
				tt.req(&req)
			}

			out, err := NewRunner(dialer, nil).Execute(context.Background(), req, password)

			assert.Nil(t, out)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 1, link.disconnects)
			assert.Equal(t, tt.wantChannel, ch.closes)
		})
	}
}

func TestExecuteTimeoutIsExecutionFailure(t *testing.T) {
	ch := &fakeChannel{hang: true}
	dialer, _, events := newFakes(ch)
	req := testRequest()
	req.CommandTimeout = 10 * time.Millisecond

	_, err := NewRunner(dialer, nil).Execute(context.Background(), req, password)

	assert.True(t, errors.Is(err, operr.ErrExecution))
	assert.True(t, errors.Is(err, ErrCommandTimeout))
	assert.Equal(t, []string{"close channel", "disconnect"}, *events)
}

func TestExecuteRejectsBadRequestBeforeDialing(t *testing.T) {
	mutations := map[string]func(*Request){
		"no host":      func(r *Request) { r.Host = "" },
		"no user":      func(r *Request) { r.User = "" },
		"no command":   func(r *Request) { r.Command = "" },
		"port":         func(r *Request) { r.Port = 70000 },
		"zero timeout": func(r *Request) { r.CommandTimeout = 0 },
		"attempts":     func(r *Request) { r.Retry.MaxAttempts = 0 },
		"waits":        func(r *Request) { r.Retry.InitialWait = time.Hour },
		"known hosts":  func(r *Request) { r.KnownHosts = "/nonexistent/known_hosts" },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			dialer, _, _ := newFakes(&fakeChannel{})
			req := testRequest()
			mutate(&req)

			_, err := NewRunner(dialer, nil).Execute(context.Background(), req, password)

			assert.True(t, errors.Is(err, operr.ErrConfiguration), "got %v", err)
			assert.Zero(t, dialer.dials)
		})
	}
}

func TestExecuteRejectsUnusableKeyBeforeDialing(t *testing.T) {
	dialer, _, _ := newFakes(&fakeChannel{})

	_, err := NewRunner(dialer, nil).Execute(context.Background(), testRequest(),
		credential.PublicKey{PrivateKey: "garbage", PublicKey: "garbage"})

	assert.True(t, errors.Is(err, operr.ErrConfiguration))
	assert.Zero(t, dialer.dials)
}

func TestRequestAddr(t *testing.T) {
	req := testRequest()
	req.Host = "::1"
	req.Port = 2222
	assert.Equal(t, "[::1]:2222", req.Addr())
}
