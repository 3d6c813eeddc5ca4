package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/andrej220/sshop/internal/credential"
	"github.com/andrej220/sshop/internal/operr"
	"github.com/andrej220/sshop/internal/sshtest"
	"github.com/andrej220/sshop/pkg/retry"
)

func serverRequest(host string, port int) Request {
	return Request{
		Host:           host,
		Port:           port,
		User:           "deploy",
		Command:        "echo hello",
		CommandTimeout: 5 * time.Second,
		ConnectTimeout: 5 * time.Second,
		Retry:          retry.Policy{InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond, MaxAttempts: 2},
	}
}

func echoHandler(command string, stdout, stderr io.Writer) uint32 {
	switch command {
	case "echo hello":
		io.WriteString(stdout, "hello\n")
		return 0
	case "exit 2":
		io.WriteString(stderr, "boom\n")
		return 2
	default:
		return 127
	}
}

func startServer(t *testing.T) *sshtest.Server {
	return sshtest.Start(t, sshtest.Options{User: "deploy", Password: "hunter2"}, echoHandler)
}

func TestServerExecute(t *testing.T) {
	srv := startServer(t)
	runner := NewRunner(nil, nil)

	out, err := runner.Execute(context.Background(), serverRequest(srv.HostPort()), credential.Password{Value: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitStatus)
	assert.Equal(t, "hello\n", string(out.Stdout))
	assert.Empty(t, out.Stderr)

	req := serverRequest(srv.HostPort())
	req.Command = "exit 2"
	out, err = runner.Execute(context.Background(), req, credential.Password{Value: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.ExitStatus)
	assert.Equal(t, "boom\n", string(out.Stderr))
	assert.Equal(t, []string{"echo hello", "exit 2"}, srv.Commands())
}

func TestServerRejectsWrongPassword(t *testing.T) {
	srv := startServer(t)

	_, err := NewRunner(nil, nil).Execute(context.Background(), serverRequest(srv.HostPort()), credential.Password{Value: "wrong"})

	assert.True(t, errors.Is(err, operr.ErrAuthentication), "got %v", err)
	assert.Empty(t, srv.Commands())
}

func TestServerConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	_, err = NewRunner(nil, nil).Execute(context.Background(), serverRequest("127.0.0.1", addr.Port), credential.Password{Value: "hunter2"})

	assert.True(t, errors.Is(err, operr.ErrRetryExhausted), "got %v", err)
}

func TestServerStrictHostKey(t *testing.T) {
	srv := startServer(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(srv.Addr)}, srv.HostKey)
	require.NoError(t, os.WriteFile(good, []byte(line+"\n"), 0600))

	req := serverRequest(srv.HostPort())
	req.KnownHosts = good
	_, err := NewRunner(nil, nil).Execute(context.Background(), req, credential.Password{Value: "hunter2"})
	require.NoError(t, err)

	_, otherKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherSigner, err := ssh.NewSignerFromKey(otherKey)
	require.NoError(t, err)
	bad := filepath.Join(dir, "known_hosts_bad")
	line = knownhosts.Line([]string{knownhosts.Normalize(srv.Addr)}, otherSigner.PublicKey())
	require.NoError(t, os.WriteFile(bad, []byte(line+"\n"), 0600))

	req.KnownHosts = bad
	_, err = NewRunner(nil, nil).Execute(context.Background(), req, credential.Password{Value: "hunter2"})
	assert.Error(t, err)
	assert.Len(t, srv.Commands(), 1)
}
