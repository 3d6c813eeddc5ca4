// Package operator is the "ssh" task type: it reads the task parameters,
// resolves credentials and runs one command on one host.
package operator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/andrej220/sshop/internal/credential"
	"github.com/andrej220/sshop/internal/operr"
	"github.com/andrej220/sshop/internal/report"
	"github.com/andrej220/sshop/internal/session"
	"github.com/andrej220/sshop/pkg/config"
	"github.com/andrej220/sshop/pkg/lg"
	"github.com/andrej220/sshop/pkg/secrets"
)

const (
	TypeName = "ssh"
	// SecretNamespace scopes the secrets the operator may read.
	SecretNamespace = "ssh"
)

// TaskContext is what the host hands to one invocation.
type TaskContext struct {
	ID      uuid.UUID
	Config  config.Params
	Secrets *secrets.Store
}

// Result is the empty success value. A command exiting 0 is the only
// success condition; its output is logged, not returned.
type Result struct {
	ID uuid.UUID
}

type Factory struct {
	logger lg.Logger
	dialer session.Dialer
}

type Option func(*Factory)

// WithDialer replaces the TCP dialer, e.g. with a fake in tests.
func WithDialer(d session.Dialer) Option {
	return func(f *Factory) { f.dialer = d }
}

func NewFactory(logger lg.Logger, opts ...Option) *Factory {
	if logger == nil {
		logger = lg.Discard
	}
	f := &Factory{logger: logger, dialer: session.NetDialer{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Type() string { return TypeName }

func (f *Factory) NewOperator(tc TaskContext) *Operator {
	if tc.ID == uuid.Nil {
		tc.ID = uuid.New()
	}
	if tc.Secrets == nil {
		tc.Secrets = secrets.NewStore(nil)
	}
	logger := f.logger.With(lg.String("task", TypeName), lg.String("invocation", tc.ID.String()))
	return &Operator{
		tc:     tc,
		logger: logger,
		runner: session.NewRunner(f.dialer, logger),
	}
}

type Operator struct {
	tc     TaskContext
	logger lg.Logger
	runner *session.Runner
}

// Run executes the task. Credentials are resolved before any connection is
// attempted. The returned error is an *operr.Error.
func (o *Operator) Run(ctx context.Context) (*Result, error) {
	ctx = lg.Attach(ctx, o.logger)
	params, err := o.tc.Config.Merged(SecretNamespace)
	if err != nil {
		return nil, operr.New(operr.KindConfiguration, "config", err)
	}
	req, credOpts, err := requestFromParams(params)
	if err != nil {
		return nil, err
	}

	creds, err := credential.Resolve(o.tc.Secrets.Scoped(SecretNamespace), credOpts)
	if err != nil {
		return nil, err
	}

	o.logger.Info("running command",
		lg.String("host", req.Host),
		lg.Int("port", req.Port),
		lg.String("user", req.User),
		lg.String("auth", creds.Method()))

	out, err := o.runner.Execute(ctx, req, creds)
	if err != nil {
		o.logger.Error("ssh task failed", lg.Err(err))
		return nil, err
	}

	if err := report.Outcome(o.logger, out, report.Options{Stdout: req.StdoutLog, Stderr: req.StderrLog}); err != nil {
		return nil, err
	}
	return &Result{ID: o.tc.ID}, nil
}

// Parameter names and defaults.
const (
	keyHost             = "host"
	keyPort             = "port"
	keyCommand          = "_command"
	keyUser             = "user"
	keyCommandTimeout   = "command_timeout"
	keyConnectTimeout   = "connect_timeout"
	keyInitialRetryWait = "initial_retry_wait"
	keyMaxRetryWait     = "max_retry_wait"
	keyMaxRetryLimit    = "max_retry_limit"
	keyStdoutLog        = "stdout_log"
	keyStderrLog        = "stderr_log"
	keyPasswordAuth     = "password_auth"
	keyPasswordOverride = "password_override"
	keyKnownHosts       = "known_hosts"

	defaultCommandTimeout   = 60   // seconds
	defaultConnectTimeout   = 10   // seconds
	defaultInitialRetryWait = 500  // milliseconds
	defaultMaxRetryWait     = 2000 // milliseconds
	defaultMaxRetryLimit    = 3
)

// paramReader keeps the first error so the getters read as a list.
type paramReader struct {
	p   config.Params
	err error
}

func (r *paramReader) fail(key string, err error) {
	if r.err == nil {
		r.err = operr.Configuration("config", "%s: %v", key, err)
	}
}

func (r *paramReader) str(key string) string {
	v, err := r.p.String(key)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func (r *paramReader) optional(key string) string {
	v, _, err := r.p.Optional(key)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func (r *paramReader) integer(key string, def int) int {
	v, err := r.p.IntOr(key, def)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func (r *paramReader) boolean(key string, def bool) bool {
	v, err := r.p.BoolOr(key, def)
	if err != nil {
		r.fail(key, err)
	}
	return v
}

func requestFromParams(p config.Params) (session.Request, credential.Options, error) {
	r := &paramReader{p: p}
	req := session.Request{
		Command:        r.str(keyCommand),
		Host:           r.str(keyHost),
		Port:           r.integer(keyPort, session.DefaultPort),
		User:           r.str(keyUser),
		CommandTimeout: time.Duration(r.integer(keyCommandTimeout, defaultCommandTimeout)) * time.Second,
		ConnectTimeout: time.Duration(r.integer(keyConnectTimeout, defaultConnectTimeout)) * time.Second,
		KnownHosts:     r.optional(keyKnownHosts),
		StdoutLog:      r.boolean(keyStdoutLog, true),
		StderrLog:      r.boolean(keyStderrLog, false),
	}
	req.Retry.InitialWait = time.Duration(r.integer(keyInitialRetryWait, defaultInitialRetryWait)) * time.Millisecond
	req.Retry.MaxWait = time.Duration(r.integer(keyMaxRetryWait, defaultMaxRetryWait)) * time.Millisecond
	req.Retry.MaxAttempts = r.integer(keyMaxRetryLimit, defaultMaxRetryLimit)

	opts := credential.Options{
		PasswordAuth:     r.boolean(keyPasswordAuth, false),
		PasswordOverride: r.optional(keyPasswordOverride),
	}
	if r.err != nil {
		return session.Request{}, credential.Options{}, r.err
	}
	if err := req.Validate(); err != nil {
		return session.Request{}, credential.Options{}, err
	}
	return req, opts, nil
}
