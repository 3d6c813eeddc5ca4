// Package operr is the single error channel of an operator invocation.
// Every failure is an *Error carrying a Kind and the underlying cause.
package operr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindMissingCredential
	KindUnsupportedFeature
	KindRetryExhausted
	KindAuthentication
	KindExecution
	KindCommandFailed
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindMissingCredential:
		return "missing_credential"
	case KindUnsupportedFeature:
		return "unsupported_feature"
	case KindRetryExhausted:
		return "retry_exhausted"
	case KindAuthentication:
		return "authentication_failed"
	case KindExecution:
		return "execution_failed"
	case KindCommandFailed:
		return "command_failed"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrMissingCredential  = &Error{Kind: KindMissingCredential}
	ErrUnsupportedFeature = &Error{Kind: KindUnsupportedFeature}
	ErrRetryExhausted     = &Error{Kind: KindRetryExhausted}
	ErrAuthentication     = &Error{Kind: KindAuthentication}
	ErrExecution          = &Error{Kind: KindExecution}
	ErrCommandFailed      = &Error{Kind: KindCommandFailed}
)

type Error struct {
	Kind Kind
	// Op names the stage that failed, e.g. "connect" or "authenticate".
	Op string
	// ExitStatus is only meaningful for KindCommandFailed.
	ExitStatus int
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindCommandFailed {
		return fmt.Sprintf("command failed with code %d", e.ExitStatus)
	}
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind. An unsupported feature is also a configuration error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindConfiguration && e.Kind == KindUnsupportedFeature
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Configuration(op, format string, args ...any) *Error {
	return New(KindConfiguration, op, fmt.Errorf(format, args...))
}

func MissingCredential(name string) *Error {
	return New(KindMissingCredential, "credentials", fmt.Errorf("%s not set", name))
}

func UnsupportedFeature(op, format string, args ...any) *Error {
	return New(KindUnsupportedFeature, op, fmt.Errorf(format, args...))
}

func CommandFailed(status int) *Error {
	return &Error{Kind: KindCommandFailed, Op: "exec", ExitStatus: status}
}

// KindOf reports the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
