package imapmail

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies mailbox errors so callers can decide whether an
// operation is retryable and how to report it.
type Kind string

const (
	KindConnectionFailed Kind = "connection_failed"
	KindAuthFailed       Kind = "auth_failed"
	KindTLS              Kind = "tls_error"
	KindCommand          Kind = "command_error"
	KindParse            Kind = "parse_error"
	KindNotFound         Kind = "not_found"
	KindTimeout          Kind = "timeout"
)

// Error is the error type returned by all Client operations.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and the operation that produced it.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is E with a formatted message instead of a wrapped cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from an error chain. Errors produced outside
// this package map to a best-effort classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return KindTimeout
		}
		return KindConnectionFailed
	}
	return KindCommand
}

// Retryable reports whether an error of the given kind may succeed on a
// fresh connection. Authentication and protocol errors do not.
func Retryable(kind Kind) bool {
	switch kind {
	case KindConnectionFailed, KindTimeout:
		return true
	default:
		return false
	}
}

// IsNotFound reports whether err indicates a missing message, folder or
// attachment.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
