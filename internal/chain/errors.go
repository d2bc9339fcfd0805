package chain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies chain failures for retry decisions.
type ErrorKind int

const (
	// KindTransient covers network failures, timeouts and rate limits.
	// Safe to retry for read-only calls; never retried for submitted trades.
	KindTransient ErrorKind = iota + 1

	// KindPermanent covers contract-level rejections and malformed calls.
	// Retrying cannot succeed.
	KindPermanent
)

// Error is a classified chain failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	kind := "transient"
	if e.Kind == KindPermanent {
		kind = "permanent"
	}
	return fmt.Sprintf("chain: %s: %s: %v", e.Op, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable chain error.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as a terminal chain error.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// IsTransient reports whether err is a retryable chain failure.
func IsTransient(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindTransient
}

// IsPermanent reports whether err is a terminal chain failure.
func IsPermanent(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindPermanent
}
