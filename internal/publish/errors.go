package publish

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a publish failure
type ErrorKind int

const (
	// KindTransient covers network timeouts, external rate-limit
	// signals and service hiccups; retried with backoff.
	KindTransient ErrorKind = iota
	// KindPermanent covers rejected content, blocked accounts and
	// malformed payloads; never retried.
	KindPermanent
)

// Error is a classified publish failure
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable publish failure
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// Permanent wraps err as a terminal publish failure
func Permanent(message string, err error) *Error {
	return &Error{Kind: KindPermanent, Message: message, Err: err}
}

// IsPermanent reports whether err is a classified permanent failure.
// Unclassified errors are treated as transient; retrying an unknown
// failure is safe because the gate bounds attempts.
func IsPermanent(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindPermanent
}
