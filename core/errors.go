package core

import (
	"errors"
	"fmt"
)

var (
	ErrEntityNotFound       = errors.New("entity not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrArityMismatch        = errors.New("vector arity mismatch")
	ErrProviderUnavailable  = errors.New("provider unavailable")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrNoProviders          = errors.New("no providers configured")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrUnknownKind          = errors.New("unknown computation kind")
	ErrEmptyInput           = errors.New("empty input")
	ErrInputTooLong         = errors.New("input too long")
	ErrInvalidInput         = errors.New("invalid input")
)

// OpError records the operation and subject (book or user id) a failure belongs to.
type OpError struct {
	Op      string
	Subject string
	Err     error
}

func (e *OpError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s [subject=%s]: %v", e.Op, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func NewOpError(op, subject string, err error) *OpError {
	return &OpError{Op: op, Subject: subject, Err: err}
}

// IsNotFound reports whether err is a definite negative lookup result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) || errors.Is(err, ErrUserNotFound)
}
