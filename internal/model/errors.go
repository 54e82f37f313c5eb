package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the queue and the extractors
type ErrorKind string

const (
	// KindInvalidInput is a bad URL, path or quality rejected at submission
	KindInvalidInput ErrorKind = "invalid_input"

	// KindExtraction is a failed video or playlist metadata resolution
	KindExtraction ErrorKind = "extraction"

	// KindFormatUnavailable means no stream matches the requested quality
	KindFormatUnavailable ErrorKind = "format_unavailable"

	// KindNetwork is a transport failure during resolution or transfer
	KindNetwork ErrorKind = "network"

	// KindIO is a local disk failure
	KindIO ErrorKind = "io"

	// KindInvalidState is API misuse, e.g. removing a job that is still running
	KindInvalidState ErrorKind = "invalid_state"

	// KindCancelled is returned by extractors that stopped because cancel was requested
	KindCancelled ErrorKind = "cancelled"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrExtraction        = &Error{Kind: KindExtraction}
	ErrFormatUnavailable = &Error{Kind: KindFormatUnavailable}
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrIO                = &Error{Kind: KindIO}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrCancelled         = &Error{Kind: KindCancelled}
)

// Error is the error type used across the module
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Errorf builds an *Error of the given kind. A %w verb in format is unwrapped
// the same way fmt.Errorf does it.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{
		Kind:    kind,
		Message: wrapped.Error(),
		Err:     errors.Unwrap(wrapped),
	}
}

// Wrap attaches a kind to err. It returns nil if err is nil.
func Wrap(kind ErrorKind, err error, message string) error {
	if err == nil {
		return nil
	}
	if message != "" {
		message += ": " + err.Error()
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsCancelled reports whether err signals a cooperative cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
