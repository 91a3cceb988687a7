package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error
// chain. If err is nil, Wrap returns nil. If err is already a *Error, the
// new error keeps its code, category, and context fields. Otherwise the
// result is an internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var lerr *Error
	if errors.As(err, &lerr) {
		wrapped := &Error{
			code:     lerr.code,
			category: lerr.category,
			message:  message,
			cause:    err,
			metadata: lerr.Metadata(),
			taskID:   lerr.taskID,
			signer:   lerr.signer,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error under a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsLedgerError attempts to extract a LedgerError from an error chain.
// Returns nil if none is found.
func AsLedgerError(err error) LedgerError {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}
	return nil
}

// Is checks if any error in the chain carries the given error code.
func Is(err error, code ErrorCode) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.code == code
	}
	return false
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not a *Error.
func Code(err error) ErrorCode {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.code
	}
	return ""
}

// IsValidation checks if the error is a validation rejection.
func IsValidation(err error) bool {
	return Is(err, ErrCodeValidation)
}

// IsNotFound checks if the error is a not-found rejection.
func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

// IsInvalidState checks if the error is an invalid-state rejection.
func IsInvalidState(err error) bool {
	return Is(err, ErrCodeInvalidState)
}

// IsUnauthorized checks if the error is an authorization rejection.
func IsUnauthorized(err error) bool {
	return Is(err, ErrCodeUnauthorized)
}

// IsRetryable checks if the error is retryable. Non-ledger errors default
// to not retryable.
func IsRetryable(err error) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Retryable()
	}
	return false
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}
