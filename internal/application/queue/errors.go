package queue

import (
	"errors"
	"fmt"
)

// === Failure Classification ===

// RetryableError wraps transient failures: network timeouts, 5xx responses,
// rate-limit 429s, lost database connections. The dispatcher retries them
// with backoff up to the per-type limit.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string { return e.Err.Error() }
func (e RetryableError) Unwrap() error { return e.Err }

// Transient wraps an error to mark it retryable.
func Transient(err error) error {
	return RetryableError{Err: err}
}

// IsRetryable reports whether the error was marked transient.
func IsRetryable(err error) bool {
	var retryable RetryableError
	return errors.As(err, &retryable)
}

// PermanentError wraps failures a retry cannot fix: 4xx responses other than
// 429, schema violations, missing entities. The dispatcher parks them in the
// dead-letter queue without burning the remaining retries.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string { return e.Err.Error() }
func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error to mark it unrecoverable.
func Permanent(err error) error {
	return PermanentError{Err: err}
}

// IsPermanent reports whether the error was marked permanent.
func IsPermanent(err error) bool {
	var permanent PermanentError
	return errors.As(err, &permanent)
}

// === Panic Handling ===

// PanicError records a panic raised inside a handler. Panics indicate
// programming errors, not transient conditions, so they are parked directly.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsPanic reports whether the error wraps a handler panic.
func IsPanic(err error) bool {
	var panicErr PanicError
	return errors.As(err, &panicErr)
}
