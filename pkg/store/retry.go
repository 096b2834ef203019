package store

import (
	"context"
	stderrors "errors"
	"time"
)

// retryable marks a connection error that is worth another attempt.
type retryable struct {
	err error
}

func (e *retryable) Error() string { return e.err.Error() }
func (e *retryable) Unwrap() error { return e.err }

func markRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryable{err: err}
}

func isRetryable(err error) bool {
	var re *retryable
	return stderrors.As(err, &re)
}

// retryDelay is the first backoff step; it doubles on each attempt.
var retryDelay = time.Second

// retryWithBackoff runs fn up to 3 times. Only errors marked retryable
// trigger another attempt; the final error is returned unwrapped.
func retryWithBackoff(ctx context.Context, fn func() error) error {
	const attempts = 3
	delay := retryDelay
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	var re *retryable
	if stderrors.As(lastErr, &re) {
		return re.err
	}
	return lastErr
}
