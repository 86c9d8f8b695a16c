package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// backoffBase is the delay before the first retry; it doubles per attempt.
const backoffBase = 500 * time.Millisecond

// PermanentError wraps an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retriable for Retry.
func Permanent(err error) error { return &PermanentError{Err: err} }

// Retry invokes fn up to tries times, backing off 500ms, 1s, 2s, ...
// between attempts. A cancelled context or a Permanent error stops the
// loop immediately; otherwise the last error surfaces once tries are
// spent.
func Retry(ctx context.Context, tries int, fn func(context.Context) error) error {
	if tries < 1 {
		tries = 1
	}

	var lastErr error
	for attempt := range tries {
		if attempt > 0 {
			delay := backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("adapter: retry aborted: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("adapter: retry aborted: %w", err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return perm.Err
		}
	}
	return fmt.Errorf("adapter: %d attempts exhausted: %w", tries, lastErr)
}
