package publish

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is returned when every publish attempt failed.
var ErrAttemptsExhausted = errors.New("publish attempts exhausted")

// RetryPolicy retries a platform delivery with a fixed delay. Validation
// errors are returned immediately: re-sending an invalid post cannot help.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// OnRetry, when set, is called before each re-attempt.
	OnRetry func(attempt int, err error)
}

// Do runs fn up to MaxAttempts times.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return err
		}

		if attempt < maxAttempts {
			if p.OnRetry != nil {
				p.OnRetry(attempt, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, maxAttempts, lastErr)
}
