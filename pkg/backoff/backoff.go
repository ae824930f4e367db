package backoff

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule with a fixed inter-attempt delay.
// A zero-delay policy is valid and useful in tests.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Fixed returns a policy with the given attempt ceiling and delay.
func Fixed(maxAttempts int, delay time.Duration) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Policy{MaxAttempts: maxAttempts, Delay: delay}
}

// Retry runs fn up to MaxAttempts times, sleeping Delay between attempts.
// It returns nil on the first success, the last error after exhaustion, or
// the context error if the context is cancelled while waiting.
func (p Policy) Retry(ctx context.Context, fn func() error) error {
	var lastErr error
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	// A cancelled context always wins over the timer.
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
