// Package retry applies a retry policy to a single operation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backoff names a delay schedule.
type Backoff string

const (
	BackoffFibonacci   Backoff = "fibonacci"
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
	BackoffConstant    Backoff = "constant"
)

// ParseBackoff resolves a backoff name. An empty name is exponential.
func ParseBackoff(name string) (Backoff, error) {
	switch b := Backoff(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return BackoffExponential, nil
	case BackoffFibonacci, BackoffExponential, BackoffLinear, BackoffConstant:
		return b, nil
	}
	return "", fmt.Errorf("unknown backoff %q", name)
}

// MaxRetryAfter bounds a server supplied Retry-After hint.
const MaxRetryAfter = time.Minute

// Policy is how an operation is retried. The zero value runs the operation
// once.
type Policy struct {
	MaxAttempts  int
	Backoff      Backoff
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries every error.
	Retryable func(error) bool
	// Sleep waits between attempts. Tests replace it to run instantly.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy is three attempts with exponential backoff from 500ms,
// capped at 5s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		Backoff:      BackoffExponential,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// RetryAfterer is implemented by errors that carry a server supplied delay.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// Delay is the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	var d time.Duration
	switch p.Backoff {
	case BackoffFibonacci:
		d = p.InitialDelay * time.Duration(fibonacci(attempt))
	case BackoffLinear:
		d = p.InitialDelay * time.Duration(max(attempt, 1))
	case BackoffConstant:
		d = p.InitialDelay
	default:
		d = p.InitialDelay << max(attempt-1, 0)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// fibonacci returns 1, 1, 2, 3, 5, 8... for attempt 1, 2, 3...
func fibonacci(attempt int) int {
	a, b := 1, 1
	for i := 2; i < attempt; i++ {
		a, b = b, a+b
	}
	return b
}

func (p Policy) attempts() int {
	return max(p.MaxAttempts, 1)
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) wait(ctx context.Context, attempt int, err error) error {
	delay := p.Delay(attempt)
	var hinted RetryAfterer
	if errors.As(err, &hinted) {
		if ra := hinted.RetryAfter(); ra > 0 {
			delay = min(ra, MaxRetryAfter)
		}
	}
	if p.OnRetry != nil {
		p.OnRetry(attempt, delay, err)
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	return Sleep(ctx, delay)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. It returns the number of attempts made and the last
// error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) (int, error) {
	var err error
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if attempt == p.attempts() || !p.retryable(err) {
			return attempt, err
		}
		if waitErr := p.wait(ctx, attempt, err); waitErr != nil {
			return attempt, errors.Join(err, waitErr)
		}
	}
	return p.attempts(), err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
