package llm

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"
)

const (
	// DefaultAttempts bounds a model call to six tries total.
	DefaultAttempts = 6
	// DefaultBaseDelay seeds the exponential backoff window.
	DefaultBaseDelay = time.Second
	// DefaultMaxDelay caps a single backoff wait.
	DefaultMaxDelay = 30 * time.Second
)

// Retrier retries model calls with randomized exponential backoff: each
// wait is uniform in [0, min(MaxDelay, BaseDelay*2^attempt)).
//
// Every error is retried. The providers do not expose a reliable
// transient/permanent distinction, so an auth failure burns all attempts
// the same way a timeout does; the final error is returned either way.
type Retrier struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// sleep is replaceable in tests; nil means a real ctx-aware sleep.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier() *Retrier {
	return &Retrier{
		Attempts:  DefaultAttempts,
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
	}
}

// Do runs fn until it succeeds or attempts are exhausted, returning the
// last error in that case. name labels the stage in retry logs.
func (r *Retrier) Do(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}

		wait := r.backoff(attempt)
		log.Printf("[llm] %s attempt %d/%d failed, retrying in %s: %v", name, attempt+1, attempts, wait.Round(time.Millisecond), err)
		if err := r.doSleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
	}

	return "", fmt.Errorf("%s after %d attempts: %w", name, attempts, lastErr)
}

func (r *Retrier) backoff(attempt int) time.Duration {
	base := r.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	ceiling := base << uint(attempt)
	if ceiling <= 0 || ceiling > maxDelay {
		ceiling = maxDelay
	}
	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}

func (r *Retrier) doSleep(ctx context.Context, d time.Duration) error {
	if r.sleep != nil {
		return r.sleep(ctx, d)
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
