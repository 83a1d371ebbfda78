package investigator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Backoff bounds retries of transient provider errors.
type Backoff struct {
	Attempts   int           `json:"attempts" yaml:"attempts"`
	Delay      time.Duration `json:"delay" yaml:"delay"`
	MaxDelay   time.Duration `json:"maxDelay" yaml:"maxDelay"`
	Multiplier float64       `json:"multiplier" yaml:"multiplier"`
}

// DefaultBackoff returns three attempts starting at 500ms.
func DefaultBackoff() Backoff {
	return Backoff{Attempts: 3, Delay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2}
}

// shouldRetry returns (retry?, delay) after attempts failed calls.
func (b Backoff) shouldRetry(attempts int) (bool, time.Duration) {
	if attempts >= b.Attempts {
		return false, 0
	}
	mult := b.Multiplier
	if mult <= 1 {
		mult = 2
	}
	delay := time.Duration(float64(b.Delay) * math.Pow(mult, float64(attempts-1)))
	if b.MaxDelay > 0 && delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return true, delay
}

// retry calls fn until it succeeds, fails with a non-transient error, or the
// backoff is spent. Exhaustion and permanent errors are reported as
// ErrInvestigatorFailure.
func retry[T any](ctx context.Context, backoff Backoff, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempts := 1; ; attempts++ {
		ret, err := fn(ctx)
		if err == nil {
			return ret, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !errors.Is(err, ErrProviderUnavailable) {
			return zero, fmt.Errorf("%w: %v", ErrInvestigatorFailure, err)
		}
		ok, delay := backoff.shouldRetry(attempts)
		if !ok {
			return zero, fmt.Errorf("%w: %d attempts: %v", ErrInvestigatorFailure, attempts, err)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
}
