package investigator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError classifies an HTTP response status for retry purposes:
// 408, 429 and 5xx are transient.
func StatusError(provider string, status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500 {
		return fmt.Errorf("%s: status %d: %w", provider, status, ErrProviderUnavailable)
	}
	return fmt.Errorf("%s: status %d", provider, status)
}

// TransportError marks network failures as transient unless ctx ended.
func TransportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", provider, err, ErrProviderUnavailable)
}

// RankScore maps a 0-based result position to a provider score in (0, 1].
func RankScore(position, total int) float64 {
	if total <= 0 {
		return 0
	}
	return 1 - float64(position)/float64(total+1)
}
