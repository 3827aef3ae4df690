package openaicompat

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
)

// RetryPolicy is the backoff used for connection-phase retries.
type RetryPolicy struct {
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay" yaml:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
}

// DefaultRetryPolicy returns sensible backoff defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 2.0,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// connError marks a failure of http.Client.Do, where no response status
// was received.
type connError struct{ err error }

func (e *connError) Error() string { return e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

// withRetry runs send up to maxRetries+1 times. Only connection failures
// (connError) are retried; a backend status, even 429 or 5xx, is returned
// as-is on the first attempt. Once send returns a response the body belongs
// to the caller.
func withRetry(ctx context.Context, maxRetries int, policy RetryPolicy, logger *zap.Logger, send func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.delay(attempt)
			logger.Debug("retrying request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		resp, err := send()
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < maxRetries {
			logger.Warn("request failed, will retry",
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var ce *connError
	if !errors.As(err, &ce) {
		return false
	}
	return llm.Classify(ce.err, nil, nil).Retryable
}
