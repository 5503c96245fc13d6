package chain

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Sentinel errors for retry logic.
var (
	ErrRetryable = &sweeperr.Error{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: sweeperr.ExitGeneral,
	}

	ErrTimeout = &sweeperr.Error{
		Code:     "TIMEOUT",
		Message:  "operation timed out",
		ExitCode: sweeperr.ExitGeneral,
	}

	ErrRateLimited = &sweeperr.Error{
		Code:     "RATE_LIMITED",
		Message:  "rate limited by backend",
		ExitCode: sweeperr.ExitGeneral,
	}
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns the default retry configuration.
// 4 attempts total (1 initial + 3 retries) with delays: 1s, 2s, 4s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
	}
}

// Retry executes the operation with exponential backoff retry.
func Retry[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	return RetryWithConfig(ctx, DefaultRetryConfig(), operation)
}

// RetryWithConfig executes the operation with the specified retry configuration.
// A RetryAfterError from the operation overrides the computed delay.
func RetryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	var result T
	var err error

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}

		if !IsRetryable(err) {
			return result, err
		}

		if attempt < cfg.MaxAttempts-1 {
			delay := calculateDelay(attempt, cfg.BaseDelay, cfg.MaxDelay)
			var ra *RetryAfterError
			if errors.As(err, &ra) && ra.After > 0 {
				delay = min(ra.After, cfg.MaxDelay)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return result, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, err)
}

// calculateDelay calculates the delay for the given attempt using exponential backoff with jitter.
func calculateDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	// Jitter in [delay/2, delay).
	return half + rand.N(half) //nolint:gosec // G404: Jitter does not require cryptographic randomness
}

// IsRetryable returns true if the error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// RetryAfterError carries the backend's Retry-After hint.
type RetryAfterError struct {
	After time.Duration
	Err   error
}

func (e *RetryAfterError) Error() string {
	return e.Err.Error()
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// ParseRetryAfter parses the Retry-After header value.
// Returns the duration to wait, or 0 if parsing fails.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

// WrapRetryable wraps an error to mark it as retryable.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

// StatusError classifies a non-2xx HTTP status. 429 becomes ErrRateLimited
// and 5xx retryable, both carrying any Retry-After hint. Other statuses
// are permanent ErrNetworkError failures.
func StatusError(resp *http.Response, body string) error {
	details := map[string]string{
		"status": strconv.Itoa(resp.StatusCode),
	}
	if body != "" {
		details["body"] = TruncateBody(body, 256)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RetryAfterError{
			After: ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:   sweeperr.WithDetails(ErrRateLimited, details),
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &RetryAfterError{
			After: ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:   WrapRetryable(sweeperr.WithDetails(sweeperr.ErrNetworkError, details)),
		}
	default:
		return sweeperr.WithDetails(sweeperr.ErrNetworkError, details)
	}
}

// TruncateBody truncates a string to maxLen bytes.
func TruncateBody(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
