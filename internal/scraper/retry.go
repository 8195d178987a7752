package scraper

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// RetryOptions controls WithRetry behavior. MaxRetries is the total number
// of attempts, not the number of re-attempts.
type RetryOptions struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// ShouldRetry decides whether a failure is worth another attempt.
	// Nil means DefaultShouldRetry.
	ShouldRetry func(error) bool

	// OnRetry, if set, is invoked before each wait (observability only).
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryOptions returns the retry knobs used by the scrape engines.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// DefaultShouldRetry classifies transient network failures and throttling
// status codes as retryable. Everything else, notably HTTP 401/403 and an
// open circuit breaker, fails immediately.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case 429, 502, 503, 504:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// WithRetry executes op with bounded retries and jittered exponential
// backoff. On a non-retryable failure or an exhausted budget the original
// error is returned unwrapped, so callers can classify it.
func WithRetry[T any](ctx context.Context, logger *zap.Logger, op func() (T, error), opts RetryOptions) (T, error) {
	var zero T
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.BackoffMultiplier <= 0 {
		opts.BackoffMultiplier = 2
	}
	shouldRetry := opts.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	delay := opts.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == opts.MaxRetries || !shouldRetry(err) {
			return zero, err
		}

		wait := delay + randomJitter(time.Second)
		logger.Warn("retrying after failure",
			zap.Int("attempt", attempt),
			zap.Duration("delay", wait),
			zap.Error(err),
		)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, wait, err)
		}

		if err := sleepCtx(ctx, wait); err != nil {
			return zero, lastErr
		}

		delay = time.Duration(float64(delay) * opts.BackoffMultiplier)
		if opts.MaxDelay > 0 && delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}
	return zero, lastErr
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
