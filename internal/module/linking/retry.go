package linking

import (
	"context"
	"errors"
	"math"
	"net"
	"os"
	"syscall"
	"time"
)

// RetryConfig holds retry executor configuration.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
	// Multiplier is the exponential backoff factor.
	Multiplier float64
}

// DefaultRetryConfig returns the retry profile used for linking operations.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryExecutor re-invokes an operation with exponential backoff while the
// failure is a transient transport error. Business errors surface on the
// first occurrence, unwrapped.
type RetryExecutor struct {
	cfg RetryConfig

	// sleep waits between attempts; injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a new retry executor with the given configuration.
func NewRetryExecutor(cfg RetryConfig) *RetryExecutor {
	return &RetryExecutor{
		cfg:   cfg,
		sleep: sleepContext,
	}
}

// Do runs op, retrying transient failures up to MaxAttempts. A MaxAttempts of
// zero or less still runs op once. Only the last error is returned when all
// attempts are exhausted.
func (e *RetryExecutor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := e.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == attempts {
			return err
		}
		if serr := e.sleep(ctx, e.Delay(attempt)); serr != nil {
			return serr
		}
	}
}

// Delay returns the backoff delay after the given attempt number (1-based):
// min(BaseDelay * Multiplier^(attempt-1), MaxDelay). No jitter.
func (e *RetryExecutor) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(e.cfg.BaseDelay) * math.Pow(e.cfg.Multiplier, float64(attempt-1))
	if max := float64(e.cfg.MaxDelay); e.cfg.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// IsRetryable classifies an error as a transient transport failure. Linking
// business errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var linkErr *Error
	if errors.As(err, &linkErr) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	// DNS failure, including host-not-found.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Timeouts, from the transport or an expired deadline.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Connection-level failures.
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ENETDOWN):
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// sleepContext waits for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
