package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/NikhilSetiya/vanguard-reports/pkg/errors"
	"github.com/NikhilSetiya/vanguard-reports/pkg/logging"
)

// BackoffStrategy selects how the delay grows between attempts
type BackoffStrategy int

const (
	// BackoffExponential waits InitialDelay * BackoffMultiplier^(attempt-1)
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear waits InitialDelay * attempt
	BackoffLinear
)

// RetryConfig holds configuration for retry logic
type RetryConfig struct {
	// MaxAttempts counts the first attempt
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	Backoff           BackoffStrategy
	BackoffMultiplier float64
	// Jitter adds up to 10% to each delay
	Jitter bool
	// RetryableErrors decides whether a failed attempt is worth repeating
	RetryableErrors func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig tries three times with jittered exponential backoff
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		Backoff:           BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableErrors:   DefaultRetryableErrors,
	}
}

// DefaultRetryableErrors retries everything except errors caused by the
// request itself: bad input, missing settings or records, unreadable
// evidence and documents that failed to render.
func DefaultRetryableErrors(err error) bool {
	if err == nil {
		return false
	}
	switch errors.GetType(err) {
	case errors.ErrorTypeValidation,
		errors.ErrorTypeConfiguration,
		errors.ErrorTypeNotFound,
		errors.ErrorTypeTooLarge,
		errors.ErrorTypeAsset,
		errors.ErrorTypeRendering:
		return false
	}
	return true
}

// Retrier repeats an operation until it succeeds, fails permanently or runs
// out of attempts
type Retrier struct {
	config RetryConfig
	logger *logging.Logger
}

// NewRetrier fills zero fields of config with the defaults
func NewRetrier(config RetryConfig) *Retrier {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = def.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = def.MaxDelay
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = def.BackoffMultiplier
	}
	if config.RetryableErrors == nil {
		config.RetryableErrors = def.RetryableErrors
	}
	return &Retrier{config: config, logger: logging.GetLogger()}
}

// Execute runs operation. A non-retryable error is returned as is; running
// out of attempts wraps the last error. Cancelling ctx returns ctx.Err().
func (r *Retrier) Execute(ctx context.Context, operation func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = operation(ctx); err == nil {
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !r.config.RetryableErrors(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	r.logger.Warn("Operation failed after all retry attempts", "attempts", r.config.MaxAttempts, "error", err)
	return fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxAttempts, err)
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay)
	if r.config.Backoff == BackoffLinear {
		d *= float64(attempt)
	} else {
		d *= math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	}
	d = math.Min(d, float64(r.config.MaxDelay))
	if r.config.Jitter {
		d += rand.Float64() * 0.1 * d
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
