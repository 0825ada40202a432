package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "pixdown/pkg/errors"
	"pixdown/pkg/logger"
)

// ErrScheduleExhausted is returned when every scheduled attempt has failed.
// Callers treat it as end-of-data, not as a crash.
var ErrScheduleExhausted = errors.New("retry schedule exhausted")

// DefaultSchedule returns the escalating delays between attempts. The
// schedule length is the total attempt count, including the first call.
func DefaultSchedule() []time.Duration {
	return []time.Duration{
		5 * time.Second,
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		300 * time.Second,
	}
}

// Operation is a fallible call that produces a result.
type Operation[T any] func() (T, error)

// Inspector examines a successful result for embedded error payloads and
// returns a classified error when the call must be retried (rate limiting,
// expired credentials). Benign embedded errors are expected to be logged by
// the inspector itself, returning nil so the degraded result flows back to
// the caller.
type Inspector[T any] func(T) error

// Config holds retry configuration.
type Config struct {
	// Schedule holds the delay before each re-attempt; its length bounds the
	// total number of attempts.
	Schedule []time.Duration
	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool
	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Context for cancellation.
	Context context.Context
	// Logger for retry attempts.
	Logger logger.Logger
	// Sleep waits between attempts; nil uses Wait. Overridable in tests.
	Sleep func(ctx context.Context, delay time.Duration) error
	// Name and Params identify the governed call in diagnostics.
	Name   string
	Params map[string]interface{}
}

// DefaultConfig returns a retry configuration with the standard schedule.
func DefaultConfig() *Config {
	return &Config{
		Schedule: DefaultSchedule(),
		RetryIf:  DefaultRetryIf,
		Context:  context.Background(),
		Logger:   logger.GetLogger(),
	}
}

// DefaultRetryIf is the default retry predicate.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	return false
}

// Do executes an operation under the retry schedule. After each successful
// call the inspector (if any) examines the result; a retryable error from
// either the call or the inspector consumes one scheduled delay. Errors the
// predicate rejects propagate immediately. When the schedule is exhausted
// the failure is logged with the call's identity and ErrScheduleExhausted
// is returned.
func Do[T any](op Operation[T], inspect Inspector[T], cfg *Config) (T, error) {
	var zero T
	if cfg == nil {
		cfg = DefaultConfig()
	}
	schedule := cfg.Schedule
	if len(schedule) == 0 {
		schedule = DefaultSchedule()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}

	var lastErr error
	for attempt := 1; attempt <= len(schedule); attempt++ {
		result, err := op()
		if err == nil && inspect != nil {
			err = inspect(result)
		}
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"call":    cfg.Name,
					"attempt": attempt,
				})
			}
			return result, nil
		}

		lastErr = err

		if !retryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"call":  cfg.Name,
					"error": err.Error(),
				})
			}
			return zero, err
		}

		// No point sleeping after the final attempt.
		if attempt == len(schedule) {
			break
		}

		delay := schedule[attempt-1]
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"call":     cfg.Name,
				"attempt":  attempt,
				"error":    err.Error(),
				"delay":    delay,
				"attempts": len(schedule),
			})
		}

		if err := sleep(ctx, delay); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("retry cancelled", map[string]interface{}{
					"call":    cfg.Name,
					"attempt": attempt,
					"reason":  err.Error(),
				})
			}
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
	}

	if cfg.Logger != nil {
		cfg.Logger.ErrorWithFields("retry schedule exhausted", map[string]interface{}{
			"call":       cfg.Name,
			"params":     cfg.Params,
			"attempts":   len(schedule),
			"last_error": lastErr.Error(),
		})
	}
	return zero, fmt.Errorf("%w: %s", ErrScheduleExhausted, lastErr)
}

// Wait waits for the specified duration or until the context is cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
