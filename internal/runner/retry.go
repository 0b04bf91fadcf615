package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultMaxAttempts is the attempt cap, including the first try.
const DefaultMaxAttempts = 6

var (
	// ErrMaxRetries reports that the attempt cap was reached.
	ErrMaxRetries = errors.New("max retries exceeded")
	// ErrMaxElapsed reports that the backoff elapsed-time budget ran out.
	ErrMaxElapsed = errors.New("max elapsed time exceeded")
	// ErrFatalOutcome wraps an executor outcome marked as non-retryable.
	ErrFatalOutcome = errors.New("fatal outcome")
	// ErrPanic wraps a recovered panic from a worker or pool task.
	ErrPanic = errors.New("panic")
)

// AbortError is the terminal failure of one RetryDriver.Run call.
type AbortError struct {
	Reason   string
	Attempts int
	Last     Outcome
	cause    error
}

func (e *AbortError) Error() string {
	if e.Last.Reason != "" && e.Last.Reason != e.Reason {
		return fmt.Sprintf("aborted after %d attempt(s): %s (last: %s)", e.Attempts, e.Reason, e.Last.Reason)
	}
	return fmt.Sprintf("aborted after %d attempt(s): %s", e.Attempts, e.Reason)
}

func (e *AbortError) Unwrap() error {
	return e.cause
}

// RetryDriver runs Attempts through an Executor until one succeeds, a fatal
// outcome is seen, or the attempt cap or backoff budget is spent.
type RetryDriver struct {
	Executor    Executor
	Backoff     BackoffConfig // zero value uses DefaultBackoffConfig
	MaxAttempts int           // total attempts including the first; 0 means DefaultMaxAttempts
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *slog.Logger
}

// Run calls build for every attempt so each try gets its own timeout window.
// Backoff waits block only the calling goroutine.
func (d *RetryDriver) Run(ctx context.Context, build func() *Attempt) ([]byte, error) {
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	cfg := d.Backoff
	if cfg == (BackoffConfig{}) {
		cfg = DefaultBackoffConfig()
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bo := NewBackoff(cfg)
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt := build()
		outcome := d.Executor.Execute(ctx, attempt)
		attempts++

		switch outcome.Kind {
		case OutcomeSuccess:
			if attempts > 1 {
				logger.Debug("request succeeded after retry", "attempts", attempts)
			}
			return outcome.Payload, nil

		case OutcomeRetryable:
			logger.Debug("retryable failure", "attempt", attempts, "reason", outcome.Reason, "status", outcome.StatusCode)
			if attempts >= maxAttempts {
				logger.Warn("giving up: max retries exceeded", "attempts", attempts, "reason", outcome.Reason)
				return nil, &AbortError{Reason: ErrMaxRetries.Error(), Attempts: attempts, Last: outcome, cause: ErrMaxRetries}
			}
			wait, ok := bo.Next()
			if !ok {
				logger.Warn("giving up: max elapsed time exceeded", "attempts", attempts, "elapsed", bo.Elapsed(), "reason", outcome.Reason)
				return nil, &AbortError{Reason: ErrMaxElapsed.Error(), Attempts: attempts, Last: outcome, cause: ErrMaxElapsed}
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}

		case OutcomeFatal:
			logger.Warn("fatal failure", "attempt", attempts, "reason", outcome.Reason)
			return nil, &AbortError{Reason: outcome.Reason, Attempts: attempts, Last: outcome, cause: ErrFatalOutcome}

		default:
			return nil, &AbortError{Reason: "unclassified outcome", Attempts: attempts, Last: outcome, cause: ErrFatalOutcome}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
