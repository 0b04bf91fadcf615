// Package runner provides the request-dispatch and retry engine for octail.
//
// The package is built from small pieces, leaves first:
//   - [Backoff]: randomized exponential waits bounded by an elapsed-time budget
//   - [Executor]: performs one [Attempt] and classifies it as an [Outcome]
//   - [RetryDriver]: runs attempts until success, a fatal outcome, or a cap
//   - [Worker]: drives one client through a fixed number of iterations
//   - [Pool]: runs a fixed number of workers under a single deadline
//
// # Outcomes
//
// An [Outcome] is exactly one of success, retryable or fatal. Executors
// return outcomes by value instead of errors so transient conditions never
// look like programming failures:
//
//	outcome := executor.Execute(ctx, runner.NewAttempt(http.MethodGet, nil, 20*time.Millisecond))
//	switch outcome.Kind {
//	case runner.OutcomeSuccess:
//		use(outcome.Payload)
//	case runner.OutcomeRetryable:
//		// try again later
//	}
//
// # Retries
//
// [RetryDriver.Run] ends in one of three ways: the payload of the first
// successful attempt, an [*AbortError] wrapping [ErrMaxRetries] once
// MaxAttempts attempts have failed, or an [*AbortError] wrapping
// [ErrMaxElapsed] when the backoff budget would be exceeded by the next wait.
//
//	driver := &runner.RetryDriver{Executor: client}
//	payload, err := driver.Run(ctx, func() *runner.Attempt {
//		return runner.NewAttempt(http.MethodPost, body, timeout)
//	})
//	if errors.Is(err, runner.ErrMaxRetries) {
//		// attempt cap reached
//	}
//
// # Workers and the pool
//
// Each iteration of a [Worker] issues GET/count, POST/count, GET/sum and
// POST/sum in that order. Failed iterations are logged and skipped. The [Pool]
// abandons workers still running at its deadline and returns without error.
package runner
