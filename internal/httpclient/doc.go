// Package httpclient provides the per-worker HTTP client handle for octail.
//
// A [Client] is created unstarted, started once by the worker that owns it,
// and stopped when that worker exits. Between the two it executes attempts
// and classifies each one as a [runner.Outcome]:
//
//	c := httpclient.New(httpclient.Options{TargetURL: "http://localhost:8080/test"})
//	if err := c.Start(); err != nil {
//		return err
//	}
//	defer c.Stop()
//	outcome := c.Execute(ctx, runner.NewAttempt(http.MethodGet, nil, 20*time.Millisecond))
//
// Only 5xx responses and transport failures are retryable. Any other non-2xx
// status counts as a success with an empty payload. Transport failures are
// labelled by [TransientLabel] (timeout, connection refused, connection
// reset, interrupted, execution error).
//
// # Integration
//
// This package integrates with:
//   - [github.com/torosent/octail/internal/runner] for attempts and outcomes
//   - [github.com/torosent/octail/internal/tracing] for W3C header propagation
package httpclient
