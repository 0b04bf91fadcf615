package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/octail/internal/tracing"
)

// DefaultPause is the sleep between two iterations of one worker.
const DefaultPause = 100 * time.Millisecond

// IterationObserver is told how every iteration ended; err is nil on success.
type IterationObserver interface {
	ObserveIteration(workerID int, err error)
}

// call is one downstream request of an iteration.
type call struct {
	method string
	fn     string
}

// iterationPlan is the fixed order of requests within one iteration.
var iterationPlan = []call{
	{http.MethodGet, DownstreamCount},
	{http.MethodPost, DownstreamCount},
	{http.MethodGet, DownstreamSum},
	{http.MethodPost, DownstreamSum},
}

// Worker drives one client through Config.Iterations iterations.
type Worker struct {
	ID        int
	Config    RunConfig
	NewClient ClientFactory
	Payloads  PayloadSource
	Processor Processor
	Recorder  LatencyRecorder
	Observer  IterationObserver
	Tracer    trace.Tracer
	Limiter   *rate.Limiter // shared across workers; nil means unpaced

	Backoff     BackoffConfig
	MaxAttempts int
	Pause       time.Duration // negative disables the pause; 0 means DefaultPause
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *slog.Logger
}

// Run starts the worker's own client, runs every iteration and stops the
// client on the way out. A failed iteration is logged and skipped; only a
// client start failure or context cancellation ends the loop early.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.logger()

	client := w.NewClient(w.Config)
	if err := client.Start(); err != nil {
		return fmt.Errorf("worker %d: start client: %w", w.ID, err)
	}
	defer func() {
		if err := client.Stop(); err != nil {
			logger.Warn("stop client", "error", err)
		}
	}()

	driver := &RetryDriver{
		Executor:    client,
		Backoff:     w.Backoff,
		MaxAttempts: w.MaxAttempts,
		Sleep:       w.Sleep,
		Logger:      logger,
	}
	sleep := w.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	pause := w.Pause
	if pause == 0 {
		pause = DefaultPause
	}

	for i := 0; i < w.Config.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.Limiter != nil {
			if err := w.Limiter.Wait(ctx); err != nil {
				return err
			}
		}

		err := w.iterate(ctx, driver)
		if err != nil {
			logger.Warn("iteration failed", "iteration", i, "error", err)
		}
		if w.Observer != nil {
			w.Observer.ObserveIteration(w.ID, err)
		}

		// A failed iteration moves straight on to the next one.
		if err == nil && pause > 0 && i+1 < w.Config.Iterations {
			if err := sleep(ctx, pause); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Worker) iterate(ctx context.Context, driver *RetryDriver) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	for _, c := range iterationPlan {
		if err := w.send(ctx, driver, c); err != nil {
			return fmt.Errorf("%s/%s: %w", c.method, c.fn, err)
		}
	}
	return nil
}

// send fetches the payload for POSTs, runs the retry sequence, hands the
// response downstream and records the latency of the whole call.
func (w *Worker) send(ctx context.Context, driver *RetryDriver, c call) (err error) {
	ctx, span := tracing.StartRequestSpan(ctx, w.tracer(), c.method, c.fn)
	defer func() { tracing.EndSpan(span, err) }()

	start := time.Now()
	var body []byte
	if c.method == http.MethodPost {
		body, err = w.Payloads.Fetch(ctx, w.Config.Bucket)
		if err != nil {
			return err
		}
	}

	payload, err := driver.Run(ctx, func() *Attempt {
		return NewAttempt(c.method, body, w.Config.Timeout)
	})
	if err != nil {
		return err
	}

	if w.Processor != nil {
		if _, perr := w.Processor.Process(payload, c.fn); perr != nil {
			w.logger().Warn("downstream processing failed", "function", c.fn, "error", perr)
		}
	}
	if w.Recorder != nil {
		w.Recorder.Record(c.method, time.Since(start))
	}
	return nil
}

func (w *Worker) tracer() trace.Tracer {
	if w.Tracer == nil {
		return noop.NewTracerProvider().Tracer("octail")
	}
	return w.Tracer
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default().With("worker", w.ID)
	}
	return w.Logger.With("worker", w.ID)
}
