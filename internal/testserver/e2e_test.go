package testserver_test

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/octail/internal/httpclient"
	"github.com/torosent/octail/internal/logging"
	"github.com/torosent/octail/internal/metrics"
	"github.com/torosent/octail/internal/payload"
	"github.com/torosent/octail/internal/processor"
	"github.com/torosent/octail/internal/runner"
	"github.com/torosent/octail/internal/testserver"
)

type docSource struct{ doc []byte }

func (s docSource) Fetch(context.Context, string) ([]byte, error) { return s.doc, nil }

func TestWorkersAgainstTestServer(t *testing.T) {
	router, err := testserver.NewRouter(testserver.Options{Brotli: true, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	doc, err := payload.Range(0, 10)
	if err != nil {
		t.Fatal(err)
	}
	cfg := runner.RunConfig{
		TargetURL:  srv.URL + testserver.DefaultPath,
		Bucket:     "samples",
		Threads:    2,
		Timeout:    2 * time.Second,
		Iterations: 3,
	}
	collector := metrics.NewCollector()
	proc := processor.New(logging.Discard())
	factory := httpclient.Factory(httpclient.Options{Brotli: true, Logger: logging.Discard()})

	pool := &runner.Pool{Size: cfg.Threads, Deadline: 10 * time.Second, Logger: logging.Discard()}
	res, err := pool.Run(context.Background(), func(ctx context.Context, id int) error {
		w := &runner.Worker{
			ID:        id,
			Config:    cfg,
			NewClient: factory,
			Payloads:  docSource{doc: doc},
			Processor: proc,
			Recorder:  collector,
			Observer:  collector,
			Pause:     -1,
			Logger:    logging.Discard(),
		}
		return w.Run(ctx)
	})
	if err != nil {
		t.Fatalf("pool.Run() error = %v", err)
	}
	if res.TimedOut {
		t.Fatal("pool timed out")
	}

	stats := collector.Stats(res.Duration)
	if stats.Iterations != 6 || stats.FailedIterations != 0 {
		t.Fatalf("iterations = %d, failed = %d; failures %+v", stats.Iterations, stats.FailedIterations, stats.Failures)
	}
	get, _ := stats.Method("GET")
	post, _ := stats.Method("POST")
	if get.Count != 12 || post.Count != 12 {
		t.Errorf("GET=%d POST=%d, want 12 each", get.Count, post.Count)
	}
}

func TestWorkersRetryInjectedFailures(t *testing.T) {
	var draws atomic.Int32
	router, err := testserver.NewRouter(testserver.Options{
		FailRate: 0.5,
		Logger:   logging.Discard(),
		// Fail every other request so each call succeeds on its second attempt.
		Rand: func() float64 {
			if draws.Add(1)%2 == 1 {
				return 0
			}
			return 1
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	collector := metrics.NewCollector()
	w := &runner.Worker{
		Config: runner.RunConfig{
			TargetURL:  srv.URL + testserver.DefaultPath,
			Timeout:    2 * time.Second,
			Iterations: 1,
		},
		NewClient: httpclient.Factory(httpclient.Options{Logger: logging.Discard()}),
		Payloads:  docSource{doc: []byte(`{"numbers":[1,2]}`)},
		Processor: processor.New(logging.Discard()),
		Recorder:  collector,
		Observer:  collector,
		Backoff: runner.BackoffConfig{
			InitialInterval: time.Millisecond,
			Multiplier:      1,
			MaxInterval:     time.Millisecond,
			MaxElapsedTime:  time.Minute,
		},
		Logger: logging.Discard(),
	}
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	stats := collector.Stats(time.Second)
	if stats.FailedIterations != 0 {
		t.Fatalf("failed iterations = %d: %+v", stats.FailedIterations, stats.Failures)
	}
	if n := draws.Load(); n != 8 {
		t.Errorf("server saw %d requests, want 8 (4 calls x 2 attempts)", n)
	}
}
