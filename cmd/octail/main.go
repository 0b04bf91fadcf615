package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/octail/internal/config"
	"github.com/torosent/octail/internal/httpclient"
	"github.com/torosent/octail/internal/logging"
	"github.com/torosent/octail/internal/metrics"
	"github.com/torosent/octail/internal/output"
	"github.com/torosent/octail/internal/processor"
	"github.com/torosent/octail/internal/runner"
	"github.com/torosent/octail/internal/storage"
	"github.com/torosent/octail/internal/threshold"
	"github.com/torosent/octail/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	runID := ulid.Make().String()
	logger = logger.With("run_id", runID)

	tp, err := tracing.Init(ctx, cfg.Tracing,
		tracing.WithRole("client"),
		tracing.WithRun(runID, cfg.TargetURL, cfg.Bucket),
	)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	source, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	runCfg := runner.RunConfig{
		TargetURL:  cfg.TargetURL,
		Bucket:     cfg.Bucket,
		Threads:    cfg.Threads,
		Timeout:    cfg.Timeout,
		Iterations: cfg.Iterations,
	}
	collector := metrics.NewCollector()
	newWorker := workerFactory(cfg, runCfg, workerDeps{
		payloads:  source,
		processor: processor.New(logger),
		collector: collector,
		tracer:    tp,
		logger:    logger,
	})

	logger.Info("starting run",
		"target", runCfg.TargetURL,
		"bucket", runCfg.Bucket,
		"threads", runCfg.Threads,
		"iterations", runCfg.Iterations,
		"deadline", cfg.Deadline,
	)

	var progress *output.ProgressReporter
	if !cfg.Quiet && cfg.Output == config.OutputText {
		progress = output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
	}

	startedAt := time.Now()
	collector.Start()
	pool := &runner.Pool{Size: cfg.Threads, Deadline: cfg.Deadline, Logger: logger}
	res, runErr := pool.Run(ctx, func(ctx context.Context, id int) error {
		return newWorker(id).Run(ctx)
	})

	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stderr)
	}

	report := output.Report{
		RunID:      runID,
		Target:     runCfg.TargetURL,
		Bucket:     runCfg.Bucket,
		Threads:    runCfg.Threads,
		Iterations: runCfg.Iterations,
		StartedAt:  startedAt,
		TimedOut:   res.TimedOut,
		Stats:      collector.Stats(res.Duration),
	}
	results := threshold.Evaluate(thresholds, report.Stats)
	for _, r := range results {
		report.Thresholds = append(report.Thresholds, output.ThresholdResult{
			Threshold: r.Threshold.Raw,
			Actual:    r.Actual,
			Pass:      r.Pass,
			Message:   r.Message,
		})
	}
	if err := output.Write(stdout, cfg.Output, report); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		if err := output.AppendReport(cfg.ReportFile, report); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if !threshold.AllPassed(results) {
		return errors.New("one or more thresholds failed")
	}
	return nil
}

type workerDeps struct {
	payloads  runner.PayloadSource
	processor runner.Processor
	collector *metrics.Collector
	tracer    *tracing.Provider
	logger    *slog.Logger
}

// workerFactory returns a constructor for the pool's workers. They share the
// payload source, processor, collector and rate limiter; each builds its own
// HTTP client.
func workerFactory(cfg *config.Config, runCfg runner.RunConfig, deps workerDeps) func(id int) *runner.Worker {
	clients := httpclient.Factory(httpclient.Options{
		Brotli:    cfg.Brotli,
		Propagate: deps.tracer.ShouldPropagate(),
		Logger:    deps.logger,
	})
	limiter := runner.NewLimiter(cfg.Rate, cfg.Threads)
	pause := cfg.Pause
	if pause == 0 {
		pause = -1
	}
	return func(id int) *runner.Worker {
		return &runner.Worker{
			ID:          id,
			Config:      runCfg,
			NewClient:   clients,
			Payloads:    deps.payloads,
			Processor:   deps.processor,
			Recorder:    deps.collector,
			Observer:    deps.collector,
			Tracer:      deps.tracer.Tracer(),
			Limiter:     limiter,
			MaxAttempts: cfg.MaxAttempts,
			Pause:       pause,
			Logger:      deps.logger,
		}
	}
}
