package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/octail/internal/config"
	"github.com/torosent/octail/internal/logging"
	"github.com/torosent/octail/internal/testserver"
	"github.com/torosent/octail/internal/tracing"
)

type serverOptions struct {
	addr     string
	path     string
	failRate float64
	brotli   bool
	logging  config.LoggingConfig
	tracing  config.TracingConfig
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCommand().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := serverOptions{
		tracing: config.TracingConfig{Protocol: "grpc", SampleRate: 1.0, ServiceName: "octail-server"},
	}
	cmd := &cobra.Command{
		Use:           "octail-server",
		Short:         "HTTP target for octail: GET returns numbers 1..999, POST echoes the body",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", ":8080", "Listen address")
	flags.StringVar(&opts.path, "path", testserver.DefaultPath, "Route served for GET and POST")
	flags.Float64Var(&opts.failRate, "fail-rate", 0, "Fraction of requests answered with 503")
	flags.BoolVar(&opts.brotli, "brotli", false, "Compress responses for clients accepting br")
	flags.StringVar(&opts.logging.Level, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logging.Format, "log-format", "text", "Log format: text or json")
	flags.StringVar(&opts.tracing.Endpoint, "tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.StringVar(&opts.tracing.Protocol, "tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.BoolVar(&opts.tracing.Insecure, "tracing-insecure", false, "Disable TLS to the OTLP collector")
	return cmd
}

func serve(ctx context.Context, opts serverOptions) error {
	logger, err := logging.New(opts.logging, os.Stderr)
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, opts.tracing, tracing.WithRole("server"))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	router, err := testserver.NewRouter(testserver.Options{
		Path:     opts.path,
		FailRate: opts.failRate,
		Brotli:   opts.brotli,
		Logger:   logger,
		Tracer:   tp.Tracer(),
	})
	if err != nil {
		return err
	}
	return testserver.Serve(ctx, opts.addr, router, logger)
}
