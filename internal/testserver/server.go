// Package testserver is the HTTP target octail is pointed at in tests and
// local runs. GET returns a fixed numbers document and POST echoes its body.
package testserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/octail/internal/payload"
)

// DefaultPath is the route served for both methods.
const DefaultPath = "/test"

// Options configures the router.
type Options struct {
	Path     string
	FailRate float64 // fraction of requests answered with 503
	Brotli   bool    // compress responses for clients accepting br
	MaxBody  int64
	Logger   *slog.Logger
	Tracer   trace.Tracer

	// Rand overrides the failure-injection draw in tests.
	Rand func() float64
}

type handler struct {
	opts    Options
	getBody []byte
	mu      sync.Mutex
}

// NewRouter builds the gin engine serving Options.Path.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.FailRate < 0 || opts.FailRate > 1 {
		return nil, fmt.Errorf("fail rate %v must be within [0, 1]", opts.FailRate)
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 16 << 20
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("octail-server")
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}

	body, err := payload.Range(1, 1000)
	if err != nil {
		return nil, err
	}
	h := &handler{opts: opts, getBody: body}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(loggerMiddleware(opts.Logger))
	engine.Use(gin.Recovery())
	engine.Use(h.traceMiddleware())
	engine.Use(h.failureMiddleware())

	engine.GET(opts.Path, h.handleGet)
	engine.POST(opts.Path, h.handlePost)
	return engine, nil
}

func (h *handler) handleGet(c *gin.Context) {
	h.write(c, h.getBody)
}

func (h *handler) handlePost(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, h.opts.MaxBody))
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	h.write(c, data)
}

func (h *handler) write(c *gin.Context, data []byte) {
	if h.opts.Brotli && acceptsBrotli(c.Request.Header.Get("Accept-Encoding")) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		if _, err := bw.Write(data); err == nil && bw.Close() == nil {
			c.Header("Content-Encoding", "br")
			c.Header("Vary", "Accept-Encoding")
			data = buf.Bytes()
		}
	}
	c.Data(http.StatusOK, "application/json", data)
}

func acceptsBrotli(header string) bool {
	for _, part := range strings.Split(header, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}

func (h *handler) failureMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.opts.FailRate > 0 && h.draw() < h.opts.FailRate {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

func (h *handler) draw() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts.Rand()
}

// traceMiddleware continues the caller's W3C trace in a server span.
func (h *handler) traceMiddleware() gin.HandlerFunc {
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := h.opts.Tracer.Start(ctx, c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request.method", c.Request.Method)),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func loggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= 400 {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetHeader("X-Request-Id"),
		)
	}
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("test server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("test server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
