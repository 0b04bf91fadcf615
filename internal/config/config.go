package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultThreads     = 1
	DefaultTimeout     = 20 * time.Millisecond
	DefaultIterations  = 1000000
	DefaultDeadline    = 10 * time.Second
	DefaultPause       = 100 * time.Millisecond
	DefaultMaxAttempts = 6
	DefaultPath        = "/test"
)

type StorageProvider string

const (
	StorageProviderOSS  StorageProvider = "oss"
	StorageProviderFile StorageProvider = "file"
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type Config struct {
	TargetURL   string        `mapstructure:"target"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Bucket      string        `mapstructure:"bucket"`
	Threads     int           `mapstructure:"threads"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Iterations  int           `mapstructure:"iterations"`
	Deadline    time.Duration `mapstructure:"deadline"`
	Pause       time.Duration `mapstructure:"pause"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Rate        float64       `mapstructure:"rate"`
	Brotli      bool          `mapstructure:"brotli"`
	Output      OutputFormat  `mapstructure:"output"`
	ReportFile  string        `mapstructure:"report_file"`
	Quiet       bool          `mapstructure:"quiet"`
	Thresholds  []string      `mapstructure:"thresholds"`
	ConfigFile  string        `mapstructure:"-"`
	Storage     StorageConfig `mapstructure:"storage"`
	Tracing     TracingConfig `mapstructure:"tracing"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// StorageConfig selects and tunes the object store payloads are read from.
type StorageConfig struct {
	Provider       StorageProvider `mapstructure:"provider"`
	Endpoint       string          `mapstructure:"endpoint"`
	Region         string          `mapstructure:"region"`
	Root           string          `mapstructure:"root"` // base directory for the file provider
	SmallObject    string          `mapstructure:"small_object"`
	LargeObject    string          `mapstructure:"large_object"`
	LargeRatio     float64         `mapstructure:"large_ratio"`
	ConnectTimeout time.Duration   `mapstructure:"connect_timeout"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
}

type TracingConfig struct {
	Endpoint           string  `mapstructure:"endpoint"`
	Protocol           string  `mapstructure:"protocol"` // "grpc" or "http"
	Insecure           bool    `mapstructure:"insecure"`
	SampleRate         float64 `mapstructure:"sample_rate"`
	ServiceName        string  `mapstructure:"service_name"`
	DisablePropagation bool    `mapstructure:"disable_propagation"`
}

// Enabled reports whether an OTLP endpoint is configured directly or through the environment.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers go out with each request.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() && !t.DisablePropagation
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults returns a Config populated with the values used when nothing is set.
func Defaults() *Config {
	return &Config{
		Threads:     DefaultThreads,
		Timeout:     DefaultTimeout,
		Iterations:  DefaultIterations,
		Deadline:    DefaultDeadline,
		Pause:       DefaultPause,
		MaxAttempts: DefaultMaxAttempts,
		Output:      OutputText,
		Storage: StorageConfig{
			Provider:       StorageProviderOSS,
			SmallObject:    "small_file.json",
			LargeObject:    "large_file.json",
			LargeRatio:     0.05,
			ConnectTimeout: 200 * time.Millisecond,
			ReadTimeout:    400 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ResolveTarget fills TargetURL from Host and Port when no explicit target was given.
func (c *Config) ResolveTarget() {
	c.TargetURL = strings.TrimSpace(c.TargetURL)
	if c.TargetURL != "" || strings.TrimSpace(c.Host) == "" {
		return
	}
	host := strings.TrimSpace(c.Host)
	if c.Port > 0 {
		c.TargetURL = fmt.Sprintf("http://%s:%d%s", host, c.Port, DefaultPath)
		return
	}
	c.TargetURL = "http://" + host + DefaultPath
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		issues = append(issues, "target is required (use --target or --host/--port)")
	} else if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		issues = append(issues, fmt.Sprintf("target %q must be an http or https URL", target))
	}
	if strings.TrimSpace(c.Bucket) == "" {
		issues = append(issues, "bucket is required")
	}

	if c.Threads > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High thread count configured (%d workers). Ensure you have authorization to test the target system.\n", c.Threads)
	}

	if c.Threads < 1 {
		issues = append(issues, "threads must be >= 1")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Iterations < 0 {
		issues = append(issues, "iterations must be >= 0")
	}
	if c.Deadline <= 0 {
		issues = append(issues, "deadline must be > 0")
	}
	if c.Pause < 0 {
		issues = append(issues, "pause must be >= 0")
	}
	if c.MaxAttempts < 1 {
		issues = append(issues, "max attempts must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}

	switch c.Output {
	case "", OutputText, OutputJSON, OutputYAML:
	default:
		issues = append(issues, fmt.Sprintf("output %q is not supported (text, json, yaml)", c.Output))
	}

	issues = append(issues, validateStorageConfig(c.Storage)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)
	issues = append(issues, validateLoggingConfig(c.Logging)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateStorageConfig(s StorageConfig) []string {
	var issues []string
	switch s.Provider {
	case StorageProviderOSS:
		if strings.TrimSpace(s.Region) == "" && strings.TrimSpace(s.Endpoint) == "" {
			issues = append(issues, "storage: region or endpoint is required for the oss provider")
		}
	case StorageProviderFile:
		if strings.TrimSpace(s.Root) == "" {
			issues = append(issues, "storage: root is required for the file provider")
		}
	default:
		issues = append(issues, fmt.Sprintf("storage: provider must be 'oss' or 'file', got %q", s.Provider))
	}
	if strings.TrimSpace(s.SmallObject) == "" {
		issues = append(issues, "storage: small_object is required")
	}
	if s.LargeRatio < 0 || s.LargeRatio > 1 {
		issues = append(issues, fmt.Sprintf("storage: large_ratio must be between 0 and 1, got %g", s.LargeRatio))
	}
	if s.LargeRatio > 0 && strings.TrimSpace(s.LargeObject) == "" {
		issues = append(issues, "storage: large_object is required when large_ratio > 0")
	}
	if s.ConnectTimeout < 0 || s.ReadTimeout < 0 {
		issues = append(issues, "storage: timeouts must be >= 0")
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}

func validateLoggingConfig(l LoggingConfig) []string {
	var issues []string
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging: level %q is not supported", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "text", "json":
	default:
		issues = append(issues, fmt.Sprintf("logging: format %q is not supported", l.Format))
	}
	return issues
}
