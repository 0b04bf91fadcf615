package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const positionalUsage = "[HOST PORT BUCKET [threads] [timeoutMs] [iterations]]"

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "octail [flags] " + positionalUsage,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target
	flags.String("target", "", "Target URL requests are sent to")
	flags.String("host", "", "Target host; builds http://HOST:PORT/test when --target is empty")
	flags.Int("port", 0, "Target port used with --host")
	flags.String("bucket", "", "Bucket holding the sample payload objects")

	// Load shape
	flags.IntP("threads", "c", DefaultThreads, "Number of concurrent workers")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.IntP("iterations", "n", DefaultIterations, "Iterations per worker")
	flags.Duration("deadline", DefaultDeadline, "Global deadline for the whole worker pool")
	flags.Duration("pause", DefaultPause, "Pause between iterations of one worker")
	flags.Int("max-attempts", DefaultMaxAttempts, "Attempts per request before giving up")
	flags.Float64("rate", 0, "Iterations per second across all workers (0 means unlimited)")
	flags.Bool("brotli", false, "Advertise brotli response encoding")

	// Storage
	flags.String("storage-provider", string(StorageProviderOSS), "Payload store: 'oss' or 'file'")
	flags.String("storage-endpoint", "", "Object store endpoint")
	flags.String("storage-region", "", "Object store region")
	flags.String("storage-root", "", "Base directory for the file payload store")
	flags.String("small-object", "small_file.json", "Object key of the small payload")
	flags.String("large-object", "large_file.json", "Object key of the large payload")
	flags.Float64("large-ratio", 0.05, "Fraction of POSTs that send the large payload")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP collector")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0 and 1")
	flags.String("tracing-service-name", "", "Service name reported with spans")

	// Output
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.String("output", string(OutputText), "Report format: text, json, or yaml")
	flags.String("report-file", "", "Append a JSON report line to this file")
	flags.BoolP("quiet", "q", false, "Suppress the live progress line")
	flags.StringArray("threshold", nil, "Pass/fail assertion, e.g. 'get_latency:p99 < 50' (repeatable)")
	flags.String("config", "", "Path to configuration file (JSON, YAML, or TOML)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{"target", &cfg.TargetURL},
		{"host", &cfg.Host},
		{"bucket", &cfg.Bucket},
		{"storage-endpoint", &cfg.Storage.Endpoint},
		{"storage-region", &cfg.Storage.Region},
		{"storage-root", &cfg.Storage.Root},
		{"small-object", &cfg.Storage.SmallObject},
		{"large-object", &cfg.Storage.LargeObject},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
		{"log-level", &cfg.Logging.Level},
		{"log-format", &cfg.Logging.Format},
		{"report-file", &cfg.ReportFile},
	}
	for _, s := range strs {
		if !fs.Changed(s.name) {
			continue
		}
		val, err := fs.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(val)
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"port", &cfg.Port},
		{"threads", &cfg.Threads},
		{"iterations", &cfg.Iterations},
		{"max-attempts", &cfg.MaxAttempts},
	}
	for _, i := range ints {
		if !fs.Changed(i.name) {
			continue
		}
		val, err := fs.GetInt(i.name)
		if err != nil {
			return err
		}
		*i.dst = val
	}

	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("deadline") {
		val, err := fs.GetDuration("deadline")
		if err != nil {
			return err
		}
		cfg.Deadline = val
	}
	if fs.Changed("pause") {
		val, err := fs.GetDuration("pause")
		if err != nil {
			return err
		}
		cfg.Pause = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetFloat64("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("large-ratio") {
		val, err := fs.GetFloat64("large-ratio")
		if err != nil {
			return err
		}
		cfg.Storage.LargeRatio = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("brotli") {
		val, err := fs.GetBool("brotli")
		if err != nil {
			return err
		}
		cfg.Brotli = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("quiet") {
		val, err := fs.GetBool("quiet")
		if err != nil {
			return err
		}
		cfg.Quiet = val
	}
	if fs.Changed("storage-provider") {
		val, err := fs.GetString("storage-provider")
		if err != nil {
			return err
		}
		cfg.Storage.Provider = StorageProvider(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	return nil
}

// applyPositionalArgs maps HOST PORT BUCKET [threads] [timeoutMs] [iterations].
func applyPositionalArgs(cfg *Config, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if len(args) < 3 {
		return fmt.Errorf("expected at least 3 positional arguments (HOST PORT BUCKET), got %d", len(args))
	}
	if len(args) > 6 {
		return fmt.Errorf("expected at most 6 positional arguments, got %d", len(args))
	}

	cfg.Host = strings.TrimSpace(args[0])
	port, err := asInt(args[1])
	if err != nil {
		return fmt.Errorf("port: %w", err)
	}
	cfg.Port = port
	cfg.Bucket = strings.TrimSpace(args[2])
	cfg.TargetURL = ""

	if len(args) > 3 {
		if cfg.Threads, err = asInt(args[3]); err != nil {
			return fmt.Errorf("threads: %w", err)
		}
	}
	if len(args) > 4 {
		ms, err := asInt(args[4])
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = millis(ms)
	}
	if len(args) > 5 {
		if cfg.Iterations, err = asInt(args[5]); err != nil {
			return fmt.Errorf("iterations: %w", err)
		}
	}
	return nil
}
