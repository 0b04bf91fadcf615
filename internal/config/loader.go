package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Precedence, lowest first: defaults, config file, OCTAIL_ environment
// variables, positional arguments, flags.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" && !envConfigured() {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := newEnvViper()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyPositionalArgs(cfg, flagSet.Args()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Storage.Provider = StorageProvider(strings.ToLower(string(cfg.Storage.Provider)))
	cfg.ResolveTarget()

	return cfg, nil
}

// EnvPrefix prefixes the environment variables read by Load. Nested keys use
// an underscore, e.g. OCTAIL_STORAGE_PROVIDER or OCTAIL_TRACING_SAMPLE_RATE.
const EnvPrefix = "OCTAIL"

// envKeys are the settings that may come from the environment.
var envKeys = []string{
	"target", "host", "port", "bucket",
	"threads", "iterations", "max_attempts",
	"timeout", "deadline", "pause", "rate",
	"brotli", "quiet", "output", "report_file", "thresholds",
	"storage.provider", "storage.endpoint", "storage.region", "storage.root",
	"storage.small_object", "storage.large_object", "storage.large_ratio",
	"tracing.endpoint", "tracing.protocol", "tracing.insecure",
	"tracing.sample_rate", "tracing.service_name", "tracing.disable_propagation",
	"logging.level", "logging.format",
}

// newEnvViper returns a viper instance whose AllSettings includes every
// OCTAIL_ variable that is set and non-empty.
func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

func envConfigured() bool {
	for _, key := range envKeys {
		if os.Getenv(envName(key)) != "" {
			return true
		}
	}
	return false
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	for _, s := range []struct {
		keys []string
		dst  *string
	}{
		{[]string{"target"}, &cfg.TargetURL},
		{[]string{"host"}, &cfg.Host},
		{[]string{"bucket"}, &cfg.Bucket},
		{[]string{"reportfile", "report_file", "report-file"}, &cfg.ReportFile},
	} {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	for _, i := range []struct {
		keys []string
		dst  *int
	}{
		{[]string{"port"}, &cfg.Port},
		{[]string{"threads", "nthreads"}, &cfg.Threads},
		{[]string{"iterations", "niterations"}, &cfg.Iterations},
		{[]string{"maxattempts", "max_attempts", "max-attempts"}, &cfg.MaxAttempts},
	} {
		raw, ok := lookupSetting(settings, i.keys...)
		if !ok {
			continue
		}
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", i.keys[0], err)
		}
		*i.dst = val
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"timeout", &cfg.Timeout},
		{"deadline", &cfg.Deadline},
		{"pause", &cfg.Pause},
	} {
		raw, ok := lookupSetting(settings, d.key)
		if !ok {
			continue
		}
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = dur
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "brotli"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("brotli: %w", err)
		}
		cfg.Brotli = val
	}

	if raw, ok := lookupSetting(settings, "quiet"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("quiet: %w", err)
		}
		cfg.Quiet = val
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "storage"); ok {
		if err := parseStorageConfig(&cfg.Storage, raw); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracingConfig(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "logging"); ok {
		if err := parseLoggingConfig(&cfg.Logging, raw); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
	}

	return nil
}

func parseStorageConfig(dst *StorageConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "provider"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("provider: %w", err)
		}
		dst.Provider = StorageProvider(strings.ToLower(strings.TrimSpace(val)))
	}
	for _, s := range []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint"}, &dst.Endpoint},
		{[]string{"region"}, &dst.Region},
		{[]string{"root"}, &dst.Root},
		{[]string{"small_object", "smallobject", "small-object"}, &dst.SmallObject},
		{[]string{"large_object", "largeobject", "large-object"}, &dst.LargeObject},
	} {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "large_ratio", "largeratio", "large-ratio"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("large_ratio: %w", err)
		}
		dst.LargeRatio = val
	}
	if raw, ok := lookupSetting(settings, "connect_timeout", "connecttimeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("connect_timeout: %w", err)
		}
		dst.ConnectTimeout = val
	}
	if raw, ok := lookupSetting(settings, "read_timeout", "readtimeout"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("read_timeout: %w", err)
		}
		dst.ReadTimeout = val
	}
	return nil
}

func parseTracingConfig(dst *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}

	for _, s := range []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint"}, &dst.Endpoint},
		{[]string{"protocol"}, &dst.Protocol},
		{[]string{"service_name", "servicename", "service-name"}, &dst.ServiceName},
	} {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		dst.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "disable_propagation", "disablepropagation"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("disable_propagation: %w", err)
		}
		dst.DisablePropagation = val
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		dst.SampleRate = val
	}
	return nil
}

func parseLoggingConfig(dst *LoggingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("level: %w", err)
		}
		dst.Level = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		dst.Format = strings.ToLower(strings.TrimSpace(val))
	}
	return nil
}
