// Package config loads tracer configuration from YAML files and LAYERZ_*
// environment variables, and watches configuration files for changes.
package config

import (
	"fmt"
	"strings"
)

// MaxSampleRate is the sample rate that records every trace.
const MaxSampleRate = 1_000_000

// Tracing modes.
const (
	ModeAlways  = "always"
	ModeThrough = "through"
	ModeNever   = "never"
)

// Default values for configuration fields.
const (
	DefaultEnabled           = true
	DefaultTracingMode       = ModeAlways
	DefaultSampleRate        = MaxSampleRate
	DefaultCollectBacktraces = false
	DefaultQueueSize         = 10000
	DefaultWorkers           = 1
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
)

// Config is the complete tracer configuration.
type Config struct {
	// Enabled turns all instrumentation on or off.
	Enabled bool `yaml:"enabled"`

	// TracingMode is "always", "through" or "never".
	TracingMode string `yaml:"tracing_mode"`

	// SampleRate is out of MaxSampleRate.
	SampleRate int `yaml:"sample_rate"`

	// CollectBacktraces adds a Backtrace field to entry events.
	CollectBacktraces bool `yaml:"collect_backtraces"`

	// Layers holds per-layer overrides keyed by layer name.
	Layers map[string]LayerConfig `yaml:"layers"`

	Reporter ReporterConfig `yaml:"reporter"`
	Log      LogConfig      `yaml:"log"`
}

// LayerConfig overrides the global settings for one layer.
type LayerConfig struct {
	Enabled           *bool `yaml:"enabled"`
	SampleRate        *int  `yaml:"sample_rate"`
	CollectBacktraces *bool `yaml:"collect_backtraces"`
}

// ReporterConfig sizes the asynchronous reporter.
type ReporterConfig struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// LogConfig configures the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every field at its default.
func Default() Config {
	return Config{
		Enabled:           DefaultEnabled,
		TracingMode:       DefaultTracingMode,
		SampleRate:        DefaultSampleRate,
		CollectBacktraces: DefaultCollectBacktraces,
		Reporter: ReporterConfig{
			QueueSize: DefaultQueueSize,
			Workers:   DefaultWorkers,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Layer returns the effective settings for a layer.
func (c Config) Layer(name string) (enabled bool, sampleRate int, backtraces bool, overridden bool) {
	enabled, sampleRate, backtraces = c.Enabled, c.SampleRate, c.CollectBacktraces
	lc, ok := c.Layers[name]
	if !ok {
		return enabled, sampleRate, backtraces, false
	}
	if lc.Enabled != nil {
		enabled = enabled && *lc.Enabled
	}
	if lc.SampleRate != nil {
		sampleRate = *lc.SampleRate
		overridden = true
	}
	if lc.CollectBacktraces != nil {
		backtraces = *lc.CollectBacktraces
	}
	return enabled, sampleRate, backtraces, overridden
}

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "reporter.workers").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate returns a ValidationError if any field is out of range.
func Validate(cfg *Config) error {
	var errs []FieldError

	switch strings.ToLower(cfg.TracingMode) {
	case ModeAlways, ModeThrough, ModeNever:
	default:
		errs = append(errs, FieldError{
			Field:   "tracing_mode",
			Message: fmt.Sprintf("must be one of always, through, never, got %q", cfg.TracingMode),
		})
	}

	if cfg.SampleRate < 0 || cfg.SampleRate > MaxSampleRate {
		errs = append(errs, FieldError{
			Field:   "sample_rate",
			Message: fmt.Sprintf("must be between 0 and %d, got %d", MaxSampleRate, cfg.SampleRate),
		})
	}

	for name, lc := range cfg.Layers {
		if lc.SampleRate != nil && (*lc.SampleRate < 0 || *lc.SampleRate > MaxSampleRate) {
			errs = append(errs, FieldError{
				Field:   "layers." + name + ".sample_rate",
				Message: fmt.Sprintf("must be between 0 and %d, got %d", MaxSampleRate, *lc.SampleRate),
			})
		}
	}

	if cfg.Reporter.QueueSize < 0 {
		errs = append(errs, FieldError{Field: "reporter.queue_size", Message: "must not be negative"})
	}
	if cfg.Reporter.Workers < 0 {
		errs = append(errs, FieldError{Field: "reporter.workers", Message: "must not be negative"})
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "log.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error, got %q", cfg.Log.Level),
		})
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "log.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Log.Format),
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
