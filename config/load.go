package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LAYERZ_"

// Load reads a YAML file on top of the defaults and validates the result.
// Environment variables are not consulted; use LoadWithEnv for that.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadWithEnv loads a YAML file and applies LAYERZ_* overrides.
// An empty path loads the defaults. Environment variables always take
// precedence over the file.
func LoadWithEnv(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}

	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// FromEnv returns the defaults with LAYERZ_* overrides applied.
func FromEnv() (Config, error) {
	return LoadWithEnv("")
}

// ApplyEnv applies LAYERZ_* overrides in place.
// Recognised variables: LAYERZ_ENABLED, LAYERZ_TRACING_MODE,
// LAYERZ_SAMPLE_RATE, LAYERZ_COLLECT_BACKTRACES, LAYERZ_REPORTER_QUEUE_SIZE,
// LAYERZ_REPORTER_WORKERS, LAYERZ_LOG_LEVEL, LAYERZ_LOG_FORMAT.
func ApplyEnv(cfg *Config) error {
	if val, ok := lookup("ENABLED"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return envError("ENABLED", val, err)
		}
		cfg.Enabled = b
	}
	if val, ok := lookup("TRACING_MODE"); ok {
		cfg.TracingMode = strings.ToLower(val)
	}
	if val, ok := lookup("SAMPLE_RATE"); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("SAMPLE_RATE", val, err)
		}
		cfg.SampleRate = n
	}
	if val, ok := lookup("COLLECT_BACKTRACES"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return envError("COLLECT_BACKTRACES", val, err)
		}
		cfg.CollectBacktraces = b
	}
	if val, ok := lookup("REPORTER_QUEUE_SIZE"); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("REPORTER_QUEUE_SIZE", val, err)
		}
		cfg.Reporter.QueueSize = n
	}
	if val, ok := lookup("REPORTER_WORKERS"); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError("REPORTER_WORKERS", val, err)
		}
		cfg.Reporter.Workers = n
	}
	if val, ok := lookup("LOG_LEVEL"); ok {
		cfg.Log.Level = strings.ToLower(val)
	}
	if val, ok := lookup("LOG_FORMAT"); ok {
		cfg.Log.Format = strings.ToLower(val)
	}
	return nil
}

func lookup(name string) (string, bool) {
	val := os.Getenv(EnvPrefix + name)
	if val == "" {
		return "", false
	}
	return val, true
}

func envError(name, val string, err error) error {
	return fmt.Errorf("environment variable %s%s=%q: %w", EnvPrefix, name, val, err)
}
