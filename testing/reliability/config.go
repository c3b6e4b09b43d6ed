package reliability

import (
	"os"
	"strconv"
	"time"
)

// ReliabilityConfig holds configuration for reliability testing.
type ReliabilityConfig struct {
	Level         string        // "basic" or "stress"
	Duration      time.Duration // Test duration for stress tests
	MaxGoroutines int           // Maximum goroutines for concurrent tests
}

// getReliabilityConfig reads configuration from environment variables.
func getReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		Level:         getEnv("LAYERZ_RELIABILITY_LEVEL", ""),
		Duration:      parseDuration(getEnv("LAYERZ_RELIABILITY_DURATION", "10s")),
		MaxGoroutines: parseInt(getEnv("LAYERZ_RELIABILITY_MAX_GOROUTINES", "100"), 100),
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses an integer, falling back to def.
func parseInt(s string, def int) int {
	if value, err := strconv.Atoi(s); err == nil && value > 0 {
		return value
	}
	return def
}

// parseDuration parses a duration, falling back to 10s.
func parseDuration(s string) time.Duration {
	if duration, err := time.ParseDuration(s); err == nil {
		return duration
	}
	return 10 * time.Second
}

// iterations scales a workload to the configured level.
func (c ReliabilityConfig) iterations(basic int) int {
	if c.Level == "stress" {
		return basic * 100
	}
	return basic
}
