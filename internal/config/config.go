// Package config loads and validates application configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all orchestration-core configuration.
type Config struct {
	// Record store settings.
	DatabasePath string // sqlite file path; ":memory:" for ephemeral

	// Inference service settings.
	InferenceURL    string
	InferenceAPIKey string
	// InferenceRate / InferenceBurst tune the local token bucket that
	// gates paid calls. Rate 0 disables local limiting.
	InferenceRate  float64
	InferenceBurst int

	// Bus settings.
	EventCapacity   int
	MessageCapacity int

	// Background pass settings.
	BackgroundBudget time.Duration
	SafetyMargin     time.Duration
	BackgroundEvery  time.Duration // daemon tick interval

	// Trigger settings.
	InactivityThreshold time.Duration
	EscalationGrace     time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (Config, error) {
	cfg := Config{
		DatabasePath:        envStr("PULSE_DB_PATH", "pulse.db"),
		InferenceURL:        envStr("PULSE_INFERENCE_URL", "http://localhost:8799"),
		InferenceAPIKey:     envStr("PULSE_INFERENCE_API_KEY", ""),
		InferenceRate:       envFloat("PULSE_INFERENCE_RATE", 0.5),
		InferenceBurst:      envInt("PULSE_INFERENCE_BURST", 5),
		EventCapacity:       envInt("PULSE_EVENT_CAPACITY", 100),
		MessageCapacity:     envInt("PULSE_MESSAGE_CAPACITY", 100),
		BackgroundBudget:    envDuration("PULSE_BACKGROUND_BUDGET", 25*time.Second),
		SafetyMargin:        envDuration("PULSE_SAFETY_MARGIN", 5*time.Second),
		BackgroundEvery:     envDuration("PULSE_BACKGROUND_EVERY", 15*time.Minute),
		InactivityThreshold: envDuration("PULSE_INACTIVITY_THRESHOLD", 72*time.Hour),
		EscalationGrace:     envDuration("PULSE_ESCALATION_GRACE", 48*time.Hour),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:        envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "pulse"),
		LogLevel:            envStr("PULSE_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("config: PULSE_DB_PATH is required")
	}
	if c.EventCapacity <= 0 {
		return fmt.Errorf("config: PULSE_EVENT_CAPACITY must be positive")
	}
	if c.MessageCapacity <= 0 {
		return fmt.Errorf("config: PULSE_MESSAGE_CAPACITY must be positive")
	}
	if c.SafetyMargin >= c.BackgroundBudget {
		return fmt.Errorf("config: PULSE_SAFETY_MARGIN must be smaller than PULSE_BACKGROUND_BUDGET")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
