package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigServerHost      = "127.0.0.1"
	DefaultConfigServerPort      = 19000
	DefaultConfigShutdownTimeout = 5 * time.Second
	DefaultConfigUpstreamBaseURL = ""
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds upstream API configuration: the single
// OpenAI-compatible base URL this proxy forwards every request to, and an
// optional model id substituted when an inbound request omits one.
type UpstreamConfig struct {
	BaseURL      string `json:"base_url" validate:"required,url"`
	DefaultModel string `json:"default_model"`
}

// MetricsConfig controls whether Prometheus metrics are recorded. The zero
// value (disabled false) means metrics are on by default; this is phrased
// as a negative flag so an unset config/env/flag value can never silently
// flip an explicit "off" back to "on".
type MetricsConfig struct {
	Disabled bool `json:"disabled"`
}

// Config holds the application's configuration. There is no persisted
// state and no credential store: the proxy forwards whichever bearer
// token the client itself presents (spec.md §4.5), it never stores or
// refreshes one of its own.
type Config struct {
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	Upstream  UpstreamConfig `json:"upstream"`
	Metrics   MetricsConfig  `json:"metrics"`

	// ModelOverrides lets the external caller pin a model id to "chat" or
	// "responses", bypassing the router's prefix/substring classification
	// (spec.md §4.1: "the caller may override per request via a
	// configured map").
	ModelOverrides map[string]string `json:"model_overrides"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	return nil
}

// Validate validates the configuration using struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
