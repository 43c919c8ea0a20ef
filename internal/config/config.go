// Package config provides configuration loading and structs for the kensaku server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Backoff  BackoffConfig  `yaml:"backoff"`
	Search   SearchConfig   `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// UpstreamConfig holds settings for the remote message source.
type UpstreamConfig struct {
	BaseURL string `yaml:"base_url"`
	// PageSize is the number of records requested per page.
	PageSize int `yaml:"page_size"`
	// MinInterval is the proactive spacing between requests, applied even
	// when every request succeeds.
	MinInterval Duration `yaml:"min_interval"`
	// RequestTimeout bounds one upstream HTTP call.
	RequestTimeout Duration `yaml:"request_timeout"`
	// LoadTimeout bounds one complete load of the collection.
	LoadTimeout Duration `yaml:"load_timeout"`
}

// BackoffConfig holds retry schedule settings.
type BackoffConfig struct {
	RateLimitBase    Duration `yaml:"rate_limit_base"`
	TransientBase    Duration `yaml:"transient_base"`
	Factor           float64  `yaml:"factor"`
	MaxDelay         Duration `yaml:"max_delay"`
	TransientRetries int      `yaml:"transient_retries"`
	// RateLimitRetries caps retries after rate limiting; 0 means unlimited.
	RateLimitRetries int `yaml:"rate_limit_retries"`
}

// SearchConfig holds query serving settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// Load reads and parses the config file at path and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Duration wraps time.Duration so YAML values can use Go duration syntax
// ("1s", "500ms", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
