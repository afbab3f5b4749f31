// Package config provides configuration management for the interaction log service.
// It handles loading and parsing the YAML configuration file, applies .env and
// environment overrides, and provides structured access to the feed endpoints,
// refresh cadence, export settings and logging options.
package config

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is used when no port is configured.
	DefaultPort = 8317
	// DefaultRefreshInterval matches the dashboard's polling cadence.
	DefaultRefreshInterval = 5 * time.Second
	// DefaultRefreshTimeout bounds one refresh cycle across all three feeds.
	DefaultRefreshTimeout = 30 * time.Second
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the management API binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host" env:"BAKAME_HOST"`

	// Port is the management API port.
	Port int `yaml:"port" json:"port" env:"BAKAME_PORT"`

	// Debug enables debug logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug" env:"BAKAME_DEBUG"`

	// LoggingToFile routes logs to rotating files under LogDir instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file" env:"BAKAME_LOGGING_TO_FILE"`

	// LogDir is the directory for rotating log files.
	LogDir string `yaml:"log-dir" json:"log-dir" env:"BAKAME_LOG_DIR"`

	// APIKeys guards the management API when non-empty.
	APIKeys []string `yaml:"api-keys" json:"-" env:"BAKAME_API_KEYS" envSeparator:","`

	// Feeds configures the upstream feed endpoints.
	Feeds FeedsConfig `yaml:"feeds" json:"feeds"`

	// Refresh configures the periodic rebuild of the interaction log.
	Refresh RefreshConfig `yaml:"refresh" json:"refresh"`

	// Export configures CSV/XLSX rendering and the export directory.
	Export ExportConfig `yaml:"export" json:"export"`
}

// FeedsConfig holds the upstream backend endpoints.
type FeedsConfig struct {
	// BaseURL is the Bakame backend root, e.g. "http://localhost:8000".
	BaseURL string `yaml:"base-url" json:"base-url" env:"BAKAME_API_BASE_URL"`

	CallsPath     string `yaml:"calls-path" json:"calls-path" env:"BAKAME_CALLS_PATH"`
	UsagePath     string `yaml:"usage-path" json:"usage-path" env:"BAKAME_USAGE_PATH"`
	TelephonyPath string `yaml:"telephony-path" json:"telephony-path" env:"BAKAME_TELEPHONY_PATH"`

	// APIKey is sent as a bearer token to the backend when set.
	APIKey string `yaml:"api-key" json:"-" env:"BAKAME_API_KEY"`

	// TimeoutSeconds bounds each feed request. <= 0 uses 10 seconds.
	TimeoutSeconds int `yaml:"timeout-seconds" json:"timeout-seconds" env:"BAKAME_FEED_TIMEOUT_SECONDS"`
}

// RefreshConfig holds the refresh cadence.
type RefreshConfig struct {
	// IntervalSeconds is the fixed delay between refresh ticks. <= 0 uses 5 seconds.
	IntervalSeconds int `yaml:"interval-seconds" json:"interval-seconds" env:"BAKAME_REFRESH_INTERVAL_SECONDS"`

	// TimeoutSeconds bounds a whole refresh cycle. <= 0 uses 30 seconds.
	TimeoutSeconds int `yaml:"timeout-seconds" json:"timeout-seconds" env:"BAKAME_REFRESH_TIMEOUT_SECONDS"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// Dir receives CSV files written by the export endpoint and the one-shot CLI mode.
	Dir string `yaml:"dir" json:"dir" env:"BAKAME_EXPORT_DIR"`

	// Timezone is the IANA zone used to render timestamps. "Local" or empty uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone" env:"BAKAME_EXPORT_TIMEZONE"`
}

// Interval returns the refresh interval, falling back to DefaultRefreshInterval.
func (c RefreshConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return DefaultRefreshInterval
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Timeout returns the refresh cycle timeout, falling back to DefaultRefreshTimeout.
func (c RefreshConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultRefreshTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Location resolves the export time zone. Unknown zones fall back to time.Local.
func (c ExportConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// Addr returns the listen address for the management API.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequiresAPIKey reports whether the management API is guarded by keys.
func (c *Config) RequiresAPIKey() bool {
	return c != nil && len(c.APIKeys) > 0
}

// HasAPIKey reports whether key is one of the configured management keys.
// Every configured key is compared in constant time.
func (c *Config) HasAPIKey(key string) bool {
	if c == nil || key == "" {
		return false
	}
	found := false
	for _, k := range c.APIKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			found = true
		}
	}
	return found
}

// LoadConfig reads the YAML file at path, then applies .env and environment overrides.
// A missing file is not an error: defaults and environment values are used instead.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env next to the config file first, then the working directory.
	if path != "" {
		_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	}
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.Feeds.BaseURL == "" {
		c.Feeds.BaseURL = "http://localhost:8000"
	}
	if c.Feeds.CallsPath == "" {
		c.Feeds.CallsPath = "/api/calls"
	}
	if c.Feeds.UsagePath == "" {
		c.Feeds.UsagePath = "/api/usage"
	}
	if c.Feeds.TelephonyPath == "" {
		c.Feeds.TelephonyPath = "/api/twilio/calls"
	}
	if c.Feeds.TimeoutSeconds <= 0 {
		c.Feeds.TimeoutSeconds = 10
	}
	if c.Refresh.IntervalSeconds <= 0 {
		c.Refresh.IntervalSeconds = int(DefaultRefreshInterval / time.Second)
	}
	if c.Refresh.TimeoutSeconds <= 0 {
		c.Refresh.TimeoutSeconds = int(DefaultRefreshTimeout / time.Second)
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	c.APIKeys = compactKeys(c.APIKeys)
}

func compactKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
