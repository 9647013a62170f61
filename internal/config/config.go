// Package config provides configuration management for the dashboard server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultListenAddr is used when server.listen_addr is unset
	defaultListenAddr = ":8080"
	// defaultRequestTimeout is used when server.request_timeout is unset
	defaultRequestTimeout = "30s"
	// defaultStoragePath is used when storage.path is unset
	defaultStoragePath = "data/optiondesk.json"
	// defaultSymbol is used when builder.default_symbol is unset
	defaultSymbol = "SPY"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Feed        FeedConfig        `yaml:"feed"`
	Server      ServerConfig      `yaml:"server"`
	Builder     BuilderConfig     `yaml:"builder"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // live | mock
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// FeedConfig defines market data provider settings.
type FeedConfig struct {
	Provider    string `yaml:"provider"` // tradier | mock
	APIKey      string `yaml:"api_key"`
	APIEndpoint string `yaml:"api_endpoint"`
	Sandbox     bool   `yaml:"sandbox"`
	// CircuitBreaker disables the breaker wrapper when false
	CircuitBreaker bool `yaml:"circuit_breaker"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	AuthToken      string `yaml:"auth_token"`
	RequestTimeout string `yaml:"request_timeout"`
}

// BuilderConfig defines strategy builder defaults.
type BuilderConfig struct {
	DefaultSymbol string `yaml:"default_symbol"`
	// NearestStrikes is how many strikes around the money quote endpoints return
	NearestStrikes int `yaml:"nearest_strikes"`
	// PnLRangePct is the price range either side of spot for P&L curves
	PnLRangePct float64 `yaml:"pnl_range_pct"`
}

// StorageConfig defines storage settings for trade and backtest data.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	c.normalize()

	// Environment validation
	if c.Environment.Mode != "live" && c.Environment.Mode != "mock" {
		return fmt.Errorf("environment.mode must be 'live' or 'mock'")
	}

	// Feed validation
	switch c.Feed.Provider {
	case "tradier":
		if c.Feed.APIKey == "" {
			return fmt.Errorf("feed.api_key is required for the tradier provider")
		}
	case "mock":
	default:
		return fmt.Errorf("feed.provider must be 'tradier' or 'mock'")
	}
	if c.Environment.Mode == "mock" && c.Feed.Provider != "mock" {
		return fmt.Errorf("environment.mode 'mock' requires feed.provider 'mock'")
	}

	// Server validation
	if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
		return fmt.Errorf("server.request_timeout invalid: %w", err)
	}

	// Builder validation
	if c.Builder.NearestStrikes < 0 {
		return fmt.Errorf("builder.nearest_strikes must be >= 0")
	}
	if c.Builder.PnLRangePct < 0 || c.Builder.PnLRangePct > 100 {
		return fmt.Errorf("builder.pnl_range_pct must be between 0 and 100")
	}

	// Storage validation
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}

	return nil
}

// IsMock returns true if the server is configured against synthetic data.
func (c *Config) IsMock() bool {
	return c.Feed.Provider == "mock"
}

// GetRequestTimeout returns the configured HTTP request timeout duration.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 30 * time.Second // default
	}
	return d
}

// normalize sets default values for optional settings
func (c *Config) normalize() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath
	}
	if c.Builder.DefaultSymbol == "" {
		c.Builder.DefaultSymbol = defaultSymbol
	}
}
