// Package config provides configuration management for the dashboard client.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Paging   PagingConfig   `mapstructure:"paging"`
	Presence PresenceConfig `mapstructure:"presence"`
	Search   SearchConfig   `mapstructure:"search"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Breaker  BreakerConfig  `mapstructure:"breaker"`
	Log      LogConfig      `mapstructure:"log"`
	Store    StoreConfig    `mapstructure:"store"`

	// Dir is the directory the config was loaded from.
	Dir string `mapstructure:"-"`
}

// APIConfig holds backend connection settings.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit caps requests per second; zero disables pacing.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// PagingConfig holds stock list paging settings.
type PagingConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// PresenceConfig holds heartbeat and roster cadences.
type PresenceConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RosterInterval    time.Duration `mapstructure:"roster_interval"`
}

// SearchConfig holds suggestion search settings.
type SearchConfig struct {
	Debounce       time.Duration `mapstructure:"debounce"`
	MinQueryLength int           `mapstructure:"min_query_length"`
}

// TrackingConfig holds tracked-symbol settings.
type TrackingConfig struct {
	MaxSymbols       int      `mapstructure:"max_symbols"`
	ExchangeSuffixes []string `mapstructure:"exchange_suffixes"`
}

// BreakerConfig holds circuit breaker settings for polling calls.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// StoreConfig holds preference store settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/ecos-terminal"
	}
	return filepath.Join(home, ".config", "ecos-terminal")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if _, err := writeTemplateConfig(configDir, "config"); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}
	cfg.Dir = configDir

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration populated only from defaults.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	cfg.Dir = DefaultConfigDir()
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.rate_burst", 20)
	v.SetDefault("paging.page_size", 20)
	v.SetDefault("presence.heartbeat_interval", 10*time.Second)
	v.SetDefault("presence.roster_interval", 5*time.Second)
	v.SetDefault("search.debounce", 300*time.Millisecond)
	v.SetDefault("search.min_query_length", 2)
	v.SetDefault("tracking.max_symbols", 20)
	v.SetDefault("tracking.exchange_suffixes", []string{".IS"})
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 1)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("store.path", "")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ECOS_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("ECOS_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Paging.PageSize = n
		}
	}
	if v := os.Getenv("ECOS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative")
	}

	if c.Paging.PageSize < 15 || c.Paging.PageSize > 100 {
		return fmt.Errorf("paging.page_size must be between 15 and 100")
	}

	if c.Presence.HeartbeatInterval < 5*time.Second || c.Presence.HeartbeatInterval > 30*time.Second {
		return fmt.Errorf("presence.heartbeat_interval must be between 5s and 30s")
	}
	if c.Presence.RosterInterval < 5*time.Second || c.Presence.RosterInterval > 10*time.Second {
		return fmt.Errorf("presence.roster_interval must be between 5s and 10s")
	}

	if c.Search.Debounce <= 0 {
		return fmt.Errorf("search.debounce must be positive")
	}
	if c.Search.MinQueryLength < 1 {
		return fmt.Errorf("search.min_query_length must be at least 1")
	}

	if c.Tracking.MaxSymbols < 1 {
		return fmt.Errorf("tracking.max_symbols must be at least 1")
	}

	if c.Breaker.FailureThreshold < 1 || c.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("breaker thresholds must be at least 1")
	}

	return nil
}

// StorePath returns the preference database path.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, "ecos.db")
}

// LogFilePath returns the rotating log file path.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Dir, "logs", "ecos.log")
}
