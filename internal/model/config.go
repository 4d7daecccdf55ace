package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinPollInterval is the smallest accepted poll interval.
const MinPollInterval = 5 * time.Second

// BackendConfig describes how to reach the CampusBourses API.
type BackendConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Scope selects the student or admin notification endpoints.
	Scope string `mapstructure:"scope" yaml:"scope"`

	// TimeoutSec bounds every single request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// RetryMaxElapsedSec bounds the total time spent retrying a fetch.
	RetryMaxElapsedSec int `mapstructure:"retry_max_elapsed_sec" yaml:"retry_max_elapsed_sec"`

	BreakerMaxFailures int `mapstructure:"breaker_max_failures" yaml:"breaker_max_failures"`
	BreakerTimeoutSec  int `mapstructure:"breaker_timeout_sec" yaml:"breaker_timeout_sec"`
}

// SyncConfig holds polling settings.
type SyncConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// NoticeTTLSec is how long a mutation failure notice stays visible.
	NoticeTTLSec int `mapstructure:"notice_ttl_sec" yaml:"notice_ttl_sec"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`

	// File, when set, receives log output instead of stderr.
	File string `mapstructure:"file" yaml:"file"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	Addr          string  `mapstructure:"addr" yaml:"addr"`
	DBPath        string  `mapstructure:"db_path" yaml:"db_path"`
	RatePerMinute int     `mapstructure:"rate_per_minute" yaml:"rate_per_minute"`
	FailureRate   float64 `mapstructure:"failure_rate" yaml:"failure_rate"`
	Seed          bool    `mapstructure:"seed" yaml:"seed"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// PollInterval returns the configured poll interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalSec) * time.Second
}

// NoticeTTL returns how long transient notices stay on screen.
func (c *AppConfig) NoticeTTL() time.Duration {
	return time.Duration(c.Sync.NoticeTTLSec) * time.Second
}

// RequestTimeout returns the per-request timeout.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSec) * time.Second
}

// Validate checks values that would make the client misbehave.
func (c *AppConfig) Validate() error {
	if _, err := ParseScope(c.Backend.Scope); err != nil {
		return fmt.Errorf("backend.scope: %w", err)
	}
	if c.PollInterval() < MinPollInterval {
		return fmt.Errorf("sync.poll_interval_sec must be at least %d", int(MinPollInterval.Seconds()))
	}
	if c.Backend.TimeoutSec <= 0 {
		return errors.New("backend.timeout_sec must be positive")
	}
	if c.Server.FailureRate < 0 || c.Server.FailureRate > 1 {
		return errors.New("server.failure_rate must be between 0 and 1")
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/campusbourses/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "campusbourses", "config.yaml")
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			BaseURL:            "http://localhost:8080/api",
			Scope:              string(ScopeStudent),
			TimeoutSec:         30,
			RetryMaxElapsedSec: 20,
			BreakerMaxFailures: 5,
			BreakerTimeoutSec:  30,
		},
		Sync: SyncConfig{
			PollIntervalSec: 30,
			NoticeTTLSec:    8,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr:          ":8080",
			DBPath:        "campusbourses.db",
			RatePerMinute: 600,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("backend.base_url", d.Backend.BaseURL)
	v.SetDefault("backend.scope", d.Backend.Scope)
	v.SetDefault("backend.timeout_sec", d.Backend.TimeoutSec)
	v.SetDefault("backend.retry_max_elapsed_sec", d.Backend.RetryMaxElapsedSec)
	v.SetDefault("backend.breaker_max_failures", d.Backend.BreakerMaxFailures)
	v.SetDefault("backend.breaker_timeout_sec", d.Backend.BreakerTimeoutSec)
	v.SetDefault("sync.poll_interval_sec", d.Sync.PollIntervalSec)
	v.SetDefault("sync.notice_ttl_sec", d.Sync.NoticeTTLSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.db_path", d.Server.DBPath)
	v.SetDefault("server.rate_per_minute", d.Server.RatePerMinute)
	v.SetDefault("server.failure_rate", d.Server.FailureRate)
	v.SetDefault("server.seed", d.Server.Seed)
	v.SetDefault("display.theme", d.Display.Theme)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first when present, and
// CAMPUS_* environment variables override file values
// (CAMPUS_BACKEND_BASE_URL for backend.base_url). A missing file yields
// the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	// Missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("sync", cfg.Sync)
	v.Set("log", cfg.Log)
	v.Set("server", cfg.Server)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
