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

// envPrefix is the prefix for environment overrides, e.g.
// CLINICDESK_API_BASE_URL overrides api.base_url.
const envPrefix = "CLINICDESK"

// APIConfig holds settings for the clinic REST API.
type APIConfig struct {
	// BaseURL is the API root including the /api prefix
	// (e.g., https://clinic.example.com/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every request; a timeout is a transport failure.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// SessionStatusPath and SessionExtendPath are owned by the auth service.
	SessionStatusPath string `mapstructure:"session_status_path" yaml:"session_status_path"`
	SessionExtendPath string `mapstructure:"session_extend_path" yaml:"session_extend_path"`

	// SendConcurrency bounds the per-patient fan-out of a bulk send.
	SendConcurrency int `mapstructure:"send_concurrency" yaml:"send_concurrency"`
}

// PollingConfig holds the notification polling controller settings.
type PollingConfig struct {
	IntervalSec    int `mapstructure:"interval_sec" yaml:"interval_sec"`
	SuppressionSec int `mapstructure:"suppression_sec" yaml:"suppression_sec"`
}

// SessionConfig holds the session monitor settings.
type SessionConfig struct {
	CheckIntervalSec int `mapstructure:"check_interval_sec" yaml:"check_interval_sec"`
	WarningSec       int `mapstructure:"warning_sec" yaml:"warning_sec"`
	IdleTimeoutSec   int `mapstructure:"idle_timeout_sec" yaml:"idle_timeout_sec"`
}

// AuthConfig controls where the bearer token is persisted.
type AuthConfig struct {
	// TokenStore is "keyring" (default) or "memory".
	TokenStore string `mapstructure:"token_store" yaml:"token_store"`
}

// LogConfig holds logger settings. Logs go to a file so they never
// interleave with the terminal UI.
type LogConfig struct {
	Level     string `mapstructure:"level" yaml:"level"`
	Path      string `mapstructure:"path" yaml:"path"`
	MaxSizeMB int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDay int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Polling PollingConfig `mapstructure:"polling" yaml:"polling"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// RequestTimeout returns the per-request timeout as a duration.
func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Interval returns the polling interval as a duration.
func (c PollingConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Suppression returns the post-action suppression window as a duration.
func (c PollingConfig) Suppression() time.Duration {
	return time.Duration(c.SuppressionSec) * time.Second
}

// ConfigDir returns ~/.config/clinicdesk, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "clinicdesk")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/clinicdesk/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:           "http://localhost:8080/api",
			TimeoutSec:        15,
			SessionStatusPath: "/auth/session-status",
			SessionExtendPath: "/auth/extend-session",
			SendConcurrency:   4,
		},
		Polling: PollingConfig{
			IntervalSec:    30,
			SuppressionSec: 5,
		},
		Session: SessionConfig{
			CheckIntervalSec: 30,
			WarningSec:       60,
			IdleTimeoutSec:   300,
		},
		Auth: AuthConfig{TokenStore: "keyring"},
		Log: LogConfig{
			Level:     "info",
			Path:      filepath.Join(ConfigDir(), "clinicdesk.log"),
			MaxSizeMB: 20,
			MaxAgeDay: 14,
		},
		Display: DisplayConfig{Theme: "default"},
	}
}

// setDefaults mirrors defaultAppConfig into v so that missing keys
// resolve to sensible values.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout_sec", d.API.TimeoutSec)
	v.SetDefault("api.session_status_path", d.API.SessionStatusPath)
	v.SetDefault("api.session_extend_path", d.API.SessionExtendPath)
	v.SetDefault("api.send_concurrency", d.API.SendConcurrency)
	v.SetDefault("polling.interval_sec", d.Polling.IntervalSec)
	v.SetDefault("polling.suppression_sec", d.Polling.SuppressionSec)
	v.SetDefault("session.check_interval_sec", d.Session.CheckIntervalSec)
	v.SetDefault("session.warning_sec", d.Session.WarningSec)
	v.SetDefault("session.idle_timeout_sec", d.Session.IdleTimeoutSec)
	v.SetDefault("auth.token_store", d.Auth.TokenStore)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDay)
	v.SetDefault("display.theme", d.Display.Theme)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A .env file in the working directory is loaded first, and CLINICDESK_*
// environment variables override file values. A missing file yields the
// defaults (still subject to environment overrides).
func LoadConfig(path string) (*AppConfig, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
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

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api.base_url must not be empty")
	}
	if cfg.API.SendConcurrency < 1 {
		cfg.API.SendConcurrency = 1
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

	v.Set("api", cfg.API)
	v.Set("polling", cfg.Polling)
	v.Set("session", cfg.Session)
	v.Set("auth", cfg.Auth)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
