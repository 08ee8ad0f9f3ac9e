package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL = "https://wp.dev-api.medyaan.com/api"
	DefaultWSURL      = "wss://wp.dev-api.medyaan.com"
)

// Duration is a time.Duration that round-trips through TOML as "15s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Config represents the global ~/.wppcrm/config.toml.
type Config struct {
	DefaultSession       string   `toml:"default_session"`
	APIBaseURL           string   `toml:"api_base_url"`
	WSURL                string   `toml:"ws_url"`
	PageSize             int      `toml:"page_size"`
	ContactsPageSize     int      `toml:"contacts_page_size"`
	RequestTimeout       Duration `toml:"request_timeout"`
	ReconnectBaseDelay   Duration `toml:"reconnect_base_delay"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
	RateLimit            float64  `toml:"rate_limit"`
	RateBurst            int      `toml:"rate_burst"`
	LogLevel             string   `toml:"log_level"`
	MetricsAddr          string   `toml:"metrics_addr"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.WSURL == "" {
		c.WSURL = DefaultWSURL
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.ContactsPageSize <= 0 {
		c.ContactsPageSize = 10
	}
	if c.RequestTimeout.Duration <= 0 {
		c.RequestTimeout.Duration = 15 * time.Second
	}
	if c.ReconnectBaseDelay.Duration <= 0 {
		c.ReconnectBaseDelay.Duration = time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads config from the given path. Returns error if the file is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when the
// file does not exist, then applies .env and WPPCRM_* overrides.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	_ = godotenv.Load()
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from WPPCRM_* environment variables.
func (c *Config) ApplyEnv() {
	c.APIBaseURL = getEnv("WPPCRM_API_URL", c.APIBaseURL)
	c.WSURL = getEnv("WPPCRM_WS_URL", c.WSURL)
	c.PageSize = getEnvAsInt("WPPCRM_PAGE_SIZE", c.PageSize)
	c.RequestTimeout.Duration = getEnvAsDuration("WPPCRM_REQUEST_TIMEOUT", c.RequestTimeout.Duration)
	c.LogLevel = getEnv("WPPCRM_LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getEnv("WPPCRM_METRICS_ADDR", c.MetricsAddr)
}

// Validate checks that the endpoints are usable URLs.
func (c *Config) Validate() error {
	api, err := url.Parse(c.APIBaseURL)
	if err != nil || (api.Scheme != "http" && api.Scheme != "https") {
		return fmt.Errorf("api_base_url %q: must be an http(s) URL", c.APIBaseURL)
	}
	ws, err := url.Parse(c.WSURL)
	if err != nil || (ws.Scheme != "ws" && ws.Scheme != "wss") {
		return fmt.Errorf("ws_url %q: must be a ws(s) URL", c.WSURL)
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
