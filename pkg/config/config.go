package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendChromedp = "chromedp"
	BackendStatic   = "static"
)

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	CalendarURL  string `mapstructure:"CALENDAR_URL"`
	VideoBaseURL string `mapstructure:"VIDEO_BASE_URL"`
	Timezone     string `mapstructure:"TIMEZONE"`
	MaxEvents    int    `mapstructure:"MAX_EVENTS"`

	BrowserBackend      string `mapstructure:"BROWSER_BACKEND"`
	Headless            bool   `mapstructure:"HEADLESS"`
	UserAgent           string `mapstructure:"USER_AGENT"`
	WaitTimeoutSecs     int    `mapstructure:"WAIT_TIMEOUT_SECONDS"`
	ListSettleSecs      int    `mapstructure:"LIST_SETTLE_SECONDS"`
	PageLoadTimeoutSecs int    `mapstructure:"PAGE_LOAD_TIMEOUT_SECONDS"`

	PostgresURL string `mapstructure:"POSTGRES_URL"`

	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	RedisDB             int    `mapstructure:"REDIS_DB"`
	PlayerCacheTTLHours int    `mapstructure:"PLAYER_CACHE_TTL_HOURS"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":               "8080",
	"LOG_LEVEL":                 "info",
	"CALENDAR_URL":              "https://pub-missoula.escribemeetings.com/",
	"VIDEO_BASE_URL":            "https://video.isilive.ca/missoula/",
	"TIMEZONE":                  "America/Denver",
	"MAX_EVENTS":                2000,
	"BROWSER_BACKEND":           BackendChromedp,
	"HEADLESS":                  true,
	"USER_AGENT":                "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"WAIT_TIMEOUT_SECONDS":      10,
	"LIST_SETTLE_SECONDS":       3,
	"PAGE_LOAD_TIMEOUT_SECONDS": 60,
	"POSTGRES_URL":              "",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"PLAYER_CACHE_TTL_HOURS":    168,
}

// Load reads configuration from an optional .env file and environment
// variables. Values already bound into v (command line flags) take precedence.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// The .env file is optional; production is configured purely through the environment.
	_ = v.ReadInConfig()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if c.BrowserBackend != BackendChromedp && c.BrowserBackend != BackendStatic {
		return fmt.Errorf("invalid BROWSER_BACKEND %q (must be %q or %q)", c.BrowserBackend, BackendChromedp, BackendStatic)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("MAX_EVENTS must be positive, got %d", c.MaxEvents)
	}
	if c.WaitTimeoutSecs <= 0 {
		return fmt.Errorf("WAIT_TIMEOUT_SECONDS must be positive, got %d", c.WaitTimeoutSecs)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the time zone meeting dates are printed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSecs) * time.Second
}

func (c *Config) ListSettleDelay() time.Duration {
	return time.Duration(c.ListSettleSecs) * time.Second
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSecs) * time.Second
}

func (c *Config) PlayerCacheTTL() time.Duration {
	return time.Duration(c.PlayerCacheTTLHours) * time.Hour
}
