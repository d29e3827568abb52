package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the IPO watch service and CLI.
type Config struct {
	ListenAddr     string        `validate:"required"`
	FutureDays     int           `validate:"min=1,max=90"`
	Timezone       string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gt=0"`
	Enrich         bool

	Upstream UpstreamConfig
	Logging  LoggingConfig
}

// UpstreamConfig holds the fetch-layer settings shared by both markets.
type UpstreamConfig struct {
	FetchTimeout       time.Duration `validate:"gt=0"`
	MaxRetries         int           `validate:"min=0,max=10"`
	MinInterval        time.Duration `validate:"gte=0"`
	CninfoURL          string        `validate:"required,url"`
	CninfoProfileURL   string        `validate:"required,url"`
	SinaListURL        string        `validate:"required,url"`
	SinaDetailURL      string        `validate:"required,url"`
	StaticMainlandPath string
	StaticHongKongPath string
}

// LoggingConfig selects the zerolog level and output format.
type LoggingConfig struct {
	Level  string `validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `validate:"oneof=json console"`
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// FromEnv creates a configuration instance sourced from environment variables.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr: getEnv("IPO_LISTEN_ADDR", ":8080"),
		Timezone:   getEnv("IPO_TIMEZONE", "Asia/Shanghai"),
		Upstream: UpstreamConfig{
			CninfoURL:          getEnv("IPO_CNINFO_URL", "https://webapi.cninfo.com.cn/api/sysapi/p_sysapi1097"),
			CninfoProfileURL:   getEnv("IPO_CNINFO_PROFILE_URL", "https://webapi.cninfo.com.cn/api/sysapi/p_stock2100"),
			SinaListURL:        getEnv("IPO_SINA_LIST_URL", "http://vip.stock.finance.sina.com.cn/q/view/hk_IPOList.php"),
			SinaDetailURL:      getEnv("IPO_SINA_DETAIL_URL", "http://vip.stock.finance.sina.com.cn/q/view/hk_IPOProfile.php"),
			StaticMainlandPath: getEnv("IPO_STATIC_A", ""),
			StaticHongKongPath: getEnv("IPO_STATIC_HK", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	var err error
	if cfg.FutureDays, err = getEnvInt("IPO_FUTURE_DAYS", 14); err != nil {
		return Config{}, err
	}
	if cfg.Upstream.MaxRetries, err = getEnvInt("IPO_MAX_RETRIES", 3); err != nil {
		return Config{}, err
	}
	if cfg.Upstream.FetchTimeout, err = getEnvSeconds("IPO_FETCH_TIMEOUT_S", 10); err != nil {
		return Config{}, err
	}
	if cfg.Upstream.MinInterval, err = getEnvSeconds("IPO_MIN_INTERVAL_S", 5); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = getEnvSeconds("IPO_REQUEST_TIMEOUT_S", 60); err != nil {
		return Config{}, err
	}

	cfg.Enrich = true
	if raw := os.Getenv("IPO_ENRICH"); raw != "" {
		enrich, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse IPO_ENRICH: %w", err)
		}
		cfg.Enrich = enrich
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags and the timezone.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	var value int
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvSeconds(key string, fallback float64) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback * float64(time.Second)), nil
	}
	var seconds float64
	if _, err := fmt.Sscanf(raw, "%g", &seconds); err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
