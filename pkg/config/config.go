// Package config loads CRM client configuration from a file and CRM_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/crm-backoffice-client/pkg/client"
	"github.com/Sternrassler/crm-backoffice-client/pkg/logging"
	"github.com/Sternrassler/crm-backoffice-client/pkg/pagination"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CRM_CLIENT_BASE_URL for client.base_url.
const EnvPrefix = "CRM"

// Config is the file/env representation of all tunables.
type Config struct {
	Client     ClientConfig     `mapstructure:"client"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ClientConfig holds HTTP client settings.
type ClientConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	DefaultPageSize int           `mapstructure:"default_page_size" validate:"gte=1"`
	Debug           bool          `mapstructure:"debug"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" validate:"gte=0"`
	FailOnCooldown  bool          `mapstructure:"fail_on_cooldown"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

// RetryConfig holds retry settings for idempotent requests.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" validate:"gte=1"`
}

// PaginationConfig holds aggregator settings.
type PaginationConfig struct {
	Concurrency     int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	PageTimeout     time.Duration `mapstructure:"page_timeout" validate:"gt=0"`
	MaxPages        int           `mapstructure:"max_pages" validate:"gte=1"`
	ProbeMultiplier int           `mapstructure:"probe_multiplier" validate:"gte=2"`
	ProbeIterations int           `mapstructure:"probe_iterations" validate:"gte=1,lte=20"`
	DisableFallback bool          `mapstructure:"disable_fallback"`
}

// RedisConfig enables the page cache and shared cooldown when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0,lte=15"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from path (YAML, JSON or TOML by extension) and
// applies CRM_* environment overrides. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that are
// absent from the file.
func setDefaults(v *viper.Viper) {
	clientDef := client.DefaultConfig("")
	pageDef := pagination.DefaultConfig()
	retryDef := client.DefaultRetryConfig()

	v.SetDefault("client.base_url", "")
	v.SetDefault("client.user_agent", clientDef.UserAgent)
	v.SetDefault("client.timeout", clientDef.Timeout)
	v.SetDefault("client.default_page_size", clientDef.DefaultPageSize)
	v.SetDefault("client.debug", false)
	v.SetDefault("client.rate_limit", 0.0)
	v.SetDefault("client.rate_limit_burst", 0)
	v.SetDefault("client.fail_on_cooldown", false)
	v.SetDefault("client.cache_ttl", time.Duration(0))

	v.SetDefault("retry.max_attempts", retryDef.MaxAttempts)
	v.SetDefault("retry.initial_backoff", retryDef.InitialBackoff)
	v.SetDefault("retry.max_backoff", retryDef.MaxBackoff)
	v.SetDefault("retry.backoff_multiplier", retryDef.BackoffMultiplier)

	v.SetDefault("pagination.concurrency", pageDef.Concurrency)
	v.SetDefault("pagination.page_timeout", pageDef.PageTimeout)
	v.SetDefault("pagination.max_pages", pageDef.MaxPages)
	v.SetDefault("pagination.probe_multiplier", pageDef.ProbeMultiplier)
	v.SetDefault("pagination.probe_iterations", pageDef.ProbeIterations)
	v.SetDefault("pagination.disable_fallback", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", string(logging.LevelInfo))
	v.SetDefault("logging.pretty", false)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ClientConfig converts to client.Config. Redis is left nil; attach a client
// built from RedisOptions to enable caching and shared cooldowns.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.Client.BaseURL)
	if c.Client.UserAgent != "" {
		cfg.UserAgent = c.Client.UserAgent
	}
	cfg.Timeout = c.Client.Timeout
	cfg.DefaultPageSize = c.Client.DefaultPageSize
	cfg.Debug = c.Client.Debug
	cfg.RateLimit = c.Client.RateLimit
	cfg.RateLimitBurst = c.Client.RateLimitBurst
	cfg.FailOnCooldown = c.Client.FailOnCooldown
	cfg.CacheTTL = c.Client.CacheTTL
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       c.Retry.MaxAttempts,
		InitialBackoff:    c.Retry.InitialBackoff,
		MaxBackoff:        c.Retry.MaxBackoff,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
	}
	cfg.Pagination = c.PaginationConfig()
	return cfg
}

// PaginationConfig converts to pagination.Config.
func (c *Config) PaginationConfig() pagination.Config {
	return pagination.Config{
		Concurrency:     c.Pagination.Concurrency,
		PageTimeout:     c.Pagination.PageTimeout,
		MaxPages:        c.Pagination.MaxPages,
		ProbeMultiplier: c.Pagination.ProbeMultiplier,
		ProbeIterations: c.Pagination.ProbeIterations,
		DisableFallback: c.Pagination.DisableFallback,
	}
}

// LoggingConfig converts to logging.Config writing to stderr.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Logging.Level),
		Pretty: c.Logging.Pretty,
		Output: os.Stderr,
	}
}

// RedisOptions returns connection options, or nil when Redis is not configured.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}
