package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hollowlabs/guardrail/cache"
	"github.com/hollowlabs/guardrail/pool"
	"github.com/hollowlabs/guardrail/resilience"
)

// Config is the top-level configuration for a guarded deployment,
// loadable from YAML and GUARDRAIL_-prefixed environment variables.
type Config struct {
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Pool       PoolConfig       `mapstructure:"pool"`
	LogLevel   string           `mapstructure:"log_level"`
}

// ResilienceConfig holds the knobs shared by every guard.
type ResilienceConfig struct {
	MaxRetries          int           `mapstructure:"max_retries"`
	InitialDelay        time.Duration `mapstructure:"initial_delay"`
	MaxDelay            time.Duration `mapstructure:"max_delay"`
	JitterFactor        float64       `mapstructure:"jitter_factor"`
	ProbeTimeout        time.Duration `mapstructure:"probe_timeout"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	RecoveryDelay       time.Duration `mapstructure:"recovery_delay"`
	EnableFallback      bool          `mapstructure:"enable_fallback"`
}

// CacheConfig holds the bounded cache engine's policy knobs.
type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	MaxTTL          time.Duration `mapstructure:"max_ttl"`
	MaxEntryBytes   int           `mapstructure:"max_entry_bytes"`
	MaxTotalBytes   int           `mapstructure:"max_total_bytes"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// PoolConfig holds the connection pool's knobs. DSN may reference
// environment variables with ${VAR} syntax; Load expands them and
// fails on any that are missing.
type PoolConfig struct {
	Driver                 string        `mapstructure:"driver"`
	DSN                    string        `mapstructure:"dsn"`
	MaxOpenConns           int           `mapstructure:"max_open_conns"`
	MaxIdleConns           int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime        time.Duration `mapstructure:"conn_max_lifetime"`
	AcquireTimeout         time.Duration `mapstructure:"acquire_timeout"`
	EnableDirectConnection bool          `mapstructure:"enable_direct_connection"`
	EnablePoolRecreate     bool          `mapstructure:"enable_pool_recreate"`
	FallbackMaxWait        time.Duration `mapstructure:"fallback_max_wait"`
}

// Load reads configuration from the named file (optional), then the
// environment, then defaults. Env vars use the GUARDRAIL_ prefix with
// underscores for nesting, e.g. GUARDRAIL_POOL_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("GUARDRAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.Pool.DSN != "" {
		dsn, err := ExpandEnvStrict(cfg.Pool.DSN)
		if err != nil {
			return nil, fmt.Errorf("config: pool dsn: %w", err)
		}
		cfg.Pool.DSN = dsn
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("resilience.max_retries", 3)
	v.SetDefault("resilience.initial_delay", time.Second)
	v.SetDefault("resilience.max_delay", 30*time.Second)
	v.SetDefault("resilience.jitter_factor", 0.1)
	v.SetDefault("resilience.probe_timeout", 10*time.Second)
	v.SetDefault("resilience.health_check_interval", 60*time.Second)
	v.SetDefault("resilience.recovery_delay", 5*time.Second)
	v.SetDefault("resilience.enable_fallback", true)

	v.SetDefault("cache.default_ttl", 5*time.Minute)
	v.SetDefault("cache.max_ttl", time.Hour)
	v.SetDefault("cache.max_entry_bytes", 1<<20)
	v.SetDefault("cache.max_total_bytes", 64<<20)
	v.SetDefault("cache.cleanup_interval", time.Minute)

	v.SetDefault("pool.driver", "postgres")
	v.SetDefault("pool.dsn", "")
	v.SetDefault("pool.max_open_conns", 25)
	v.SetDefault("pool.max_idle_conns", 5)
	v.SetDefault("pool.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("pool.acquire_timeout", 5*time.Second)
	v.SetDefault("pool.enable_direct_connection", true)
	v.SetDefault("pool.enable_pool_recreate", true)
	v.SetDefault("pool.fallback_max_wait", 5*time.Second)
}

// Retry converts the resilience knobs into a RetryConfig.
func (c ResilienceConfig) Retry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:   c.MaxRetries,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		JitterFactor: c.JitterFactor,
	}
}

// Policy converts the cache knobs into an engine policy.
func (c CacheConfig) Policy() cache.Policy {
	return cache.Policy{
		DefaultTTL:      c.DefaultTTL,
		MaxTTL:          c.MaxTTL,
		MaxEntryBytes:   c.MaxEntryBytes,
		MaxTotalBytes:   c.MaxTotalBytes,
		CleanupInterval: c.CleanupInterval,
	}
}

// CacheConfig assembles the resilient cache wrapper's configuration.
func (c *Config) CacheConfig() cache.ResilientCacheConfig {
	return cache.ResilientCacheConfig{
		Retry:               c.Resilience.Retry(),
		ProbeTimeout:        c.Resilience.ProbeTimeout,
		HealthCheckInterval: c.Resilience.HealthCheckInterval,
		RecoveryDelay:       c.Resilience.RecoveryDelay,
		DisableFallback:     !c.Resilience.EnableFallback,
	}
}

// SQLPoolConfig assembles the concrete pool's configuration.
func (c *Config) SQLPoolConfig() pool.SQLPoolConfig {
	return pool.SQLPoolConfig{
		DSN:             c.Pool.DSN,
		Driver:          c.Pool.Driver,
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
		AcquireTimeout:  c.Pool.AcquireTimeout,
	}
}

// PoolConfig assembles the resilient pool wrapper's configuration.
func (c *Config) PoolConfig() pool.ResilientPoolConfig {
	return pool.ResilientPoolConfig{
		Retry:                   c.Resilience.Retry(),
		Driver:                  c.Pool.Driver,
		DSN:                     c.Pool.DSN,
		ProbeTimeout:            c.Resilience.ProbeTimeout,
		HealthCheckInterval:     c.Resilience.HealthCheckInterval,
		RecoveryDelay:           c.Resilience.RecoveryDelay,
		FallbackMaxWait:         c.Pool.FallbackMaxWait,
		DisableDirectConnection: !c.Pool.EnableDirectConnection,
		DisablePoolRecreate:     !c.Pool.EnablePoolRecreate,
	}
}
