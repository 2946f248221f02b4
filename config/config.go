package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config carries every tunable of the gateway and the delivery worker.
 * Values come from the environment (optionally a .env file), with
 * defaults chosen so a bare `go run ./cmd/api` works against local Redis.
 */

type Config struct {
	Port    string `mapstructure:"PORT"`
	Version string `mapstructure:"VERSION"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// API key file (YAML), see auth.Loader
	APIKeysFile string `mapstructure:"API_KEYS_FILE"`

	// Base URL of the task domain service
	TaskServiceURL string `mapstructure:"TASK_SERVICE_URL"`

	// Envelope freshness window
	MaxRequestAgeSeconds int `mapstructure:"MAX_REQUEST_AGE_SECONDS"`
	MaxClockSkewSeconds  int `mapstructure:"MAX_CLOCK_SKEW_SECONDS"`

	// Inbound request guards
	MaxBodyBytes          int64 `mapstructure:"MAX_BODY_BYTES"`
	RequestTimeoutSeconds int   `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	RequireHTTPS          bool  `mapstructure:"REQUIRE_HTTPS"`

	// Auth lockout
	LockoutMaxFailures     int `mapstructure:"LOCKOUT_MAX_FAILURES"`
	LockoutCooldownSeconds int `mapstructure:"LOCKOUT_COOLDOWN_SECONDS"`

	// Sliding-window rate limit, per client address
	RateLimitMaxRequests  int `mapstructure:"RATE_LIMIT_MAX_REQUESTS"`
	RateLimitWindowMillis int `mapstructure:"RATE_LIMIT_WINDOW_MILLIS"`

	// Idempotency response cache
	IdempotencyTTLSeconds int `mapstructure:"IDEMPOTENCY_TTL_SECONDS"`

	// Delivery worker
	WorkerIntervalMillis  int `mapstructure:"WORKER_INTERVAL_MILLIS"`
	WorkerBatchSize       int `mapstructure:"WORKER_BATCH_SIZE"`
	WorkerConcurrency     int `mapstructure:"WORKER_CONCURRENCY"`
	DeliveryTimeoutSecs   int `mapstructure:"DELIVERY_TIMEOUT_SECONDS"`
	CleanupIntervalMillis int `mapstructure:"CLEANUP_INTERVAL_MILLIS"`
	RetentionDays         int `mapstructure:"RETENTION_DAYS"`

	// Retry policy
	RetryInitialDelayMillis int     `mapstructure:"RETRY_INITIAL_DELAY_MILLIS"`
	RetryMultiplier         float64 `mapstructure:"RETRY_MULTIPLIER"`
	RetryMaxDelayMillis     int     `mapstructure:"RETRY_MAX_DELAY_MILLIS"`
	RetryMaxAttempts        int     `mapstructure:"RETRY_MAX_ATTEMPTS"`

	// Outbound signature header name
	SignatureHeader string `mapstructure:"SIGNATURE_HEADER"`
}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("VERSION", "dev")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("API_KEYS_FILE", "apikeys.yaml")
	viper.SetDefault("TASK_SERVICE_URL", "http://localhost:9090")
	viper.SetDefault("MAX_REQUEST_AGE_SECONDS", 300)
	viper.SetDefault("MAX_CLOCK_SKEW_SECONDS", 60)
	viper.SetDefault("MAX_BODY_BYTES", 1<<20)
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	viper.SetDefault("REQUIRE_HTTPS", false)
	viper.SetDefault("LOCKOUT_MAX_FAILURES", 5)
	viper.SetDefault("LOCKOUT_COOLDOWN_SECONDS", 900)
	viper.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_WINDOW_MILLIS", 60000)
	viper.SetDefault("IDEMPOTENCY_TTL_SECONDS", 86400)
	viper.SetDefault("WORKER_INTERVAL_MILLIS", 1000)
	viper.SetDefault("WORKER_BATCH_SIZE", 50)
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("DELIVERY_TIMEOUT_SECONDS", 10)
	viper.SetDefault("CLEANUP_INTERVAL_MILLIS", 3600000)
	viper.SetDefault("RETENTION_DAYS", 7)
	viper.SetDefault("RETRY_INITIAL_DELAY_MILLIS", 1000)
	viper.SetDefault("RETRY_MULTIPLIER", 2.0)
	viper.SetDefault("RETRY_MAX_DELAY_MILLIS", 3600000)
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	viper.SetDefault("SIGNATURE_HEADER", "X-Webhook-Signature")
}

// GetConfig loads configuration from the environment, with an optional
// .env file for local development. A missing .env file is not an error.
func GetConfig() (*Config, error) {
	setDefaults()
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &config, nil
}

// Validate rejects values that would make the gateway misbehave silently
func (c *Config) Validate() error {
	if c.MaxRequestAgeSeconds <= 0 {
		return fmt.Errorf("MAX_REQUEST_AGE_SECONDS must be positive")
	}
	if c.RateLimitMaxRequests <= 0 || c.RateLimitWindowMillis <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.WorkerBatchSize <= 0 || c.WorkerConcurrency <= 0 {
		return fmt.Errorf("worker batch size and concurrency must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be positive")
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}
	return nil
}

// Durations derived from the raw integer settings

func (c *Config) MaxRequestAge() time.Duration {
	return time.Duration(c.MaxRequestAgeSeconds) * time.Second
}

func (c *Config) MaxClockSkew() time.Duration {
	return time.Duration(c.MaxClockSkewSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) LockoutCooldown() time.Duration {
	return time.Duration(c.LockoutCooldownSeconds) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMillis) * time.Millisecond
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLSeconds) * time.Second
}

func (c *Config) WorkerInterval() time.Duration {
	return time.Duration(c.WorkerIntervalMillis) * time.Millisecond
}

func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSecs) * time.Second
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMillis) * time.Millisecond
}

func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialDelayMillis) * time.Millisecond
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMillis) * time.Millisecond
}
