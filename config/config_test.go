package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhub/webhook-gateway/config"
)

func TestValidate(t *testing.T) {
	valid := config.Config{
		MaxRequestAgeSeconds:  300,
		RateLimitMaxRequests:  100,
		RateLimitWindowMillis: 60000,
		WorkerBatchSize:       50,
		WorkerConcurrency:     10,
		RetryMaxAttempts:      5,
		RetryMultiplier:       2.0,
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid
		require.NoError(t, cfg.Validate())
	})

	t.Run("zero freshness window", func(t *testing.T) {
		cfg := valid
		cfg.MaxRequestAgeSeconds = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero rate limit", func(t *testing.T) {
		cfg := valid
		cfg.RateLimitMaxRequests = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero worker concurrency", func(t *testing.T) {
		cfg := valid
		cfg.WorkerConcurrency = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("multiplier below one", func(t *testing.T) {
		cfg := valid
		cfg.RetryMultiplier = 0.5
		assert.Error(t, cfg.Validate())
	})
}
