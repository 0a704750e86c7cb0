package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRedisConfig_NoIndicatorExpiry(t *testing.T) {
	assert.Zero(t, DefaultRedisConfig().DefaultTTL, "indicators must not expire unless configured")
	assert.Equal(t, 24*time.Hour, derivedDataTTL)
}

func TestRedisFactory_TTLOnlyWhenConfigured(t *testing.T) {
	f := redisFactory{}

	s, err := f.CreateStore(map[string]string{"url": "redis://localhost:6379"})
	require.NoError(t, err)
	assert.Zero(t, s.(*RedisStore).cfg.DefaultTTL)

	s, err = f.CreateStore(map[string]string{
		"url":                 "redis://localhost:6379",
		"default_ttl_seconds": "3600",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.(*RedisStore).cfg.DefaultTTL)
}
