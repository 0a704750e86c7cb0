package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/store"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		errMsg string
	}{
		{
			name:   "missing health port",
			config: Config{PrimaryStore: "memory"},
			errMsg: "HEALTH_PORT",
		},
		{
			name:   "missing primary store",
			config: Config{HealthPort: "8084"},
			errMsg: "PRIMARY_STORE",
		},
		{
			name: "unknown primary store",
			config: Config{
				HealthPort:   "8084",
				PrimaryStore: "etcd",
			},
			errMsg: "unknown store type",
		},
		{
			name: "unknown fallback store",
			config: Config{
				HealthPort:     "8084",
				PrimaryStore:   "memory",
				FallbackStores: []string{"etcd"},
			},
			errMsg: "unknown store type",
		},
		{
			name: "events without nats url",
			config: Config{
				HealthPort:   "8084",
				PrimaryStore: "memory",
				EnableEvents: true,
			},
			errMsg: "NATS_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	valid := Config{
		HealthPort:     "8084",
		PrimaryStore:   "postgres",
		FallbackStores: []string{"redis", "memory"},
	}
	assert.NoError(t, valid.Validate())
}

func TestConfig_Load_Defaults(t *testing.T) {
	t.Setenv("PRIMARY_STORE", "")
	t.Setenv("FALLBACK_STORES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8084", cfg.HealthPort)
	assert.Equal(t, "memory", cfg.PrimaryStore)
	assert.Empty(t, cfg.FallbackStores)
	assert.True(t, cfg.EnableFailover)
	assert.False(t, cfg.EnableReplication)
	assert.Equal(t, 30, cfg.HealthCheckIntervalSeconds)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "phantom_ioc:", cfg.RedisKeyPrefix)
}

func TestConfig_Load_FromEnvironment(t *testing.T) {
	t.Setenv("PRIMARY_STORE", "postgres")
	t.Setenv("FALLBACK_STORES", "redis, memory")
	t.Setenv("ENABLE_REPLICATION", "true")
	t.Setenv("POSTGRES_URL", "postgres://user:pass@db:5432/ioc")
	t.Setenv("OPERATION_DEADLINE_SECONDS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.PrimaryStore)
	assert.Equal(t, []string{"redis", "memory"}, cfg.FallbackStores)
	assert.True(t, cfg.EnableReplication)
	assert.Equal(t, 10, cfg.OperationDeadlineSeconds)
}

func TestConfig_UnifiedConfigMapping(t *testing.T) {
	cfg := &Config{
		HealthPort:                 "8084",
		PrimaryStore:               "postgres",
		FallbackStores:             []string{"redis", "memory"},
		EnableFailover:             true,
		EnableReplication:          true,
		HealthCheckIntervalSeconds: 15,
		OperationDeadlineSeconds:   20,
		RedisURL:                   "redis://cache:6379",
		RedisKeyPrefix:             "ioc:",
		PostgresURL:                "postgres://db:5432/ioc",
		PostgresSchema:             "threat",
	}

	unified := cfg.UnifiedConfig()

	assert.Equal(t, store.StoreTypePostgres, unified.PrimaryStore)
	assert.Equal(t, []store.StoreType{store.StoreTypeRedis, store.StoreTypeMemory}, unified.FallbackStores)
	assert.True(t, unified.EnableReplication)
	assert.Equal(t, 15*time.Second, unified.HealthCheckInterval)
	assert.Equal(t, 20*time.Second, unified.OperationDeadline)
	assert.Equal(t, "redis://cache:6379", unified.StoreConfigs[store.StoreTypeRedis]["url"])
	assert.Equal(t, "threat", unified.StoreConfigs[store.StoreTypePostgres]["schema"])
}
