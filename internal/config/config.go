package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/store"
)

// Config holds all configuration for the IOC store daemon.
type Config struct {
	// Service addresses
	HealthPort string

	// Store topology
	PrimaryStore               string
	FallbackStores             []string
	EnableFailover             bool
	EnableReplication          bool
	HealthCheckIntervalSeconds int
	OperationDeadlineSeconds   int

	// Redis backend
	RedisURL       string
	RedisKeyPrefix string

	// PostgreSQL backend
	PostgresURL    string
	PostgresSchema string

	// MongoDB backend
	MongoURL      string
	MongoDatabase string

	// Elasticsearch backend
	ElasticHosts       string
	ElasticIndexPrefix string
	ElasticUsername    string
	ElasticPassword    string

	// Local file backend
	LocalFileBasePath string

	// Event bus
	NatsURL      string
	EnableEvents bool
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	// Try multiple .env locations
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
		"/app/.env", // Docker
	}

	envLoaded := false
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			log.Printf("Loaded config from: %s", path)
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		log.Printf("No .env file found, using environment variables")
	}

	config := &Config{
		HealthPort: getEnvOrDefault("HEALTH_PORT", "8084"),

		PrimaryStore:               getEnvOrDefault("PRIMARY_STORE", "memory"),
		FallbackStores:             splitList(os.Getenv("FALLBACK_STORES")),
		EnableFailover:             getEnvOrDefault("ENABLE_FAILOVER", "true") == "true",
		EnableReplication:          getEnvOrDefault("ENABLE_REPLICATION", "false") == "true",
		HealthCheckIntervalSeconds: parseIntOrDefault("HEALTH_CHECK_INTERVAL_SECONDS", 30),
		OperationDeadlineSeconds:   parseIntOrDefault("OPERATION_DEADLINE_SECONDS", 30),

		RedisURL:       getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		RedisKeyPrefix: getEnvOrDefault("REDIS_KEY_PREFIX", "phantom_ioc:"),

		PostgresURL:    os.Getenv("POSTGRES_URL"),
		PostgresSchema: getEnvOrDefault("POSTGRES_SCHEMA", "ioc"),

		MongoURL:      os.Getenv("MONGO_URL"),
		MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "phantom_ioc"),

		ElasticHosts:       os.Getenv("ELASTIC_HOSTS"),
		ElasticIndexPrefix: getEnvOrDefault("ELASTIC_INDEX_PREFIX", "phantom_ioc_"),
		ElasticUsername:    os.Getenv("ELASTIC_USERNAME"),
		ElasticPassword:    os.Getenv("ELASTIC_PASSWORD"),

		LocalFileBasePath: getEnvOrDefault("LOCALFILE_BASE_PATH", "./data"),

		NatsURL:      getEnvOrDefault("NATS_URL", "nats://localhost:4222"),
		EnableEvents: getEnvOrDefault("ENABLE_EVENTS", "false") == "true",
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.HealthPort == "" {
		return fmt.Errorf("HEALTH_PORT is required")
	}

	if c.PrimaryStore == "" {
		return fmt.Errorf("PRIMARY_STORE is required")
	}

	for _, tag := range append([]string{c.PrimaryStore}, c.FallbackStores...) {
		switch store.StoreType(tag) {
		case store.StoreTypeMemory, store.StoreTypeLocalFile, store.StoreTypeRedis,
			store.StoreTypePostgres, store.StoreTypeMongo, store.StoreTypeElasticsearch:
		default:
			return fmt.Errorf("unknown store type %q", tag)
		}
	}

	if c.EnableEvents && c.NatsURL == "" {
		return fmt.Errorf("NATS_URL is required when ENABLE_EVENTS is true")
	}

	return nil
}

// UnifiedConfig translates the flat environment into the federating
// store's configuration, per-backend option maps included.
func (c *Config) UnifiedConfig() store.UnifiedConfig {
	cfg := store.DefaultUnifiedConfig()
	cfg.PrimaryStore = store.StoreType(c.PrimaryStore)
	cfg.EnableFailover = c.EnableFailover
	cfg.EnableReplication = c.EnableReplication
	cfg.HealthCheckInterval = secondsToDuration(c.HealthCheckIntervalSeconds)
	cfg.OperationDeadline = secondsToDuration(c.OperationDeadlineSeconds)

	for _, tag := range c.FallbackStores {
		cfg.FallbackStores = append(cfg.FallbackStores, store.StoreType(tag))
	}

	cfg.StoreConfigs = map[store.StoreType]map[string]string{
		store.StoreTypeRedis: {
			"url":        c.RedisURL,
			"key_prefix": c.RedisKeyPrefix,
		},
		store.StoreTypePostgres: {
			"url":    c.PostgresURL,
			"schema": c.PostgresSchema,
		},
		store.StoreTypeMongo: {
			"url":      c.MongoURL,
			"database": c.MongoDatabase,
		},
		store.StoreTypeElasticsearch: {
			"hosts":        c.ElasticHosts,
			"index_prefix": c.ElasticIndexPrefix,
			"username":     c.ElasticUsername,
			"password":     c.ElasticPassword,
		},
		store.StoreTypeLocalFile: {
			"base_path": c.LocalFileBasePath,
		},
	}

	return cfg
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
