package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/serializer"
)

// StoreFactory builds one adapter type from flat string configuration,
// the form it arrives in from environment files and deployment manifests.
type StoreFactory interface {
	StoreType() StoreType
	// RequiredConfigKeys lists the keys ValidateConfig insists on.
	RequiredConfigKeys() []string
	// ValidateConfig checks presence and shape without touching a backend.
	ValidateConfig(config map[string]string) error
	// CreateStore builds an uninitialized adapter. The caller owns
	// Initialize and Close.
	CreateStore(config map[string]string) (ComprehensiveStore, error)
}

func missingKeys(config map[string]string, required []string) error {
	var missing []string
	for _, key := range required {
		if config[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return validationErr("missing required config keys: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

func configDuration(config map[string]string, key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := config[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationErr(fmt.Sprintf("%s must be an integer number of seconds, got %q", key, raw), nil)
	}
	return time.Duration(seconds) * time.Second, nil
}

func configInt(config map[string]string, key string, fallback int) (int, error) {
	raw, ok := config[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationErr(fmt.Sprintf("%s must be an integer, got %q", key, raw), nil)
	}
	return n, nil
}

func configBool(config map[string]string, key string, fallback bool) (bool, error) {
	raw, ok := config[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, validationErr(fmt.Sprintf("%s must be a boolean, got %q", key, raw), nil)
	}
	return b, nil
}

type memoryFactory struct{}

func (memoryFactory) StoreType() StoreType { return StoreTypeMemory }

func (memoryFactory) RequiredConfigKeys() []string { return nil }

func (memoryFactory) ValidateConfig(map[string]string) error { return nil }

func (memoryFactory) CreateStore(map[string]string) (ComprehensiveStore, error) {
	return NewMemoryStore(), nil
}

type localFileFactory struct{}

func (localFileFactory) StoreType() StoreType         { return StoreTypeLocalFile }
func (localFileFactory) RequiredConfigKeys() []string { return []string{"base_path"} }

func (f localFileFactory) ValidateConfig(config map[string]string) error {
	if err := missingKeys(config, f.RequiredConfigKeys()); err != nil {
		return err
	}
	if format := config["format"]; format != "" {
		switch serializer.Format(format) {
		case serializer.FormatJSON, serializer.FormatMessagePack, serializer.FormatCBOR, serializer.FormatBSON:
		default:
			return validationErr(fmt.Sprintf("unsupported file format %q", format), nil)
		}
	}
	return nil
}

func (f localFileFactory) CreateStore(config map[string]string) (ComprehensiveStore, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}
	cfg := DefaultLocalFileConfig(config["base_path"])
	if format := config["format"]; format != "" {
		cfg.Format = serializer.Format(format)
	}
	var err error
	if cfg.Compression, err = configBool(config, "compression", false); err != nil {
		return nil, err
	}
	if cfg.CreateDirs, err = configBool(config, "create_dirs", true); err != nil {
		return nil, err
	}
	return NewLocalFileStore(cfg)
}

type redisFactory struct{}

func (redisFactory) StoreType() StoreType         { return StoreTypeRedis }
func (redisFactory) RequiredConfigKeys() []string { return []string{"url"} }

func (f redisFactory) ValidateConfig(config map[string]string) error {
	if err := missingKeys(config, f.RequiredConfigKeys()); err != nil {
		return err
	}
	if !strings.HasPrefix(config["url"], "redis://") && !strings.HasPrefix(config["url"], "rediss://") {
		return validationErr(fmt.Sprintf("url must start with redis:// or rediss://, got %q", config["url"]), nil)
	}
	return nil
}

func (f redisFactory) CreateStore(config map[string]string) (ComprehensiveStore, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}
	cfg := DefaultRedisConfig()
	cfg.URL = config["url"]
	if prefix := config["key_prefix"]; prefix != "" {
		cfg.KeyPrefix = prefix
	}
	var err error
	if cfg.DefaultTTL, err = configDuration(config, "default_ttl_seconds", cfg.DefaultTTL); err != nil {
		return nil, err
	}
	if cfg.MaxConnections, err = configInt(config, "max_connections", cfg.MaxConnections); err != nil {
		return nil, err
	}
	if cfg.Compression, err = configBool(config, "compression", false); err != nil {
		return nil, err
	}
	return NewRedisStore(cfg)
}

type postgresFactory struct{}

func (postgresFactory) StoreType() StoreType         { return StoreTypePostgres }
func (postgresFactory) RequiredConfigKeys() []string { return []string{"url"} }

func (f postgresFactory) ValidateConfig(config map[string]string) error {
	if err := missingKeys(config, f.RequiredConfigKeys()); err != nil {
		return err
	}
	if !strings.HasPrefix(config["url"], "postgres://") && !strings.HasPrefix(config["url"], "postgresql://") {
		return validationErr(fmt.Sprintf("url must start with postgres://, got %q", config["url"]), nil)
	}
	return nil
}

func (f postgresFactory) CreateStore(config map[string]string) (ComprehensiveStore, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}
	cfg := DefaultPostgresConfig(config["url"])
	if schema := config["schema"]; schema != "" {
		cfg.Schema = schema
	}
	if sslMode := config["ssl_mode"]; sslMode != "" {
		cfg.SSLMode = sslMode
	}
	var err error
	if cfg.MaxConnections, err = configInt(config, "max_connections", cfg.MaxConnections); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = configDuration(config, "connect_timeout_seconds", cfg.ConnectTimeout); err != nil {
		return nil, err
	}
	if cfg.AutoMigrate, err = configBool(config, "auto_migrate", true); err != nil {
		return nil, err
	}
	return NewPostgresStore(cfg)
}

type mongoFactory struct{}

func (mongoFactory) StoreType() StoreType         { return StoreTypeMongo }
func (mongoFactory) RequiredConfigKeys() []string { return []string{"url", "database"} }

func (f mongoFactory) ValidateConfig(config map[string]string) error {
	if err := missingKeys(config, f.RequiredConfigKeys()); err != nil {
		return err
	}
	if !strings.HasPrefix(config["url"], "mongodb://") && !strings.HasPrefix(config["url"], "mongodb+srv://") {
		return validationErr(fmt.Sprintf("url must start with mongodb://, got %q", config["url"]), nil)
	}
	return nil
}

func (f mongoFactory) CreateStore(config map[string]string) (ComprehensiveStore, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}
	cfg := DefaultMongoConfig(config["url"], config["database"])
	if prefix := config["collection_prefix"]; prefix != "" {
		cfg.CollectionPrefix = prefix
	}
	if wc := config["write_concern"]; wc != "" {
		cfg.WriteConcern = wc
	}
	if rp := config["read_preference"]; rp != "" {
		cfg.ReadPreference = rp
	}
	maxPool, err := configInt(config, "max_pool_size", int(cfg.MaxPoolSize))
	if err != nil {
		return nil, err
	}
	cfg.MaxPoolSize = uint64(maxPool)
	if cfg.ConnectTimeout, err = configDuration(config, "connect_timeout_seconds", cfg.ConnectTimeout); err != nil {
		return nil, err
	}
	return NewMongoStore(cfg)
}

type elasticFactory struct{}

func (elasticFactory) StoreType() StoreType         { return StoreTypeElasticsearch }
func (elasticFactory) RequiredConfigKeys() []string { return []string{"hosts"} }

func (f elasticFactory) ValidateConfig(config map[string]string) error {
	if err := missingKeys(config, f.RequiredConfigKeys()); err != nil {
		return err
	}
	for _, host := range strings.Split(config["hosts"], ",") {
		host = strings.TrimSpace(host)
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			return validationErr(fmt.Sprintf("host %q must start with http:// or https://", host), nil)
		}
	}
	return nil
}

func (f elasticFactory) CreateStore(config map[string]string) (ComprehensiveStore, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}
	cfg := DefaultElasticConfig()
	cfg.Hosts = cfg.Hosts[:0]
	for _, host := range strings.Split(config["hosts"], ",") {
		cfg.Hosts = append(cfg.Hosts, strings.TrimSpace(host))
	}
	if prefix := config["index_prefix"]; prefix != "" {
		cfg.IndexPrefix = prefix
	}
	cfg.Username = config["username"]
	cfg.Password = config["password"]
	var err error
	if cfg.RequestTimeout, err = configDuration(config, "request_timeout_seconds", cfg.RequestTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = configInt(config, "max_retries", cfg.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.EnableSSL, err = configBool(config, "enable_ssl", false); err != nil {
		return nil, err
	}
	return NewElasticStore(cfg)
}
