package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/serializer"
)

// RedisConfig configures the Redis-backed store. DefaultTTL expires
// indicator keys when set; zero keeps them forever.
type RedisConfig struct {
	URL            string
	KeyPrefix      string
	DefaultTTL     time.Duration
	MinConnections int
	MaxConnections int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	MaxLifetime    time.Duration
	Compression    bool
}

// DefaultRedisConfig mirrors the documented defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		URL:            "redis://localhost:6379",
		KeyPrefix:      "phantom_ioc:",
		MaxConnections: 10,
		ConnectTimeout: 5 * time.Second,
	}
}

// derivedDataTTL applies to results, enriched iocs and correlations.
// Indicators themselves carry no TTL unless DefaultTTL is configured.
const derivedDataTTL = 24 * time.Hour

// RedisStore maps the tenant key space onto flat Redis keys:
// "{prefix}{tenant}:{kind}:{id}:{id}" with a per-tenant ioc count key.
// Searches scan with KEYS plus per-key GET and filter client-side; the
// contract permits this and operators accept the cost.
type RedisStore struct {
	cfg    RedisConfig
	rdb    *redis.Client
	codec  *serializer.Serializer
	closed bool
	ops    opRecorder
}

// NewRedisStore builds the store without touching the network; the first
// connection happens at Initialize.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.URL == "" {
		cfg.URL = "redis://localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "phantom_ioc:"
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, validationErr("invalid redis url", err)
	}
	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		opts.MinIdleConns = cfg.MinConnections
	}
	if cfg.ConnectTimeout > 0 {
		opts.DialTimeout = cfg.ConnectTimeout
	}
	if cfg.IdleTimeout > 0 {
		opts.ConnMaxIdleTime = cfg.IdleTimeout
	}
	if cfg.MaxLifetime > 0 {
		opts.ConnMaxLifetime = cfg.MaxLifetime
	}

	compression := serializer.CompressionNone
	if cfg.Compression {
		compression = serializer.CompressionGzip
	}
	codec, err := serializer.New(serializer.Config{
		Format:          serializer.FormatJSON,
		Compression:     compression,
		IncludeMetadata: cfg.Compression,
	})
	if err != nil {
		return nil, internalErr("building serializer", err)
	}

	return &RedisStore{
		cfg:   cfg,
		rdb:   redis.NewClient(opts),
		codec: codec,
	}, nil
}

func (r *RedisStore) entityKey(tenantID, kind, id string) string {
	return fmt.Sprintf("%s%s:%s:%s:%s", r.cfg.KeyPrefix, tenantID, kind, id, id)
}

func (r *RedisStore) kindPattern(tenantID, kind string) string {
	return fmt.Sprintf("%s%s:%s:*:*", r.cfg.KeyPrefix, tenantID, kind)
}

func (r *RedisStore) countKey(tenantID string) string {
	return fmt.Sprintf("%s%s:ioc:count", r.cfg.KeyPrefix, tenantID)
}

func (r *RedisStore) checkOpen() error {
	if r.closed {
		return connectionErr("store is closed", nil)
	}
	return nil
}

// wrapRedisErr maps driver errors into the taxonomy.
func wrapRedisErr(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return internalErr("deadline exceeded: "+msg, err)
	}
	return connectionErr(msg, err)
}

func (r *RedisStore) Initialize(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return wrapRedisErr("connecting to redis", err)
	}
	r.closed = false
	return nil
}

func (r *RedisStore) Close(ctx context.Context) error {
	r.closed = true
	if err := r.rdb.Close(); err != nil {
		return connectionErr("closing redis client", err)
	}
	return nil
}

func (r *RedisStore) HealthCheck(ctx context.Context) bool {
	if r.closed {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return r.rdb.Ping(ctx).Err() == nil
}

func (r *RedisStore) GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	metrics := r.ops.snapshot()
	stats := r.rdb.PoolStats()
	metrics.ActiveConnections = int(stats.TotalConns - stats.IdleConns)
	metrics.IdleConnections = int(stats.IdleConns)
	return &metrics, nil
}

func (r *RedisStore) GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error) {
	if err := tenant.Validate(); err != nil {
		return 0, validationErr("invalid tenant context", err)
	}
	if err := r.checkOpen(); err != nil {
		return 0, err
	}

	val, err := r.rdb.Get(ctx, r.countKey(tenant.TenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapRedisErr("reading ioc count", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, internalErr("corrupt ioc count key", err)
	}
	return count, nil
}

// setEntity encodes and stores one record under the tenant key space.
func (r *RedisStore) setEntity(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := r.codec.Encode(v)
	if err != nil {
		return codecErr(err)
	}
	if err := r.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return wrapRedisErr("storing "+key, err)
	}
	return nil
}

// getEntity fetches and decodes one record; found=false on a clean miss.
func (r *RedisStore) getEntity(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, wrapRedisErr("reading "+key, err)
	}
	if err := r.codec.Decode(data, v); err != nil {
		return false, codecErr(err)
	}
	return true, nil
}

func (r *RedisStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return "", validationErr("invalid ioc", err)
	}
	if err = r.checkOpen(); err != nil {
		return "", err
	}

	key := r.entityKey(tenant.TenantID, kindIOC, ioc.ID)
	existed, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return "", wrapRedisErr("checking "+key, err)
	}

	if err = r.setEntity(ctx, key, ioc, r.cfg.DefaultTTL); err != nil {
		return "", err
	}

	if existed == 0 {
		if err = r.rdb.Incr(ctx, r.countKey(tenant.TenantID)).Err(); err != nil {
			return "", wrapRedisErr("incrementing ioc count", err)
		}
	}
	return ioc.ID, nil
}

func (r *RedisStore) GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (_ *models.IOC, err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if !tenant.HasPermission("ioc:read") {
		return nil, permissionErr("missing ioc:read permission")
	}
	if err = r.checkOpen(); err != nil {
		return nil, err
	}

	var ioc models.IOC
	found, err := r.getEntity(ctx, r.entityKey(tenant.TenantID, kindIOC, id), &ioc)
	if err != nil || !found {
		return nil, err
	}
	return &ioc, nil
}

func (r *RedisStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return validationErr("invalid ioc", err)
	}
	if err = r.checkOpen(); err != nil {
		return err
	}

	key := r.entityKey(tenant.TenantID, kindIOC, ioc.ID)
	existed, err := r.rdb.Exists(ctx, key).Result()
	if err != nil {
		return wrapRedisErr("checking "+key, err)
	}
	if existed == 0 {
		return notFoundErr("ioc " + ioc.ID + " not found")
	}
	return r.setEntity(ctx, key, ioc, r.cfg.DefaultTTL)
}

func (r *RedisStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return err
	}

	key := r.entityKey(tenant.TenantID, kindIOC, id)
	deleted, err := r.rdb.Del(ctx, key).Result()
	if err != nil {
		return wrapRedisErr("deleting "+key, err)
	}
	if deleted == 0 {
		return notFoundErr("ioc " + id + " not found")
	}
	if err = r.rdb.Decr(ctx, r.countKey(tenant.TenantID)).Err(); err != nil {
		return wrapRedisErr("decrementing ioc count", err)
	}
	return nil
}

// sortIOCsByID pins a stable order for paginated scans.
func sortIOCsByID(iocs []*models.IOC) {
	sort.Slice(iocs, func(i, j int) bool { return iocs[i].ID < iocs[j].ID })
}

// scanIOCs loads every indicator of one tenant. KEYS is acceptable here:
// tenant key spaces are modest and the contract blesses the pattern scan.
func (r *RedisStore) scanIOCs(ctx context.Context, tenantID string) ([]*models.IOC, error) {
	keys, err := r.rdb.Keys(ctx, r.kindPattern(tenantID, kindIOC)).Result()
	if err != nil {
		return nil, wrapRedisErr("scanning ioc keys", err)
	}

	iocs := make([]*models.IOC, 0, len(keys))
	for _, key := range keys {
		var ioc models.IOC
		found, err := r.getEntity(ctx, key, &ioc)
		if err != nil {
			return nil, err
		}
		if found {
			copied := ioc
			iocs = append(iocs, &copied)
		}
	}
	return iocs, nil
}

func (r *RedisStore) SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (_ *models.SearchResults[*models.IOC], err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return nil, err
	}

	iocs, err := r.scanIOCs(ctx, tenant.TenantID)
	if err != nil {
		return nil, err
	}

	matches := make([]*models.IOC, 0, len(iocs))
	for _, ioc := range iocs {
		if criteria.Matches(ioc) {
			matches = append(matches, ioc)
		}
	}
	sortIOCsByID(matches)

	return models.PageOf(matches, criteria.EffectiveLimit(), criteria.EffectiveOffset()), nil
}

func (r *RedisStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.BulkOperationResult{TotalRequested: len(iocs)}

	for _, ioc := range iocs {
		if _, err := r.StoreIOC(ctx, ioc, tenant); err != nil {
			if Kind(err) == KindConnection {
				return nil, err
			}
			result.RecordFailure(ioc.ID)
			continue
		}
		result.RecordSuccess()
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

func (r *RedisStore) ListIOCIDs(ctx context.Context, tenant *models.TenantContext) (_ []string, err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return nil, err
	}

	iocs, err := r.scanIOCs(ctx, tenant.TenantID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(iocs))
	for _, ioc := range iocs {
		ids = append(ids, ioc.ID)
	}
	return ids, nil
}

func (r *RedisStore) StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = result.Validate(); err != nil {
		return validationErr("invalid result", err)
	}
	if err = r.checkOpen(); err != nil {
		return err
	}
	return r.setEntity(ctx, r.entityKey(tenant.TenantID, kindResult, result.IOCID), result, derivedDataTTL)
}

func (r *RedisStore) GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.IOCResult, err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return nil, err
	}

	var result models.IOCResult
	found, err := r.getEntity(ctx, r.entityKey(tenant.TenantID, kindResult, iocID), &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

func (r *RedisStore) DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return err
	}

	deleted, err := r.rdb.Del(ctx, r.entityKey(tenant.TenantID, kindResult, iocID)).Result()
	if err != nil {
		return wrapRedisErr("deleting result", err)
	}
	if deleted == 0 {
		return notFoundErr("result for ioc " + iocID + " not found")
	}
	return nil
}

func (r *RedisStore) StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = enriched.Validate(); err != nil {
		return validationErr("invalid enriched ioc", err)
	}
	if err = r.checkOpen(); err != nil {
		return err
	}
	return r.setEntity(ctx, r.entityKey(tenant.TenantID, kindEnriched, enriched.IOC.ID), enriched, derivedDataTTL)
}

func (r *RedisStore) GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.EnrichedIOC, err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return nil, err
	}

	var enriched models.EnrichedIOC
	found, err := r.getEntity(ctx, r.entityKey(tenant.TenantID, kindEnriched, iocID), &enriched)
	if err != nil || !found {
		return nil, err
	}
	return &enriched, nil
}

func (r *RedisStore) DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return err
	}

	deleted, err := r.rdb.Del(ctx, r.entityKey(tenant.TenantID, kindEnriched, iocID)).Result()
	if err != nil {
		return wrapRedisErr("deleting enriched ioc", err)
	}
	if deleted == 0 {
		return notFoundErr("enriched ioc " + iocID + " not found")
	}
	return nil
}

func (r *RedisStore) StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = corr.Validate(); err != nil {
		return "", validationErr("invalid correlation", err)
	}
	if err = r.checkOpen(); err != nil {
		return "", err
	}

	for _, iocID := range corr.CorrelatedIOCs {
		existed, existsErr := r.rdb.Exists(ctx, r.entityKey(tenant.TenantID, kindIOC, iocID)).Result()
		if existsErr != nil {
			return "", wrapRedisErr("checking correlated ioc", existsErr)
		}
		if existed == 0 {
			return "", validationErr("correlated ioc "+iocID+" does not exist in tenant", nil)
		}
	}

	key := r.entityKey(tenant.TenantID, kindCorrelations, corr.ID)
	if err = r.setEntity(ctx, key, corr, derivedDataTTL); err != nil {
		return "", err
	}
	return corr.ID, nil
}

func (r *RedisStore) GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (_ []*models.Correlation, err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return nil, err
	}

	keys, err := r.rdb.Keys(ctx, r.kindPattern(tenant.TenantID, kindCorrelations)).Result()
	if err != nil {
		return nil, wrapRedisErr("scanning correlation keys", err)
	}

	matches := make([]*models.Correlation, 0)
	for _, key := range keys {
		var corr models.Correlation
		found, getErr := r.getEntity(ctx, key, &corr)
		if getErr != nil {
			return nil, getErr
		}
		if found && corr.Mentions(iocID) {
			copied := corr
			matches = append(matches, &copied)
		}
	}
	return matches, nil
}

func (r *RedisStore) DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { r.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = r.checkOpen(); err != nil {
		return err
	}

	matches, err := r.GetCorrelations(ctx, iocID, tenant)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return notFoundErr("no correlations mention ioc " + iocID)
	}

	for _, corr := range matches {
		key := r.entityKey(tenant.TenantID, kindCorrelations, corr.ID)
		if delErr := r.rdb.Del(ctx, key).Err(); delErr != nil {
			return wrapRedisErr("deleting "+key, delErr)
		}
	}
	return nil
}

func (r *RedisStore) StoreType() StoreType         { return StoreTypeRedis }
func (r *RedisStore) SupportsMultiTenancy() bool   { return true }
func (r *RedisStore) SupportsFullTextSearch() bool { return false }
func (r *RedisStore) SupportsTransactions() bool   { return false }
func (r *RedisStore) SupportsBulkOperations() bool { return true }
func (r *RedisStore) MaxBatchSize() int            { return 100 }
