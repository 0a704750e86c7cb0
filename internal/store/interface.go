// Package store defines the unified data-store contract for indicators of
// compromise and provides the backend adapters that implement it. Every
// adapter maps the tenant-scoped domain model onto its engine's native
// primitives; the unified store federates adapters with health-based
// failover; the manager dispatches per tenant.
package store

import (
	"context"
	"time"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// StoreType tags a backend adapter implementation.
type StoreType string

const (
	StoreTypeMemory        StoreType = "memory"
	StoreTypeLocalFile     StoreType = "localfile"
	StoreTypeRedis         StoreType = "redis"
	StoreTypePostgres      StoreType = "postgres"
	StoreTypeMongo         StoreType = "mongodb"
	StoreTypeElasticsearch StoreType = "elasticsearch"
	StoreTypeUnified       StoreType = "unified"
)

// StoreMetrics is an operational snapshot of one adapter.
type StoreMetrics struct {
	TotalOperations      int64         `json:"total_operations"`
	SuccessfulOperations int64         `json:"successful_operations"`
	FailedOperations     int64         `json:"failed_operations"`
	AvgResponseTime      time.Duration `json:"avg_response_time"`
	ActiveConnections    int           `json:"active_connections"`
	IdleConnections      int           `json:"idle_connections"`
	MemoryUsageBytes     uint64        `json:"memory_usage_bytes"`
	LastCheck            time.Time     `json:"last_check"`
}

// DataStore is the lifecycle facet every backend implements.
type DataStore interface {
	// Initialize prepares schemas, indices or directories. Idempotent.
	Initialize(ctx context.Context) error
	// Close releases connections; further operations fail with Connection.
	Close(ctx context.Context) error
	// HealthCheck probes the backend and never blocks indefinitely.
	HealthCheck(ctx context.Context) bool
	GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error)
	GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error)
}

// IOCStore is the indicator facet.
type IOCStore interface {
	// StoreIOC persists the indicator and returns its id. The caller's id
	// is authoritative; the store never rewrites it.
	StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (string, error)
	// GetIOC returns nil (no error) when the id is absent for the tenant.
	GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (*models.IOC, error)
	// UpdateIOC replaces the full document; NotFound when absent.
	UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) error
	DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) error
	SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (*models.SearchResults[*models.IOC], error)
	// BulkStoreIOCs attempts every item; partial failures land in the
	// result, never abort the batch.
	BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error)
	ListIOCIDs(ctx context.Context, tenant *models.TenantContext) ([]string, error)
}

// ResultStore persists analysis outputs, one per (tenant, ioc id).
type ResultStore interface {
	StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) error
	GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (*models.IOCResult, error)
	DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) error
}

// EnrichedStore persists enriched indicators, keyed by the base ioc id.
type EnrichedStore interface {
	StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) error
	GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (*models.EnrichedIOC, error)
	DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) error
}

// CorrelationStore persists inter-indicator relationships. References to
// ioc ids are soft; deleting an ioc leaves its correlations readable.
type CorrelationStore interface {
	StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (string, error)
	// GetCorrelations returns every correlation mentioning iocID.
	GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) ([]*models.Correlation, error)
	// DeleteCorrelations removes every correlation mentioning iocID and
	// returns NotFound when none matched.
	DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) error
}

// Capabilities is static adapter metadata; answering it does no I/O.
type Capabilities interface {
	StoreType() StoreType
	SupportsMultiTenancy() bool
	SupportsFullTextSearch() bool
	SupportsTransactions() bool
	SupportsBulkOperations() bool
	// MaxBatchSize is a recommended ceiling; adapters may accept larger
	// batches or reject them with Validation.
	MaxBatchSize() int
}

// ComprehensiveStore is the full capability bundle callers program against.
type ComprehensiveStore interface {
	DataStore
	IOCStore
	ResultStore
	EnrichedStore
	CorrelationStore
	Capabilities
}
