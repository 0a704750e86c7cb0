package store

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// DefaultOperationDeadline bounds every routed operation.
const DefaultOperationDeadline = 30 * time.Second

// UnifiedConfig configures the federating store.
type UnifiedConfig struct {
	PrimaryStore        StoreType
	FallbackStores      []StoreType
	StoreConfigs        map[StoreType]map[string]string
	EnableFailover      bool
	EnableReplication   bool
	HealthCheckInterval time.Duration
	OperationDeadline   time.Duration
}

// DefaultUnifiedConfig federates nothing but a memory primary; callers
// add fallbacks and per-store configs on top.
func DefaultUnifiedConfig() UnifiedConfig {
	return UnifiedConfig{
		PrimaryStore:        StoreTypeMemory,
		EnableFailover:      true,
		HealthCheckInterval: 30 * time.Second,
		OperationDeadline:   DefaultOperationDeadline,
	}
}

type unifiedMember struct {
	tag   StoreType
	store ComprehensiveStore
}

// UnifiedStore federates a primary adapter and ordered fallbacks behind
// the same contract. Each operation is served by one adapter: the
// primary when healthy, otherwise the first healthy fallback. A failure
// that demotes the serving adapter mid-call is redirected to the next
// healthy member exactly once; with replication enabled, writes also fan
// out to the healthy fallbacks after the routed adapter succeeds.
type UnifiedStore struct {
	cfg     UnifiedConfig
	members []unifiedMember

	mu     sync.RWMutex
	health map[StoreType]bool
	closed bool
}

// NewUnifiedStore builds every configured adapter through the registry.
// Construction fails on bad config; backend reachability is Initialize's
// problem.
func NewUnifiedStore(registry *Registry, cfg UnifiedConfig) (*UnifiedStore, error) {
	if cfg.PrimaryStore == "" {
		return nil, validationErr("primary_store is required", nil)
	}
	if cfg.OperationDeadline <= 0 {
		cfg.OperationDeadline = DefaultOperationDeadline
	}

	tags := append([]StoreType{cfg.PrimaryStore}, cfg.FallbackStores...)
	seen := make(map[StoreType]bool, len(tags))
	members := make([]unifiedMember, 0, len(tags))
	for _, tag := range tags {
		if seen[tag] {
			return nil, validationErr("store type "+string(tag)+" listed more than once", nil)
		}
		seen[tag] = true

		adapter, err := registry.CreateStore(tag, cfg.StoreConfigs[tag])
		if err != nil {
			return nil, err
		}
		members = append(members, unifiedMember{tag: tag, store: adapter})
	}

	health := make(map[StoreType]bool, len(members))
	for _, m := range members {
		health[m.tag] = false
	}
	return &UnifiedStore{cfg: cfg, members: members, health: health}, nil
}

// Initialize brings up every member and records the outcome. A failing
// member leaves the unified store degraded, never broken: as long as one
// adapter came up, callers can proceed.
func (u *UnifiedStore) Initialize(ctx context.Context) error {
	anyHealthy := false
	for _, m := range u.members {
		err := m.store.Initialize(ctx)
		u.setHealth(m.tag, err == nil)
		if err != nil {
			log.Printf("unified store: initializing %s failed: %v", m.tag, err)
			continue
		}
		anyHealthy = true
	}
	if !anyHealthy {
		return connectionErr("no store could be initialized", nil)
	}
	u.mu.Lock()
	u.closed = false
	u.mu.Unlock()
	return nil
}

func (u *UnifiedStore) Close(ctx context.Context) error {
	u.mu.Lock()
	u.closed = true
	u.mu.Unlock()

	var errs []error
	for _, m := range u.members {
		if err := m.store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		u.setHealth(m.tag, false)
	}
	return errors.Join(errs...)
}

// HealthCheck probes every member and refreshes the table. True means
// fully operational; a degraded-but-usable store answers false while
// operations keep routing to the survivors.
func (u *UnifiedStore) HealthCheck(ctx context.Context) bool {
	u.mu.RLock()
	closed := u.closed
	u.mu.RUnlock()
	if closed {
		return false
	}

	all := true
	for _, m := range u.members {
		healthy := m.store.HealthCheck(ctx)
		u.setHealth(m.tag, healthy)
		if !healthy {
			all = false
		}
	}
	return all
}

func (u *UnifiedStore) setHealth(tag StoreType, healthy bool) {
	u.mu.Lock()
	u.health[tag] = healthy
	u.mu.Unlock()
}

func (u *UnifiedStore) isHealthy(tag StoreType) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.health[tag]
}

// HealthSnapshot copies the health table, keyed by store type tag.
func (u *UnifiedStore) HealthSnapshot() map[StoreType]bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	snapshot := make(map[StoreType]bool, len(u.health))
	for tag, healthy := range u.health {
		snapshot[tag] = healthy
	}
	return snapshot
}

// route picks the adapter that will serve one whole operation.
func (u *UnifiedStore) route() (unifiedMember, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	if u.closed {
		return unifiedMember{}, connectionErr("store is closed", nil)
	}
	for i, m := range u.members {
		if i > 0 && !u.cfg.EnableFailover {
			break
		}
		if u.health[m.tag] {
			return m, nil
		}
	}
	return unifiedMember{}, connectionErr("no healthy store available", nil)
}

// execute runs op against one member under the operation deadline.
// Deadline overruns come back as Internal and demote the member; plain
// connection failures demote it too.
func (u *UnifiedStore) execute(ctx context.Context, tag StoreType, op func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, u.cfg.OperationDeadline)
	defer cancel()

	err := op(opCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || opCtx.Err() == context.DeadlineExceeded {
		u.setHealth(tag, false)
		return internalErr("deadline exceeded", err)
	}
	if Kind(err) == KindConnection {
		u.setHealth(tag, false)
	}
	return err
}

// run routes one whole operation. A failure that demoted the serving
// member is redirected to the next healthy member exactly once; any
// further failure surfaces to the caller.
func (u *UnifiedStore) run(ctx context.Context, op func(ctx context.Context, s ComprehensiveStore) error) (StoreType, error) {
	m, err := u.route()
	if err != nil {
		return "", err
	}
	err = u.execute(ctx, m.tag, func(ctx context.Context) error { return op(ctx, m.store) })
	if err == nil || !u.cfg.EnableFailover || u.isHealthy(m.tag) {
		return m.tag, err
	}

	next, routeErr := u.route()
	if routeErr != nil {
		return m.tag, err
	}
	log.Printf("unified store: %s failed, redirecting to %s: %v", m.tag, next.tag, err)
	if redirectErr := u.execute(ctx, next.tag, func(ctx context.Context) error { return op(ctx, next.store) }); redirectErr != nil {
		return next.tag, redirectErr
	}
	return next.tag, nil
}

// replicate fans a successful write out to the remaining healthy members.
// Failures are logged and never fail the operation; only connection-class
// failures and deadline overruns demote the replica.
func (u *UnifiedStore) replicate(ctx context.Context, servedBy StoreType, opName string, op func(ctx context.Context, s ComprehensiveStore) error) {
	if !u.cfg.EnableReplication {
		return
	}
	for _, m := range u.members {
		if m.tag == servedBy || !u.isHealthy(m.tag) {
			continue
		}
		opCtx, cancel := context.WithTimeout(ctx, u.cfg.OperationDeadline)
		err := op(opCtx, m.store)
		cancel()
		if err != nil {
			log.Printf("unified store: replicating %s to %s failed: %v", opName, m.tag, err)
			if Kind(err) == KindConnection || errors.Is(err, context.DeadlineExceeded) {
				u.setHealth(m.tag, false)
			}
		}
	}
}

func (u *UnifiedStore) GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error) {
	var metrics *StoreMetrics
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		metrics, opErr = s.GetMetrics(ctx, tenant)
		return opErr
	})
	return metrics, err
}

func (u *UnifiedStore) GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error) {
	var count int64
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		count, opErr = s.GetIOCCount(ctx, tenant)
		return opErr
	})
	return count, err
}

func (u *UnifiedStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (string, error) {
	var id string
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		id, opErr = s.StoreIOC(ctx, ioc, tenant)
		return opErr
	})
	if err != nil {
		return "", err
	}
	u.replicate(ctx, served, "store_ioc", func(ctx context.Context, s ComprehensiveStore) error {
		_, repErr := s.StoreIOC(ctx, ioc, tenant)
		return repErr
	})
	return id, nil
}

func (u *UnifiedStore) GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (*models.IOC, error) {
	var ioc *models.IOC
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		ioc, opErr = s.GetIOC(ctx, id, tenant)
		return opErr
	})
	return ioc, err
}

func (u *UnifiedStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) error {
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		return s.UpdateIOC(ctx, ioc, tenant)
	})
	if err != nil {
		return err
	}
	u.replicate(ctx, served, "update_ioc", func(ctx context.Context, s ComprehensiveStore) error {
		return s.UpdateIOC(ctx, ioc, tenant)
	})
	return nil
}

func (u *UnifiedStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) error {
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteIOC(ctx, id, tenant)
	})
	if err != nil {
		return err
	}
	u.replicate(ctx, served, "delete_ioc", func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteIOC(ctx, id, tenant)
	})
	return nil
}

func (u *UnifiedStore) SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (*models.SearchResults[*models.IOC], error) {
	var results *models.SearchResults[*models.IOC]
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		results, opErr = s.SearchIOCs(ctx, criteria, tenant)
		return opErr
	})
	return results, err
}

func (u *UnifiedStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	var result *models.BulkOperationResult
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		result, opErr = s.BulkStoreIOCs(ctx, iocs, tenant)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	u.replicate(ctx, served, "bulk_store_iocs", func(ctx context.Context, s ComprehensiveStore) error {
		_, repErr := s.BulkStoreIOCs(ctx, iocs, tenant)
		return repErr
	})
	return result, nil
}

func (u *UnifiedStore) ListIOCIDs(ctx context.Context, tenant *models.TenantContext) ([]string, error) {
	var ids []string
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		ids, opErr = s.ListIOCIDs(ctx, tenant)
		return opErr
	})
	return ids, err
}

func (u *UnifiedStore) StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) error {
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		return s.StoreResult(ctx, result, tenant)
	})
	if err != nil {
		return err
	}
	u.replicate(ctx, served, "store_result", func(ctx context.Context, s ComprehensiveStore) error {
		return s.StoreResult(ctx, result, tenant)
	})
	return nil
}

func (u *UnifiedStore) GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (*models.IOCResult, error) {
	var result *models.IOCResult
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		result, opErr = s.GetResult(ctx, iocID, tenant)
		return opErr
	})
	return result, err
}

func (u *UnifiedStore) DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) error {
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteResult(ctx, iocID, tenant)
	})
	if err != nil {
		return err
	}
	u.replicate(ctx, served, "delete_result", func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteResult(ctx, iocID, tenant)
	})
	return nil
}

func (u *UnifiedStore) StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) error {
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		return s.StoreEnrichedIOC(ctx, enriched, tenant)
	})
	if err != nil {
		return err
	}
	u.replicate(ctx, served, "store_enriched_ioc", func(ctx context.Context, s ComprehensiveStore) error {
		return s.StoreEnrichedIOC(ctx, enriched, tenant)
	})
	return nil
}

func (u *UnifiedStore) GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (*models.EnrichedIOC, error) {
	var enriched *models.EnrichedIOC
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		enriched, opErr = s.GetEnrichedIOC(ctx, iocID, tenant)
		return opErr
	})
	return enriched, err
}

func (u *UnifiedStore) DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) error {
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteEnrichedIOC(ctx, iocID, tenant)
	})
	if err != nil {
		return err
	}
	u.replicate(ctx, served, "delete_enriched_ioc", func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteEnrichedIOC(ctx, iocID, tenant)
	})
	return nil
}

func (u *UnifiedStore) StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (string, error) {
	var id string
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		id, opErr = s.StoreCorrelation(ctx, corr, tenant)
		return opErr
	})
	if err != nil {
		return "", err
	}
	u.replicate(ctx, served, "store_correlation", func(ctx context.Context, s ComprehensiveStore) error {
		_, repErr := s.StoreCorrelation(ctx, corr, tenant)
		return repErr
	})
	return id, nil
}

func (u *UnifiedStore) GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) ([]*models.Correlation, error) {
	var correlations []*models.Correlation
	_, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		var opErr error
		correlations, opErr = s.GetCorrelations(ctx, iocID, tenant)
		return opErr
	})
	return correlations, err
}

func (u *UnifiedStore) DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) error {
	served, err := u.run(ctx, func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteCorrelations(ctx, iocID, tenant)
	})
	if err != nil {
		return err
	}
	u.replicate(ctx, served, "delete_correlations", func(ctx context.Context, s ComprehensiveStore) error {
		return s.DeleteCorrelations(ctx, iocID, tenant)
	})
	return nil
}

func (u *UnifiedStore) StoreType() StoreType       { return StoreTypeUnified }
func (u *UnifiedStore) SupportsMultiTenancy() bool { return true }

// SupportsFullTextSearch reflects the primary; a failover target may be
// weaker, which callers accept when running degraded.
func (u *UnifiedStore) SupportsFullTextSearch() bool {
	return u.members[0].store.SupportsFullTextSearch()
}

// SupportsTransactions is always false: atomicity across adapters is not
// offered, whatever the members advertise individually.
func (u *UnifiedStore) SupportsTransactions() bool { return false }

func (u *UnifiedStore) SupportsBulkOperations() bool { return true }

func (u *UnifiedStore) MaxBatchSize() int {
	return u.members[0].store.MaxBatchSize()
}
