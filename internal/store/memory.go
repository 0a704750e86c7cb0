package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// tenantData is one tenant's slice of the in-memory store.
type tenantData struct {
	iocs         map[string]*models.IOC
	results      map[string]*models.IOCResult
	enriched     map[string]*models.EnrichedIOC
	correlations map[string]*models.Correlation
}

func newTenantData() *tenantData {
	return &tenantData{
		iocs:         make(map[string]*models.IOC),
		results:      make(map[string]*models.IOCResult),
		enriched:     make(map[string]*models.EnrichedIOC),
		correlations: make(map[string]*models.Correlation),
	}
}

// MemoryStore keeps everything in per-tenant nested maps behind a
// readers-writer lock. Used standalone for tests and as the failover
// target of last resort.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantData
	closed  bool
	ops     opRecorder
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants: make(map[string]*tenantData),
	}
}

// tenant returns the tenant's data, creating it on first use. Caller must
// hold the write lock when create is true.
func (m *MemoryStore) tenant(tenantID string, create bool) *tenantData {
	data, ok := m.tenants[tenantID]
	if !ok && create {
		data = newTenantData()
		m.tenants[tenantID] = data
	}
	return data
}

func (m *MemoryStore) checkOpen() error {
	if m.closed {
		return connectionErr("store is closed", nil)
	}
	return nil
}

func (m *MemoryStore) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tenants == nil {
		m.tenants = make(map[string]*tenantData)
	}
	m.closed = false
	return nil
}

func (m *MemoryStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryStore) HealthCheck(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.closed
}

func (m *MemoryStore) GetMetrics(ctx context.Context, tenant *models.TenantContext) (*StoreMetrics, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	metrics := m.ops.snapshot()
	return &metrics, nil
}

func (m *MemoryStore) GetIOCCount(ctx context.Context, tenant *models.TenantContext) (int64, error) {
	if err := tenant.Validate(); err != nil {
		return 0, validationErr("invalid tenant context", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return 0, nil
	}
	return int64(len(data.iocs)), nil
}

func (m *MemoryStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return "", validationErr("invalid ioc", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return "", err
	}

	copied := *ioc
	m.tenant(tenant.TenantID, true).iocs[ioc.ID] = &copied
	return ioc.ID, nil
}

func (m *MemoryStore) GetIOC(ctx context.Context, id string, tenant *models.TenantContext) (_ *models.IOC, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}
	if !tenant.HasPermission("ioc:read") {
		return nil, permissionErr("missing ioc:read permission")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return nil, nil
	}
	ioc, ok := data.iocs[id]
	if !ok {
		return nil, nil
	}
	copied := *ioc
	return &copied, nil
}

func (m *MemoryStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = ioc.Validate(); err != nil {
		return validationErr("invalid ioc", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return notFoundErr("ioc " + ioc.ID + " not found")
	}
	if _, ok := data.iocs[ioc.ID]; !ok {
		return notFoundErr("ioc " + ioc.ID + " not found")
	}
	copied := *ioc
	data.iocs[ioc.ID] = &copied
	return nil
}

func (m *MemoryStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return notFoundErr("ioc " + id + " not found")
	}
	if _, ok := data.iocs[id]; !ok {
		return notFoundErr("ioc " + id + " not found")
	}
	delete(data.iocs, id)
	return nil
}

func (m *MemoryStore) SearchIOCs(ctx context.Context, criteria *models.IOCSearchCriteria, tenant *models.TenantContext) (_ *models.SearchResults[*models.IOC], err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	limit := criteria.EffectiveLimit()
	offset := criteria.EffectiveOffset()

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return models.PageOf([]*models.IOC{}, limit, offset), nil
	}

	matches := make([]*models.IOC, 0)
	for _, ioc := range data.iocs {
		if criteria.Matches(ioc) {
			copied := *ioc
			matches = append(matches, &copied)
		}
	}
	// Map iteration order is random; pin it so pagination is stable.
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	return models.PageOf(matches, limit, offset), nil
}

func (m *MemoryStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	start := time.Now()
	result := &models.BulkOperationResult{TotalRequested: len(iocs)}

	for _, ioc := range iocs {
		if _, err := m.StoreIOC(ctx, ioc, tenant); err != nil {
			result.RecordFailure(ioc.ID)
			continue
		}
		result.RecordSuccess()
	}

	result.ProcessingTime = time.Since(start)
	return result, nil
}

func (m *MemoryStore) ListIOCIDs(ctx context.Context, tenant *models.TenantContext) (_ []string, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return []string{}, nil
	}
	ids := make([]string, 0, len(data.iocs))
	for id := range data.iocs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) StoreResult(ctx context.Context, result *models.IOCResult, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = result.Validate(); err != nil {
		return validationErr("invalid result", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return err
	}

	copied := *result
	m.tenant(tenant.TenantID, true).results[result.IOCID] = &copied
	return nil
}

func (m *MemoryStore) GetResult(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.IOCResult, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return nil, nil
	}
	result, ok := data.results[iocID]
	if !ok {
		return nil, nil
	}
	copied := *result
	return &copied, nil
}

func (m *MemoryStore) DeleteResult(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return notFoundErr("result for ioc " + iocID + " not found")
	}
	if _, ok := data.results[iocID]; !ok {
		return notFoundErr("result for ioc " + iocID + " not found")
	}
	delete(data.results, iocID)
	return nil
}

func (m *MemoryStore) StoreEnrichedIOC(ctx context.Context, enriched *models.EnrichedIOC, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}
	if err = enriched.Validate(); err != nil {
		return validationErr("invalid enriched ioc", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return err
	}

	copied := *enriched
	m.tenant(tenant.TenantID, true).enriched[enriched.IOC.ID] = &copied
	return nil
}

func (m *MemoryStore) GetEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (_ *models.EnrichedIOC, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return nil, nil
	}
	enriched, ok := data.enriched[iocID]
	if !ok {
		return nil, nil
	}
	copied := *enriched
	return &copied, nil
}

func (m *MemoryStore) DeleteEnrichedIOC(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return notFoundErr("enriched ioc " + iocID + " not found")
	}
	if _, ok := data.enriched[iocID]; !ok {
		return notFoundErr("enriched ioc " + iocID + " not found")
	}
	delete(data.enriched, iocID)
	return nil
}

func (m *MemoryStore) StoreCorrelation(ctx context.Context, corr *models.Correlation, tenant *models.TenantContext) (_ string, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return "", validationErr("invalid tenant context", err)
	}
	if err = corr.Validate(); err != nil {
		return "", validationErr("invalid correlation", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return "", err
	}

	data := m.tenant(tenant.TenantID, true)
	for _, iocID := range corr.CorrelatedIOCs {
		if _, ok := data.iocs[iocID]; !ok {
			return "", validationErr("correlated ioc "+iocID+" does not exist in tenant", nil)
		}
	}

	copied := *corr
	data.correlations[corr.ID] = &copied
	return corr.ID, nil
}

func (m *MemoryStore) GetCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (_ []*models.Correlation, err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err = m.checkOpen(); err != nil {
		return nil, err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return []*models.Correlation{}, nil
	}

	matches := make([]*models.Correlation, 0)
	for _, corr := range data.correlations {
		if corr.Mentions(iocID) {
			copied := *corr
			matches = append(matches, &copied)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (m *MemoryStore) DeleteCorrelations(ctx context.Context, iocID string, tenant *models.TenantContext) (err error) {
	start := time.Now()
	defer func() { m.ops.observe(start, err) }()

	if err = tenant.Validate(); err != nil {
		return validationErr("invalid tenant context", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err = m.checkOpen(); err != nil {
		return err
	}

	data := m.tenant(tenant.TenantID, false)
	if data == nil {
		return notFoundErr("no correlations mention ioc " + iocID)
	}

	deleted := 0
	for id, corr := range data.correlations {
		if corr.Mentions(iocID) {
			delete(data.correlations, id)
			deleted++
		}
	}
	if deleted == 0 {
		return notFoundErr("no correlations mention ioc " + iocID)
	}
	return nil
}

func (m *MemoryStore) StoreType() StoreType         { return StoreTypeMemory }
func (m *MemoryStore) SupportsMultiTenancy() bool   { return true }
func (m *MemoryStore) SupportsFullTextSearch() bool { return false }
func (m *MemoryStore) SupportsTransactions() bool   { return false }
func (m *MemoryStore) SupportsBulkOperations() bool { return true }
func (m *MemoryStore) MaxBatchSize() int            { return 0 } // unlimited
