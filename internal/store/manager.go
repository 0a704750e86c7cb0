package store

import (
	"context"
	"errors"
	"sync"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// Manager dispatches each request to the right store: a tenant-pinned
// adapter when one was registered, otherwise the shared default. It owns
// the lifecycle of everything it holds.
type Manager struct {
	registry *Registry

	mu           sync.RWMutex
	defaultStore ComprehensiveStore
	tenantStores map[string]ComprehensiveStore
}

// NewManager starts empty; callers set a default and pin tenants as
// deployment config dictates.
func NewManager(registry *Registry) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry:     registry,
		tenantStores: make(map[string]ComprehensiveStore),
	}
}

// Registry exposes the factory registry the manager builds adapters from.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// SetDefaultStore installs the store used by tenants without a pin.
func (m *Manager) SetDefaultStore(store ComprehensiveStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultStore = store
}

// PinTenant routes every request for tenantID to store.
func (m *Manager) PinTenant(tenantID string, store ComprehensiveStore) error {
	if tenantID == "" {
		return validationErr("tenant id is required", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenantStores[tenantID] = store
	return nil
}

// UnpinTenant removes a pin; the tenant falls back to the default.
func (m *Manager) UnpinTenant(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tenantStores, tenantID)
}

// CreateAndPin builds an adapter from the registry and pins it in one
// step. The adapter is returned uninitialized.
func (m *Manager) CreateAndPin(tenantID string, storeType StoreType, config map[string]string) (ComprehensiveStore, error) {
	adapter, err := m.registry.CreateStore(storeType, config)
	if err != nil {
		return nil, err
	}
	if err := m.PinTenant(tenantID, adapter); err != nil {
		return nil, err
	}
	return adapter, nil
}

// GetStore resolves the store serving tenant. Missing default is a
// deployment error, reported as Validation.
func (m *Manager) GetStore(ctx context.Context, tenant *models.TenantContext) (ComprehensiveStore, error) {
	if err := tenant.Validate(); err != nil {
		return nil, validationErr("invalid tenant context", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if pinned, ok := m.tenantStores[tenant.TenantID]; ok {
		return pinned, nil
	}
	if m.defaultStore == nil {
		return nil, validationErr("no store configured for tenant "+tenant.TenantID, nil)
	}
	return m.defaultStore, nil
}

type managedStore struct {
	label string
	store ComprehensiveStore
}

// stores lists every distinct held store, default first, keyed by a
// stable label for lifecycle reporting.
func (m *Manager) stores() []managedStore {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []managedStore
	seen := make(map[ComprehensiveStore]bool)
	if m.defaultStore != nil {
		all = append(all, managedStore{"default", m.defaultStore})
		seen[m.defaultStore] = true
	}
	for tenantID, store := range m.tenantStores {
		if seen[store] {
			continue
		}
		seen[store] = true
		all = append(all, managedStore{"tenant:" + tenantID, store})
	}
	return all
}

// InitializeAll brings up every held store and joins the failures.
func (m *Manager) InitializeAll(ctx context.Context) error {
	var errs []error
	for _, entry := range m.stores() {
		if err := entry.store.Initialize(ctx); err != nil {
			errs = append(errs, internalErr("initializing "+entry.label+" store", err))
		}
	}
	return errors.Join(errs...)
}

// HealthCheckAll probes every held store and reports per-store status.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]bool {
	statuses := make(map[string]bool)
	for _, entry := range m.stores() {
		statuses[entry.label] = entry.store.HealthCheck(ctx)
	}
	return statuses
}

// CloseAll shuts down every held store and joins the failures.
func (m *Manager) CloseAll(ctx context.Context) error {
	var errs []error
	for _, entry := range m.stores() {
		if err := entry.store.Close(ctx); err != nil {
			errs = append(errs, internalErr("closing "+entry.label+" store", err))
		}
	}
	return errors.Join(errs...)
}
