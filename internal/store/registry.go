package store

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps store type tags to their factories. Instances are
// independent; nothing here is process-global, so tests can register
// stubs without leaking into each other.
type Registry struct {
	mu        sync.RWMutex
	factories map[StoreType]StoreFactory
}

// NewRegistry returns a registry with every built-in backend registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[StoreType]StoreFactory)}
	for _, f := range []StoreFactory{
		memoryFactory{},
		localFileFactory{},
		redisFactory{},
		postgresFactory{},
		mongoFactory{},
		elasticFactory{},
	} {
		r.factories[f.StoreType()] = f
	}
	return r
}

// Register adds or replaces the factory for its store type.
func (r *Registry) Register(factory StoreFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factory.StoreType()] = factory
}

// Factory returns the factory for storeType.
func (r *Registry) Factory(storeType StoreType) (StoreFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[storeType]
	if !ok {
		return nil, validationErr(fmt.Sprintf("unknown store type %q", storeType), nil)
	}
	return factory, nil
}

// Available lists the registered store types in stable order.
func (r *Registry) Available() []StoreType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]StoreType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// CreateStore validates config and builds an uninitialized adapter.
func (r *Registry) CreateStore(storeType StoreType, config map[string]string) (ComprehensiveStore, error) {
	factory, err := r.Factory(storeType)
	if err != nil {
		return nil, err
	}
	if err := factory.ValidateConfig(config); err != nil {
		return nil, err
	}
	return factory.CreateStore(config)
}
