package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

func TestManager_DispatchesPinnedBeforeDefault(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(nil)

	defaultStore := NewMemoryStore()
	pinnedStore := NewMemoryStore()
	manager.SetDefaultStore(defaultStore)
	require.NoError(t, manager.PinTenant("tenant-vip", pinnedStore))

	got, err := manager.GetStore(ctx, models.NewTenantContext("tenant-vip"))
	require.NoError(t, err)
	assert.Same(t, pinnedStore, got)

	got, err = manager.GetStore(ctx, models.NewTenantContext("tenant-other"))
	require.NoError(t, err)
	assert.Same(t, defaultStore, got)

	manager.UnpinTenant("tenant-vip")
	got, err = manager.GetStore(ctx, models.NewTenantContext("tenant-vip"))
	require.NoError(t, err)
	assert.Same(t, defaultStore, got)
}

func TestManager_NoDefaultConfigured(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(nil)

	_, err := manager.GetStore(ctx, models.NewTenantContext("tenant-a"))
	assert.Equal(t, KindValidation, Kind(err))

	_, err = manager.GetStore(ctx, &models.TenantContext{})
	assert.Equal(t, KindValidation, Kind(err))

	require.NoError(t, manager.PinTenant("tenant-a", NewMemoryStore()))
	_, err = manager.GetStore(ctx, models.NewTenantContext("tenant-a"))
	assert.NoError(t, err, "a pinned tenant works without a default")
}

func TestManager_CreateAndPin(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(NewRegistry())

	s, err := manager.CreateAndPin("tenant-a", StoreTypeMemory, nil)
	require.NoError(t, err)

	got, err := manager.GetStore(ctx, models.NewTenantContext("tenant-a"))
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = manager.CreateAndPin("tenant-b", "etcd", nil)
	assert.Equal(t, KindValidation, Kind(err))

	err = manager.PinTenant("", NewMemoryStore())
	assert.Equal(t, KindValidation, Kind(err))
}

func TestManager_LifecycleFansOut(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(nil)

	defaultStore := NewMemoryStore()
	pinnedStore := NewMemoryStore()
	manager.SetDefaultStore(defaultStore)
	require.NoError(t, manager.PinTenant("tenant-a", pinnedStore))

	require.NoError(t, manager.InitializeAll(ctx))

	statuses := manager.HealthCheckAll(ctx)
	assert.Equal(t, map[string]bool{
		"default":         true,
		"tenant:tenant-a": true,
	}, statuses)

	require.NoError(t, manager.CloseAll(ctx))
	statuses = manager.HealthCheckAll(ctx)
	assert.False(t, statuses["default"])
	assert.False(t, statuses["tenant:tenant-a"])
}

func TestManager_SharedStoreReportedOnce(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(nil)

	shared := NewMemoryStore()
	manager.SetDefaultStore(shared)
	require.NoError(t, manager.PinTenant("tenant-a", shared))

	statuses := manager.HealthCheckAll(ctx)
	assert.Len(t, statuses, 1)
	assert.True(t, statuses["default"])
}
