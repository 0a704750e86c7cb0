package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

func TestMemoryStore_Conformance(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Initialize(context.Background()))
	runStoreConformance(t, s)
}

func TestMemoryStore_Capabilities(t *testing.T) {
	s := NewMemoryStore()

	assert.Equal(t, StoreTypeMemory, s.StoreType())
	assert.True(t, s.SupportsMultiTenancy())
	assert.False(t, s.SupportsFullTextSearch())
	assert.False(t, s.SupportsTransactions())
	assert.True(t, s.SupportsBulkOperations())
	assert.Zero(t, s.MaxBatchSize())
}

func TestMemoryStore_ClosedStoreRejectsOperations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Initialize(ctx))
	tenant := models.NewTenantContext("tenant-a")

	require.NoError(t, s.Close(ctx))
	assert.False(t, s.HealthCheck(ctx))

	_, err := s.StoreIOC(ctx, testIOC("after-close"), tenant)
	assert.Equal(t, KindConnection, Kind(err))

	// Initialize reopens.
	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.HealthCheck(ctx))
	_, err = s.StoreIOC(ctx, testIOC("after-reopen"), tenant)
	assert.NoError(t, err)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenant := models.NewTenantContext("tenant-a")

	in := testIOC("copy.example.com")
	_, err := s.StoreIOC(ctx, in, tenant)
	require.NoError(t, err)

	// Mutating the caller's struct after the write changes nothing.
	in.Value = "mutated-after-store"
	out, err := s.GetIOC(ctx, in.ID, tenant)
	require.NoError(t, err)
	assert.Equal(t, "copy.example.com", out.Value)

	// Mutating a read result leaves the stored record intact.
	out.Confidence = 0.01
	again, err := s.GetIOC(ctx, in.ID, tenant)
	require.NoError(t, err)
	assert.Equal(t, 0.8, again.Confidence)
}

func TestMemoryStore_ConcurrentWritesAcrossTenants(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const tenants = 8
	const perTenant = 25

	var wg sync.WaitGroup
	for i := 0; i < tenants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tenant := models.NewTenantContext(fmt.Sprintf("tenant-%d", n))
			for j := 0; j < perTenant; j++ {
				ioc := testIOC(fmt.Sprintf("host-%d-%d.example.com", n, j))
				if _, err := s.StoreIOC(ctx, ioc, tenant); err != nil {
					t.Errorf("store failed for %s: %v", tenant.TenantID, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < tenants; i++ {
		tenant := models.NewTenantContext(fmt.Sprintf("tenant-%d", i))
		count, err := s.GetIOCCount(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(perTenant), count)
	}
}

func TestMemoryStore_MetricsCountFailures(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenant := models.NewTenantContext("tenant-a")

	_, err := s.StoreIOC(ctx, testIOC("ok.example.com"), tenant)
	require.NoError(t, err)

	bad := testIOC("bad.example.com")
	bad.Severity = "apocalyptic"
	_, err = s.StoreIOC(ctx, bad, tenant)
	require.Error(t, err)

	metrics, err := s.GetMetrics(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(2), metrics.TotalOperations)
	assert.Equal(t, int64(1), metrics.SuccessfulOperations)
	assert.Equal(t, int64(1), metrics.FailedOperations)
}

func TestMemoryStore_CorrelationScopedToTenant(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	tenantA := models.NewTenantContext("tenant-a")
	tenantB := models.NewTenantContext("tenant-b")

	first := testIOC("corr-a1.example.com")
	second := testIOC("corr-a2.example.com")
	_, err := s.StoreIOC(ctx, first, tenantA)
	require.NoError(t, err)
	_, err = s.StoreIOC(ctx, second, tenantA)
	require.NoError(t, err)

	// Tenant B cannot correlate against tenant A's indicators.
	corr := &models.Correlation{
		ID:              uuid.NewString(),
		CorrelatedIOCs:  []string{first.ID, second.ID},
		CorrelationType: "infrastructure",
		Strength:        0.5,
	}
	_, err = s.StoreCorrelation(ctx, corr, tenantB)
	assert.Equal(t, KindValidation, Kind(err))

	_, err = s.StoreCorrelation(ctx, corr, tenantA)
	require.NoError(t, err)

	found, err := s.GetCorrelations(ctx, first.ID, tenantB)
	require.NoError(t, err)
	assert.Empty(t, found)
}
