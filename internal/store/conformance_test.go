package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

func testIOC(value string) *models.IOC {
	return &models.IOC{
		ID:            uuid.NewString(),
		IndicatorType: models.IOCTypeIPAddress,
		Value:         value,
		Confidence:    0.8,
		Severity:      models.SeverityMedium,
		Source:        "unit-test",
		Timestamp:     time.Unix(1721470500, 0).UTC(),
		Tags:          []string{"test"},
	}
}

// runStoreConformance exercises the full contract against one adapter.
// Every backend, from the in-memory map to Elasticsearch, must pass it
// unchanged.
func runStoreConformance(t *testing.T, s ComprehensiveStore) {
	ctx := context.Background()
	tenantA := models.NewTenantContext("tenant-a-" + uuid.NewString())
	tenantB := models.NewTenantContext("tenant-b-" + uuid.NewString())

	t.Run("initialize is idempotent", func(t *testing.T) {
		in := testIOC("192.0.2.200")
		_, err := s.StoreIOC(ctx, in, tenantA)
		require.NoError(t, err)

		require.NoError(t, s.Initialize(ctx))

		out, err := s.GetIOC(ctx, in.ID, tenantA)
		require.NoError(t, err)
		require.NotNil(t, out, "re-initializing must not discard existing data")
		require.NoError(t, s.DeleteIOC(ctx, in.ID, tenantA))
	})

	t.Run("ioc round-trip", func(t *testing.T) {
		in := testIOC("198.51.100.23")
		id, err := s.StoreIOC(ctx, in, tenantA)
		require.NoError(t, err)
		assert.Equal(t, in.ID, id, "caller's id is authoritative")

		out, err := s.GetIOC(ctx, in.ID, tenantA)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, in.ID, out.ID)
		assert.Equal(t, in.Value, out.Value)
		assert.Equal(t, in.IndicatorType, out.IndicatorType)
		assert.Equal(t, in.Confidence, out.Confidence)
		assert.Equal(t, in.Severity, out.Severity)
		assert.Equal(t, in.Source, out.Source)
		assert.Equal(t, in.Tags, out.Tags)
		assert.True(t, in.Timestamp.Equal(out.Timestamp))
	})

	t.Run("get miss returns nil nil", func(t *testing.T) {
		out, err := s.GetIOC(ctx, uuid.NewString(), tenantA)
		assert.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("update replaces and misses report notfound", func(t *testing.T) {
		in := testIOC("update-target.example.org")
		in.IndicatorType = models.IOCTypeDomain
		_, err := s.StoreIOC(ctx, in, tenantA)
		require.NoError(t, err)

		in.Confidence = 0.99
		in.Severity = models.SeverityCritical
		require.NoError(t, s.UpdateIOC(ctx, in, tenantA))

		out, err := s.GetIOC(ctx, in.ID, tenantA)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, 0.99, out.Confidence)
		assert.Equal(t, models.SeverityCritical, out.Severity)

		ghost := testIOC("ghost.example.org")
		err = s.UpdateIOC(ctx, ghost, tenantA)
		assert.Equal(t, KindNotFound, Kind(err))
	})

	t.Run("delete and notfound on repeat", func(t *testing.T) {
		in := testIOC("192.0.2.200")
		_, err := s.StoreIOC(ctx, in, tenantA)
		require.NoError(t, err)

		require.NoError(t, s.DeleteIOC(ctx, in.ID, tenantA))

		out, err := s.GetIOC(ctx, in.ID, tenantA)
		assert.NoError(t, err)
		assert.Nil(t, out)

		err = s.DeleteIOC(ctx, in.ID, tenantA)
		assert.Equal(t, KindNotFound, Kind(err))
	})

	t.Run("tenant isolation", func(t *testing.T) {
		in := testIOC("10.0.0.99")
		_, err := s.StoreIOC(ctx, in, tenantA)
		require.NoError(t, err)

		out, err := s.GetIOC(ctx, in.ID, tenantB)
		assert.NoError(t, err)
		assert.Nil(t, out, "tenant B must not see tenant A's data")

		err = s.DeleteIOC(ctx, in.ID, tenantB)
		assert.Equal(t, KindNotFound, Kind(err))

		out, err = s.GetIOC(ctx, in.ID, tenantA)
		require.NoError(t, err)
		assert.NotNil(t, out, "isolation failures must not leak deletes")
	})

	t.Run("validation rejected before write", func(t *testing.T) {
		bad := testIOC("confidence-out-of-range")
		bad.Confidence = 42.0
		_, err := s.StoreIOC(ctx, bad, tenantA)
		assert.Equal(t, KindValidation, Kind(err))

		_, err = s.StoreIOC(ctx, testIOC("x"), &models.TenantContext{})
		assert.Equal(t, KindValidation, Kind(err))
	})

	t.Run("search filters and paginates", func(t *testing.T) {
		tenant := models.NewTenantContext("search-" + uuid.NewString())
		for i := 0; i < 5; i++ {
			ioc := testIOC(fmt.Sprintf("filter-me-%d.example.com", i))
			ioc.IndicatorType = models.IOCTypeDomain
			ioc.Confidence = 0.5 + float64(i)*0.1
			_, err := s.StoreIOC(ctx, ioc, tenant)
			require.NoError(t, err)
		}
		noise := testIOC("203.0.113.50")
		_, err := s.StoreIOC(ctx, noise, tenant)
		require.NoError(t, err)

		domain := models.IOCTypeDomain
		results, err := s.SearchIOCs(ctx, &models.IOCSearchCriteria{IndicatorType: &domain}, tenant)
		require.NoError(t, err)
		assert.Equal(t, 5, results.TotalCount)
		assert.Len(t, results.Items, 5)

		minConf := 0.75
		results, err = s.SearchIOCs(ctx, &models.IOCSearchCriteria{
			IndicatorType: &domain,
			MinConfidence: &minConf,
		}, tenant)
		require.NoError(t, err)
		assert.Equal(t, 2, results.TotalCount)

		page, err := s.SearchIOCs(ctx, &models.IOCSearchCriteria{
			IndicatorType: &domain,
			Limit:         2,
		}, tenant)
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 5, page.TotalCount)
		assert.True(t, page.HasMore)

		rest, err := s.SearchIOCs(ctx, &models.IOCSearchCriteria{
			IndicatorType: &domain,
			Limit:         3,
			Offset:        2,
		}, tenant)
		require.NoError(t, err)
		assert.Len(t, rest.Items, 3)
		assert.False(t, rest.HasMore)

		// Pages never overlap under the stable ordering.
		seen := map[string]bool{}
		for _, item := range page.Items {
			seen[item.ID] = true
		}
		for _, item := range rest.Items {
			assert.False(t, seen[item.ID], "page overlap on %s", item.ID)
		}
	})

	t.Run("count and list track writes", func(t *testing.T) {
		tenant := models.NewTenantContext("count-" + uuid.NewString())
		before, err := s.GetIOCCount(ctx, tenant)
		require.NoError(t, err)
		assert.Zero(t, before)

		stored := testIOC("count-me.example.com")
		_, err = s.StoreIOC(ctx, stored, tenant)
		require.NoError(t, err)

		after, err := s.GetIOCCount(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(1), after)

		ids, err := s.ListIOCIDs(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, []string{stored.ID}, ids)

		require.NoError(t, s.DeleteIOC(ctx, stored.ID, tenant))
		final, err := s.GetIOCCount(ctx, tenant)
		require.NoError(t, err)
		assert.Zero(t, final)
	})

	t.Run("bulk store reports partial failures", func(t *testing.T) {
		tenant := models.NewTenantContext("bulk-" + uuid.NewString())
		good1 := testIOC("bulk-1.example.com")
		bad := testIOC("bulk-bad.example.com")
		bad.Confidence = -1
		good2 := testIOC("bulk-2.example.com")

		result, err := s.BulkStoreIOCs(ctx, []*models.IOC{good1, bad, good2}, tenant)
		require.NoError(t, err)
		assert.Equal(t, 3, result.TotalRequested)
		assert.Equal(t, 2, result.Successful)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, []string{bad.ID}, result.FailedIDs)

		count, err := s.GetIOCCount(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("results one per ioc", func(t *testing.T) {
		base := testIOC("result-base.example.com")
		_, err := s.StoreIOC(ctx, base, tenantA)
		require.NoError(t, err)

		result := &models.IOCResult{
			IOCID:               base.ID,
			DetectionVerdict:    "malicious",
			IntelligenceSummary: "seen in phishing kit",
			ProcessingTimestamp: time.Unix(1721470600, 0).UTC(),
		}
		require.NoError(t, s.StoreResult(ctx, result, tenantA))

		// Replacement, not duplication.
		result.DetectionVerdict = "benign"
		require.NoError(t, s.StoreResult(ctx, result, tenantA))

		out, err := s.GetResult(ctx, base.ID, tenantA)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, "benign", out.DetectionVerdict)

		require.NoError(t, s.DeleteResult(ctx, base.ID, tenantA))
		missing, err := s.GetResult(ctx, base.ID, tenantA)
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("enriched keyed by base ioc", func(t *testing.T) {
		base := testIOC("enriched-base.example.com")
		_, err := s.StoreIOC(ctx, base, tenantA)
		require.NoError(t, err)

		enriched := &models.EnrichedIOC{
			IOC:                  *base,
			EnrichmentSources:    []string{"passive-dns", "whois"},
			EnrichmentConfidence: 0.75,
			EnrichedAt:           time.Unix(1721470700, 0).UTC(),
		}
		require.NoError(t, s.StoreEnrichedIOC(ctx, enriched, tenantA))

		out, err := s.GetEnrichedIOC(ctx, base.ID, tenantA)
		require.NoError(t, err)
		require.NotNil(t, out)
		assert.Equal(t, base.ID, out.IOC.ID)
		assert.Equal(t, []string{"passive-dns", "whois"}, out.EnrichmentSources)
		assert.Equal(t, 0.75, out.EnrichmentConfidence)

		require.NoError(t, s.DeleteEnrichedIOC(ctx, base.ID, tenantA))
		missing, err := s.GetEnrichedIOC(ctx, base.ID, tenantA)
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("correlations validate references and stay soft", func(t *testing.T) {
		tenant := models.NewTenantContext("corr-" + uuid.NewString())
		first := testIOC("corr-1.example.com")
		second := testIOC("corr-2.example.com")
		_, err := s.StoreIOC(ctx, first, tenant)
		require.NoError(t, err)
		_, err = s.StoreIOC(ctx, second, tenant)
		require.NoError(t, err)

		dangling := &models.Correlation{
			ID:              uuid.NewString(),
			CorrelatedIOCs:  []string{first.ID, uuid.NewString()},
			CorrelationType: "campaign",
			Strength:        0.6,
			Timestamp:       time.Unix(1721470800, 0).UTC(),
		}
		_, err = s.StoreCorrelation(ctx, dangling, tenant)
		assert.Equal(t, KindValidation, Kind(err), "unknown ioc reference must be rejected")

		corr := &models.Correlation{
			ID:              uuid.NewString(),
			CorrelatedIOCs:  []string{first.ID, second.ID},
			CorrelationType: "campaign",
			Strength:        0.6,
			Evidence:        []string{"shared registrar"},
			Timestamp:       time.Unix(1721470800, 0).UTC(),
		}
		id, err := s.StoreCorrelation(ctx, corr, tenant)
		require.NoError(t, err)
		assert.Equal(t, corr.ID, id)

		found, err := s.GetCorrelations(ctx, second.ID, tenant)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, corr.ID, found[0].ID)

		// Soft references: deleting an ioc leaves the correlation readable.
		require.NoError(t, s.DeleteIOC(ctx, first.ID, tenant))
		found, err = s.GetCorrelations(ctx, first.ID, tenant)
		require.NoError(t, err)
		assert.Len(t, found, 1)

		require.NoError(t, s.DeleteCorrelations(ctx, first.ID, tenant))
		err = s.DeleteCorrelations(ctx, first.ID, tenant)
		assert.Equal(t, KindNotFound, Kind(err))
	})

	t.Run("permissions gate reads", func(t *testing.T) {
		in := testIOC("perm.example.com")
		_, err := s.StoreIOC(ctx, in, tenantA)
		require.NoError(t, err)

		restricted := &models.TenantContext{
			TenantID:    tenantA.TenantID,
			Permissions: []string{"ioc:write"},
		}
		_, err = s.GetIOC(ctx, in.ID, restricted)
		assert.Equal(t, KindPermissionDenied, Kind(err))
	})

	t.Run("metrics snapshot populated", func(t *testing.T) {
		metrics, err := s.GetMetrics(ctx, tenantA)
		require.NoError(t, err)
		require.NotNil(t, metrics)
		assert.Greater(t, metrics.TotalOperations, int64(0))
		assert.False(t, metrics.LastCheck.IsZero())
	})
}
