package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validIOC() *IOC {
	return &IOC{
		ID:            uuid.NewString(),
		IndicatorType: IOCTypeIPAddress,
		Value:         "203.0.113.7",
		Confidence:    0.85,
		Severity:      SeverityHigh,
		Source:        "honeypot-3",
		Timestamp:     time.Now().UTC(),
		Tags:          []string{"botnet", "scanner"},
	}
}

func TestIOC_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*IOC)
		errMsg string
	}{
		{
			name:   "missing id",
			mutate: func(i *IOC) { i.ID = "" },
			errMsg: "id is required",
		},
		{
			name:   "missing value",
			mutate: func(i *IOC) { i.Value = "" },
			errMsg: "value is required",
		},
		{
			name:   "unknown type",
			mutate: func(i *IOC) { i.IndicatorType = "carrier_pigeon" },
			errMsg: "invalid indicator type",
		},
		{
			name:   "confidence above one",
			mutate: func(i *IOC) { i.Confidence = 1.2 },
			errMsg: "confidence",
		},
		{
			name:   "negative confidence",
			mutate: func(i *IOC) { i.Confidence = -0.1 },
			errMsg: "confidence",
		},
		{
			name:   "bad severity",
			mutate: func(i *IOC) { i.Severity = "catastrophic" },
			errMsg: "invalid severity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ioc := validIOC()
			tt.mutate(ioc)

			err := ioc.Validate()

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, validIOC().Validate())
}

func TestIOCType_CustomLabels(t *testing.T) {
	custom := CustomIOCType("ja3")
	assert.Equal(t, IOCType("custom:ja3"), custom)
	assert.True(t, custom.IsValid())

	label, ok := custom.CustomLabel()
	assert.True(t, ok)
	assert.Equal(t, "ja3", label)

	_, ok = IOCTypeDomain.CustomLabel()
	assert.False(t, ok)

	// A bare "custom:" prefix with no label is not a type.
	assert.False(t, IOCType("custom:").IsValid())

	for _, builtin := range AllIOCTypes {
		assert.True(t, builtin.IsValid(), "built-in %s should be valid", builtin)
	}
}

func TestCorrelation_Validate(t *testing.T) {
	corr := &Correlation{
		ID:              uuid.NewString(),
		CorrelatedIOCs:  []string{"a", "b"},
		CorrelationType: "campaign",
		Strength:        0.7,
		Timestamp:       time.Now().UTC(),
	}
	assert.NoError(t, corr.Validate())

	corr.CorrelatedIOCs = []string{"a"}
	err := corr.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2")

	corr.CorrelatedIOCs = []string{"a", "b"}
	corr.Strength = 1.5
	assert.Error(t, corr.Validate())

	corr.Strength = 0.7
	assert.True(t, corr.Mentions("b"))
	assert.False(t, corr.Mentions("c"))
}

func TestEnrichedIOC_Validate(t *testing.T) {
	enriched := &EnrichedIOC{
		IOC:                  *validIOC(),
		EnrichmentConfidence: 0.9,
		EnrichedAt:           time.Now().UTC(),
	}
	assert.NoError(t, enriched.Validate())

	enriched.EnrichmentConfidence = -0.2
	assert.Error(t, enriched.Validate())

	enriched.EnrichmentConfidence = 0.9
	enriched.IOC.ID = ""
	assert.Error(t, enriched.Validate())
}

func TestTenantContext_HasPermission(t *testing.T) {
	unrestricted := NewTenantContext("tenant-a")
	assert.True(t, unrestricted.HasPermission("ioc:read"))

	scoped := &TenantContext{TenantID: "tenant-a", Permissions: []string{"ioc:read"}}
	assert.True(t, scoped.HasPermission("ioc:read"))
	assert.False(t, scoped.HasPermission("ioc:write"))

	wildcard := &TenantContext{TenantID: "tenant-a", Permissions: []string{"*"}}
	assert.True(t, wildcard.HasPermission("ioc:write"))

	var missing *TenantContext
	assert.Error(t, missing.Validate())
	assert.Error(t, (&TenantContext{}).Validate())
}

func TestIOCSearchCriteria_Matches(t *testing.T) {
	ioc := validIOC()
	ioc.Value = "evil.example.com"
	ioc.IndicatorType = IOCTypeDomain
	ioc.Confidence = 0.6
	ioc.Tags = []string{"phishing", "apt"}

	domain := IOCTypeDomain
	hash := IOCTypeHash
	minHigh := 0.9
	minLow := 0.5
	past := ioc.Timestamp.Add(-time.Hour)
	future := ioc.Timestamp.Add(time.Hour)

	tests := []struct {
		name     string
		criteria *IOCSearchCriteria
		want     bool
	}{
		{"nil criteria matches", nil, true},
		{"empty criteria matches", &IOCSearchCriteria{}, true},
		{"type match", &IOCSearchCriteria{IndicatorType: &domain}, true},
		{"type mismatch", &IOCSearchCriteria{IndicatorType: &hash}, false},
		{"value pattern case-insensitive", &IOCSearchCriteria{ValuePattern: "EVIL.example"}, true},
		{"value pattern miss", &IOCSearchCriteria{ValuePattern: "benign"}, false},
		{"min confidence pass", &IOCSearchCriteria{MinConfidence: &minLow}, true},
		{"min confidence fail", &IOCSearchCriteria{MinConfidence: &minHigh}, false},
		{"tag subset", &IOCSearchCriteria{Tags: []string{"apt"}}, true},
		{"tag missing", &IOCSearchCriteria{Tags: []string{"apt", "ransomware"}}, false},
		{"created window", &IOCSearchCriteria{CreatedAfter: &past, CreatedBefore: &future}, true},
		{"created too early", &IOCSearchCriteria{CreatedAfter: &future}, false},
		{"source mismatch", &IOCSearchCriteria{Source: "osint-feed"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.criteria.Matches(ioc))
		})
	}
}

func TestPageOf(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := PageOf(items, 2, 0)
	assert.Equal(t, []int{1, 2}, page.Items)
	assert.Equal(t, 5, page.TotalCount)
	assert.True(t, page.HasMore)

	page = PageOf(items, 2, 4)
	assert.Equal(t, []int{5}, page.Items)
	assert.False(t, page.HasMore)

	// Offset past the end yields an empty page, not a panic.
	page = PageOf(items, 10, 99)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.TotalCount)
	assert.False(t, page.HasMore)
}

func TestBulkOperationResult_Recording(t *testing.T) {
	result := &BulkOperationResult{TotalRequested: 3}
	result.RecordSuccess()
	result.RecordSuccess()
	result.RecordFailure("bad-id")

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"bad-id"}, result.FailedIDs)
}
