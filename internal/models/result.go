package models

import (
	"fmt"
	"time"
)

// IOCResult is the persisted analysis output for one indicator.
// At most one exists per (tenant, IOCID).
type IOCResult struct {
	IOCID               string    `json:"ioc_id" bson:"_id"`
	DetectionVerdict    string    `json:"detection_verdict" bson:"detection_verdict"`
	IntelligenceSummary string    `json:"intelligence_summary,omitempty" bson:"intelligence_summary,omitempty"`
	AnalysisSummary     string    `json:"analysis_summary,omitempty" bson:"analysis_summary,omitempty"`
	ProcessingTimestamp time.Time `json:"processing_timestamp" bson:"processing_timestamp"`
}

// Validate checks the invariants every store enforces before a write.
func (r *IOCResult) Validate() error {
	if r.IOCID == "" {
		return fmt.Errorf("result ioc_id is required")
	}
	return nil
}

// EnrichedIOC is an indicator augmented with per-provider enrichment payloads.
// Keyed by the base indicator's id within a tenant.
type EnrichedIOC struct {
	IOC                  IOC                       `json:"ioc" bson:"ioc"`
	EnrichmentData       map[string]map[string]any `json:"enrichment_data,omitempty" bson:"enrichment_data,omitempty"`
	EnrichmentSources    []string                  `json:"enrichment_sources,omitempty" bson:"enrichment_sources,omitempty"`
	EnrichmentConfidence float64                   `json:"enrichment_confidence" bson:"enrichment_confidence"`
	EnrichedAt           time.Time                 `json:"enriched_at" bson:"enriched_at"`
}

// Validate checks the invariants every store enforces before a write.
func (e *EnrichedIOC) Validate() error {
	if e.IOC.ID == "" {
		return fmt.Errorf("enriched ioc id is required")
	}
	if e.EnrichmentConfidence < 0.0 || e.EnrichmentConfidence > 1.0 {
		return fmt.Errorf("enrichment confidence %v outside [0.0, 1.0]", e.EnrichmentConfidence)
	}
	return nil
}
