// Package models defines the domain objects persisted by the IOC data stores.
package models

import (
	"fmt"
	"strings"
	"time"
)

// IOCType classifies the observable an indicator describes.
type IOCType string

const (
	IOCTypeIPAddress   IOCType = "ip_address"
	IOCTypeDomain      IOCType = "domain"
	IOCTypeURL         IOCType = "url"
	IOCTypeHash        IOCType = "hash" // MD5, SHA1, SHA256, SHA512
	IOCTypeEmail       IOCType = "email"
	IOCTypeFilePath    IOCType = "file_path"
	IOCTypeRegistryKey IOCType = "registry_key"
	IOCTypeMutex       IOCType = "mutex"
	IOCTypeUserAgent   IOCType = "user_agent"
	IOCTypeCertificate IOCType = "certificate"
	IOCTypeASN         IOCType = "asn"
	IOCTypeCVE         IOCType = "cve"
)

// customTypePrefix marks operator-defined indicator types, e.g. "custom:ja3".
const customTypePrefix = "custom:"

// CustomIOCType builds an operator-defined indicator type from a label.
func CustomIOCType(label string) IOCType {
	return IOCType(customTypePrefix + label)
}

// CustomLabel returns the label of a custom type and whether t is one.
func (t IOCType) CustomLabel() (string, bool) {
	if strings.HasPrefix(string(t), customTypePrefix) {
		return strings.TrimPrefix(string(t), customTypePrefix), true
	}
	return "", false
}

// AllIOCTypes lists every built-in indicator type.
var AllIOCTypes = []IOCType{
	IOCTypeIPAddress, IOCTypeDomain, IOCTypeURL, IOCTypeHash,
	IOCTypeEmail, IOCTypeFilePath, IOCTypeRegistryKey, IOCTypeMutex,
	IOCTypeUserAgent, IOCTypeCertificate, IOCTypeASN, IOCTypeCVE,
}

// IsValid reports whether t is a built-in type or a labelled custom type.
func (t IOCType) IsValid() bool {
	for _, valid := range AllIOCTypes {
		if t == valid {
			return true
		}
	}
	label, ok := t.CustomLabel()
	return ok && label != ""
}

// Severity ranks how dangerous an indicator is considered.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid reports whether s is one of the four known levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IOCContext carries enrichment-adjacent context embedded in the indicator itself.
type IOCContext struct {
	Geolocation       string            `json:"geolocation,omitempty" bson:"geolocation,omitempty"`
	ASN               string            `json:"asn,omitempty" bson:"asn,omitempty"`
	Category          string            `json:"category,omitempty" bson:"category,omitempty"`
	FirstSeen         *time.Time        `json:"first_seen,omitempty" bson:"first_seen,omitempty"`
	LastSeen          *time.Time        `json:"last_seen,omitempty" bson:"last_seen,omitempty"`
	RelatedIndicators []string          `json:"related_indicators,omitempty" bson:"related_indicators,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// IOC is an Indicator of Compromise, the root entity of the store.
// (tenant_id, ID) is globally unique; the caller's ID is authoritative.
type IOC struct {
	ID            string     `json:"id" bson:"_id"`
	IndicatorType IOCType    `json:"indicator_type" bson:"indicator_type"`
	Value         string     `json:"value" bson:"value"`
	Confidence    float64    `json:"confidence" bson:"confidence"`
	Severity      Severity   `json:"severity" bson:"severity"`
	Source        string     `json:"source,omitempty" bson:"source,omitempty"`
	Timestamp     time.Time  `json:"timestamp" bson:"timestamp"`
	Tags          []string   `json:"tags,omitempty" bson:"tags,omitempty"`
	Context       IOCContext `json:"context" bson:"context"`
	RawData       []byte     `json:"raw_data,omitempty" bson:"raw_data,omitempty"`
}

// Validate checks the invariants every store enforces before a write.
func (i *IOC) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("ioc id is required")
	}
	if i.Value == "" {
		return fmt.Errorf("ioc value is required")
	}
	if !i.IndicatorType.IsValid() {
		return fmt.Errorf("invalid indicator type: %q", i.IndicatorType)
	}
	if i.Confidence < 0.0 || i.Confidence > 1.0 {
		return fmt.Errorf("confidence %v outside [0.0, 1.0]", i.Confidence)
	}
	if !i.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %q", i.Severity)
	}
	return nil
}
