package models

import (
	"fmt"
	"time"
)

// Correlation asserts a relationship between two or more indicators.
// References to indicator ids are soft: deleting an IOC never cascades here.
type Correlation struct {
	ID              string    `json:"id" bson:"_id"`
	CorrelatedIOCs  []string  `json:"correlated_iocs" bson:"correlated_iocs"`
	CorrelationType string    `json:"correlation_type" bson:"correlation_type"`
	Strength        float64   `json:"strength" bson:"strength"`
	Evidence        []string  `json:"evidence,omitempty" bson:"evidence,omitempty"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
}

// Validate checks the invariants every store enforces before a write.
func (c *Correlation) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("correlation id is required")
	}
	if len(c.CorrelatedIOCs) < 2 {
		return fmt.Errorf("correlation needs at least 2 iocs, got %d", len(c.CorrelatedIOCs))
	}
	if c.Strength < 0.0 || c.Strength > 1.0 {
		return fmt.Errorf("strength %v outside [0.0, 1.0]", c.Strength)
	}
	return nil
}

// Mentions reports whether the correlation references the given indicator id.
func (c *Correlation) Mentions(iocID string) bool {
	for _, id := range c.CorrelatedIOCs {
		if id == iocID {
			return true
		}
	}
	return false
}
