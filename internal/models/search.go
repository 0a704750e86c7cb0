package models

import (
	"strings"
	"time"
)

// Pagination defaults applied when criteria leave limit/offset unset.
const (
	DefaultSearchLimit  = 100
	DefaultSearchOffset = 0
)

// IOCSearchCriteria filters a tenant-scoped indicator search.
// Zero-valued fields are ignored.
type IOCSearchCriteria struct {
	IndicatorType *IOCType   `json:"indicator_type,omitempty"`
	ValuePattern  string     `json:"value_pattern,omitempty"`
	Source        string     `json:"source,omitempty"`
	MinConfidence *float64   `json:"min_confidence,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// EffectiveLimit returns the requested limit or the default.
func (c *IOCSearchCriteria) EffectiveLimit() int {
	if c == nil || c.Limit <= 0 {
		return DefaultSearchLimit
	}
	return c.Limit
}

// EffectiveOffset returns the requested offset or the default.
func (c *IOCSearchCriteria) EffectiveOffset() int {
	if c == nil || c.Offset <= 0 {
		return DefaultSearchOffset
	}
	return c.Offset
}

// Matches applies the criteria to a single indicator. Backends without a
// native query language filter with this; the SQL/document backends push
// the same predicates down to the engine.
func (c *IOCSearchCriteria) Matches(ioc *IOC) bool {
	if c == nil {
		return true
	}
	if c.IndicatorType != nil && ioc.IndicatorType != *c.IndicatorType {
		return false
	}
	if c.ValuePattern != "" && !containsFold(ioc.Value, c.ValuePattern) {
		return false
	}
	if c.Source != "" && ioc.Source != c.Source {
		return false
	}
	if c.MinConfidence != nil && ioc.Confidence < *c.MinConfidence {
		return false
	}
	if c.CreatedAfter != nil && ioc.Timestamp.Before(*c.CreatedAfter) {
		return false
	}
	if c.CreatedBefore != nil && ioc.Timestamp.After(*c.CreatedBefore) {
		return false
	}
	for _, want := range c.Tags {
		found := false
		for _, tag := range ioc.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SearchResults is one page of a tenant-scoped search.
type SearchResults[T any] struct {
	Items      []T  `json:"items"`
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// PageOf assembles a results page from an already-filtered match set.
func PageOf[T any](matches []T, limit, offset int) *SearchResults[T] {
	total := len(matches)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return &SearchResults[T]{
		Items:      matches[start:end],
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    end < total,
	}
}
