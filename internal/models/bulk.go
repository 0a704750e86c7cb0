package models

import "time"

// BulkOperationResult summarises a best-effort batch write. Bulk operations
// never short-circuit: every item is attempted and failures are listed here.
type BulkOperationResult struct {
	TotalRequested int           `json:"total_requested"`
	Successful     int           `json:"successful"`
	Failed         int           `json:"failed"`
	FailedIDs      []string      `json:"failed_ids,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// RecordSuccess counts one stored item.
func (b *BulkOperationResult) RecordSuccess() {
	b.Successful++
}

// RecordFailure counts one failed item and remembers its id.
func (b *BulkOperationResult) RecordFailure(id string) {
	b.Failed++
	b.FailedIDs = append(b.FailedIDs, id)
}
