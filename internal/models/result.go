package models

import "encoding/json"

// BatchStatus is the outcome variant of one submitted batch.
type BatchStatus string

const (
	// BatchSubmitted means the API accepted the batch for async processing;
	// final results arrive at the webhook out-of-band.
	BatchSubmitted BatchStatus = "submitted"
	// BatchCompleted means the API returned the final payload inline.
	BatchCompleted BatchStatus = "completed"
	// BatchError means the exchange failed (transport error or non-success status).
	BatchError BatchStatus = "error"
)

// BatchResult records the outcome of exactly one batch. Created once, never mutated.
type BatchResult struct {
	Batch     int             `json:"batch"` // 1-based batch index
	Status    BatchStatus     `json:"status"`
	RequestID string          `json:"request_id,omitempty"` // set for submitted batches
	Data      json.RawMessage `json:"data,omitempty"`       // set for completed batches
	Error     string          `json:"error,omitempty"`      // set for errored batches
}

// RunSummary counts batch outcomes over one run.
// Invariant: Submitted + Completed + Errors == TotalBatches.
type RunSummary struct {
	TotalBatches int `json:"total_batches"`
	Submitted    int `json:"submitted"`
	Completed    int `json:"completed"`
	Errors       int `json:"errors"`
}
