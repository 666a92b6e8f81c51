package model

import "time"

// BatchStatus mirrors the coarse pipeline stage of a batch. It is advisory:
// derived from lead statuses, safe to lag, and recomputable at any time.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusEnriching  BatchStatus = "enriching"
	BatchStatusEnriched   BatchStatus = "enriched"
	BatchStatusQualifying BatchStatus = "qualifying"
	BatchStatusQualified  BatchStatus = "qualified"
	BatchStatusExported   BatchStatus = "exported"
	BatchStatusFailed     BatchStatus = "failed"
)

// Batch groups leads created from one ingestion event.
type Batch struct {
	ID          string      `json:"id"`
	ClientID    string      `json:"client_id"`
	Name        string      `json:"name,omitempty"`
	Status      BatchStatus `json:"status"`
	Counts      BatchCounts `json:"counts"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// BatchCounts holds aggregate lead counters. Updates are absolute writes
// recomputed from lead rows, never concurrent increments.
type BatchCounts struct {
	Total     int `json:"total"`
	Enriched  int `json:"enriched"`
	Qualified int `json:"qualified"`
	Exported  int `json:"exported"`
	Failed    int `json:"failed"`
}
