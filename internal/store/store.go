package store

import (
	"context"
	"time"

	"github.com/sells-group/icp-cli/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	ClientID string           `json:"client_id,omitempty"`
	BatchID  string           `json:"batch_id,omitempty"`
	Status   model.LeadStatus `json:"status,omitempty"`
	MinScore int              `json:"min_score,omitempty"`
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the qualification pipeline.
type Store interface {
	// Batches
	CreateBatch(ctx context.Context, clientID, name string) (*model.Batch, error)
	GetBatch(ctx context.Context, batchID string) (*model.Batch, error)
	ListBatches(ctx context.Context, clientID string) ([]model.Batch, error)
	UpdateBatchStatus(ctx context.Context, batchID string, status model.BatchStatus) error
	// RecomputeBatchCounts rebuilds the batch counters from lead rows. Counts
	// are always absolute writes derived from leads, never increments.
	RecomputeBatchCounts(ctx context.Context, batchID string) (*model.BatchCounts, error)

	// Leads
	// CreateLeads inserts one lead per URL, skipping URLs the client already
	// has. Returns how many were created and how many were duplicates.
	CreateLeads(ctx context.Context, clientID, batchID string, urls []string) (created, duplicates int, err error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	MarkLeadEnriched(ctx context.Context, id string, upd model.EnrichedUpdate) error
	MarkLeadQualified(ctx context.Context, id string, score int, reasoning string) error
	// MarkLeadFailed records the failure and bumps the lead's retry count.
	MarkLeadFailed(ctx context.Context, id string, errMsg string) error
	MarkLeadsExported(ctx context.Context, ids []string) error
	// ResetQualifiedLeads moves a batch's qualified leads back to enriched so
	// qualification can run again with fresh criteria.
	ResetQualifiedLeads(ctx context.Context, batchID string) (int, error)
	// ResetFailedLeads moves a batch's failed leads back to discovered so
	// enrichment can run again. Leads at or past maxRetries stay failed;
	// maxRetries <= 0 resets unconditionally.
	ResetFailedLeads(ctx context.Context, batchID string, maxRetries int) (int, error)

	// ICP criteria
	GetICP(ctx context.Context, clientID string) (*model.ClientICP, error)
	UpsertICP(ctx context.Context, icp model.ClientICP) error

	// Profile cache. Freshness is evaluated at read time: an entry older
	// than ttl is treated as absent but left in place until pruned.
	GetCachedProfile(ctx context.Context, linkedinURL string, ttl time.Duration) (*model.ProfileCacheEntry, error)
	PutCachedProfile(ctx context.Context, entry model.ProfileCacheEntry) error
	PruneProfileCache(ctx context.Context, ttl time.Duration) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
