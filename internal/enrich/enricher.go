// Package enrich turns discovered leads into enriched ones: scrape the
// profile, extract structured fields, embed, classify, persist.
package enrich

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/linkedin"
	"github.com/sells-group/icp-cli/internal/match"
	"github.com/sells-group/icp-cli/internal/model"
	"github.com/sells-group/icp-cli/internal/scrape"
	"github.com/sells-group/icp-cli/internal/store"
)

// DefaultMaxRetries caps how many times a failed lead may be re-enriched.
const DefaultMaxRetries = 3

// Scraper is the slice of the batch executor the enricher needs.
type Scraper interface {
	Scrape(ctx context.Context, urls []string) (map[string]scrape.Result, error)
}

// Classifier assigns industry and company-type labels from extracted fields.
type Classifier interface {
	Classify(ctx context.Context, fields model.ExtractedFields, profile map[string]any) (*model.Classification, error)
}

// Counts summarizes one enrichment run. FromCache leads are enriched too;
// the split only reports how many never reached the provider.
type Counts struct {
	Enriched  int `json:"enriched"`
	FromCache int `json:"from_cache"`
	Failed    int `json:"failed"`
}

// Enricher orchestrates the per-batch enrichment flow. Embedder and
// classifier are optional: a nil collaborator simply leaves its fields unset.
type Enricher struct {
	store      store.Store
	scraper    Scraper
	embedder   match.Embedder
	classifier Classifier
	maxRetries int
}

func NewEnricher(st store.Store, scraper Scraper, embedder match.Embedder, classifier Classifier) *Enricher {
	return &Enricher{
		store:      st,
		scraper:    scraper,
		embedder:   embedder,
		classifier: classifier,
		maxRetries: DefaultMaxRetries,
	}
}

// CreateLeadsFromURLs normalizes the URLs and inserts one lead per URL the
// client does not already have. Blank entries count as duplicates rather
// than silently vanishing from the totals.
func (e *Enricher) CreateLeadsFromURLs(ctx context.Context, clientID, batchID string, urls []string) (created, duplicates int, err error) {
	var normalized []string
	skipped := 0
	for _, raw := range urls {
		u := linkedin.NormalizeURL(raw)
		if u == "" {
			skipped++
			continue
		}
		normalized = append(normalized, u)
	}

	created, duplicates, err = e.store.CreateLeads(ctx, clientID, batchID, normalized)
	if err != nil {
		return 0, 0, eris.Wrap(err, "enrich: create leads")
	}
	duplicates += skipped

	if _, err := e.store.RecomputeBatchCounts(ctx, batchID); err != nil {
		zap.L().Warn("failed to recompute batch counts", zap.String("batch_id", batchID), zap.Error(err))
	}
	return created, duplicates, nil
}

// EnrichBatch scrapes and enriches every discovered lead in the batch, up to
// limit when positive. Scoring problems never abort the batch; only a scrape
// submission failure does.
func (e *Enricher) EnrichBatch(ctx context.Context, batchID string, limit int) (*Counts, error) {
	leads, err := e.store.ListLeads(ctx, store.LeadFilter{
		BatchID: batchID,
		Status:  model.LeadStatusDiscovered,
		Limit:   limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list discovered leads")
	}
	if len(leads) == 0 {
		return &Counts{}, nil
	}

	if err := e.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusEnriching); err != nil {
		return nil, err
	}

	urls := make([]string, len(leads))
	for i, l := range leads {
		urls[i] = l.LinkedInURL
	}

	zap.L().Info("enriching batch",
		zap.String("batch_id", batchID), zap.Int("leads", len(leads)))

	results, err := e.scraper.Scrape(ctx, urls)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: scrape batch")
	}

	counts := &Counts{}
	for _, lead := range leads {
		res, ok := results[lead.LinkedInURL]
		if !ok {
			res = scrape.Result{URL: lead.LinkedInURL, Err: eris.Errorf("no data returned for %s", lead.LinkedInURL)}
		}

		if res.Err != nil {
			if err := e.store.MarkLeadFailed(ctx, lead.ID, res.Err.Error()); err != nil {
				zap.L().Error("failed to mark lead failed",
					zap.String("lead_id", lead.ID), zap.Error(err))
			}
			counts.Failed++
			continue
		}

		if err := e.enrichLead(ctx, lead, res); err != nil {
			if failErr := e.store.MarkLeadFailed(ctx, lead.ID, err.Error()); failErr != nil {
				zap.L().Error("failed to mark lead failed",
					zap.String("lead_id", lead.ID), zap.Error(failErr))
			}
			counts.Failed++
			continue
		}

		if res.FromCache {
			counts.FromCache++
		} else {
			counts.Enriched++
		}
	}

	if _, err := e.store.RecomputeBatchCounts(ctx, batchID); err != nil {
		zap.L().Warn("failed to recompute batch counts", zap.String("batch_id", batchID), zap.Error(err))
	}
	if err := e.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusEnriched); err != nil {
		zap.L().Warn("failed to update batch status", zap.String("batch_id", batchID), zap.Error(err))
	}

	zap.L().Info("batch enrichment complete",
		zap.String("batch_id", batchID),
		zap.Int("enriched", counts.Enriched),
		zap.Int("from_cache", counts.FromCache),
		zap.Int("failed", counts.Failed))
	return counts, nil
}

// RetryFailed resets failed leads still under the retry limit back to
// discovered and runs enrichment over them again.
func (e *Enricher) RetryFailed(ctx context.Context, batchID string) (*Counts, error) {
	n, err := e.store.ResetFailedLeads(ctx, batchID, e.maxRetries)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: reset failed leads")
	}
	zap.L().Info("retrying failed leads", zap.String("batch_id", batchID), zap.Int("reset", n))
	if n == 0 {
		return &Counts{}, nil
	}
	return e.EnrichBatch(ctx, batchID, 0)
}

// enrichLead persists one successful scrape result. Embedding and
// classification failures are non-fatal and leave those fields unset.
func (e *Enricher) enrichLead(ctx context.Context, lead model.Lead, res scrape.Result) error {
	raw, err := json.Marshal(res.Data)
	if err != nil {
		return eris.Wrap(err, "marshal profile data")
	}

	fields := linkedin.ExtractFields(res.Data)

	upd := model.EnrichedUpdate{
		ProfileData: raw,
		ProfileID:   res.ProfileID,
		Fields:      fields,
		ScrapedAt:   time.Now().UTC(),
	}
	if upd.ProfileID == "" {
		upd.ProfileID = linkedin.ProfileIDFrom(res.Data)
	}

	if e.embedder != nil {
		upd.Embedding = e.embedLead(ctx, lead, fields, raw)
	}
	if e.classifier != nil {
		cls, err := e.classifier.Classify(ctx, fields, res.Data)
		if err != nil {
			zap.L().Warn("classification failed, leaving fields unset",
				zap.String("lead_id", lead.ID), zap.Error(err))
		} else {
			upd.Classification = cls
		}
	}

	if err := e.store.MarkLeadEnriched(ctx, lead.ID, upd); err != nil {
		return eris.Wrap(err, "persist enriched lead")
	}
	return nil
}

// embedLead embeds the extracted fields through the same profile-text
// construction qualification uses, so stored vectors match query-time text.
func (e *Enricher) embedLead(ctx context.Context, lead model.Lead, fields model.ExtractedFields, raw json.RawMessage) []float32 {
	provisional := model.Lead{
		ID:               lead.ID,
		Name:             fields.Name,
		Headline:         fields.Headline,
		Company:          fields.Company,
		Location:         fields.Location,
		CurrentJobTitles: fields.CurrentJobTitles,
		ProfileData:      raw,
	}

	vec, err := e.embedder.Embed(ctx, match.ProfileText(provisional))
	if err != nil {
		zap.L().Warn("embedding failed, leaving vector unset",
			zap.String("lead_id", lead.ID), zap.Error(err))
		return nil
	}
	return vec
}
