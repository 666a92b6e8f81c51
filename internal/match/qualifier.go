package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/model"
	"github.com/sells-group/icp-cli/internal/store"
)

// ErrNoCriteria is returned when qualification is attempted against an ICP
// with every criteria list empty. Proceeding would silently produce
// meaningless scores for every lead.
var ErrNoCriteria = eris.New("icp has no criteria defined")

// Counts summarizes one qualify run. Processed distinguishes "nothing to do"
// from "everything failed".
type Counts struct {
	Processed int
	Qualified int
	Failed    int
}

// Qualifier scores a batch's enriched leads against an ICP and persists the
// results.
type Qualifier struct {
	store    store.Store
	embedder Embedder
	ranker   Ranker
	reranker Reranker
	topN     int
}

// NewQualifier wires a Qualifier. topN caps how many documents the reranker
// scores; zero means all.
func NewQualifier(st store.Store, embedder Embedder, ranker Ranker, reranker Reranker, topN int) *Qualifier {
	return &Qualifier{store: st, embedder: embedder, ranker: ranker, reranker: reranker, topN: topN}
}

// QualifyBatch scores every enriched lead in the batch. Scoring itself never
// fails a lead; only a persistence error does, and it never aborts the rest
// of the batch.
func (q *Qualifier) QualifyBatch(ctx context.Context, batchID string, icp model.ClientICP) (*Counts, error) {
	if !icp.HasCriteria() {
		return nil, ErrNoCriteria
	}

	icpText := ICPText(icp)
	icpVec, err := q.embedder.Embed(ctx, icpText)
	if err != nil {
		return nil, eris.Wrap(err, "qualify: embed icp")
	}
	if len(icpVec) == 0 {
		return nil, eris.New("qualify: icp embedding unavailable")
	}

	leads, err := q.store.ListLeads(ctx, store.LeadFilter{
		BatchID: batchID,
		Status:  model.LeadStatusEnriched,
	})
	if err != nil {
		return nil, eris.Wrap(err, "qualify: list enriched leads")
	}
	if len(leads) == 0 {
		return &Counts{}, nil
	}

	if err := q.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusQualifying); err != nil {
		return nil, err
	}

	byID := make(map[string]model.Lead, len(leads))
	for _, l := range leads {
		byID[l.ID] = l
	}

	ranked, err := q.ranker.Rank(ctx, icpVec, batchID, leads)
	if err != nil {
		return nil, eris.Wrap(err, "qualify: rank leads")
	}

	rerankScores := q.rerankScores(ctx, icpText, ranked, byID)

	counts := &Counts{Processed: len(ranked)}
	for _, r := range ranked {
		lead, ok := byID[r.LeadID]
		if !ok {
			continue
		}

		score, scored := rerankScores[r.LeadID]
		if !scored {
			sim := 0.0
			if r.HasSimilarity {
				sim = r.Similarity
			}
			score = SimilarityScore(sim)
		}

		reasoning := matchReasoning(score, lead)
		if err := q.store.MarkLeadQualified(ctx, r.LeadID, score, reasoning); err != nil {
			zap.L().Error("failed to persist qualification",
				zap.String("lead_id", r.LeadID), zap.Error(err))
			if failErr := q.store.MarkLeadFailed(ctx, r.LeadID, "qualification persistence failed: "+err.Error()); failErr != nil {
				zap.L().Error("failed to mark lead failed", zap.String("lead_id", r.LeadID), zap.Error(failErr))
			}
			counts.Failed++
			continue
		}
		counts.Qualified++
	}

	if _, err := q.store.RecomputeBatchCounts(ctx, batchID); err != nil {
		zap.L().Warn("failed to recompute batch counts", zap.String("batch_id", batchID), zap.Error(err))
	}
	if err := q.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusQualified); err != nil {
		zap.L().Warn("failed to update batch status", zap.String("batch_id", batchID), zap.Error(err))
	}
	return counts, nil
}

// RequalifyBatch resets already-qualified leads back to enriched and runs the
// full flow again. Used when ICP criteria change.
func (q *Qualifier) RequalifyBatch(ctx context.Context, batchID string, icp model.ClientICP) (*Counts, error) {
	if !icp.HasCriteria() {
		return nil, ErrNoCriteria
	}

	n, err := q.store.ResetQualifiedLeads(ctx, batchID)
	if err != nil {
		return nil, eris.Wrap(err, "requalify: reset qualified leads")
	}
	zap.L().Info("reset qualified leads for re-qualification",
		zap.String("batch_id", batchID), zap.Int("reset", n))

	return q.QualifyBatch(ctx, batchID, icp)
}

// rerankScores calls the reranker once for the whole batch and returns final
// normalized scores keyed by lead ID. Any reranker failure degrades to the
// similarity path (empty map).
func (q *Qualifier) rerankScores(ctx context.Context, icpText string, ranked []RankedLead, byID map[string]model.Lead) map[string]int {
	if q.reranker == nil || len(ranked) == 0 {
		return nil
	}

	leadIDs := make([]string, 0, len(ranked))
	docs := make([]string, 0, len(ranked))
	for _, r := range ranked {
		lead, ok := byID[r.LeadID]
		if !ok {
			continue
		}
		leadIDs = append(leadIDs, r.LeadID)
		docs = append(docs, ProfileText(lead))
	}

	results, err := q.reranker.Rerank(ctx, icpText, docs, q.topN)
	if err != nil {
		zap.L().Warn("rerank failed, falling back to similarity scoring",
			zap.String("backend", q.reranker.Name()), zap.Error(err))
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	raw := make([]float64, len(results))
	for i, res := range results {
		raw[i] = res.Score
	}
	normalized := NormalizeRerankScores(raw)

	scores := make(map[string]int, len(results))
	for i, res := range results {
		if res.Index < 0 || res.Index >= len(leadIDs) {
			continue
		}
		scores[leadIDs[res.Index]] = normalized[i]
	}
	return scores
}

// matchReasoning builds the short templated reasoning string, tiered by
// score.
func matchReasoning(score int, lead model.Lead) string {
	var tier string
	switch {
	case score >= 80:
		tier = "Strong match"
	case score >= 60:
		tier = "Good match"
	case score >= 40:
		tier = "Moderate match"
	default:
		tier = "Low match"
	}

	var detail []string
	if len(lead.CurrentJobTitles) > 0 {
		detail = append(detail, strings.Join(lead.CurrentJobTitles, ", "))
	}
	if lead.Company != "" {
		detail = append(detail, "at "+lead.Company)
	}
	if lead.Industry != "" {
		detail = append(detail, "("+lead.Industry+")")
	}

	if len(detail) == 0 {
		return fmt.Sprintf("%s: scored %d/100 against the target criteria.", tier, score)
	}
	return fmt.Sprintf("%s: %s; scored %d/100 against the target criteria.", tier, strings.Join(detail, " "), score)
}
