// Package export writes qualified leads out as CSV and records the export.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/icp-cli/internal/model"
	"github.com/sells-group/icp-cli/internal/store"
)

// ErrNoQualifiedLeads is returned when the batch has nothing to export at the
// requested score threshold.
var ErrNoQualifiedLeads = eris.New("no qualified leads to export")

var csvHeader = []string{
	"Name",
	"Profile URL",
	"Headline",
	"Company",
	"Location",
	"Followers",
	"ICP Score",
	"Match Reasoning",
}

// Exporter writes a batch's qualified leads as CSV, highest score first, and
// marks both the leads and the batch exported.
type Exporter struct {
	store store.Store
}

func NewExporter(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// WriteCSV streams qualified leads at or above minScore to w and returns how
// many rows were written. minScore 0 exports every qualified lead.
func (e *Exporter) WriteCSV(ctx context.Context, w io.Writer, batchID string, minScore int) (int, error) {
	if _, err := e.store.GetBatch(ctx, batchID); err != nil {
		return 0, err
	}

	leads, err := e.store.ListLeads(ctx, store.LeadFilter{
		BatchID:  batchID,
		Status:   model.LeadStatusQualified,
		MinScore: minScore,
	})
	if err != nil {
		return 0, eris.Wrap(err, "export: list qualified leads")
	}
	if len(leads) == 0 {
		return 0, ErrNoQualifiedLeads
	}

	sort.SliceStable(leads, func(i, j int) bool {
		return scoreOf(leads[i]) > scoreOf(leads[j])
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, eris.Wrap(err, "export: write header")
	}
	for _, lead := range leads {
		if err := cw.Write(row(lead)); err != nil {
			return 0, eris.Wrapf(err, "export: write lead %s", lead.ID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, eris.Wrap(err, "export: flush csv")
	}

	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}
	if err := e.store.MarkLeadsExported(ctx, ids); err != nil {
		return len(leads), eris.Wrap(err, "export: mark leads exported")
	}

	if _, err := e.store.RecomputeBatchCounts(ctx, batchID); err != nil {
		zap.L().Warn("failed to recompute batch counts", zap.String("batch_id", batchID), zap.Error(err))
	}
	if err := e.store.UpdateBatchStatus(ctx, batchID, model.BatchStatusExported); err != nil {
		zap.L().Warn("failed to update batch status", zap.String("batch_id", batchID), zap.Error(err))
	}

	zap.L().Info("exported qualified leads",
		zap.String("batch_id", batchID), zap.Int("rows", len(leads)), zap.Int("min_score", minScore))
	return len(leads), nil
}

func row(lead model.Lead) []string {
	score := ""
	if lead.ICPScore != nil {
		score = strconv.Itoa(*lead.ICPScore)
	}
	followers := ""
	if lead.FollowerCount > 0 {
		followers = strconv.Itoa(lead.FollowerCount)
	}
	return []string{
		lead.Name,
		lead.LinkedInURL,
		lead.Headline,
		lead.Company,
		lead.Location,
		followers,
		score,
		lead.MatchReasoning,
	}
}

func scoreOf(lead model.Lead) int {
	if lead.ICPScore == nil {
		return -1
	}
	return *lead.ICPScore
}
