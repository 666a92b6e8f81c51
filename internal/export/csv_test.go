package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-cli/internal/model"
	"github.com/sells-group/icp-cli/internal/store"
)

func newExportStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// seedQualified creates a batch with one qualified lead per entry. Scores are
// keyed by URL.
func seedQualified(t *testing.T, st store.Store, scores map[string]int) string {
	t.Helper()
	ctx := context.Background()

	batch, err := st.CreateBatch(ctx, "client-1", "export test")
	require.NoError(t, err)

	urls := make([]string, 0, len(scores))
	for u := range scores {
		urls = append(urls, u)
	}
	_, _, err = st.CreateLeads(ctx, "client-1", batch.ID, urls)
	require.NoError(t, err)

	leads, err := st.ListLeads(ctx, store.LeadFilter{BatchID: batch.ID})
	require.NoError(t, err)
	for _, l := range leads {
		require.NoError(t, st.MarkLeadEnriched(ctx, l.ID, model.EnrichedUpdate{
			Fields: model.ExtractedFields{
				Name:          "Lead " + l.LinkedInURL,
				Headline:      "headline",
				Company:       "Acme",
				Location:      "Denver",
				FollowerCount: 1200,
			},
			ScrapedAt: time.Now().UTC(),
		}))
		require.NoError(t, st.MarkLeadQualified(ctx, l.ID, scores[l.LinkedInURL], "Strong match"))
	}
	return batch.ID
}

func TestWriteCSV(t *testing.T) {
	st := newExportStore(t)
	ctx := context.Background()

	batchID := seedQualified(t, st, map[string]int{
		"https://www.linkedin.com/in/low":  42,
		"https://www.linkedin.com/in/high": 91,
		"https://www.linkedin.com/in/mid":  67,
	})

	var buf bytes.Buffer
	e := NewExporter(st)
	n, err := e.WriteCSV(ctx, &buf, batchID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{
		"Name", "Profile URL", "Headline", "Company", "Location",
		"Followers", "ICP Score", "Match Reasoning",
	}, records[0])

	// Rows come out highest score first.
	assert.Equal(t, "https://www.linkedin.com/in/high", records[1][1])
	assert.Equal(t, "91", records[1][6])
	assert.Equal(t, "https://www.linkedin.com/in/mid", records[2][1])
	assert.Equal(t, "https://www.linkedin.com/in/low", records[3][1])
	assert.Equal(t, "1200", records[1][5])
	assert.Equal(t, "Strong match", records[1][7])

	// Export marks every included lead and the batch.
	exported, err := st.ListLeads(ctx, store.LeadFilter{BatchID: batchID, Status: model.LeadStatusExported})
	require.NoError(t, err)
	assert.Len(t, exported, 3)

	batch, err := st.GetBatch(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusExported, batch.Status)
	assert.Equal(t, 3, batch.Counts.Exported)
}

func TestWriteCSVMinScore(t *testing.T) {
	st := newExportStore(t)
	ctx := context.Background()

	batchID := seedQualified(t, st, map[string]int{
		"https://www.linkedin.com/in/low":  42,
		"https://www.linkedin.com/in/high": 91,
	})

	var buf bytes.Buffer
	n, err := NewExporter(st).WriteCSV(ctx, &buf, batchID, 60)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "https://www.linkedin.com/in/high", records[1][1])

	// The filtered-out lead keeps its qualified status.
	remaining, err := st.ListLeads(ctx, store.LeadFilter{BatchID: batchID, Status: model.LeadStatusQualified})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "https://www.linkedin.com/in/low", remaining[0].LinkedInURL)
}

func TestWriteCSVNoQualifiedLeads(t *testing.T) {
	st := newExportStore(t)
	ctx := context.Background()

	batch, err := st.CreateBatch(ctx, "client-1", "")
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = NewExporter(st).WriteCSV(ctx, &buf, batch.ID, 0)
	require.ErrorIs(t, err, ErrNoQualifiedLeads)
	assert.Zero(t, buf.Len())
}

func TestWriteCSVUnknownBatch(t *testing.T) {
	st := newExportStore(t)
	var buf bytes.Buffer
	_, err := NewExporter(st).WriteCSV(context.Background(), &buf, "nope", 0)
	require.Error(t, err)
}
