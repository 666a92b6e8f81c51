package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetBatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "march outreach")
		require.NoError(t, err)
		assert.NotEmpty(t, batch.ID)
		assert.Equal(t, model.BatchStatusPending, batch.Status)

		got, err := s.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, batch.ID, got.ID)
		assert.Equal(t, "client-1", got.ClientID)
		assert.Equal(t, "march outreach", got.Name)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("UpdateBatchStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)

		require.NoError(t, s.UpdateBatchStatus(ctx, batch.ID, model.BatchStatusEnriching))
		got, err := s.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BatchStatusEnriching, got.Status)
		assert.Nil(t, got.CompletedAt)

		require.NoError(t, s.UpdateBatchStatus(ctx, batch.ID, model.BatchStatusQualified))
		got, err = s.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("UpdateBatchStatusNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateBatchStatus(context.Background(), "nonexistent-id", model.BatchStatusEnriching)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("CreateLeadsAndDuplicates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)

		urls := []string{
			"https://www.linkedin.com/in/a",
			"https://www.linkedin.com/in/b",
			"https://www.linkedin.com/in/c",
		}
		created, dupes, err := s.CreateLeads(ctx, "client-1", batch.ID, urls)
		require.NoError(t, err)
		assert.Equal(t, 3, created)
		assert.Equal(t, 0, dupes)

		// Same client, overlapping URLs: only the new one lands.
		batch2, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		created, dupes, err = s.CreateLeads(ctx, "client-1", batch2.ID, []string{
			"https://www.linkedin.com/in/b",
			"https://www.linkedin.com/in/d",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, created)
		assert.Equal(t, 1, dupes)

		// A different client can hold the same URLs.
		batch3, err := s.CreateBatch(ctx, "client-2", "")
		require.NoError(t, err)
		created, dupes, err = s.CreateLeads(ctx, "client-2", batch3.ID, urls)
		require.NoError(t, err)
		assert.Equal(t, 3, created)
		assert.Equal(t, 0, dupes)
	})

	t.Run("LeadLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		_, _, err = s.CreateLeads(ctx, "client-1", batch.ID, []string{"https://www.linkedin.com/in/jane-doe"})
		require.NoError(t, err)

		leads, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID, Status: model.LeadStatusDiscovered})
		require.NoError(t, err)
		require.Len(t, leads, 1)
		lead := leads[0]

		scrapedAt := time.Now().UTC().Truncate(time.Second)
		err = s.MarkLeadEnriched(ctx, lead.ID, model.EnrichedUpdate{
			ProfileData: json.RawMessage(`{"firstName":"Jane","lastName":"Doe"}`),
			ProfileID:   "ACoAAA1234567890abcdefGHIJKLmno",
			Fields: model.ExtractedFields{
				Name:             "Jane Doe",
				Headline:         "VP Engineering at Acme",
				Company:          "Acme",
				Location:         "Denver, Colorado",
				FollowerCount:    1234,
				CurrentJobTitles: []string{"VP Engineering"},
			},
			Embedding: []float32{0.1, 0.2, 0.3},
			Classification: &model.Classification{
				Industry:          "Software & Technology",
				IndustryReasoning: "builds developer tools",
				CompanyType:       "scaleup",
				CompanyReasoning:  "series C, 200 employees",
			},
			ScrapedAt: scrapedAt,
		})
		require.NoError(t, err)

		got, err := s.GetLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusEnriched, got.Status)
		assert.Equal(t, "Jane Doe", got.Name)
		assert.Equal(t, "Acme", got.Company)
		assert.Equal(t, []string{"VP Engineering"}, got.CurrentJobTitles)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
		assert.Equal(t, "scaleup", got.CompanyType)
		assert.NotNil(t, got.ScrapedAt)
		assert.Nil(t, got.ICPScore)

		require.NoError(t, s.MarkLeadQualified(ctx, lead.ID, 78, "good match: title aligns with target roles"))
		got, err = s.GetLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusQualified, got.Status)
		require.NotNil(t, got.ICPScore)
		assert.Equal(t, 78, *got.ICPScore)
		assert.NotNil(t, got.QualifiedAt)

		require.NoError(t, s.MarkLeadsExported(ctx, []string{lead.ID}))
		got, err = s.GetLead(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusExported, got.Status)
	})

	t.Run("MarkLeadFailed", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		_, _, err = s.CreateLeads(ctx, "client-1", batch.ID, []string{"https://www.linkedin.com/in/a"})
		require.NoError(t, err)

		leads, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID})
		require.NoError(t, err)
		require.Len(t, leads, 1)

		require.NoError(t, s.MarkLeadFailed(ctx, leads[0].ID, "run failed: invalid input"))
		got, err := s.GetLead(ctx, leads[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusFailed, got.Status)
		assert.Equal(t, "run failed: invalid input", got.ErrorMessage)
		assert.Equal(t, 1, got.RetryCount)
	})

	t.Run("ResetFailedLeads", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		_, _, err = s.CreateLeads(ctx, "client-1", batch.ID, []string{
			"https://www.linkedin.com/in/a", "https://www.linkedin.com/in/b",
		})
		require.NoError(t, err)

		leads, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID})
		require.NoError(t, err)
		require.NoError(t, s.MarkLeadFailed(ctx, leads[0].ID, "timed out"))

		n, err := s.ResetFailedLeads(ctx, batch.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.GetLead(ctx, leads[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusDiscovered, got.Status)
		assert.Equal(t, 1, got.RetryCount)
		assert.Empty(t, got.ErrorMessage)
	})

	t.Run("ResetFailedLeadsHonorsRetryLimit", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		_, _, err = s.CreateLeads(ctx, "client-1", batch.ID, []string{"https://www.linkedin.com/in/a"})
		require.NoError(t, err)

		leads, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID})
		require.NoError(t, err)

		// First failure leaves retry_count under the limit, so the lead is
		// reset; the second failure reaches it and the lead stays failed.
		require.NoError(t, s.MarkLeadFailed(ctx, leads[0].ID, "timed out"))
		n, err := s.ResetFailedLeads(ctx, batch.ID, 2)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		require.NoError(t, s.MarkLeadFailed(ctx, leads[0].ID, "timed out"))
		n, err = s.ResetFailedLeads(ctx, batch.ID, 2)
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := s.GetLead(ctx, leads[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusFailed, got.Status)
		assert.Equal(t, 2, got.RetryCount)
	})

	t.Run("ResetQualifiedLeads", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		_, _, err = s.CreateLeads(ctx, "client-1", batch.ID, []string{"https://www.linkedin.com/in/a"})
		require.NoError(t, err)

		leads, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID})
		require.NoError(t, err)
		require.NoError(t, s.MarkLeadEnriched(ctx, leads[0].ID, model.EnrichedUpdate{
			ProfileData: json.RawMessage(`{}`), ScrapedAt: time.Now().UTC(),
		}))
		require.NoError(t, s.MarkLeadQualified(ctx, leads[0].ID, 90, "strong match"))

		n, err := s.ResetQualifiedLeads(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.GetLead(ctx, leads[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.LeadStatusEnriched, got.Status)
		assert.Nil(t, got.ICPScore)
		assert.Nil(t, got.QualifiedAt)
		assert.Empty(t, got.MatchReasoning)
	})

	t.Run("RecomputeBatchCounts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		_, _, err = s.CreateLeads(ctx, "client-1", batch.ID, []string{
			"https://www.linkedin.com/in/a",
			"https://www.linkedin.com/in/b",
			"https://www.linkedin.com/in/c",
		})
		require.NoError(t, err)

		leads, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID})
		require.NoError(t, err)
		require.Len(t, leads, 3)

		require.NoError(t, s.MarkLeadEnriched(ctx, leads[0].ID, model.EnrichedUpdate{
			ProfileData: json.RawMessage(`{}`), ScrapedAt: time.Now().UTC(),
		}))
		require.NoError(t, s.MarkLeadEnriched(ctx, leads[1].ID, model.EnrichedUpdate{
			ProfileData: json.RawMessage(`{}`), ScrapedAt: time.Now().UTC(),
		}))
		require.NoError(t, s.MarkLeadQualified(ctx, leads[1].ID, 70, "good match"))
		require.NoError(t, s.MarkLeadFailed(ctx, leads[2].ID, "timed out"))

		counts, err := s.RecomputeBatchCounts(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, counts.Total)
		assert.Equal(t, 2, counts.Enriched)
		assert.Equal(t, 1, counts.Qualified)
		assert.Equal(t, 0, counts.Exported)
		assert.Equal(t, 1, counts.Failed)

		got, err := s.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, *counts, got.Counts)
	})

	t.Run("ListLeadsMinScore", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		batch, err := s.CreateBatch(ctx, "client-1", "")
		require.NoError(t, err)
		_, _, err = s.CreateLeads(ctx, "client-1", batch.ID, []string{
			"https://www.linkedin.com/in/a", "https://www.linkedin.com/in/b",
		})
		require.NoError(t, err)

		leads, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID})
		require.NoError(t, err)
		require.NoError(t, s.MarkLeadEnriched(ctx, leads[0].ID, model.EnrichedUpdate{ProfileData: json.RawMessage(`{}`), ScrapedAt: time.Now().UTC()}))
		require.NoError(t, s.MarkLeadEnriched(ctx, leads[1].ID, model.EnrichedUpdate{ProfileData: json.RawMessage(`{}`), ScrapedAt: time.Now().UTC()}))
		require.NoError(t, s.MarkLeadQualified(ctx, leads[0].ID, 85, "strong match"))
		require.NoError(t, s.MarkLeadQualified(ctx, leads[1].ID, 40, "moderate match"))

		highScore, err := s.ListLeads(ctx, LeadFilter{BatchID: batch.ID, MinScore: 60})
		require.NoError(t, err)
		require.Len(t, highScore, 1)
		assert.Equal(t, leads[0].ID, highScore[0].ID)
	})

	t.Run("ICPUpsertAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		got, err := s.GetICP(ctx, "client-1")
		require.NoError(t, err)
		assert.Nil(t, got)

		icp := model.ClientICP{
			ClientID:         "client-1",
			TargetTitles:     []string{"CFO", "VP Finance"},
			TargetIndustries: []string{"Software & Technology"},
			CompanySizes:     []string{"scaleup"},
			TargetKeywords:   []string{"saas"},
		}
		require.NoError(t, s.UpsertICP(ctx, icp))

		got, err = s.GetICP(ctx, "client-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, icp.TargetTitles, got.TargetTitles)
		assert.True(t, got.HasCriteria())

		// Upsert replaces the criteria wholesale.
		icp.TargetTitles = []string{"CTO"}
		icp.TargetKeywords = nil
		require.NoError(t, s.UpsertICP(ctx, icp))

		got, err = s.GetICP(ctx, "client-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"CTO"}, got.TargetTitles)
		assert.Empty(t, got.TargetKeywords)
	})

	t.Run("ProfileCacheHitAndMiss", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ttl := 30 * 24 * time.Hour

		got, err := s.GetCachedProfile(ctx, "https://www.linkedin.com/in/jane-doe", ttl)
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, s.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: "https://www.linkedin.com/in/jane-doe",
			ProfileID:   "ACoAAA1234567890abcdefGHIJKLmno",
			ProfileData: json.RawMessage(`{"firstName":"Jane"}`),
			ScrapedAt:   time.Now().UTC(),
		}))

		got, err = s.GetCachedProfile(ctx, "https://www.linkedin.com/in/jane-doe", ttl)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "ACoAAA1234567890abcdefGHIJKLmno", got.ProfileID)
		assert.JSONEq(t, `{"firstName":"Jane"}`, string(got.ProfileData))
	})

	t.Run("ProfileCacheTTLBoundary", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ttl := 30 * 24 * time.Hour

		// Just inside the window.
		require.NoError(t, s.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: "https://www.linkedin.com/in/fresh",
			ProfileData: json.RawMessage(`{}`),
			ScrapedAt:   time.Now().UTC().Add(-ttl + time.Minute),
		}))
		got, err := s.GetCachedProfile(ctx, "https://www.linkedin.com/in/fresh", ttl)
		require.NoError(t, err)
		assert.NotNil(t, got)

		// Just outside the window: present in the table but treated as absent.
		require.NoError(t, s.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: "https://www.linkedin.com/in/stale",
			ProfileData: json.RawMessage(`{}`),
			ScrapedAt:   time.Now().UTC().Add(-ttl - time.Minute),
		}))
		got, err = s.GetCachedProfile(ctx, "https://www.linkedin.com/in/stale", ttl)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ProfileCacheUpsertRefreshes", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ttl := 30 * 24 * time.Hour

		url := "https://www.linkedin.com/in/jane-doe"
		require.NoError(t, s.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: url,
			ProfileData: json.RawMessage(`{"headline":"old"}`),
			ScrapedAt:   time.Now().UTC().Add(-time.Hour),
		}))
		require.NoError(t, s.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: url,
			ProfileData: json.RawMessage(`{"headline":"new"}`),
			ScrapedAt:   time.Now().UTC(),
		}))

		got, err := s.GetCachedProfile(ctx, url, ttl)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.JSONEq(t, `{"headline":"new"}`, string(got.ProfileData))
	})

	t.Run("PruneProfileCache", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ttl := 30 * 24 * time.Hour

		require.NoError(t, s.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: "https://www.linkedin.com/in/stale",
			ProfileData: json.RawMessage(`{}`),
			ScrapedAt:   time.Now().UTC().Add(-ttl - time.Hour),
		}))
		require.NoError(t, s.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: "https://www.linkedin.com/in/fresh",
			ProfileData: json.RawMessage(`{}`),
			ScrapedAt:   time.Now().UTC(),
		}))

		n, err := s.PruneProfileCache(ctx, ttl)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.GetCachedProfile(ctx, "https://www.linkedin.com/in/fresh", ttl)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}
