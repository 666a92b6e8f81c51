package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-cli/internal/model"
	"github.com/sells-group/icp-cli/pkg/apify"
)

// fakeApify is a scriptable apify.Client.
type fakeApify struct {
	mu         sync.Mutex
	startCalls int
	getCalls   int
	abortedIDs []string

	orphans  []apify.Run
	onStart  func(call int, urls []string) (*apify.Run, error)
	onGet    func(call int, runID string) (*apify.Run, error)
	items    []map[string]any
	itemsErr error
}

func (f *fakeApify) StartRun(_ context.Context, _ string, input any) (*apify.Run, error) {
	f.mu.Lock()
	f.startCalls++
	call := f.startCalls
	f.mu.Unlock()

	urls := input.(runInput).ProfileURLs
	if f.onStart != nil {
		return f.onStart(call, urls)
	}
	return &apify.Run{ID: "run-1", Status: apify.StatusRunning, DefaultDatasetID: "ds-1"}, nil
}

func (f *fakeApify) GetRun(_ context.Context, runID string) (*apify.Run, error) {
	f.mu.Lock()
	f.getCalls++
	call := f.getCalls
	f.mu.Unlock()

	if f.onGet != nil {
		return f.onGet(call, runID)
	}
	return &apify.Run{ID: runID, Status: apify.StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
}

func (f *fakeApify) ListRuns(_ context.Context, _, _ string) ([]apify.Run, error) {
	return f.orphans, nil
}

func (f *fakeApify) AbortRun(_ context.Context, runID string) (*apify.Run, error) {
	f.mu.Lock()
	f.abortedIDs = append(f.abortedIDs, runID)
	f.mu.Unlock()
	return &apify.Run{ID: runID, Status: apify.StatusAborted}, nil
}

func (f *fakeApify) DatasetItems(_ context.Context, _ string) ([]map[string]any, error) {
	return f.items, f.itemsErr
}

// memCache is an in-memory ProfileCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]model.ProfileCacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]model.ProfileCacheEntry)}
}

func (c *memCache) GetCachedProfile(_ context.Context, url string, ttl time.Duration) (*model.ProfileCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[url]
	if !ok || time.Since(entry.ScrapedAt) >= ttl {
		return nil, nil
	}
	return &entry, nil
}

func (c *memCache) PutCachedProfile(_ context.Context, entry model.ProfileCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.LinkedInURL] = entry
	return nil
}

func newTestExecutor(client apify.Client, cache ProfileCache) *Executor {
	e := NewExecutor(client, cache, Options{
		ActorID:       "test-actor",
		Cooldown:      time.Millisecond,
		JobTimeout:    5 * time.Second,
		DatasetSettle: time.Millisecond,
	})
	e.retry.InitialBackoff = time.Millisecond
	e.retry.MaxBackoff = time.Millisecond
	return e
}

func TestExecutorCacheHitSkipsProvider(t *testing.T) {
	client := &fakeApify{}
	cache := newMemCache()
	url := "https://www.linkedin.com/in/jane-doe"
	require.NoError(t, cache.PutCachedProfile(context.Background(), model.ProfileCacheEntry{
		LinkedInURL: url,
		ProfileID:   "ACoAAA1234567890abcdefGHIJKLmno",
		ProfileData: json.RawMessage(`{"firstName":"Jane"}`),
		ScrapedAt:   time.Now().UTC(),
	}))

	e := newTestExecutor(client, cache)
	results, err := e.Scrape(context.Background(), []string{url})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[url]
	assert.True(t, r.FromCache)
	assert.NoError(t, r.Err)
	assert.Equal(t, "Jane", r.Data["firstName"])
	assert.Equal(t, "ACoAAA1234567890abcdefGHIJKLmno", r.ProfileID)
	assert.Equal(t, 0, client.startCalls)
}

func TestExecutorScrapeAndReconcile(t *testing.T) {
	urls := []string{
		"https://www.linkedin.com/in/jane-doe",
		"https://www.linkedin.com/in/John-Smith",
		"https://www.linkedin.com/in/ACoAAA1234567890abcdefGHIJKLmno",
	}
	client := &fakeApify{
		items: []map[string]any{
			// Handle casing altered by the provider.
			{"publicIdentifier": "Jane-Doe", "profileId": "ACoAAAjaneXXXXXXXXXXXXXXXXXXXXXXX", "firstName": "Jane"},
			{"publicIdentifier": "john-smith", "firstName": "John"},
			// Matched by stable ID, not handle.
			{"profileId": "ACoAAA1234567890abcdefGHIJKLmno", "publicIdentifier": "renamed-handle", "firstName": "Kim"},
		},
	}
	cache := newMemCache()
	e := newTestExecutor(client, cache)

	results, err := e.Scrape(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, u := range urls {
		r, ok := results[u]
		require.True(t, ok, "missing result for %s", u)
		require.NoError(t, r.Err)
		assert.False(t, r.FromCache)
	}
	assert.Equal(t, "Jane", results[urls[0]].Data["firstName"])
	assert.Equal(t, "John", results[urls[1]].Data["firstName"])
	assert.Equal(t, "Kim", results[urls[2]].Data["firstName"])
	assert.Equal(t, "ACoAAA1234567890abcdefGHIJKLmno", results[urls[2]].ProfileID)

	// Each success lands in the cache.
	for _, u := range urls {
		entry, err := cache.GetCachedProfile(context.Background(), u, time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, entry, "expected cache entry for %s", u)
	}
}

func TestExecutorMissingRecordMarkedFailed(t *testing.T) {
	urls := []string{
		"https://www.linkedin.com/in/jane-doe",
		"https://www.linkedin.com/in/ghost",
	}
	client := &fakeApify{
		items: []map[string]any{
			{"publicIdentifier": "jane-doe", "firstName": "Jane"},
		},
	}
	e := newTestExecutor(client, newMemCache())

	results, err := e.Scrape(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[urls[0]].Err)
	require.Error(t, results[urls[1]].Err)
	assert.Contains(t, results[urls[1]].Err.Error(), "no data returned")
}

func TestExecutorRetriesTimeouts(t *testing.T) {
	client := &fakeApify{
		items: []map[string]any{
			{"publicIdentifier": "jane-doe", "firstName": "Jane"},
		},
	}
	client.onGet = func(call int, runID string) (*apify.Run, error) {
		if call <= 2 {
			return &apify.Run{ID: runID, Status: apify.StatusTimedOut}, nil
		}
		return &apify.Run{ID: runID, Status: apify.StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
	}
	e := newTestExecutor(client, newMemCache())

	url := "https://www.linkedin.com/in/jane-doe"
	results, err := e.Scrape(context.Background(), []string{url})
	require.NoError(t, err)
	require.NoError(t, results[url].Err)
	assert.Equal(t, 3, client.startCalls)
}

func TestExecutorRetriesWallClockTimeout(t *testing.T) {
	client := &fakeApify{}
	client.onGet = func(_ int, runID string) (*apify.Run, error) {
		return &apify.Run{ID: runID, Status: apify.StatusRunning}, nil
	}
	e := NewExecutor(client, newMemCache(), Options{
		ActorID:       "test-actor",
		Cooldown:      time.Millisecond,
		JobTimeout:    20 * time.Millisecond,
		DatasetSettle: time.Millisecond,
	})
	e.retry.InitialBackoff = time.Millisecond
	e.retry.MaxBackoff = time.Millisecond

	url := "https://www.linkedin.com/in/jane-doe"
	results, err := e.Scrape(context.Background(), []string{url})
	require.NoError(t, err)
	require.Error(t, results[url].Err)
	assert.Contains(t, results[url].Err.Error(), "timed out")
	assert.Equal(t, 3, client.startCalls)
}

func TestExecutorNonTimeoutFailureNotRetried(t *testing.T) {
	client := &fakeApify{}
	client.onGet = func(_ int, runID string) (*apify.Run, error) {
		return &apify.Run{ID: runID, Status: apify.StatusFailed, StatusMessage: "invalid input"}, nil
	}
	e := newTestExecutor(client, newMemCache())

	url := "https://www.linkedin.com/in/jane-doe"
	results, err := e.Scrape(context.Background(), []string{url})
	require.NoError(t, err)
	require.Error(t, results[url].Err)
	assert.Contains(t, results[url].Err.Error(), "invalid input")
	assert.Equal(t, 1, client.startCalls)
}

func TestExecutorConnectionDropRecoversFinishedRun(t *testing.T) {
	client := &fakeApify{
		items: []map[string]any{
			{"publicIdentifier": "jane-doe", "firstName": "Jane"},
		},
	}
	client.onGet = func(call int, runID string) (*apify.Run, error) {
		if call == 1 {
			return nil, errors.New("read tcp 10.0.0.1:443: connection reset by peer")
		}
		return &apify.Run{ID: runID, Status: apify.StatusSucceeded, DefaultDatasetID: "ds-1"}, nil
	}
	e := newTestExecutor(client, newMemCache())

	url := "https://www.linkedin.com/in/jane-doe"
	results, err := e.Scrape(context.Background(), []string{url})
	require.NoError(t, err)
	require.NoError(t, results[url].Err)
	assert.Equal(t, 1, client.startCalls)
	assert.Empty(t, client.abortedIDs)
}

func TestExecutorConnectionDropLeavesRunningJobAlone(t *testing.T) {
	client := &fakeApify{}
	client.onGet = func(call int, runID string) (*apify.Run, error) {
		if call == 1 {
			return nil, errors.New("read tcp 10.0.0.1:443: connection reset by peer")
		}
		return &apify.Run{ID: runID, Status: apify.StatusRunning}, nil
	}
	e := newTestExecutor(client, newMemCache())

	url := "https://www.linkedin.com/in/jane-doe"
	results, err := e.Scrape(context.Background(), []string{url})
	require.NoError(t, err)
	require.Error(t, results[url].Err)
	assert.Contains(t, results[url].Err.Error(), "still in progress")
	// Not resubmitted, not aborted.
	assert.Equal(t, 1, client.startCalls)
	assert.Empty(t, client.abortedIDs)
}

func TestExecutorOrphanCleanup(t *testing.T) {
	client := &fakeApify{
		orphans: []apify.Run{
			{ID: "orphan-1", Status: apify.StatusRunning},
			{ID: "orphan-2", Status: apify.StatusRunning},
		},
	}
	e := newTestExecutor(client, newMemCache())

	_, err := e.Scrape(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, client.abortedIDs)

	_, err = e.Scrape(context.Background(), []string{"https://www.linkedin.com/in/jane-doe"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orphan-1", "orphan-2"}, client.abortedIDs)
}

func TestPartition(t *testing.T) {
	groups := partition([]string{"a", "b", "c", "d", "e", "f", "g"}, 3)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"a", "b", "c"}, groups[0])
	assert.Equal(t, []string{"g"}, groups[2])

	assert.Nil(t, partition(nil, 5))
}
