// Package scrape runs profile scrape jobs against the Apify actor platform:
// grouping URLs, bounding concurrency, retrying timeouts, and reconciling
// returned records back to the URLs that requested them.
package scrape

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/icp-cli/internal/linkedin"
	"github.com/sells-group/icp-cli/internal/model"
	"github.com/sells-group/icp-cli/internal/resilience"
	"github.com/sells-group/icp-cli/pkg/apify"
)

// Result is the outcome of scraping one URL. Exactly one of Data or Err is
// meaningful; FromCache marks hits that never reached the provider.
type Result struct {
	URL       string
	ProfileID string
	Data      map[string]any
	FromCache bool
	Err       error
}

// ProfileCache is the slice of the store the executor needs.
type ProfileCache interface {
	GetCachedProfile(ctx context.Context, linkedinURL string, ttl time.Duration) (*model.ProfileCacheEntry, error)
	PutCachedProfile(ctx context.Context, entry model.ProfileCacheEntry) error
}

// Options tunes the executor. Zero values fall back to provider-safe
// defaults.
type Options struct {
	ActorID       string
	GroupSize     int
	Concurrency   int
	Cooldown      time.Duration
	JobTimeout    time.Duration
	MaxAttempts   int
	DatasetSettle time.Duration
	CacheTTL      time.Duration
}

func (o Options) withDefaults() Options {
	if o.GroupSize <= 0 {
		o.GroupSize = 5
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 20
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 10 * time.Second
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 30 * time.Minute
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.DatasetSettle <= 0 {
		o.DatasetSettle = 2 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 30 * 24 * time.Hour
	}
	return o
}

// Executor fetches raw profile data for sets of URLs.
type Executor struct {
	client apify.Client
	cache  ProfileCache
	opts   Options
	retry  resilience.RetryConfig
}

// NewExecutor creates an Executor backed by the given provider client and
// profile cache.
func NewExecutor(client apify.Client, cache ProfileCache, opts Options) *Executor {
	opts = opts.withDefaults()
	retry := resilience.ScrapeRetryConfig()
	retry.MaxAttempts = opts.MaxAttempts
	return &Executor{
		client: client,
		cache:  cache,
		opts:   opts,
		retry:  retry,
	}
}

// runInput is the actor input for one scrape job.
type runInput struct {
	ProfileURLs []string `json:"profileUrls"`
}

// Scrape fetches raw profile data for every URL. The returned map always has
// one entry per input URL; partial failures never surface as an error, only
// context cancellation does.
func (e *Executor) Scrape(ctx context.Context, urls []string) (map[string]Result, error) {
	results := make(map[string]Result, len(urls))
	if len(urls) == 0 {
		return results, nil
	}

	e.cleanupOrphans(ctx)

	var toScrape []string
	for _, u := range urls {
		if entry := e.cachedResult(ctx, u); entry != nil {
			results[u] = *entry
			continue
		}
		toScrape = append(toScrape, u)
	}
	zap.L().Info("scrape plan",
		zap.Int("requested", len(urls)),
		zap.Int("from_cache", len(results)),
		zap.Int("to_scrape", len(toScrape)),
	)

	groups := partition(toScrape, e.opts.GroupSize)
	var mu sync.Mutex

	for start := 0; start < len(groups); start += e.opts.Concurrency {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "scrape: canceled")
		}

		end := min(start+e.opts.Concurrency, len(groups))
		var g errgroup.Group
		g.SetLimit(e.opts.Concurrency)
		for _, group := range groups[start:end] {
			g.Go(func() error {
				groupResults := e.scrapeGroup(ctx, group)
				mu.Lock()
				for u, r := range groupResults {
					results[u] = r
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		// Cooldown between waves keeps the provider's rate limiter happy.
		if end < len(groups) {
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "scrape: canceled during cooldown")
			case <-time.After(e.opts.Cooldown):
			}
		}
	}

	return results, nil
}

// cleanupOrphans aborts runs left over from a previous process that died
// mid-scrape. Best effort: a failure here only costs provider billing, not
// correctness.
func (e *Executor) cleanupOrphans(ctx context.Context) {
	runs, err := e.client.ListRuns(ctx, e.opts.ActorID, apify.StatusRunning)
	if err != nil {
		zap.L().Warn("orphan run check failed", zap.Error(err))
		return
	}
	for _, r := range runs {
		if _, err := e.client.AbortRun(ctx, r.ID); err != nil {
			zap.L().Warn("failed to abort orphan run", zap.String("run_id", r.ID), zap.Error(err))
			continue
		}
		zap.L().Info("aborted orphan run", zap.String("run_id", r.ID))
	}
}

// cachedResult returns a Result for a fresh cache hit, or nil on miss. Cache
// read errors are treated as misses.
func (e *Executor) cachedResult(ctx context.Context, url string) *Result {
	entry, err := e.cache.GetCachedProfile(ctx, url, e.opts.CacheTTL)
	if err != nil {
		zap.L().Warn("profile cache read failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}

	var data map[string]any
	if err := json.Unmarshal(entry.ProfileData, &data); err != nil {
		zap.L().Warn("discarding undecodable cache entry", zap.String("url", url), zap.Error(err))
		return nil
	}
	return &Result{URL: url, ProfileID: entry.ProfileID, Data: data, FromCache: true}
}

// scrapeGroup runs one provider job for a group of URLs, retrying timeouts,
// and reconciles returned records to their requesting URLs. Always returns
// one Result per URL in the group.
func (e *Executor) scrapeGroup(ctx context.Context, group []string) map[string]Result {
	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("apify", "scrape group")

	items, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]map[string]any, error) {
		return e.runGroup(ctx, group)
	})

	results := make(map[string]Result, len(group))
	if err != nil {
		for _, u := range group {
			results[u] = Result{URL: u, Err: err}
		}
		return results
	}

	matched := reconcile(group, items)
	now := time.Now().UTC()
	for _, u := range group {
		record, ok := matched[u]
		if !ok {
			results[u] = Result{URL: u, Err: eris.Errorf("no data returned for %s", u)}
			continue
		}

		profileID := linkedin.ProfileIDFrom(record)
		results[u] = Result{URL: u, ProfileID: profileID, Data: record}

		payload, err := json.Marshal(record)
		if err != nil {
			zap.L().Warn("skipping cache write for unencodable record", zap.String("url", u), zap.Error(err))
			continue
		}
		if err := e.cache.PutCachedProfile(ctx, model.ProfileCacheEntry{
			LinkedInURL: u,
			ProfileID:   profileID,
			ProfileData: payload,
			ScrapedAt:   now,
		}); err != nil {
			zap.L().Warn("profile cache write failed", zap.String("url", u), zap.Error(err))
		}
	}
	return results
}

// runGroup submits one job, waits for it, and fetches its dataset.
func (e *Executor) runGroup(ctx context.Context, group []string) ([]map[string]any, error) {
	run, err := e.client.StartRun(ctx, e.opts.ActorID, runInput{ProfileURLs: group})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: start run")
	}
	zap.L().Debug("started scrape run", zap.String("run_id", run.ID), zap.Int("urls", len(group)))

	jobCtx, cancel := context.WithTimeout(ctx, e.opts.JobTimeout)
	defer cancel()

	finished, err := apify.WaitForRun(jobCtx, e.client, run.ID)
	if err != nil {
		switch {
		case resilience.IsConnectionDrop(err):
			// The job may have finished without us; ask the provider
			// before assuming anything.
			finished, err = e.recoverRun(ctx, run.ID)
			if err != nil {
				return nil, err
			}
		case resilience.IsProviderTimeout(err):
			return nil, err
		default:
			// Abort so a doomed job does not keep billing.
			if _, abortErr := e.client.AbortRun(context.WithoutCancel(ctx), run.ID); abortErr != nil {
				zap.L().Warn("failed to abort run", zap.String("run_id", run.ID), zap.Error(abortErr))
			}
			return nil, err
		}
	}

	// The dataset lags run completion slightly.
	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "scrape: canceled before dataset fetch")
	case <-time.After(e.opts.DatasetSettle):
	}

	items, err := e.client.DatasetItems(ctx, finished.DefaultDatasetID)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch dataset")
	}
	return items, nil
}

// recoverRun re-queries a run after the polling connection dropped. A run
// found succeeded is recovered; a run still going is left alone so a retry
// does not double-bill, and the group fails for this attempt.
func (e *Executor) recoverRun(ctx context.Context, runID string) (*apify.Run, error) {
	run, err := e.client.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: recover run")
	}

	switch run.Status {
	case apify.StatusSucceeded:
		zap.L().Info("recovered completed run after connection drop", zap.String("run_id", runID))
		return run, nil
	case apify.StatusReady, apify.StatusRunning, apify.StatusAborting:
		return nil, eris.Errorf("scrape: run %s still in progress after connection drop", runID)
	case apify.StatusTimedOut:
		return nil, eris.Errorf("scrape: run %s timed out", runID)
	default:
		msg := run.StatusMessage
		if msg == "" {
			msg = run.Status
		}
		return nil, eris.Errorf("scrape: run %s failed: %s", runID, msg)
	}
}

// reconcile maps returned records back to requesting URLs. Requested URLs are
// keyed by the canonical form of their path identifier; each record is tried
// under its stable profile ID first, then its public identifier, then any URL
// it carries. Unmatched records are dropped.
func reconcile(group []string, items []map[string]any) map[string]map[string]any {
	lookup := make(map[string]string, len(group))
	for _, u := range group {
		if h := linkedin.HandleFromURL(u); h != "" {
			lookup[linkedin.CanonicalHandle(h)] = u
		}
	}

	matched := make(map[string]map[string]any, len(items))
	for _, item := range items {
		var url string
		for _, key := range recordKeys(item) {
			if u, ok := lookup[key]; ok {
				url = u
				break
			}
		}
		if url == "" {
			zap.L().Debug("dropping record with no matching requested URL",
				zap.String("profile_id", linkedin.ProfileIDFrom(item)))
			continue
		}
		matched[url] = item
	}
	return matched
}

// recordKeys lists the canonical identifiers a record can be matched under,
// most stable first.
func recordKeys(item map[string]any) []string {
	var keys []string
	if id := linkedin.ProfileIDFrom(item); id != "" {
		keys = append(keys, linkedin.CanonicalHandle(id))
	}
	if pub, ok := item["publicIdentifier"].(string); ok && pub != "" {
		keys = append(keys, linkedin.CanonicalHandle(pub))
	}
	for _, field := range []string{"inputUrl", "url", "linkedinUrl"} {
		if u, ok := item[field].(string); ok && u != "" {
			if h := linkedin.HandleFromURL(u); h != "" {
				keys = append(keys, linkedin.CanonicalHandle(h))
			}
		}
	}
	return keys
}

func partition(urls []string, size int) [][]string {
	var groups [][]string
	for start := 0; start < len(urls); start += size {
		groups = append(groups, urls[start:min(start+size, len(urls))])
	}
	return groups
}
