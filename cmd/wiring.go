package main

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-cli/internal/classify"
	"github.com/sells-group/icp-cli/internal/enrich"
	"github.com/sells-group/icp-cli/internal/match"
	"github.com/sells-group/icp-cli/internal/scrape"
	"github.com/sells-group/icp-cli/internal/store"
	"github.com/sells-group/icp-cli/pkg/apify"
	"github.com/sells-group/icp-cli/pkg/jina"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "icp.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func newOpenAI() *openai.Client {
	c := openai.NewClient(option.WithAPIKey(cfg.OpenAI.Key))
	return &c
}

func newEnricher(st store.Store) *enrich.Enricher {
	apifyClient := apify.NewClient(cfg.Apify.Token, apify.WithBaseURL(cfg.Apify.BaseURL))
	executor := scrape.NewExecutor(apifyClient, st, scrape.Options{
		ActorID:       cfg.Apify.ActorID,
		GroupSize:     cfg.Scrape.GroupSize,
		Concurrency:   cfg.Scrape.Concurrency,
		Cooldown:      cfg.Scrape.Cooldown,
		JobTimeout:    cfg.Scrape.JobTimeout,
		MaxAttempts:   cfg.Scrape.MaxAttempts,
		DatasetSettle: time.Duration(cfg.Scrape.DatasetSettleMS) * time.Millisecond,
		CacheTTL:      cfg.Cache.TTL,
	})

	oc := newOpenAI()
	embedder := match.NewOpenAIEmbedder(oc, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDims)
	classifier := classify.New(oc, cfg.OpenAI.ClassifyModel)

	return enrich.NewEnricher(st, executor, embedder, classifier)
}

func newQualifier(ctx context.Context, st store.Store) (*match.Qualifier, error) {
	qc, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		return nil, eris.Wrap(err, "create qdrant client")
	}

	ranker := match.NewVectorRanker(qc, cfg.Qdrant.Collection)
	if err := ranker.EnsureCollection(ctx, cfg.OpenAI.EmbeddingDims); err != nil {
		return nil, err
	}

	var deps match.RerankerDeps
	if cfg.Jina.Key != "" {
		deps.Jina = jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL), jina.WithModel(cfg.Jina.Model))
	}
	reranker, err := match.NewReranker(cfg.Reranker.Backend, deps)
	if err != nil {
		return nil, err
	}

	embedder := match.NewOpenAIEmbedder(newOpenAI(), cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDims)
	return match.NewQualifier(st, embedder, ranker, reranker, cfg.Reranker.TopN), nil
}
