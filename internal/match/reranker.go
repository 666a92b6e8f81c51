package match

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-cli/pkg/jina"
)

// RankedDoc is one reranked document: the index into the caller's document
// list plus a relevance score. Callers re-sort as needed.
type RankedDoc struct {
	Index int
	Score float64
}

// Reranker scores documents by relevance to a query.
type Reranker interface {
	Name() string
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDoc, error)
}

// RerankerDeps carries the clients reranker backends may need.
type RerankerDeps struct {
	Jina jina.Client
}

var rerankerRegistry = map[string]func(RerankerDeps) (Reranker, error){
	"jina": func(d RerankerDeps) (Reranker, error) {
		if d.Jina == nil {
			return nil, eris.New("reranker: jina backend requires a jina client")
		}
		return &JinaReranker{client: d.Jina}, nil
	},
	"noop": func(RerankerDeps) (Reranker, error) {
		return NoopReranker{}, nil
	},
}

// RegisterReranker adds a backend under a name, replacing any existing one.
func RegisterReranker(name string, ctor func(RerankerDeps) (Reranker, error)) {
	rerankerRegistry[name] = ctor
}

// NewReranker constructs a registered backend by name.
func NewReranker(name string, deps RerankerDeps) (Reranker, error) {
	ctor, ok := rerankerRegistry[name]
	if !ok {
		return nil, eris.Errorf("reranker: unknown backend %q", name)
	}
	return ctor(deps)
}

// JinaReranker calls the Jina cross-encoder rerank API.
type JinaReranker struct {
	client jina.Client
}

func (r *JinaReranker) Name() string { return "jina" }

func (r *JinaReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDoc, error) {
	results, err := r.client.Rerank(ctx, query, documents, topN)
	if err != nil {
		return nil, eris.Wrap(err, "reranker: jina rerank")
	}

	docs := make([]RankedDoc, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(documents) {
			continue
		}
		docs = append(docs, RankedDoc{Index: res.Index, Score: res.RelevanceScore})
	}
	return docs, nil
}

// NoopReranker returns documents in original order with synthetically
// decreasing scores. Useful for comparing scoring with and without a real
// reranker, and in tests without network access.
type NoopReranker struct{}

func (NoopReranker) Name() string { return "noop" }

func (NoopReranker) Rerank(_ context.Context, _ string, documents []string, topN int) ([]RankedDoc, error) {
	n := len(documents)
	if topN > 0 && topN < n {
		n = topN
	}

	docs := make([]RankedDoc, n)
	for i := range docs {
		docs[i] = RankedDoc{Index: i, Score: 1.0 - float64(i)*0.01}
	}
	return docs, nil
}
