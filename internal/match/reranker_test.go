package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/icp-cli/pkg/jina"
)

type fakeJina struct {
	results []jina.RankedResult
	err     error
	gotDocs []string
	gotTopN int
}

func (f *fakeJina) Rerank(_ context.Context, _ string, documents []string, topN int) ([]jina.RankedResult, error) {
	f.gotDocs = documents
	f.gotTopN = topN
	return f.results, f.err
}

func TestNewRerankerUnknownBackend(t *testing.T) {
	_, err := NewReranker("crossbow", RerankerDeps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "crossbow"`)
}

func TestNewRerankerJinaRequiresClient(t *testing.T) {
	_, err := NewReranker("jina", RerankerDeps{})
	require.Error(t, err)

	r, err := NewReranker("jina", RerankerDeps{Jina: &fakeJina{}})
	require.NoError(t, err)
	assert.Equal(t, "jina", r.Name())
}

func TestRegisterRerankerOverrides(t *testing.T) {
	RegisterReranker("noop-test", func(RerankerDeps) (Reranker, error) {
		return NoopReranker{}, nil
	})
	t.Cleanup(func() { delete(rerankerRegistry, "noop-test") })

	r, err := NewReranker("noop-test", RerankerDeps{})
	require.NoError(t, err)
	assert.Equal(t, "noop", r.Name())
}

func TestJinaRerankerDropsOutOfRangeIndices(t *testing.T) {
	client := &fakeJina{results: []jina.RankedResult{
		{Index: 1, RelevanceScore: 0.9},
		{Index: 7, RelevanceScore: 0.8},
		{Index: -1, RelevanceScore: 0.7},
		{Index: 0, RelevanceScore: 0.2},
	}}
	r := &JinaReranker{client: client}

	docs, err := r.Rerank(context.Background(), "query", []string{"a", "b"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []RankedDoc{{Index: 1, Score: 0.9}, {Index: 0, Score: 0.2}}, docs)
	assert.Equal(t, []string{"a", "b"}, client.gotDocs)
	assert.Equal(t, 2, client.gotTopN)
}

func TestNoopRerankerScores(t *testing.T) {
	docs, err := NoopReranker{}.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, doc := range docs {
		assert.Equal(t, i, doc.Index)
		assert.InDelta(t, 1.0-float64(i)*0.01, doc.Score, 1e-9)
	}
}

func TestNoopRerankerHonorsTopN(t *testing.T) {
	docs, err := NoopReranker{}.Rerank(context.Background(), "q", []string{"a", "b", "c", "d"}, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}
