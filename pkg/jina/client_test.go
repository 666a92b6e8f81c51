package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL))
}

func TestRerank(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, "VP of Engineering at a SaaS scaleup", req.Query)
		assert.Len(t, req.Documents, 3)
		assert.Equal(t, 3, req.TopN)

		json.NewEncoder(w).Encode(rerankResponse{Results: []RankedResult{
			{Index: 2, RelevanceScore: 0.92},
			{Index: 0, RelevanceScore: 0.41},
			{Index: 1, RelevanceScore: 0.13},
		}})
	})

	results, err := c.Rerank(context.Background(), "VP of Engineering at a SaaS scaleup",
		[]string{"doc a", "doc b", "doc c"}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].Index)
	assert.InDelta(t, 0.92, results[0].RelevanceScore, 0.001)
}

func TestRerank_EmptyDocuments(t *testing.T) {
	c := NewClient("test-key")
	results, err := c.Rerank(context.Background(), "query", nil, 0)
	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestRerank_CustomModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jina-reranker-v1-base-en", req.Model)
		json.NewEncoder(w).Encode(rerankResponse{})
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", WithBaseURL(srv.URL), WithModel("jina-reranker-v1-base-en"))
	_, err := c.Rerank(context.Background(), "q", []string{"doc"}, 0)
	assert.NoError(t, err)
}

func TestRerank_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(rerankResponse{Results: []RankedResult{
			{Index: 0, RelevanceScore: 0.5},
		}})
	})

	results, err := c.Rerank(context.Background(), "q", []string{"doc"}, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRerank_PermanentError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	})

	_, err := c.Rerank(context.Background(), "q", []string{"doc"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}
