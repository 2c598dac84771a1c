package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gpsrag/internal/core/rag"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
	assert.Equal(t, MaxEmbeddingBatchSize, embedder.MaxBatchSize())
}

func TestEmbedder_Embed_RestoresInputOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var body struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"first", "second", "third"}, body.Input)
		assert.Equal(t, 3, body.Dimensions)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 2, "embedding": [3, 3, 3]},
				{"object": "embedding", "index": 0, "embedding": [1, 1, 1]},
				{"object": "embedding", "index": 1, "embedding": [2, 2, 2]}
			],
			"usage": {"prompt_tokens": 3, "total_tokens": 3}
		}`))
	}))
	defer srv.Close()

	embedder := NewEmbedder("test-key", WithEmbeddingBaseURL(srv.URL+"/"), WithEmbeddingDimension(3))

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}, vectors)
}

func TestEmbedder_Embed_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream exploded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	embedder := NewEmbedder("test-key", WithEmbeddingBaseURL(srv.URL+"/"))

	vectors, err := embedder.Embed(context.Background(), []string{"hello"})
	assert.Nil(t, vectors)

	var embedErr *rag.EmbeddingServiceError
	require.ErrorAs(t, err, &embedErr)
	assert.Equal(t, http.StatusInternalServerError, embedErr.StatusCode)
	assert.Contains(t, embedErr.Message, "upstream exploded")
}

func TestEmbedder_Embed_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	embedder := NewEmbedder("test-key",
		WithEmbeddingBaseURL(srv.URL+"/"),
		WithEmbeddingTimeout(50*time.Millisecond),
	)

	_, err := embedder.Embed(context.Background(), []string{"hello"})

	var embedErr *rag.EmbeddingServiceError
	require.ErrorAs(t, err, &embedErr)
	assert.Zero(t, embedErr.StatusCode)
}

func TestEmbedder_Embed_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object": "list", "model": "m", "data": [{"object": "embedding", "index": 0, "embedding": [1]}], "usage": {"prompt_tokens": 1, "total_tokens": 1}}`))
	}))
	defer srv.Close()

	embedder := NewEmbedder("test-key", WithEmbeddingBaseURL(srv.URL+"/"))

	_, err := embedder.Embed(context.Background(), []string{"a", "b"})

	var embedErr *rag.EmbeddingServiceError
	assert.ErrorAs(t, err, &embedErr)
}

func TestEmbedder_Embed_Empty(t *testing.T) {
	embedder := NewEmbedder("test-key")

	vectors, err := embedder.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedder_Embed_TooManyTexts(t *testing.T) {
	embedder := NewEmbedder("test-key")

	_, err := embedder.Embed(context.Background(), make([]string, MaxEmbeddingBatchSize+1))

	var embedErr *rag.EmbeddingServiceError
	assert.ErrorAs(t, err, &embedErr)
}
