package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gpsrag/internal/core/rag"
)

type stubEmbedder struct {
	called bool
	err    error
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.called = true
	if e.err != nil {
		return nil, e.err
	}
	return [][]float32{{1, 2, 3}}, nil
}

type stubStore struct {
	results  []rag.SearchResult
	err      error
	lastTopK int
}

func (s *stubStore) Upsert(context.Context, rag.DocumentRef, []rag.Chunk, [][]float32) error {
	return nil
}

func (s *stubStore) Search(_ context.Context, _ []float32, topK int) ([]rag.SearchResult, error) {
	s.lastTopK = topK
	return s.results, s.err
}

func (s *stubStore) DeleteByDocument(context.Context, uuid.UUID) error { return nil }

func newTestService(store *stubStore, embedder *stubEmbedder, opts ...SearchServiceOption) *SearchService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSearchService(store, embedder, append([]SearchServiceOption{WithSearchLogger(logger)}, opts...)...)
}

func TestSearchService_DefaultTopK(t *testing.T) {
	store := &stubStore{results: []rag.SearchResult{{Score: 0.9}}}
	embedder := &stubEmbedder{}
	svc := newTestService(store, embedder)

	results, err := svc.Search(context.Background(), SearchParams{Query: "gps fix"})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.True(t, embedder.called)
	assert.Equal(t, DefaultTopK, store.lastTopK)
}

func TestSearchService_ConfiguredTopK(t *testing.T) {
	store := &stubStore{results: []rag.SearchResult{{Score: 0.9}, {Score: 0.8}, {Score: 0.7}}}
	svc := newTestService(store, &stubEmbedder{}, WithDefaultTopK(8))

	_, err := svc.Search(context.Background(), SearchParams{Query: "gps"})
	require.NoError(t, err)
	assert.Equal(t, 8, store.lastTopK)

	results, err := svc.Search(context.Background(), SearchParams{Query: "gps", TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, store.lastTopK)
	assert.Len(t, results, 2)
}

func TestSearchService_EmptyQuery(t *testing.T) {
	embedder := &stubEmbedder{}
	svc := newTestService(&stubStore{}, embedder)

	_, err := svc.Search(context.Background(), SearchParams{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.False(t, embedder.called)
}

func TestSearchService_Errors(t *testing.T) {
	t.Run("Embedding失敗", func(t *testing.T) {
		embedErr := &rag.EmbeddingServiceError{Message: "timeout", Err: context.DeadlineExceeded}
		svc := newTestService(&stubStore{}, &stubEmbedder{err: embedErr})

		_, err := svc.Search(context.Background(), SearchParams{Query: "gps"})
		var target *rag.EmbeddingServiceError
		assert.ErrorAs(t, err, &target)
	})

	t.Run("ストア到達不可", func(t *testing.T) {
		storeErr := &rag.StoreUnavailableError{Op: "search", Err: errors.New("connection refused")}
		svc := newTestService(&stubStore{err: storeErr}, &stubEmbedder{})

		_, err := svc.Search(context.Background(), SearchParams{Query: "gps"})
		var target *rag.StoreUnavailableError
		assert.ErrorAs(t, err, &target)
	})
}
