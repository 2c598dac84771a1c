package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchService はクエリのベクトル化と類似検索を行う
type SearchService struct {
	store       rag.VectorStore
	embedder    Embedder
	defaultTopK int
	logger      *slog.Logger
}

// SearchServiceOption は SearchService のオプション設定
type SearchServiceOption func(*SearchService)

// WithSearchLogger はロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// WithDefaultTopK は検索件数の既定値を設定する
func WithDefaultTopK(k int) SearchServiceOption {
	return func(s *SearchService) {
		if k > 0 {
			s.defaultTopK = k
		}
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(store rag.VectorStore, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	svc := &SearchService{
		store:       store,
		embedder:    embedder,
		defaultTopK: DefaultTopK,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Search はクエリに近いチャンクを類似度の降順で最大 TopK 件返す。
// Embedding の失敗は *rag.EmbeddingServiceError、ストアの失敗はストアのエラーをそのまま包んで返す。
func (s *SearchService) Search(ctx context.Context, params SearchParams) ([]rag.SearchResult, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	topK := params.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, &rag.EmbeddingServiceError{
			Message: fmt.Sprintf("expected 1 query embedding, got %d", len(vectors)),
		}
	}

	results, err := s.store.Search(ctx, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(results) > topK {
		results = results[:topK]
	}

	s.logger.Debug("search completed", "topK", topK, "results", len(results))
	return results, nil
}
