package ingestion

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jinford/gpsrag/internal/core/rag"
)

const (
	// DefaultEmbeddingConcurrency はバッチ分割時の同時リクエスト数
	DefaultEmbeddingConcurrency = 4
	// MinBatchSize は Embedder.MaxBatchSize() が 0 以下を返した場合のフォールバック
	MinBatchSize = 1
)

// embedAll は texts を全件ベクトル化する。
// MaxBatchSize を超える場合はバッチに分割して並行に呼び出し、1 件でも失敗すれば全体を失敗とする。
func embedAll(ctx context.Context, embedder Embedder, texts []string, concurrency int) ([][]float32, error) {
	batchSize := embedder.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = MinBatchSize
	}

	if len(texts) <= batchSize {
		vectors, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(texts) {
			return nil, countMismatch(len(texts), len(vectors))
		}
		return vectors, nil
	}

	if concurrency <= 0 {
		concurrency = DefaultEmbeddingConcurrency
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			batch, err := embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(batch) != end-start {
				return countMismatch(end-start, len(batch))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func countMismatch(expected, got int) error {
	return &rag.EmbeddingServiceError{
		Message: fmt.Sprintf("embedding count mismatch: expected %d, got %d", expected, got),
	}
}
