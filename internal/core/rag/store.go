package rag

import (
	"context"

	"github.com/google/uuid"
)

// VectorStore はチャンクベクトルの保存と近傍検索を提供する
// 永続（pgvector）とインメモリの 2 実装があり、起動時に一度だけ選択する
type VectorStore interface {
	// Upsert はチャンクごとに 1 レコードを保存する。同じ複合IDは上書きされる
	Upsert(ctx context.Context, doc DocumentRef, chunks []Chunk, vectors [][]float32) error

	// Search は類似度の降順で最大 topK 件を返す
	// 同スコアはチャンク番号の昇順、次にドキュメントIDの昇順で並べる
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)

	// DeleteByDocument はドキュメントに属する全チャンクを削除する
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}
