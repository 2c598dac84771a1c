package ingestion

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// TextExtractor はアップロードされたバイト列からテキストを取り出す
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (*rag.ExtractedText, error)
}

// Embedder はテキストをベクトルに変換する
// 戻り値の順序は入力と一致する
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	MaxBatchSize() int
}

// DocumentRepository はドキュメントのメタデータを永続化する
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *rag.Document) error
	MarkDocumentReady(ctx context.Context, id uuid.UUID, chunkCount, totalTokens int) error
	GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*rag.Document], error)
	ListDocuments(ctx context.Context) ([]*rag.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}
