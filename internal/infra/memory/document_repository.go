package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/core/rag"
)

// DocumentRepository はドキュメントのメタデータをメモリ上に保持する
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]rag.Document
}

var _ ingestion.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository は DocumentRepository を作成する
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{docs: make(map[uuid.UUID]rag.Document)}
}

func (r *DocumentRepository) CreateDocument(_ context.Context, doc *rag.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = *doc
	return nil
}

func (r *DocumentRepository) MarkDocumentReady(_ context.Context, id uuid.UUID, chunkCount, totalTokens int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return rag.ErrDocumentNotFound
	}
	doc.Status = rag.DocumentStatusReady
	doc.ChunkCount = chunkCount
	doc.TotalTokens = totalTokens
	r.docs[id] = doc
	return nil
}

func (r *DocumentRepository) GetDocument(_ context.Context, id uuid.UUID) (mo.Option[*rag.Document], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return mo.None[*rag.Document](), nil
	}
	return mo.Some(&doc), nil
}

// ListDocuments はアップロード日時の新しい順に返す
func (r *DocumentRepository) ListDocuments(_ context.Context) ([]*rag.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*rag.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, &doc)
	}
	slices.SortFunc(docs, func(a, b *rag.Document) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Filename, b.Filename)
	})
	return docs, nil
}

func (r *DocumentRepository) DeleteDocument(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return rag.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}
