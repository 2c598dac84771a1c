package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gpsrag/internal/core/ingestion/chunk"
	"github.com/jinford/gpsrag/internal/core/rag"
)

type stubEmbedder struct {
	mu        sync.Mutex
	batchSize int
	calls     int
	err       error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

func (e *stubEmbedder) MaxBatchSize() int {
	if e.batchSize == 0 {
		return 100
	}
	return e.batchSize
}

type stubStore struct {
	upserted  map[uuid.UUID][]rag.Chunk
	vectors   map[uuid.UUID][][]float32
	deleted   []uuid.UUID
	upsertErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		upserted: make(map[uuid.UUID][]rag.Chunk),
		vectors:  make(map[uuid.UUID][][]float32),
	}
}

func (s *stubStore) Upsert(_ context.Context, doc rag.DocumentRef, chunks []rag.Chunk, vectors [][]float32) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserted[doc.ID] = chunks
	s.vectors[doc.ID] = vectors
	return nil
}

func (s *stubStore) Search(context.Context, []float32, int) ([]rag.SearchResult, error) {
	return nil, nil
}

func (s *stubStore) DeleteByDocument(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.upserted, id)
	return nil
}

type stubDocuments struct {
	docs map[uuid.UUID]*rag.Document
}

func newStubDocuments() *stubDocuments {
	return &stubDocuments{docs: make(map[uuid.UUID]*rag.Document)}
}

func (r *stubDocuments) CreateDocument(_ context.Context, doc *rag.Document) error {
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *stubDocuments) MarkDocumentReady(_ context.Context, id uuid.UUID, chunkCount, totalTokens int) error {
	doc, ok := r.docs[id]
	if !ok {
		return rag.ErrDocumentNotFound
	}
	doc.Status = rag.DocumentStatusReady
	doc.ChunkCount = chunkCount
	doc.TotalTokens = totalTokens
	return nil
}

func (r *stubDocuments) GetDocument(_ context.Context, id uuid.UUID) (mo.Option[*rag.Document], error) {
	doc, ok := r.docs[id]
	if !ok {
		return mo.None[*rag.Document](), nil
	}
	return mo.Some(doc), nil
}

func (r *stubDocuments) ListDocuments(context.Context) ([]*rag.Document, error) {
	docs := make([]*rag.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *stubDocuments) DeleteDocument(_ context.Context, id uuid.UUID) error {
	if _, ok := r.docs[id]; !ok {
		return rag.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

type wordCounter struct{}

func (wordCounter) CountTokens(text string) int { return len(strings.Fields(text)) }

type fixture struct {
	service   *Service
	embedder  *stubEmbedder
	store     *stubStore
	documents *stubDocuments
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	chunker, err := chunk.NewParagraphChunker(60, 10, wordCounter{})
	require.NoError(t, err)

	f := &fixture{
		embedder:  &stubEmbedder{},
		store:     newStubStore(),
		documents: newStubDocuments(),
	}
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	opts = append([]ServiceOption{WithClock(func() time.Time { return fixed })}, opts...)
	f.service = NewService(chunker, f.embedder, f.store, f.documents, opts...)
	return f
}

const sampleText = "GPS satellites broadcast navigation messages.\n\n" +
	"A receiver needs four satellites for a 3D fix.\n\n" +
	"The u-blox module outputs NMEA sentences over UART."

func TestService_Ingest(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Ingest(context.Background(), "receiver.TXT", []byte(sampleText))
	require.NoError(t, err)

	assert.Equal(t, "receiver.TXT", result.Filename)
	assert.Greater(t, result.ChunksCount, 1)
	assert.Equal(t, len([]rune(sampleText)), result.TextLength)
	assert.Positive(t, result.TotalTokens)

	chunks := f.store.upserted[result.DocumentID]
	require.Len(t, chunks, result.ChunksCount)
	require.Len(t, f.store.vectors[result.DocumentID], result.ChunksCount)
	for i, ch := range chunks {
		assert.Equal(t, result.DocumentID, ch.DocumentID)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, float32(len(ch.Text)), f.store.vectors[result.DocumentID][i][0])
	}

	doc := f.documents.docs[result.DocumentID]
	require.NotNil(t, doc)
	assert.Equal(t, rag.DocumentStatusReady, doc.Status)
	assert.Equal(t, result.ChunksCount, doc.ChunkCount)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), doc.UploadedAt)
}

func TestService_Ingest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		opts     []ServiceOption
		check    func(t *testing.T, err error)
	}{
		{
			name:     "空のテキスト",
			filename: "empty.txt",
			data:     []byte("   \n\n  "),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rag.ErrEmptyDocument)
			},
		},
		{
			name:     "未対応の拡張子",
			filename: "image.png",
			data:     []byte("data"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rag.ErrUnsupportedFileType)
			},
		},
		{
			name:     "サイズ上限超過",
			filename: "big.txt",
			data:     []byte(strings.Repeat("a", 11)),
			opts:     []ServiceOption{WithMaxUploadBytes(10)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, rag.ErrFileTooLarge)
			},
		},
		{
			name:     "バイナリデータ",
			filename: "binary.txt",
			data:     []byte{0x00, 0x01, 0x02, 0x00, 0xff},
			check: func(t *testing.T, err error) {
				var extractErr *rag.ExtractionError
				require.ErrorAs(t, err, &extractErr)
				assert.Equal(t, "binary.txt", extractErr.Filename)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)

			_, err := f.service.Ingest(context.Background(), tt.filename, tt.data)
			require.Error(t, err)

			var ingestErr *rag.IngestError
			require.ErrorAs(t, err, &ingestErr)
			assert.Equal(t, tt.filename, ingestErr.Filename)
			assert.True(t, rag.IsClientError(err))
			tt.check(t, err)

			assert.Zero(t, f.embedder.calls)
			assert.Empty(t, f.documents.docs)
			assert.Empty(t, f.store.upserted)
		})
	}
}

func TestService_Ingest_EmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = &rag.EmbeddingServiceError{StatusCode: 500, Message: "boom"}

	_, err := f.service.Ingest(context.Background(), "doc.txt", []byte(sampleText))

	var embedErr *rag.EmbeddingServiceError
	require.ErrorAs(t, err, &embedErr)
	assert.False(t, rag.IsClientError(err))
	assert.Empty(t, f.documents.docs)
	assert.Empty(t, f.store.upserted)
}

func TestService_Ingest_UpsertFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.upsertErr = &rag.StoreUnavailableError{Op: "upsert", Err: errors.New("connection refused")}

	_, err := f.service.Ingest(context.Background(), "doc.txt", []byte(sampleText))

	var storeErr *rag.StoreUnavailableError
	require.ErrorAs(t, err, &storeErr)
	assert.Empty(t, f.documents.docs)
	assert.Len(t, f.store.deleted, 1)
}

func TestService_Ingest_SplitsLargeEmbeddingInput(t *testing.T) {
	f := newFixture(t, WithEmbeddingConcurrency(2))
	f.embedder.batchSize = 2

	var paragraphs []string
	for i := 0; i < 7; i++ {
		paragraphs = append(paragraphs, strings.Repeat("x", 40+i))
	}

	result, err := f.service.Ingest(context.Background(), "batch.txt", []byte(strings.Join(paragraphs, "\n\n")))
	require.NoError(t, err)

	chunks := f.store.upserted[result.DocumentID]
	vectors := f.store.vectors[result.DocumentID]
	require.Len(t, vectors, len(chunks))
	for i, ch := range chunks {
		assert.Equal(t, float32(len(ch.Text)), vectors[i][0], "vector order must follow chunk order")
	}
	assert.Equal(t, (len(chunks)+1)/2, f.embedder.calls)
}

func TestService_DeleteDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Ingest(ctx, "doc.txt", []byte(sampleText))
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteDocument(ctx, result.DocumentID))
	assert.NotContains(t, f.documents.docs, result.DocumentID)
	assert.NotContains(t, f.store.upserted, result.DocumentID)

	err = f.service.DeleteDocument(ctx, result.DocumentID)
	assert.ErrorIs(t, err, rag.ErrDocumentNotFound)
}

func TestService_GetAndListDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.service.Ingest(ctx, "doc.txt", []byte(sampleText))
	require.NoError(t, err)

	found, err := f.service.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	require.True(t, found.IsPresent())
	assert.Equal(t, "doc.txt", found.MustGet().Filename)

	missing, err := f.service.GetDocument(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, missing.IsPresent())

	docs, err := f.service.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

type stubProvider struct {
	docs    []*SourceDocument
	ignored map[string]bool
}

func (p *stubProvider) GetSourceType() SourceType { return SourceTypeDirectory }

func (p *stubProvider) FetchDocuments(context.Context, SourceParams) ([]*SourceDocument, error) {
	return p.docs, nil
}

func (p *stubProvider) ShouldIgnore(doc *SourceDocument) bool { return p.ignored[doc.Path] }

func TestService_IngestSource(t *testing.T) {
	f := newFixture(t)

	provider := &stubProvider{
		docs: []*SourceDocument{
			{Path: "manuals/gps.txt", Content: []byte(sampleText)},
			{Path: "manuals/empty.txt", Content: []byte("")},
			{Path: "logo.png", Content: []byte{0x89, 0x50}},
			{Path: "drafts/notes.txt", Content: []byte("ignored")},
		},
		ignored: map[string]bool{"drafts/notes.txt": true},
	}

	result, err := f.service.IngestSource(context.Background(), provider, SourceParams{Identifier: "/docs"})
	require.NoError(t, err)

	require.Len(t, result.Ingested, 1)
	assert.Equal(t, "manuals/gps.txt", result.Ingested[0].Path)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "manuals/empty.txt", result.Failures[0].Path)
	assert.ErrorIs(t, result.Failures[0].Err, rag.ErrEmptyDocument)
}
