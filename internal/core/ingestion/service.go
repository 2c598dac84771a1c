package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/ingestion/chunk"
	"github.com/jinford/gpsrag/internal/core/rag"
)

// DefaultMaxUploadBytes はアップロードサイズの既定上限（10MiB）
const DefaultMaxUploadBytes = 10 << 20

// Service はドキュメントの取り込みと管理のユースケースを提供する
type Service struct {
	extractors  map[string]TextExtractor
	chunker     chunk.Chunker
	embedder    Embedder
	store       rag.VectorStore
	documents   DocumentRepository
	maxBytes    int64
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

type serviceOptions struct {
	extractors  map[string]TextExtractor
	maxBytes    int64
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithIngestLogger はロガーを設定する
func WithIngestLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithExtractor は拡張子（".pdf" など）に対応する抽出器を登録する
func WithExtractor(ext string, extractor TextExtractor) ServiceOption {
	return func(o *serviceOptions) {
		o.extractors[strings.ToLower(ext)] = extractor
	}
}

// WithMaxUploadBytes はアップロードサイズ上限を設定する
func WithMaxUploadBytes(n int64) ServiceOption {
	return func(o *serviceOptions) {
		o.maxBytes = n
	}
}

// WithEmbeddingConcurrency はバッチ分割時の同時リクエスト数を設定する
func WithEmbeddingConcurrency(n int) ServiceOption {
	return func(o *serviceOptions) {
		o.concurrency = n
	}
}

// WithClock は現在時刻の取得方法を差し替える
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		o.now = now
	}
}

// NewService は Service を作成する
// 既定では ".txt" に PlainTextExtractor が登録される
func NewService(
	chunker chunk.Chunker,
	embedder Embedder,
	store rag.VectorStore,
	documents DocumentRepository,
	opts ...ServiceOption,
) *Service {
	options := serviceOptions{
		extractors: map[string]TextExtractor{
			".txt": NewPlainTextExtractor(),
		},
		maxBytes:    DefaultMaxUploadBytes,
		concurrency: DefaultEmbeddingConcurrency,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.maxBytes <= 0 {
		options.maxBytes = DefaultMaxUploadBytes
	}

	return &Service{
		extractors:  options.extractors,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		documents:   documents,
		maxBytes:    options.maxBytes,
		concurrency: options.concurrency,
		now:         options.now,
		logger:      options.logger,
	}
}

// Supports は拡張子が取り込み対象かどうかを返す
func (s *Service) Supports(filename string) bool {
	_, ok := s.extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extensions は取り込み可能な拡張子を昇順で返す
func (s *Service) Extensions() []string {
	exts := make([]string, 0, len(s.extractors))
	for ext := range s.extractors {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// MaxUploadBytes はアップロードサイズの上限を返す
func (s *Service) MaxUploadBytes() int64 {
	return s.maxBytes
}

// Ingest はファイルを抽出・チャンク化・ベクトル化してストアへ書き込む
// 失敗は常に *rag.IngestError で返す
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (*rag.UploadResult, error) {
	result, err := s.ingest(ctx, filename, data)
	if err != nil {
		s.logger.Warn("ドキュメントの取り込みに失敗", "filename", filename, "error", err)
		return nil, &rag.IngestError{Filename: filename, Err: err}
	}
	return result, nil
}

func (s *Service) ingest(ctx context.Context, filename string, data []byte) (*rag.UploadResult, error) {
	extractor, ok := s.extractors[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rag.ErrUnsupportedFileType, filepath.Ext(filename))
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", rag.ErrFileTooLarge, len(data), s.maxBytes)
	}

	extracted, err := extractor.Extract(ctx, data)
	if err != nil {
		var extractErr *rag.ExtractionError
		if errors.As(err, &extractErr) && extractErr.Filename == "" {
			extractErr.Filename = filename
		}
		return nil, err
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return nil, rag.ErrEmptyDocument
	}

	chunks := s.chunker.Chunk(extracted.Text)
	if len(chunks) == 0 {
		return nil, rag.ErrNoChunks
	}

	doc := &rag.Document{
		ID:         uuid.New(),
		Filename:   filename,
		Text:       extracted.Text,
		TextLength: len([]rune(extracted.Text)),
		PageCount:  extracted.PageCount,
		Status:     rag.DocumentStatusProcessing,
		UploadedAt: s.now().UTC(),
	}

	texts := make([]string, len(chunks))
	totalTokens := 0
	for i := range chunks {
		chunks[i].DocumentID = doc.ID
		texts[i] = chunks[i].Text
		totalTokens += chunks[i].Tokens
	}
	doc.ChunkCount = len(chunks)
	doc.TotalTokens = totalTokens

	s.logger.Info("ドキュメントを取り込み中",
		"filename", filename,
		"documentId", doc.ID,
		"pages", extracted.PageCount,
		"chunks", len(chunks),
	)

	vectors, err := embedAll(ctx, s.embedder, texts, s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	if err := s.store.Upsert(ctx, doc.Ref(), chunks, vectors); err != nil {
		s.rollback(ctx, doc.ID)
		return nil, fmt.Errorf("failed to store vectors: %w", err)
	}

	if err := s.documents.MarkDocumentReady(ctx, doc.ID, len(chunks), totalTokens); err != nil {
		s.rollback(ctx, doc.ID)
		return nil, fmt.Errorf("failed to mark document ready: %w", err)
	}

	s.logger.Info("ドキュメントの取り込みが完了",
		"filename", filename,
		"documentId", doc.ID,
		"chunks", len(chunks),
		"totalTokens", totalTokens,
	)

	return &rag.UploadResult{
		DocumentID:  doc.ID,
		Filename:    filename,
		ChunksCount: len(chunks),
		TotalTokens: totalTokens,
		TextLength:  doc.TextLength,
		PageCount:   doc.PageCount,
	}, nil
}

// rollback は書き込み途中のベクトルとドキュメントを削除する（失敗はログのみ）
func (s *Service) rollback(ctx context.Context, id uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.DeleteByDocument(ctx, id); err != nil {
		s.logger.Warn("ロールバック時のベクトル削除に失敗", "documentId", id, "error", err)
	}
	if err := s.documents.DeleteDocument(ctx, id); err != nil && !errors.Is(err, rag.ErrDocumentNotFound) {
		s.logger.Warn("ロールバック時のドキュメント削除に失敗", "documentId", id, "error", err)
	}
}

// DeleteDocument はドキュメントとそのベクトルを削除する
func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	found, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if found.IsAbsent() {
		return rag.ErrDocumentNotFound
	}

	if err := s.store.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := s.documents.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Info("ドキュメントを削除", "documentId", id, "filename", found.MustGet().Filename)
	return nil
}

// ListDocuments はドキュメント一覧をアップロード日時の新しい順に返す
func (s *Service) ListDocuments(ctx context.Context) ([]*rag.Document, error) {
	docs, err := s.documents.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// GetDocument は ID でドキュメントを取得する
func (s *Service) GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*rag.Document], error) {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return mo.None[*rag.Document](), fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}
