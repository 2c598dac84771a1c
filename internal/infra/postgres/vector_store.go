package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// DefaultSearchTimeout は類似検索 1 回あたりのタイムアウト
const DefaultSearchTimeout = 10 * time.Second

const upsertChunkSQL = `
INSERT INTO chunks (id, document_id, chunk_index, filename, content, token_count, page, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    document_id = EXCLUDED.document_id,
    chunk_index = EXCLUDED.chunk_index,
    filename    = EXCLUDED.filename,
    content     = EXCLUDED.content,
    token_count = EXCLUDED.token_count,
    page        = EXCLUDED.page,
    embedding   = EXCLUDED.embedding`

// searchChunksSQL は内側で距離のみで並べて HNSW インデックスを使わせ、
// 同点の並び替えは外側で行う
const searchChunksSQL = `
SELECT document_id, chunk_index, filename, content, token_count, page,
       1 - distance AS score
FROM (
    SELECT document_id, chunk_index, filename, content, token_count, page,
           embedding <=> $1 AS distance
    FROM chunks
    ORDER BY embedding <=> $1
    LIMIT $2
) AS nearest
ORDER BY distance, chunk_index, document_id`

const deleteChunksByDocumentSQL = `DELETE FROM chunks WHERE document_id = $1`

// VectorStore は pgvector を使った rag.VectorStore 実装
type VectorStore struct {
	db            DBTX
	searchTimeout time.Duration
}

var _ rag.VectorStore = (*VectorStore)(nil)

// NewVectorStore は VectorStore を作成する
func NewVectorStore(db DBTX) *VectorStore {
	return &VectorStore{db: db, searchTimeout: DefaultSearchTimeout}
}

// WithSearchTimeout は検索タイムアウトを変更した VectorStore を返す
func (s *VectorStore) WithSearchTimeout(timeout time.Duration) *VectorStore {
	if timeout > 0 {
		s.searchTimeout = timeout
	}
	return s
}

// Upsert はチャンクとベクトルを 1 トランザクションで書き込む
func (s *VectorStore) Upsert(ctx context.Context, doc rag.DocumentRef, chunks []rag.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classify("begin upsert", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for i, ch := range chunks {
		batch.Queue(upsertChunkSQL,
			rag.ChunkID(doc.ID, ch.Index),
			UUIDToPgtype(doc.ID),
			ch.Index,
			doc.Filename,
			ch.Text,
			ch.Tokens,
			OptionToPgint4(ch.Page),
			pgvector.NewVector(vectors[i]),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return classify("upsert chunk", err)
		}
	}
	if err := br.Close(); err != nil {
		return classify("upsert chunks", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit upsert", err)
	}
	return nil
}

// Search はコサイン距離の近い順に最大 topK 件を返す
func (s *VectorStore) Search(ctx context.Context, vector []float32, topK int) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, searchChunksSQL, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, classify("search chunks", err)
	}
	defer rows.Close()

	results := make([]rag.SearchResult, 0, topK)
	for rows.Next() {
		var (
			documentID pgtype.UUID
			index      int32
			filename   string
			content    string
			tokens     int32
			page       pgtype.Int4
			score      float64
		)
		if err := rows.Scan(&documentID, &index, &filename, &content, &tokens, &page, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, rag.SearchResult{
			Chunk: rag.Chunk{
				DocumentID: PgtypeToUUID(documentID),
				Index:      int(index),
				Text:       content,
				Tokens:     int(tokens),
				Page:       Pgint4ToOption(page),
			},
			Filename: filename,
			Score:    math.Max(0, math.Min(1, score)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("search chunks", err)
	}
	return results, nil
}

// DeleteByDocument はドキュメントに属するチャンクを削除する
func (s *VectorStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, deleteChunksByDocumentSQL, UUIDToPgtype(documentID)); err != nil {
		return classify("delete chunks", err)
	}
	return nil
}
