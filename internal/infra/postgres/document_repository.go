package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/core/rag"
)

const documentColumns = `id, filename, content, text_length, page_count, chunk_count, total_tokens, status, uploaded_at`

// DocumentRepository は ingestion.DocumentRepository を実装する PostgreSQL リポジトリ
type DocumentRepository struct {
	db DBTX
}

// NewDocumentRepository は新しい DocumentRepository を作成する
func NewDocumentRepository(db DBTX) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// コンパイル時の型チェック
var _ ingestion.DocumentRepository = (*DocumentRepository)(nil)

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *rag.Document) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		UUIDToPgtype(doc.ID),
		doc.Filename,
		doc.Text,
		doc.TextLength,
		doc.PageCount,
		doc.ChunkCount,
		doc.TotalTokens,
		string(doc.Status),
		TimeToPgtype(doc.UploadedAt),
	)
	if err != nil {
		return classify("create document", err)
	}
	return nil
}

func (r *DocumentRepository) MarkDocumentReady(ctx context.Context, id uuid.UUID, chunkCount, totalTokens int) error {
	tag, err := r.db.Exec(ctx, `
UPDATE documents SET status = $2, chunk_count = $3, total_tokens = $4
WHERE id = $1`,
		UUIDToPgtype(id), string(rag.DocumentStatusReady), chunkCount, totalTokens,
	)
	if err != nil {
		return classify("update document status", err)
	}
	if tag.RowsAffected() == 0 {
		return rag.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*rag.Document], error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, UUIDToPgtype(id))
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*rag.Document](), nil
		}
		return mo.None[*rag.Document](), classify("get document", err)
	}
	return mo.Some(doc), nil
}

// ListDocuments はアップロード日時の新しい順に返す
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]*rag.Document, error) {
	rows, err := r.db.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, filename`)
	if err != nil {
		return nil, classify("list documents", err)
	}
	defer rows.Close()

	docs := make([]*rag.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list documents", err)
	}
	return docs, nil
}

// DeleteDocument はドキュメントを削除する（チャンクは外部キーで連鎖削除される）
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, UUIDToPgtype(id))
	if err != nil {
		return classify("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return rag.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*rag.Document, error) {
	var (
		id          pgtype.UUID
		doc         rag.Document
		status      string
		uploadedAt  pgtype.Timestamptz
		textLength  int32
		pageCount   int32
		chunkCount  int32
		totalTokens int32
	)
	if err := row.Scan(&id, &doc.Filename, &doc.Text, &textLength, &pageCount, &chunkCount, &totalTokens, &status, &uploadedAt); err != nil {
		return nil, err
	}
	doc.ID = PgtypeToUUID(id)
	doc.TextLength = int(textLength)
	doc.PageCount = int(pageCount)
	doc.ChunkCount = int(chunkCount)
	doc.TotalTokens = int(totalTokens)
	doc.Status = rag.DocumentStatus(status)
	doc.UploadedAt = PgtypeToTime(uploadedAt)
	return &doc, nil
}
