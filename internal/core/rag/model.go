package rag

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// DocumentStatus はドキュメントの処理状態を表す
type DocumentStatus string

const (
	// DocumentStatusProcessing はチャンク・ベクトルを書き込み中の状態
	DocumentStatusProcessing DocumentStatus = "processing"
	// DocumentStatusReady は検索可能な状態
	DocumentStatusReady DocumentStatus = "ready"
)

// Document はアップロードされたドキュメントを表す
// 保存後は Status 以外変更しない
type Document struct {
	ID          uuid.UUID      `json:"id"`
	Filename    string         `json:"filename"`
	Text        string         `json:"-"`
	TextLength  int            `json:"textLength"`
	PageCount   int            `json:"pageCount"`
	ChunkCount  int            `json:"chunkCount"`
	TotalTokens int            `json:"totalTokens"`
	Status      DocumentStatus `json:"status"`
	UploadedAt  time.Time      `json:"uploadedAt"`
}

// Ref はベクトルストアに渡すドキュメント参照を返す
func (d *Document) Ref() DocumentRef {
	return DocumentRef{ID: d.ID, Filename: d.Filename}
}

// DocumentRef はチャンクのメタデータに埋め込むドキュメント情報
type DocumentRef struct {
	ID       uuid.UUID
	Filename string
}

// Chunk はドキュメントの一部分を表す
type Chunk struct {
	DocumentID uuid.UUID
	Index      int            // ドキュメント内で 0 始まりの連番
	Text       string         // トリム後に空でない
	Tokens     int            // cl100k_base でのトークン数
	Page       mo.Option[int] // 直前のページマーカーから求めたページ番号
}

// ChunkID はベクトルストア上の複合IDを返す
// 形式: {documentId}_chunk_{chunkIndex}
func ChunkID(documentID uuid.UUID, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// ExtractedText はテキスト抽出の結果
type ExtractedText struct {
	Text      string
	PageCount int
}

// Query はチャットの質問を表す（永続化しない）
type Query struct {
	Text           string
	SessionID      mo.Option[string]
	IncludeGPSData bool
}

// SearchResult はベクトル検索の結果を表す
// ストア実装に関わらずこの構造に統一してからコアへ渡す
type SearchResult struct {
	Chunk    Chunk
	Filename string
	Score    float64 // 類似度 [0,1]、大きいほど関連度が高い
}

// SourceCitation は回答の根拠となったソース参照
type SourceCitation struct {
	Filename       string  `json:"filename"`
	Excerpt        string  `json:"excerpt"`
	Page           *int    `json:"page,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// AnswerPayload はチャット応答を表す
type AnswerPayload struct {
	Response       string           `json:"response"`
	Sources        []SourceCitation `json:"sources"`
	ContextUsed    bool             `json:"context_used"`
	Confidence     float64          `json:"confidence"`
	Fallback       bool             `json:"fallback,omitempty"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	Error          string           `json:"error,omitempty"`
	SessionID      string           `json:"session_id,omitempty"`
}

// UploadResult はドキュメント取り込みの結果
type UploadResult struct {
	DocumentID  uuid.UUID `json:"documentId"`
	Filename    string    `json:"filename"`
	ChunksCount int       `json:"chunksCount"`
	TotalTokens int       `json:"totalTokens"`
	TextLength  int       `json:"textLength"`
	PageCount   int       `json:"pageCount"`
}

// CompletionRequest は LLM への補完リクエスト
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}
