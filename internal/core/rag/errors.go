package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument は抽出結果が空のドキュメント
	ErrEmptyDocument = errors.New("no text found in document")

	// ErrNoChunks はチャンクが 1 件も生成されなかった
	ErrNoChunks = errors.New("document produced no chunks")

	// ErrUnsupportedFileType は対応していない拡張子
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge はアップロードサイズ上限超過
	ErrFileTooLarge = errors.New("file too large")

	// ErrDocumentNotFound は指定IDのドキュメントが存在しない
	ErrDocumentNotFound = errors.New("document not found")
)

// ExtractionError は入力ドキュメントを解析できなかったことを表す
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Filename == "" {
		return fmt.Sprintf("text extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("text extraction failed for %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingServiceError は Embedding API の失敗を表す
// StatusCode はトランスポートエラーやタイムアウトの場合 0
type EmbeddingServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *EmbeddingServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding service error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("embedding service error: %s", e.Message)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// StoreUnavailableError はベクトルストアに到達できないことを表す
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("vector store unavailable (%s): %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// GenerationError は Completion API の失敗を表す
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IngestError は取り込み失敗を元のファイル名付きで呼び出し元へ返す
type IngestError struct {
	Filename string
	Err      error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("failed to ingest %s: %v", e.Filename, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// Message はユーザー向けのメッセージを返す
func (e *IngestError) Message() string {
	var extractErr *ExtractionError
	var embedErr *EmbeddingServiceError
	var storeErr *StoreUnavailableError
	switch {
	case errors.As(e.Err, &extractErr):
		return "The file could not be read as a valid document"
	case errors.Is(e.Err, ErrEmptyDocument):
		return "No text was found in the document"
	case errors.Is(e.Err, ErrNoChunks):
		return "The document text could not be processed"
	case errors.Is(e.Err, ErrUnsupportedFileType):
		return "Unsupported file type"
	case errors.Is(e.Err, ErrFileTooLarge):
		return "The file is too large"
	case errors.As(e.Err, &embedErr):
		return "Embeddings could not be created for the document"
	case errors.As(e.Err, &storeErr):
		return "The document store is unavailable"
	default:
		return "The document could not be processed"
	}
}

// IsClientError は入力起因の失敗かどうかを返す
func IsClientError(err error) bool {
	var extractErr *ExtractionError
	return errors.As(err, &extractErr) ||
		errors.Is(err, ErrEmptyDocument) ||
		errors.Is(err, ErrNoChunks) ||
		errors.Is(err, ErrUnsupportedFileType) ||
		errors.Is(err, ErrFileTooLarge)
}
