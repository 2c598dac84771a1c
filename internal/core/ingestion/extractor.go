package ingestion

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// PlainTextExtractor は UTF-8 のテキストファイルをそのまま返す
type PlainTextExtractor struct{}

var _ TextExtractor = (*PlainTextExtractor)(nil)

// NewPlainTextExtractor は PlainTextExtractor を作成する
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract はバイナリや不正な UTF-8 を ExtractionError として拒否する
func (e *PlainTextExtractor) Extract(_ context.Context, data []byte) (*rag.ExtractedText, error) {
	if enry.IsBinary(data) {
		return nil, &rag.ExtractionError{Err: errors.New("binary content is not a text document")}
	}
	if !utf8.Valid(data) {
		return nil, &rag.ExtractionError{Err: errors.New("text is not valid UTF-8")}
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &rag.ExtractedText{
		Text:      text,
		PageCount: 0,
	}, nil
}
