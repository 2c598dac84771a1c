package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// Extractor は PDF からページ単位でテキストを抽出します
type Extractor struct {
	logger *slog.Logger
}

// Option は Extractor のオプションです
type Option func(*Extractor)

// WithLogger はロガーを設定します
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor は Extractor を作成します
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract は PDF の各ページのテキストを "--- Page N ---" 区切りで連結して返します。
// テキストの無いページは出力に含めませんが PageCount には数えます。
func (e *Extractor) Extract(ctx context.Context, data []byte) (result *rag.ExtractedText, err error) {
	// 壊れた PDF ではライブラリが panic することがある
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &rag.ExtractionError{Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	if len(data) == 0 {
		return nil, &rag.ExtractionError{Err: errors.New("empty pdf data")}
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &rag.ExtractionError{Err: err}
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to extract page text", "page", i, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("--- Page %d ---\n%s", i, text))
	}

	e.logger.Debug("pdf extracted", "pages", numPages, "pagesWithText", len(pages))

	return &rag.ExtractedText{
		Text:      strings.Join(pages, "\n\n"),
		PageCount: numPages,
	}, nil
}
