package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/rag"
)

const (
	// DefaultParagraphSize は段落モードの既定チャンクサイズ（文字数）です
	DefaultParagraphSize = 1000
	// DefaultParagraphOverlap は段落モードの既定オーバーラップ（文字数）です
	DefaultParagraphOverlap = 200

	paragraphSeparator = "\n\n"
)

// ParagraphChunker は空行区切りの段落を貪欲に詰めてチャンク化します。
// サイズとオーバーラップは文字（rune）数で、1 段落がサイズを超える場合は分割しません。
type ParagraphChunker struct {
	size    int
	overlap int
	counter TokenCounter
}

var _ Chunker = (*ParagraphChunker)(nil)

// NewParagraphChunker は ParagraphChunker を作成します
func NewParagraphChunker(size, overlap int, counter TokenCounter) (*ParagraphChunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunkConfig
	}
	return &ParagraphChunker{
		size:    size,
		overlap: overlap,
		counter: counter,
	}, nil
}

// pendingChunk は組み立て中のチャンクです
type pendingChunk struct {
	text string
	page mo.Option[int]
}

// Chunk はテキストをチャンク化します。空のテキストは空スライスを返します。
func (c *ParagraphChunker) Chunk(text string) []rag.Chunk {
	chunks := make([]rag.Chunk, 0)
	if strings.TrimSpace(text) == "" {
		return chunks
	}

	var (
		current  pendingChunk
		lastPage = mo.None[int]()
		seen     = make(map[string]struct{})
	)

	// 同一ドキュメント内で同じ本文のチャンクは一度だけ出力する
	emit := func(p pendingChunk) {
		trimmed := strings.TrimSpace(p.text)
		if trimmed == "" {
			return
		}
		if _, dup := seen[trimmed]; dup {
			return
		}
		seen[trimmed] = struct{}{}
		chunks = append(chunks, rag.Chunk{
			Index:  len(chunks),
			Text:   trimmed,
			Tokens: c.countTokens(trimmed),
			Page:   p.page,
		})
	}

	for _, paragraph := range strings.Split(text, paragraphSeparator) {
		startPage := lastPage
		markers := pageMarkers(paragraph)
		if len(markers) > 0 {
			if strings.HasPrefix(strings.TrimSpace(paragraph), "--- Page ") {
				startPage = mo.Some(markers[0])
			}
			lastPage = mo.Some(markers[len(markers)-1])
		}

		candidate := paragraph
		if current.text != "" {
			candidate = current.text + paragraphSeparator + paragraph
		}

		if utf8.RuneCountInString(candidate) <= c.size {
			if current.text == "" {
				current.page = startPage
			}
			current.text = candidate
			continue
		}

		emit(current)

		if utf8.RuneCountInString(current.text) > c.overlap {
			current = pendingChunk{
				text: tailRunes(current.text, c.overlap) + paragraphSeparator + paragraph,
				page: startPage,
			}
		} else {
			current = pendingChunk{text: paragraph, page: startPage}
		}
	}

	emit(current)
	return chunks
}

func (c *ParagraphChunker) countTokens(text string) int {
	if c.counter == nil {
		return 0
	}
	return c.counter.CountTokens(text)
}

// tailRunes は s の末尾 n 文字を返します
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
