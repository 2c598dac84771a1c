package chunk

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// ErrInvalidChunkConfig はチャンクサイズとオーバーラップの組み合わせが不正な場合のエラーです
var ErrInvalidChunkConfig = errors.New("chunk overlap must be smaller than chunk size")

// Chunker はテキストをチャンク列に分割します
type Chunker interface {
	Chunk(text string) []rag.Chunk
}

// TokenCounter はテキストのトークン数を数えます
type TokenCounter interface {
	CountTokens(text string) int
}

// pageMarkerPattern は PDF 抽出時に挿入されるページ区切りにマッチします
var pageMarkerPattern = regexp.MustCompile(`--- Page (\d+) ---`)

// pageMarkers は text 中のページ番号を出現順に返します
func pageMarkers(text string) []int {
	matches := pageMarkerPattern.FindAllStringSubmatch(text, -1)
	pages := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, n)
	}
	return pages
}
