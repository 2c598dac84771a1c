package chunk

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/rag"
)

const (
	// DefaultWindowSize はウィンドウモードの既定チャンクサイズ（文字数）です
	DefaultWindowSize = 500
	// DefaultWindowOverlap はウィンドウモードの既定オーバーラップ（文字数）です
	DefaultWindowOverlap = 50
)

// WindowChunker は空白を正規化したテキストを固定幅のウィンドウで切り出します。
// 可能な限り文末（'.'）か単語境界で区切ります。
type WindowChunker struct {
	size    int
	overlap int
	counter TokenCounter
}

var _ Chunker = (*WindowChunker)(nil)

// NewWindowChunker は WindowChunker を作成します。counter は nil でも構いません。
func NewWindowChunker(size, overlap int, counter TokenCounter) (*WindowChunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, ErrInvalidChunkConfig
	}
	return &WindowChunker{
		size:    size,
		overlap: overlap,
		counter: counter,
	}, nil
}

// Chunk はテキストをウィンドウ単位でチャンク化します
func (c *WindowChunker) Chunk(text string) []rag.Chunk {
	chunks := make([]rag.Chunk, 0)
	normalized := strings.Join(strings.Fields(text), " ")
	runes := []rune(normalized)
	if len(runes) == 0 {
		return chunks
	}
	markers := pageMarkerOffsets(normalized)
	seen := make(map[string]struct{})

	start := 0
	for start < len(runes) {
		end := c.cut(runes, start)

		piece := strings.TrimSpace(string(runes[start:end]))
		if _, dup := seen[piece]; piece != "" && !dup {
			seen[piece] = struct{}{}
			chunks = append(chunks, rag.Chunk{
				Index:  len(chunks),
				Text:   piece,
				Tokens: c.countTokens(piece),
				Page:   pageAt(markers, start+leadingSpaces(runes[start:end])),
			})
		}

		if end >= len(runes) {
			break
		}
		start = c.nextStart(runes, start, end)
	}
	return chunks
}

// cut は start から始まるウィンドウの終端位置を返します
func (c *WindowChunker) cut(runes []rune, start int) int {
	end := start + c.size
	if end >= len(runes) {
		return len(runes)
	}

	if period := lastIndex(runes, start, end, '.'); period > start+c.size/2 {
		return period + 1
	}
	if space := lastIndex(runes, start, end, ' '); space > start {
		return space
	}
	return end
}

// nextStart は次のウィンドウの開始位置を返します。
// オーバーラップ開始が単語の途中に落ちる場合は次の単語境界まで進め、必ず 1 文字以上前進します。
func (c *WindowChunker) nextStart(runes []rune, start, end int) int {
	next := end - c.overlap
	if next <= start {
		return end
	}
	if next > 0 && !unicode.IsSpace(runes[next-1]) && !unicode.IsSpace(runes[next]) {
		for next < end && !unicode.IsSpace(runes[next]) {
			next++
		}
	}
	return next
}

func (c *WindowChunker) countTokens(text string) int {
	if c.counter == nil {
		return 0
	}
	return c.counter.CountTokens(text)
}

// pageMarker はページ区切りの位置（rune オフセット）とページ番号です
type pageMarker struct {
	offset int
	page   int
}

func pageMarkerOffsets(text string) []pageMarker {
	var markers []pageMarker
	for _, loc := range pageMarkerPattern.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		markers = append(markers, pageMarker{
			offset: utf8.RuneCountInString(text[:loc[0]]),
			page:   n,
		})
	}
	return markers
}

// pageAt は offset 以前で最も近いページ区切りのページ番号を返します
func pageAt(markers []pageMarker, offset int) mo.Option[int] {
	page := mo.None[int]()
	for _, m := range markers {
		if m.offset > offset {
			break
		}
		page = mo.Some(m.page)
	}
	return page
}

func leadingSpaces(runes []rune) int {
	n := 0
	for n < len(runes) && unicode.IsSpace(runes[n]) {
		n++
	}
	return n
}

// lastIndex は runes[from:to] 内で最後に target が現れる位置を返します（無ければ -1）
func lastIndex(runes []rune, from, to int, target rune) int {
	for i := to - 1; i >= from; i-- {
		if runes[i] == target {
			return i
		}
	}
	return -1
}
