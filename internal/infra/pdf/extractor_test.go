package pdf

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// buildPDF はページごとに1行のテキストを持つ最小限の PDF を組み立てます。
// 空文字列のページはコンテンツストリームを持ちません。
func buildPDF(pageTexts ...string) []byte {
	var objects []string

	n := len(pageTexts)
	fontID := 3 + 2*n
	kids := make([]string, n)
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}

	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n))
	for i, text := range pageTexts {
		contentID := 4 + 2*i
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			fontID, contentID))
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
		}
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestExtractor_Extract(t *testing.T) {
	e := NewExtractor()

	result, err := e.Extract(context.Background(), buildPDF("GPS receivers", "", "Satellite almanac"))
	require.NoError(t, err)

	assert.Equal(t, 3, result.PageCount)
	assert.Contains(t, result.Text, "--- Page 1 ---")
	assert.Contains(t, result.Text, "GPS")
	assert.NotContains(t, result.Text, "--- Page 2 ---")
	assert.Contains(t, result.Text, "--- Page 3 ---")
	assert.Contains(t, result.Text, "almanac")
}

func TestExtractor_NoText(t *testing.T) {
	e := NewExtractor()

	result, err := e.Extract(context.Background(), buildPDF(""))
	require.NoError(t, err)
	assert.Equal(t, 1, result.PageCount)
	assert.Empty(t, result.Text)
}

func TestExtractor_InvalidData(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "空データ", data: nil},
		{name: "PDFではないデータ", data: []byte("this is not a pdf at all")},
		{name: "途中で切れたPDF", data: buildPDF("truncated")[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(context.Background(), tt.data)
			var extractErr *rag.ExtractionError
			assert.ErrorAs(t, err, &extractErr)
		})
	}
}
