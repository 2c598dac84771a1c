package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/core/rag"
)

func TestPrintAnswer(t *testing.T) {
	page := 12
	payload := rag.AnswerPayload{
		Response: "Use UBX-CFG-VALSET.",
		Sources: []rag.SourceCitation{
			{Filename: "zed-f9p.pdf", Page: &page, RelevanceScore: 0.91},
			{Filename: "notes.txt", RelevanceScore: 0.5},
		},
		ContextUsed: true,
	}

	var buf bytes.Buffer
	printAnswer(&buf, payload, true)

	out := buf.String()
	assert.Contains(t, out, "Use UBX-CFG-VALSET.")
	assert.Contains(t, out, "[1] zed-f9p.pdf p.12 スコア: 0.9100")
	assert.Contains(t, out, "[2] notes.txt スコア: 0.5000")
	assert.NotContains(t, out, "フォールバック")
}

func TestPrintAnswer_Fallback(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, rag.AnswerPayload{Response: "generic", Fallback: true, FallbackReason: "no_context"}, true)

	assert.Contains(t, buf.String(), "(フォールバック応答: no_context)")
	assert.NotContains(t, buf.String(), "参照ソース")
}

func TestPrintChunks(t *testing.T) {
	var buf bytes.Buffer
	printChunks(&buf, []rag.Chunk{
		{Index: 0, Text: "GNSS", Tokens: 1, Page: mo.Some(2)},
		{Index: 1, Text: "UBX", Tokens: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "=== chunk 0 (page 2, 4 chars, 1 tokens) ===")
	assert.Contains(t, out, "=== chunk 1 (page -, 3 chars, 1 tokens) ===")
	assert.Contains(t, out, "2 chunks")
}

func TestPrintSourceResult(t *testing.T) {
	var buf bytes.Buffer
	printSourceResult(&buf, &ingestion.SourceResult{
		Ingested: []*ingestion.UploadSummary{{Path: "a.pdf", ChunksCount: 3, TotalTokens: 90}},
		Skipped:  2,
		Failures: []ingestion.FileFailure{{Path: "b.pdf", Err: rag.ErrEmptyDocument}},
	})

	out := buf.String()
	assert.Contains(t, out, "OK   a.pdf (chunks=3, tokens=90)")
	assert.Contains(t, out, "FAIL b.pdf")
	assert.Contains(t, out, "取り込み: 1, スキップ: 2, 失敗: 1")
}

func TestChunkAction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("Sentence one. Sentence two. Sentence three."), 0o644))

	var buf bytes.Buffer
	cmd := &cli.Command{
		Name:   "gpsrag",
		Writer: &buf,
		Commands: []*cli.Command{
			{
				Name: "chunk",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "env"},
					&cli.StringFlag{Name: "mode"},
					&cli.IntFlag{Name: "size"},
					&cli.IntFlag{Name: "overlap"},
				},
				Action: ChunkAction,
			},
		},
	}

	err := cmd.Run(context.Background(), []string{"gpsrag", "chunk", "--mode", "window", "--size", "20", "--overlap", "5", path})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Sentence one.")
	assert.Contains(t, buf.String(), "4 chunks")
}

func TestExtractText_Unsupported(t *testing.T) {
	_, err := extractText(context.Background(), "image.png", []byte("png"))
	assert.ErrorIs(t, err, rag.ErrUnsupportedFileType)
}
