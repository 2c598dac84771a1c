package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/core/ingestion/chunk"
	"github.com/jinford/gpsrag/internal/core/rag"
	"github.com/jinford/gpsrag/internal/infra/pdf"
	"github.com/jinford/gpsrag/internal/infra/tiktoken"
	"github.com/jinford/gpsrag/internal/platform/config"
	"github.com/jinford/gpsrag/internal/platform/container"
)

// ChunkAction はファイルをチャンク分割して表示するデバッグ用コマンドのアクション
// 外部 API とデータベースには接続しない
func ChunkAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("ファイルパスを指定してください")
	}

	cfg, err := LoadConfig(cmd.String("env"))
	if err != nil {
		return err
	}
	ragCfg := cfg.RAG
	if mode := cmd.String("mode"); mode != "" && mode != ragCfg.ChunkMode {
		ragCfg.ChunkMode = mode
		ragCfg.ChunkSize, ragCfg.ChunkOverlap = chunk.DefaultParagraphSize, chunk.DefaultParagraphOverlap
		if mode == config.ChunkModeWindow {
			ragCfg.ChunkSize, ragCfg.ChunkOverlap = chunk.DefaultWindowSize, chunk.DefaultWindowOverlap
		}
	}
	if size := cmd.Int("size"); size > 0 {
		ragCfg.ChunkSize = int(size)
	}
	if cmd.IsSet("overlap") {
		ragCfg.ChunkOverlap = int(cmd.Int("overlap"))
	}

	var counter chunk.TokenCounter = tiktoken.EstimateCounter{}
	if tc, err := tiktoken.NewCounter(); err == nil {
		counter = tc
	}
	chunker, err := container.NewChunker(ragCfg, counter)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}
	text, err := extractText(ctx, path, data)
	if err != nil {
		return err
	}

	printChunks(output(cmd), chunker.Chunk(text))
	return nil
}

func extractText(ctx context.Context, path string, data []byte) (string, error) {
	var extractor ingestion.TextExtractor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		extractor = pdf.NewExtractor()
	case ".txt":
		extractor = ingestion.NewPlainTextExtractor()
	default:
		return "", fmt.Errorf("%w: %s", rag.ErrUnsupportedFileType, filepath.Ext(path))
	}

	extracted, err := extractor.Extract(ctx, data)
	if err != nil {
		return "", err
	}
	return extracted.Text, nil
}

func printChunks(w io.Writer, chunks []rag.Chunk) {
	for _, c := range chunks {
		page := "-"
		if p, ok := c.Page.Get(); ok {
			page = fmt.Sprint(p)
		}
		fmt.Fprintf(w, "=== chunk %d (page %s, %d chars, %d tokens) ===\n", c.Index, page, len([]rune(c.Text)), c.Tokens)
		fmt.Fprintln(w, c.Text)
	}
	fmt.Fprintf(w, "\n%d chunks\n", len(chunks))
}
