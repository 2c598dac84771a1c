package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/gpsrag/internal/core/ingestion"
)

// IngestFileAction は 1 ファイルを取り込むコマンドのアクション
func IngestFileAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("ファイルパスを指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	result, err := appCtx.Container.IngestionService.Ingest(ctx, filepath.Base(path), data)
	if err != nil {
		slog.Error("ドキュメントの取り込みに失敗しました", "path", path, "error", err)
		return err
	}

	fmt.Fprintf(output(cmd), "取り込み完了: %s (id=%s, pages=%d, chunks=%d, tokens=%d)\n",
		result.Filename, result.DocumentID, result.PageCount, result.ChunksCount, result.TotalTokens)
	return nil
}

// IngestDirAction はディレクトリ配下のドキュメントを一括で取り込むコマンドのアクション
func IngestDirAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("ディレクトリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	provider := appCtx.Container.DirectoryProvider()
	return runIngestSource(ctx, cmd, appCtx, provider, ingestion.SourceParams{Identifier: dir})
}

// IngestGitAction は Git リポジトリのドキュメントを一括で取り込むコマンドのアクション
func IngestGitAction(ctx context.Context, cmd *cli.Command) error {
	repoURL := cmd.String("url")
	ref := cmd.String("ref")

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	provider := appCtx.Container.GitProvider()
	return runIngestSource(ctx, cmd, appCtx, provider, ingestion.SourceParams{
		Identifier: repoURL,
		Options:    map[string]any{"ref": ref},
	})
}

func runIngestSource(ctx context.Context, cmd *cli.Command, appCtx *AppContext, provider ingestion.SourceProvider, params ingestion.SourceParams) error {
	result, err := appCtx.Container.IngestionService.IngestSource(ctx, provider, params)
	if err != nil {
		slog.Error("一括取り込みに失敗しました", "source", params.Identifier, "error", err)
		return err
	}

	printSourceResult(output(cmd), result)
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d 件のファイルの取り込みに失敗しました", len(result.Failures))
	}
	return nil
}

func printSourceResult(w io.Writer, result *ingestion.SourceResult) {
	for _, s := range result.Ingested {
		fmt.Fprintf(w, "OK   %s (chunks=%d, tokens=%d)\n", s.Path, s.ChunksCount, s.TotalTokens)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "FAIL %s: %v\n", f.Path, f.Err)
	}
	fmt.Fprintf(w, "\n取り込み: %d, スキップ: %d, 失敗: %d (%s)\n",
		len(result.Ingested), result.Skipped, len(result.Failures), result.Duration.Round(1e6))
}
