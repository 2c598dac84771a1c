package ingestion

import (
	"context"
	"fmt"
	"time"
)

// FileFailure は一括取り込みで失敗したファイル
type FileFailure struct {
	Path string
	Err  error
}

// SourceResult は一括取り込みの結果
type SourceResult struct {
	Ingested []*UploadSummary
	Skipped  int
	Failures []FileFailure
	Duration time.Duration
}

// UploadSummary は一括取り込みで成功したファイル
type UploadSummary struct {
	Path        string
	ChunksCount int
	TotalTokens int
}

// IngestSource は provider が返す対応ファイルをすべて取り込む
// ファイル単位の失敗は Failures に集約し、処理は継続する
func (s *Service) IngestSource(ctx context.Context, provider SourceProvider, params SourceParams) (*SourceResult, error) {
	startTime := time.Now()

	s.logger.Info("一括取り込みを開始",
		"sourceType", provider.GetSourceType(),
		"identifier", params.Identifier,
	)

	docs, err := provider.FetchDocuments(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}

	result := &SourceResult{}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if provider.ShouldIgnore(doc) || !s.Supports(doc.Path) {
			s.logger.Debug("ファイルを除外", "path", doc.Path)
			result.Skipped++
			continue
		}

		uploaded, err := s.Ingest(ctx, doc.Path, doc.Content)
		if err != nil {
			result.Failures = append(result.Failures, FileFailure{Path: doc.Path, Err: err})
			continue
		}
		result.Ingested = append(result.Ingested, &UploadSummary{
			Path:        doc.Path,
			ChunksCount: uploaded.ChunksCount,
			TotalTokens: uploaded.TotalTokens,
		})
	}
	result.Duration = time.Since(startTime)

	s.logger.Info("一括取り込みが完了",
		"identifier", params.Identifier,
		"ingested", len(result.Ingested),
		"skipped", result.Skipped,
		"failed", len(result.Failures),
		"duration", result.Duration,
	)

	return result, nil
}
