package git

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/infra/filter"
)

var _ ingestion.SourceProvider = (*Provider)(nil)

// Provider は Git ソース用の ingestion.SourceProvider 実装
type Provider struct {
	client        *Client
	cloneBaseDir  string
	defaultBranch string
	extensions    []string
	logger        *slog.Logger

	mu           sync.RWMutex
	ignoreFilter *filter.IgnoreFilter // 直近の FetchDocuments で読み込んだパターン
}

// ProviderOption は Provider のオプション設定
type ProviderOption func(*Provider)

// WithProviderLogger はロガーを設定する
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithExtensions は読み込む拡張子を制限する
func WithExtensions(exts ...string) ProviderOption {
	return func(p *Provider) {
		p.extensions = nil
		for _, ext := range exts {
			p.extensions = append(p.extensions, strings.ToLower(ext))
		}
	}
}

// NewProvider は新しい Git Provider を作成する
func NewProvider(client *Client, cloneBaseDir, defaultBranch string, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:        client,
		cloneBaseDir:  cloneBaseDir,
		defaultBranch: defaultBranch,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetSourceType は ingestion.SourceTypeGit を返す
func (p *Provider) GetSourceType() ingestion.SourceType {
	return ingestion.SourceTypeGit
}

// FetchDocuments は Git リポジトリをクローン（または更新）してドキュメントを読み込む
// params.Options["ref"] でブランチ・タグ・コミットを指定できる
func (p *Provider) FetchDocuments(ctx context.Context, params ingestion.SourceParams) ([]*ingestion.SourceDocument, error) {
	ref, ok := params.Options["ref"].(string)
	if !ok || ref == "" {
		ref = p.defaultBranch
	}

	dirName, err := p.client.URLToDirectoryName(params.Identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to generate directory name from URL: %w", err)
	}

	repoPath := filepath.Join(p.cloneBaseDir, dirName)
	if err := p.client.CloneOrPull(ctx, params.Identifier, repoPath, ref); err != nil {
		return nil, fmt.Errorf("failed to clone/pull repository: %w", err)
	}

	commit, err := p.client.GetCommitInfo(repoPath, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit info: %w", err)
	}
	p.logger.Info("Git リポジトリを取得しました",
		"url", params.Identifier,
		"ref", ref,
		"commit", commit.Hash,
	)

	ignoreFilter, err := filter.NewIgnoreFilter(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create ignore filter: %w", err)
	}
	p.mu.Lock()
	p.ignoreFilter = ignoreFilter
	p.mu.Unlock()

	accept := func(path string) bool {
		return p.wants(path) && !ignoreFilter.ShouldIgnore(path)
	}
	files, err := p.client.ReadFiles(ctx, repoPath, ref, accept)
	if err != nil {
		return nil, fmt.Errorf("failed to read files: %w", err)
	}

	documents := make([]*ingestion.SourceDocument, 0, len(files))
	for _, f := range files {
		documents = append(documents, &ingestion.SourceDocument{
			Path:    f.Path,
			Content: f.Content,
			Size:    int64(len(f.Content)),
		})
	}
	return documents, nil
}

// ShouldIgnore はドキュメントを除外すべきかを判定する
// FetchDocuments の前に呼ばれた場合は何も除外しない
func (p *Provider) ShouldIgnore(doc *ingestion.SourceDocument) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ignoreFilter == nil {
		return false
	}
	return p.ignoreFilter.ShouldIgnore(doc.Path)
}

func (p *Provider) wants(path string) bool {
	if len(p.extensions) == 0 {
		return true
	}
	return slices.Contains(p.extensions, strings.ToLower(filepath.Ext(path)))
}
