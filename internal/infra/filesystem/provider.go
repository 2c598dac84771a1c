package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/infra/filter"
)

var _ ingestion.SourceProvider = (*Provider)(nil)

// Provider はローカルディレクトリ用の ingestion.SourceProvider 実装
type Provider struct {
	extensions []string

	mu           sync.RWMutex
	ignoreFilter *filter.IgnoreFilter
}

// ProviderOption は Provider のオプション設定
type ProviderOption func(*Provider)

// WithExtensions は読み込む拡張子を制限する（例: ".pdf", ".txt"）
func WithExtensions(exts ...string) ProviderOption {
	return func(p *Provider) {
		p.extensions = nil
		for _, ext := range exts {
			p.extensions = append(p.extensions, strings.ToLower(ext))
		}
	}
}

// NewProvider は新しい Provider を作成する
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetSourceType は ingestion.SourceTypeDirectory を返す
func (p *Provider) GetSourceType() ingestion.SourceType {
	return ingestion.SourceTypeDirectory
}

// FetchDocuments はディレクトリを走査してファイルを読み込む
// ignore パターンに一致するディレクトリは降りない
func (p *Provider) FetchDocuments(ctx context.Context, params ingestion.SourceParams) ([]*ingestion.SourceDocument, error) {
	root := params.Identifier
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	ignoreFilter, err := filter.NewIgnoreFilter(root)
	if err != nil {
		return nil, fmt.Errorf("failed to create ignore filter: %w", err)
	}
	p.mu.Lock()
	p.ignoreFilter = ignoreFilter
	p.mu.Unlock()

	var documents []*ingestion.SourceDocument
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if ignoreFilter.ShouldIgnore(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !p.wants(rel) || ignoreFilter.ShouldIgnore(rel) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rel, err)
		}
		documents = append(documents, &ingestion.SourceDocument{
			Path:    rel,
			Content: content,
			Size:    int64(len(content)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
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
