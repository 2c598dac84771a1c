package ingestion

import (
	"context"
)

// SourceType は一括取り込みのソース種別
type SourceType string

const (
	SourceTypeDirectory SourceType = "directory"
	SourceTypeGit       SourceType = "git"
)

// SourceParams は一括取り込みのパラメータ
type SourceParams struct {
	Identifier string         // ソース識別子（ディレクトリパスまたは Git URL）
	Options    map[string]any // ソースタイプ固有のオプション（"ref" など）
}

// SourceDocument はソースから取得したファイル
type SourceDocument struct {
	Path    string // ソースルートからの相対パス
	Content []byte
	Size    int64
}

// SourceProvider はディレクトリや Git リポジトリからドキュメントを列挙する
type SourceProvider interface {
	// GetSourceType はソースタイプを返す
	GetSourceType() SourceType

	// FetchDocuments は取り込み対象のファイル一覧を返す
	FetchDocuments(ctx context.Context, params SourceParams) ([]*SourceDocument, error)

	// ShouldIgnore は ignore パターンに一致するかを判定する
	ShouldIgnore(doc *SourceDocument) bool
}
