package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileNames はルート直下から読み込む ignore ファイル
var IgnoreFileNames = []string{".gitignore", ".gpsragignore"}

// IgnoreFilter は .gitignore と .gpsragignore のパターンマッチングを提供する
type IgnoreFilter struct {
	patterns *gitignore.GitIgnore
}

// NewIgnoreFilter は root 配下の ignore ファイルとデフォルトパターンから IgnoreFilter を作成する
func NewIgnoreFilter(root string) (*IgnoreFilter, error) {
	var patterns []string
	for _, name := range IgnoreFileNames {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		lines, err := readIgnoreFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		patterns = append(patterns, lines...)
	}
	return NewIgnoreFilterFromLines(patterns...), nil
}

// NewIgnoreFilterFromLines はパターン行から IgnoreFilter を作成する。デフォルトパターンも追加される
func NewIgnoreFilterFromLines(lines ...string) *IgnoreFilter {
	patterns := append(defaultIgnorePatterns(), lines...)
	return &IgnoreFilter{
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}
}

// ShouldIgnore はパスが除外対象かどうかを判定する
func (f *IgnoreFilter) ShouldIgnore(path string) bool {
	if f == nil || f.patterns == nil {
		return false
	}
	return f.patterns.MatchesPath(filepath.ToSlash(path))
}

func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		// 空行とコメント行をスキップ
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

func defaultIgnorePatterns() []string {
	return []string{
		// Git
		".git",
		".gitignore",
		".gitattributes",
		".gitmodules",
		".gpsragignore",

		// 依存関係・ビルド成果物
		"node_modules",
		"vendor",
		"dist",
		"build",

		// エディタ
		".vscode",
		".idea",
		".DS_Store",
		"*.swp",
		"*~",

		// ログ・一時ファイル
		"*.log",
		"*.tmp",
		"tmp",

		// 機密情報
		".env",
		".env.*",
		"*.pem",
		"*.key",
	}
}
