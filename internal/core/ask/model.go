package ask

import (
	"errors"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// ErrNoContext は検索結果が 0 件で回答に使える文脈が無いことを表す
var ErrNoContext = errors.New("no relevant context found")

const (
	// DefaultMaxContextTokens はプロンプトに含める文脈の上限トークン数
	DefaultMaxContextTokens = 3000
	// DefaultMaxAnswerTokens は回答の最大トークン数
	DefaultMaxAnswerTokens = 500
	// DefaultTemperature は回答生成の温度
	DefaultTemperature = 0.3
	// DefaultGenerationTimeout は回答生成のタイムアウト
	DefaultGenerationTimeout = 45 * time.Second
	// ExcerptLength はソース抜粋の最大文字数
	ExcerptLength = 200
)

// Config は Assembler の設定
type Config struct {
	TopK              int
	MaxContextTokens  int
	MaxAnswerTokens   int
	Temperature       mo.Option[float64] // 未設定なら DefaultTemperature
	GenerationTimeout time.Duration
}

// DefaultConfig は既定の設定を返す
func DefaultConfig() Config {
	return Config{
		TopK:              5,
		MaxContextTokens:  DefaultMaxContextTokens,
		MaxAnswerTokens:   DefaultMaxAnswerTokens,
		Temperature:       mo.Some(DefaultTemperature),
		GenerationTimeout: DefaultGenerationTimeout,
	}
}

// GenerationFailedError は回答生成の失敗と、その時点で最も関連度の高かった検索結果を保持する
type GenerationFailedError struct {
	Best rag.SearchResult
	Err  error
}

func (e *GenerationFailedError) Error() string { return e.Err.Error() }

func (e *GenerationFailedError) Unwrap() error { return e.Err }
