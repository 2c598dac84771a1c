package ask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jinford/gpsrag/internal/core/rag"
	"github.com/jinford/gpsrag/internal/core/search"
)

// Searcher はクエリに近いチャンクを返す
type Searcher interface {
	Search(ctx context.Context, params search.SearchParams) ([]rag.SearchResult, error)
}

// Completer は LLM による回答生成インターフェース
type Completer interface {
	Complete(ctx context.Context, req rag.CompletionRequest) (string, error)
}

// TokenCounter は文脈ブロックのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}

// Assembler は検索結果から文脈を組み立てて回答を生成する
type Assembler struct {
	searcher  Searcher
	completer Completer
	counter   TokenCounter
	config    Config
	logger    *slog.Logger
}

// AssemblerOption は Assembler のオプション設定
type AssemblerOption func(*Assembler)

// WithAskLogger は Assembler にロガーを設定する
func WithAskLogger(logger *slog.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithConfig は設定を上書きする（0 値の項目と未設定の Temperature は既定値のまま）
func WithConfig(cfg Config) AssemblerOption {
	return func(a *Assembler) {
		if cfg.TopK > 0 {
			a.config.TopK = cfg.TopK
		}
		if cfg.MaxContextTokens > 0 {
			a.config.MaxContextTokens = cfg.MaxContextTokens
		}
		if cfg.MaxAnswerTokens > 0 {
			a.config.MaxAnswerTokens = cfg.MaxAnswerTokens
		}
		if cfg.Temperature.IsPresent() {
			a.config.Temperature = cfg.Temperature
		}
		if cfg.GenerationTimeout > 0 {
			a.config.GenerationTimeout = cfg.GenerationTimeout
		}
	}
}

// NewAssembler は新しい Assembler を作成する
func NewAssembler(searcher Searcher, completer Completer, counter TokenCounter, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		searcher:  searcher,
		completer: completer,
		counter:   counter,
		config:    DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Answer は質問に対して RAG で回答を生成する。
// 検索結果が無い場合は ErrNoContext、Embedding・ストア・生成の失敗はそれぞれの型付きエラーを返す。
func (a *Assembler) Answer(ctx context.Context, q rag.Query) (*rag.AnswerPayload, error) {
	results, err := a.searcher.Search(ctx, search.SearchParams{Query: q.Text, TopK: a.config.TopK})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoContext
	}

	used, blocks := a.selectContext(results)

	a.logger.Info("context assembled",
		"results", len(results),
		"used", len(used),
		"maxContextTokens", a.config.MaxContextTokens,
	)

	genCtx, cancel := context.WithTimeout(ctx, a.config.GenerationTimeout)
	defer cancel()

	answer, err := a.completer.Complete(genCtx, rag.CompletionRequest{
		SystemPrompt: SystemPrompt,
		UserPrompt:   BuildUserPrompt(q.Text, blocks, q.IncludeGPSData),
		MaxTokens:    a.config.MaxAnswerTokens,
		Temperature:  a.config.Temperature.OrElse(DefaultTemperature),
	})
	if err != nil {
		var genErr *rag.GenerationError
		if !errors.As(err, &genErr) {
			err = &rag.GenerationError{Err: fmt.Errorf("failed to generate answer: %w", err)}
		}
		return nil, &GenerationFailedError{Best: used[0], Err: err}
	}

	sources := make([]rag.SourceCitation, 0, len(used))
	for _, r := range used {
		citation := rag.SourceCitation{
			Filename:       r.Filename,
			Excerpt:        Excerpt(r.Chunk.Text),
			RelevanceScore: r.Score,
		}
		if page, ok := r.Chunk.Page.Get(); ok {
			citation.Page = &page
		}
		sources = append(sources, citation)
	}

	return &rag.AnswerPayload{
		Response:    answer,
		Sources:     sources,
		ContextUsed: true,
		Confidence:  used[0].Score,
		SessionID:   q.SessionID.OrEmpty(),
	}, nil
}

// selectContext は関連度の高い順に、合計トークン数が上限に収まる間だけブロックを採用する。
// 先頭のブロックは常に採用し、収まらないブロックが現れた時点でそれ以降をすべて捨てる。
func (a *Assembler) selectContext(results []rag.SearchResult) ([]rag.SearchResult, []string) {
	used := make([]rag.SearchResult, 0, len(results))
	blocks := make([]string, 0, len(results))
	total := 0

	for i, r := range results {
		block := FormatContextBlock(r)
		tokens := a.countTokens(block)
		if i > 0 && total+tokens > a.config.MaxContextTokens {
			break
		}
		total += tokens
		used = append(used, r)
		blocks = append(blocks, block)
	}
	return used, blocks
}

func (a *Assembler) countTokens(text string) int {
	if a.counter == nil {
		return 0
	}
	return a.counter.CountTokens(text)
}
