package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/ask"
	"github.com/jinford/gpsrag/internal/core/fallback"
	"github.com/jinford/gpsrag/internal/core/rag"
)

// DefaultCacheTTL は回答キャッシュの既定の有効期間
const DefaultCacheTTL = 10 * time.Minute

// Answerer は RAG で回答を生成する
type Answerer interface {
	Answer(ctx context.Context, q rag.Query) (*rag.AnswerPayload, error)
}

// AnswerCache は回答のキャッシュ
type AnswerCache interface {
	Get(ctx context.Context, key string) (mo.Option[rag.AnswerPayload], error)
	Set(ctx context.Context, key string, payload rag.AnswerPayload, ttl time.Duration) error
}

// Service はチャットの窓口。回答生成の失敗はすべてフォールバック応答に変換する
type Service struct {
	answerer Answerer
	policy   *fallback.Policy
	cache    AnswerCache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithChatLogger はロガーを設定する
func WithChatLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCache は回答キャッシュを設定する
func WithCache(cache AnswerCache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// NewService は Service を作成する
func NewService(answerer Answerer, policy *fallback.Policy, opts ...ServiceOption) *Service {
	if policy == nil {
		policy = fallback.NewPolicy()
	}
	s := &Service{
		answerer: answerer,
		policy:   policy,
		cacheTTL: DefaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Chat は質問に回答する。エラーは返さず、失敗時はフォールバック応答を返す
func (s *Service) Chat(ctx context.Context, q rag.Query) rag.AnswerPayload {
	sessionID := q.SessionID.OrEmpty()

	if strings.TrimSpace(q.Text) == "" {
		payload := s.policy.Respond(fallback.Input{Query: q.Text, Reason: fallback.ReasonInternal})
		payload.Error = "message is required"
		payload.SessionID = sessionID
		return payload
	}

	key := CacheKey(q)
	if cached, ok := s.lookup(ctx, key); ok {
		s.logger.Debug("answer served from cache", "sessionId", sessionID)
		cached.SessionID = sessionID
		return cached
	}

	answer, err := s.answerer.Answer(ctx, q)
	if err != nil {
		payload := s.fallback(q, err)
		payload.SessionID = sessionID
		return payload
	}

	payload := *answer
	payload.SessionID = sessionID
	if payload.ContextUsed {
		s.store(ctx, key, payload)
	}
	return payload
}

func (s *Service) fallback(q rag.Query, err error) rag.AnswerPayload {
	in := fallback.Input{Query: q.Text, Reason: Classify(err)}

	var failed *ask.GenerationFailedError
	if errors.As(err, &failed) {
		in.Best = mo.Some(failed.Best)
	}

	s.logger.Warn("回答生成に失敗したためフォールバック応答を返します",
		"reason", in.Reason,
		"error", err,
	)

	payload := s.policy.Respond(in)
	payload.Error = errorMessage(in.Reason)
	return payload
}

func (s *Service) lookup(ctx context.Context, key string) (rag.AnswerPayload, bool) {
	if s.cache == nil {
		return rag.AnswerPayload{}, false
	}
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read answer cache", "error", err)
		return rag.AnswerPayload{}, false
	}
	return cached.Get()
}

func (s *Service) store(ctx context.Context, key string, payload rag.AnswerPayload) {
	if s.cache == nil {
		return
	}
	payload.SessionID = ""
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL); err != nil {
		s.logger.Warn("failed to write answer cache", "error", err)
	}
}

// Classify はエラーをフォールバック理由に対応付ける
func Classify(err error) fallback.Reason {
	var (
		embedErr *rag.EmbeddingServiceError
		storeErr *rag.StoreUnavailableError
		genErr   *rag.GenerationError
	)
	switch {
	case errors.Is(err, ask.ErrNoContext):
		return fallback.ReasonNoContext
	case errors.As(err, &embedErr):
		return fallback.ReasonEmbedFailed
	case errors.As(err, &storeErr):
		return fallback.ReasonStoreUnavailable
	case errors.As(err, &genErr):
		return fallback.ReasonGenerateFailed
	default:
		return fallback.ReasonInternal
	}
}

func errorMessage(reason fallback.Reason) string {
	switch reason {
	case fallback.ReasonNoContext:
		return ""
	case fallback.ReasonEmbedFailed:
		return "embedding service unavailable"
	case fallback.ReasonStoreUnavailable:
		return "document store unavailable"
	case fallback.ReasonGenerateFailed:
		return "answer generation failed"
	default:
		return "internal error"
	}
}

// CacheKey は正規化した質問からキャッシュキーを作る
func CacheKey(q rag.Query) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
	if q.IncludeGPSData {
		normalized = "gps:" + normalized
	}
	sum := sha256.Sum256([]byte(normalized))
	return "gpsrag:answer:" + hex.EncodeToString(sum[:])
}
