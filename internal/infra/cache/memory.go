package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/chat"
	"github.com/jinford/gpsrag/internal/core/rag"
)

// DefaultCleanupInterval は期限切れエントリを掃除する間隔
const DefaultCleanupInterval = 10 * time.Minute

var _ chat.AnswerCache = (*MemoryCache)(nil)

// MemoryCache はプロセス内の回答キャッシュ
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache は MemoryCache を作成する
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = chat.DefaultCacheTTL
	}
	return &MemoryCache{
		cache: gocache.New(defaultTTL, DefaultCleanupInterval),
	}
}

// Get はキャッシュ済みの回答を取得する
func (c *MemoryCache) Get(_ context.Context, key string) (mo.Option[rag.AnswerPayload], error) {
	x, found := c.cache.Get(key)
	if !found {
		return mo.None[rag.AnswerPayload](), nil
	}
	payload, ok := x.(rag.AnswerPayload)
	if !ok {
		c.cache.Delete(key)
		return mo.None[rag.AnswerPayload](), nil
	}
	payload.Sources = append([]rag.SourceCitation(nil), payload.Sources...)
	return mo.Some(payload), nil
}

// Set は回答を保存する。ttl が 0 以下なら既定の有効期間を使う
func (c *MemoryCache) Set(_ context.Context, key string, payload rag.AnswerPayload, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	payload.Sources = append([]rag.SourceCitation(nil), payload.Sources...)
	c.cache.Set(key, payload, ttl)
	return nil
}

// ItemCount は保持しているエントリ数を返す
func (c *MemoryCache) ItemCount() int {
	return c.cache.ItemCount()
}
