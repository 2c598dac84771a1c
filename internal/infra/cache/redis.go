package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/chat"
	"github.com/jinford/gpsrag/internal/core/rag"
)

var _ chat.AnswerCache = (*RedisCache)(nil)

// RedisCache は Redis に回答を保存するキャッシュ
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache は URL から Redis クライアントを作成する
// redis:// 形式でない場合はホスト:ポートとして扱う
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient は既存のクライアントから RedisCache を作成する
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get はキャッシュ済みの回答を取得する
func (c *RedisCache) Get(ctx context.Context, key string) (mo.Option[rag.AnswerPayload], error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return mo.None[rag.AnswerPayload](), nil
	}
	if err != nil {
		return mo.None[rag.AnswerPayload](), fmt.Errorf("failed to get cache entry: %w", err)
	}

	var payload rag.AnswerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return mo.None[rag.AnswerPayload](), fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return mo.Some(payload), nil
}

// Set は回答を保存する
func (c *RedisCache) Set(ctx context.Context, key string, payload rag.AnswerPayload, ttl time.Duration) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}
	return nil
}

// Close は接続を閉じる
func (c *RedisCache) Close() error {
	return c.client.Close()
}
