package cache

import (
	"context"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/chat"
	"github.com/jinford/gpsrag/internal/core/rag"
)

var _ chat.AnswerCache = Noop{}

// Noop は何も保存しないキャッシュ
type Noop struct{}

func (Noop) Get(context.Context, string) (mo.Option[rag.AnswerPayload], error) {
	return mo.None[rag.AnswerPayload](), nil
}

func (Noop) Set(context.Context, string, rag.AnswerPayload, time.Duration) error {
	return nil
}
