package container

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"golang.org/x/sync/singleflight"

	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/core/rag"
)

// Backend は接続済みのストア一式
type Backend struct {
	Vectors   rag.VectorStore
	Documents ingestion.DocumentRepository
	Close     func()
}

// ConnectFunc は Backend への接続を行う
type ConnectFunc func(ctx context.Context) (*Backend, error)

var (
	_ rag.VectorStore              = (*LazyStore)(nil)
	_ ingestion.DocumentRepository = (*LazyStore)(nil)
)

// DefaultConnectTimeout は初回接続（接続確認とスキーマ作成を含む）の上限時間
const DefaultConnectTimeout = 5 * time.Second

var errStoreClosed = errors.New("store is closed")

// LazyStore は初回利用時に接続する Backend のハンドル
// 接続に成功したらプロセス終了まで使い回し、失敗した場合は次の呼び出しで再接続する。
// 同時に到着した呼び出しは 1 回の接続を共有し、各自の ctx がキャンセルされた時点で待機をやめる。
type LazyStore struct {
	connect        ConnectFunc
	connectTimeout time.Duration
	group          singleflight.Group

	mu      sync.RWMutex
	backend *Backend
	closed  bool
}

// LazyStoreOption は LazyStore のオプション設定
type LazyStoreOption func(*LazyStore)

// WithConnectTimeout は初回接続のタイムアウトを設定する
func WithConnectTimeout(d time.Duration) LazyStoreOption {
	return func(s *LazyStore) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}

// NewLazyStore は LazyStore を作成する
func NewLazyStore(connect ConnectFunc, opts ...LazyStoreOption) *LazyStore {
	s := &LazyStore{connect: connect, connectTimeout: DefaultConnectTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LazyStore) get(ctx context.Context, op string) (*Backend, error) {
	s.mu.RLock()
	backend, closed := s.backend, s.closed
	s.mu.RUnlock()
	if backend != nil {
		return backend, nil
	}
	if closed {
		return nil, &rag.StoreUnavailableError{Op: op, Err: errStoreClosed}
	}

	ch := s.group.DoChan("connect", func() (any, error) {
		return s.dial(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, &rag.StoreUnavailableError{Op: op, Err: res.Err}
		}
		return res.Val.(*Backend), nil
	case <-ctx.Done():
		return nil, &rag.StoreUnavailableError{Op: op, Err: ctx.Err()}
	}
}

// dial は接続タイムアウト付きで接続し、成功した Backend を保持する
// 待機中の呼び出し元が全員離脱しても接続はタイムアウトまで続き、結果は次の呼び出しで使われる
func (s *LazyStore) dial(ctx context.Context) (*Backend, error) {
	ctx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	backend, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if backend.Close != nil {
			backend.Close()
		}
		return nil, errStoreClosed
	}
	s.backend = backend
	return backend, nil
}

// Upsert は rag.VectorStore の実装
func (s *LazyStore) Upsert(ctx context.Context, doc rag.DocumentRef, chunks []rag.Chunk, vectors [][]float32) error {
	b, err := s.get(ctx, "upsert")
	if err != nil {
		return err
	}
	return b.Vectors.Upsert(ctx, doc, chunks, vectors)
}

// Search は rag.VectorStore の実装
func (s *LazyStore) Search(ctx context.Context, vector []float32, topK int) ([]rag.SearchResult, error) {
	b, err := s.get(ctx, "search")
	if err != nil {
		return nil, err
	}
	return b.Vectors.Search(ctx, vector, topK)
}

// DeleteByDocument は rag.VectorStore の実装
func (s *LazyStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	b, err := s.get(ctx, "delete")
	if err != nil {
		return err
	}
	return b.Vectors.DeleteByDocument(ctx, documentID)
}

func (s *LazyStore) CreateDocument(ctx context.Context, doc *rag.Document) error {
	b, err := s.get(ctx, "create document")
	if err != nil {
		return err
	}
	return b.Documents.CreateDocument(ctx, doc)
}

func (s *LazyStore) MarkDocumentReady(ctx context.Context, id uuid.UUID, chunkCount, totalTokens int) error {
	b, err := s.get(ctx, "mark document ready")
	if err != nil {
		return err
	}
	return b.Documents.MarkDocumentReady(ctx, id, chunkCount, totalTokens)
}

func (s *LazyStore) GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*rag.Document], error) {
	b, err := s.get(ctx, "get document")
	if err != nil {
		return mo.None[*rag.Document](), err
	}
	return b.Documents.GetDocument(ctx, id)
}

func (s *LazyStore) ListDocuments(ctx context.Context) ([]*rag.Document, error) {
	b, err := s.get(ctx, "list documents")
	if err != nil {
		return nil, err
	}
	return b.Documents.ListDocuments(ctx)
}

func (s *LazyStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	b, err := s.get(ctx, "delete document")
	if err != nil {
		return err
	}
	return b.Documents.DeleteDocument(ctx, id)
}

// Close は接続済みであれば Backend を閉じる。以降の呼び出しは StoreUnavailableError になる
func (s *LazyStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.backend != nil && s.backend.Close != nil {
		s.backend.Close()
	}
	s.backend = nil
}
