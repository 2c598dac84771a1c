package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// ErrDimensionMismatch はベクトルの次元がストアと一致しない場合のエラー
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

type record struct {
	chunk    rag.Chunk
	filename string
	vector   []float32
	norm     float64
}

// VectorStore はプロセス内で総当たりのコサイン類似度検索を行うベクトルストア
type VectorStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]*record
}

var _ rag.VectorStore = (*VectorStore)(nil)

// NewVectorStore は VectorStore を作成する
// dimension が 0 の場合は最初に書き込まれたベクトルの次元を採用する
func NewVectorStore(dimension int) *VectorStore {
	return &VectorStore{
		dimension: dimension,
		records:   make(map[string]*record),
	}
}

// Upsert はチャンクごとに 1 レコードを書き込む（同じ ID は上書き）
func (s *VectorStore) Upsert(_ context.Context, doc rag.DocumentRef, chunks []rag.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vectors {
		if s.dimension == 0 {
			s.dimension = len(v)
		}
		if len(v) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dimension, len(v))
		}
	}

	for i, ch := range chunks {
		ch.DocumentID = doc.ID
		vector := slices.Clone(vectors[i])
		s.records[rag.ChunkID(doc.ID, ch.Index)] = &record{
			chunk:    ch,
			filename: doc.Filename,
			vector:   vector,
			norm:     norm(vector),
		}
	}
	return nil
}

// Search は類似度の高い順に最大 topK 件を返す
func (s *VectorStore) Search(_ context.Context, vector []float32, topK int) ([]rag.SearchResult, error) {
	if topK <= 0 {
		return []rag.SearchResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, s.dimension, len(vector))
	}

	queryNorm := norm(vector)
	results := make([]rag.SearchResult, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, rag.SearchResult{
			Chunk:    r.chunk,
			Filename: r.filename,
			Score:    similarity(r.vector, r.norm, vector, queryNorm),
		})
	}

	slices.SortFunc(results, compareResults)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DeleteByDocument はドキュメントに属するレコードをすべて削除する
func (s *VectorStore) DeleteByDocument(_ context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, r := range s.records {
		if r.chunk.DocumentID == documentID {
			delete(s.records, id)
		}
	}
	return nil
}

// Len は保持しているレコード数を返す
func (s *VectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// compareResults はスコア降順、同点はチャンク番号昇順、ドキュメントID昇順で並べる
func compareResults(a, b rag.SearchResult) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Chunk.Index, b.Chunk.Index); c != 0 {
		return c
	}
	return cmp.Compare(a.Chunk.DocumentID.String(), b.Chunk.DocumentID.String())
}

// similarity は 1 - コサイン距離を [0,1] に丸めて返す
func similarity(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return math.Max(0, math.Min(1, dot/(normA*normB)))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
