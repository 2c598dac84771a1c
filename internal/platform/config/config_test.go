package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ChunkModeParagraph, cfg.RAG.ChunkMode)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 3000, cfg.RAG.MaxContextTokens)
	assert.Equal(t, 500, cfg.RAG.MaxAnswerTokens)
	assert.InDelta(t, 0.3, cfg.RAG.Temperature, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.RAG.GenerationTimeout)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.EmbeddingTimeout)
	assert.Equal(t, VectorStorePostgres, cfg.VectorStore.Backend)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
}

func TestLoad_EnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "CHUNK_MODE=window\nVECTOR_STORE=memory\nCACHE_BACKEND=none\nCACHE_TTL=1m\nRAG_TOP_K=3\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	// godotenv は既存の環境変数を上書きしないため、テスト後に消す
	for _, key := range []string{"CHUNK_MODE", "VECTOR_STORE", "CACHE_BACKEND", "CACHE_TTL", "RAG_TOP_K"} {
		t.Cleanup(func() { os.Unsetenv(key) })
	}

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, ChunkModeWindow, cfg.RAG.ChunkMode)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, VectorStoreMemory, cfg.VectorStore.Backend)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.RAG.TopK)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "不明なチャンクモード", key: "CHUNK_MODE", value: "sentence"},
		{name: "不明なベクトルストア", key: "VECTOR_STORE", value: "qdrant"},
		{name: "不明なキャッシュ", key: "CACHE_BACKEND", value: "memcached"},
		{name: "オーバーラップがサイズ以上", key: "CHUNK_OVERLAP", value: "1000"},
		{name: "温度が範囲外", key: "RAG_TEMPERATURE", value: "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_ZeroTemperature(t *testing.T) {
	t.Setenv("RAG_TEMPERATURE", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Zero(t, cfg.RAG.Temperature)
}
