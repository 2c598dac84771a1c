package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Log         LogConfig
	Database    DatabaseConfig
	OpenAI      OpenAIConfig
	RAG         RAGConfig
	VectorStore VectorStoreConfig
	Cache       CacheConfig
	Server      ServerConfig
	Git         GitConfig
}

// LogConfig はログ出力設定
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// ConnectTimeout は初回接続（ping とスキーマ作成）の上限時間
	ConnectTimeout time.Duration
}

// OpenAIConfig は OpenAI API 設定（Embeddings + Chat Completions）
type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbeddingTimeout   time.Duration
	ChatModel          string
}

// RAGConfig はチャンク分割と回答生成の設定
type RAGConfig struct {
	ChunkMode            string // paragraph or window
	ChunkSize            int
	ChunkOverlap         int
	TopK                 int
	MaxContextTokens     int
	MaxAnswerTokens      int
	Temperature          float64
	GenerationTimeout    time.Duration
	SearchTimeout        time.Duration
	EmbeddingConcurrency int
}

// VectorStoreConfig はベクトルストアの選択
type VectorStoreConfig struct {
	Backend string // postgres or memory
}

// CacheConfig は回答キャッシュの設定
type CacheConfig struct {
	Backend  string // memory, redis or none
	RedisURL string
	TTL      time.Duration
}

// ServerConfig は HTTP サーバ設定
type ServerConfig struct {
	Port           string
	AllowedOrigins string
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// GitConfig は Git 操作設定
type GitConfig struct {
	CloneDir      string
	SSHKeyPath    string
	SSHPassword   string // SSH秘密鍵のパスフレーズ
	DefaultBranch string
}

const (
	ChunkModeParagraph = "paragraph"
	ChunkModeWindow    = "window"

	VectorStorePostgres = "postgres"
	VectorStoreMemory   = "memory"

	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	chunkMode := strings.ToLower(getEnv("CHUNK_MODE", ChunkModeParagraph))
	defaultSize, defaultOverlap := 1000, 200
	if chunkMode == ChunkModeWindow {
		defaultSize, defaultOverlap = 500, 50
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "gpsrag"),
			Password:       getEnv("DB_PASSWORD", ""),
			DBName:         getEnv("DB_NAME", "gpsrag"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ConnectTimeout: getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			EmbeddingTimeout:   getEnvAsDuration("OPENAI_EMBEDDING_TIMEOUT", 30*time.Second),
			ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		},
		RAG: RAGConfig{
			ChunkMode:            chunkMode,
			ChunkSize:            getEnvAsInt("CHUNK_SIZE", defaultSize),
			ChunkOverlap:         getEnvAsInt("CHUNK_OVERLAP", defaultOverlap),
			TopK:                 getEnvAsInt("RAG_TOP_K", 5),
			MaxContextTokens:     getEnvAsInt("RAG_MAX_CONTEXT_TOKENS", 3000),
			MaxAnswerTokens:      getEnvAsInt("RAG_MAX_ANSWER_TOKENS", 500),
			Temperature:          getEnvAsFloat("RAG_TEMPERATURE", 0.3),
			GenerationTimeout:    getEnvAsDuration("RAG_GENERATION_TIMEOUT", 45*time.Second),
			SearchTimeout:        getEnvAsDuration("RAG_SEARCH_TIMEOUT", 10*time.Second),
			EmbeddingConcurrency: getEnvAsInt("RAG_EMBEDDING_CONCURRENCY", 4),
		},
		VectorStore: VectorStoreConfig{
			Backend: strings.ToLower(getEnv("VECTOR_STORE", VectorStorePostgres)),
		},
		Cache: CacheConfig{
			Backend:  strings.ToLower(getEnv("CACHE_BACKEND", CacheMemory)),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
			TTL:      getEnvAsDuration("CACHE_TTL", 10*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 10<<20)),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 2*time.Minute),
		},
		Git: GitConfig{
			CloneDir:      getEnv("GIT_CLONE_DIR", "/var/lib/gpsrag/repos"),
			SSHKeyPath:    getEnv("GIT_SSH_KEY_PATH", ""),
			SSHPassword:   getEnv("GIT_SSH_PASSWORD", ""),
			DefaultBranch: getEnv("GIT_DEFAULT_BRANCH", "main"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は列挙値の設定を検証します
func (c *Config) Validate() error {
	switch c.RAG.ChunkMode {
	case ChunkModeParagraph, ChunkModeWindow:
	default:
		return fmt.Errorf("invalid CHUNK_MODE: %q", c.RAG.ChunkMode)
	}
	switch c.VectorStore.Backend {
	case VectorStorePostgres, VectorStoreMemory:
	default:
		return fmt.Errorf("invalid VECTOR_STORE: %q", c.VectorStore.Backend)
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND: %q", c.Cache.Backend)
	}
	if c.RAG.Temperature < 0 || c.RAG.Temperature > 2 {
		return fmt.Errorf("invalid RAG_TEMPERATURE: %v (must be between 0 and 2)", c.RAG.Temperature)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: 30s）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
