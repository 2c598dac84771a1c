package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/ask"
	"github.com/jinford/gpsrag/internal/core/chat"
	"github.com/jinford/gpsrag/internal/core/fallback"
	"github.com/jinford/gpsrag/internal/core/ingestion"
	"github.com/jinford/gpsrag/internal/core/ingestion/chunk"
	"github.com/jinford/gpsrag/internal/core/rag"
	"github.com/jinford/gpsrag/internal/core/search"
	"github.com/jinford/gpsrag/internal/infra/cache"
	"github.com/jinford/gpsrag/internal/infra/filesystem"
	"github.com/jinford/gpsrag/internal/infra/git"
	"github.com/jinford/gpsrag/internal/infra/memory"
	"github.com/jinford/gpsrag/internal/infra/openai"
	"github.com/jinford/gpsrag/internal/infra/pdf"
	"github.com/jinford/gpsrag/internal/infra/postgres"
	"github.com/jinford/gpsrag/internal/infra/tiktoken"
	"github.com/jinford/gpsrag/internal/platform/config"
	"github.com/jinford/gpsrag/internal/platform/database"
)

// Embedder は取り込みと検索の両方で使う Embedding クライアント
type Embedder interface {
	ingestion.Embedder
	search.Embedder
}

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Config           *config.Config
	Chunker          chunk.Chunker
	IngestionService *ingestion.Service
	SearchService    *search.SearchService
	Assembler        *ask.Assembler
	ChatService      *chat.Service

	logger  *slog.Logger
	store   *LazyStore
	closers []func()
}

type containerOptions struct {
	logger    *slog.Logger
	embedder  Embedder
	completer ask.Completer
	cache     chat.AnswerCache
	connect   ConnectFunc
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerEmbedder はカスタム Embedder を注入する
func WithContainerEmbedder(embedder Embedder) ContainerOption {
	return func(opts *containerOptions) {
		opts.embedder = embedder
	}
}

// WithContainerCompleter は回答生成クライアントを差し替える
func WithContainerCompleter(completer ask.Completer) ContainerOption {
	return func(opts *containerOptions) {
		opts.completer = completer
	}
}

// WithContainerCache は回答キャッシュを差し替える
func WithContainerCache(c chat.AnswerCache) ContainerOption {
	return func(opts *containerOptions) {
		opts.cache = c
	}
}

// WithContainerConnect は PostgreSQL への接続処理を差し替える
func WithContainerConnect(connect ConnectFunc) ContainerOption {
	return func(opts *containerOptions) {
		opts.connect = connect
	}
}

// NewContainer は設定からコンテナを生成する。
// PostgreSQL への接続は初回利用時まで行わない。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	c := &ServiceContainer{Config: cfg, logger: logger}

	// TokenCounter
	var counter chunk.TokenCounter
	tc, err := tiktoken.NewCounter()
	if err != nil {
		logger.Warn("tiktoken エンコーディングを取得できないため概算でトークン数を数えます", "error", err)
		counter = tiktoken.EstimateCounter{}
	} else {
		counter = tc
	}

	// Chunker
	c.Chunker, err = NewChunker(cfg.RAG, counter)
	if err != nil {
		return nil, fmt.Errorf("Chunker 初期化に失敗しました: %w", err)
	}

	// Embedder (OpenAI)
	embedder := options.embedder
	if embedder == nil {
		embedder = openai.NewEmbedder(
			cfg.OpenAI.APIKey,
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
			openai.WithEmbeddingTimeout(cfg.OpenAI.EmbeddingTimeout),
			openai.WithEmbeddingBaseURL(cfg.OpenAI.BaseURL),
		)
	}

	// Completer (OpenAI)
	completer := options.completer
	if completer == nil {
		client, err := openai.NewClient(
			cfg.OpenAI.APIKey,
			openai.WithModel(cfg.OpenAI.ChatModel),
			openai.WithTimeout(cfg.RAG.GenerationTimeout),
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("OpenAI クライアント初期化に失敗しました: %w", err)
		}
		completer = client
	}

	// VectorStore / DocumentRepository
	var (
		vectorStore rag.VectorStore
		documents   ingestion.DocumentRepository
	)
	switch cfg.VectorStore.Backend {
	case config.VectorStoreMemory:
		vectorStore = memory.NewVectorStore(cfg.OpenAI.EmbeddingDimension)
		documents = memory.NewDocumentRepository()
		logger.Info("using in-memory vector store")
	default:
		connect := options.connect
		if connect == nil {
			connect = postgresConnector(cfg, logger)
		}
		c.store = NewLazyStore(connect, WithConnectTimeout(cfg.Database.ConnectTimeout))
		c.closers = append(c.closers, c.store.Close)
		vectorStore = c.store
		documents = c.store
	}

	// AnswerCache
	answerCache := options.cache
	if answerCache == nil {
		answerCache, err = newAnswerCache(ctx, cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		if closer, ok := answerCache.(*cache.RedisCache); ok {
			c.closers = append(c.closers, func() { _ = closer.Close() })
		}
	}

	// IngestionService
	c.IngestionService = ingestion.NewService(
		c.Chunker,
		embedder,
		vectorStore,
		documents,
		ingestion.WithIngestLogger(logger),
		ingestion.WithExtractor(".pdf", pdf.NewExtractor(pdf.WithLogger(logger))),
		ingestion.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		ingestion.WithEmbeddingConcurrency(cfg.RAG.EmbeddingConcurrency),
	)

	// SearchService
	c.SearchService = search.NewSearchService(
		vectorStore,
		embedder,
		search.WithSearchLogger(logger),
		search.WithDefaultTopK(cfg.RAG.TopK),
	)

	// Assembler
	c.Assembler = ask.NewAssembler(
		c.SearchService,
		completer,
		counter,
		ask.WithAskLogger(logger),
		ask.WithConfig(ask.Config{
			TopK:              cfg.RAG.TopK,
			MaxContextTokens:  cfg.RAG.MaxContextTokens,
			MaxAnswerTokens:   cfg.RAG.MaxAnswerTokens,
			Temperature:       mo.Some(cfg.RAG.Temperature),
			GenerationTimeout: cfg.RAG.GenerationTimeout,
		}),
	)

	// ChatService
	c.ChatService = chat.NewService(
		c.Assembler,
		fallback.NewPolicy(),
		chat.WithChatLogger(logger),
		chat.WithCache(answerCache, cfg.Cache.TTL),
	)

	return c, nil
}

// NewChunker は設定のチャンクモードに応じた Chunker を作成する
func NewChunker(cfg config.RAGConfig, counter chunk.TokenCounter) (chunk.Chunker, error) {
	if cfg.ChunkMode == config.ChunkModeWindow {
		wc, err := chunk.NewWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap, counter)
		if err != nil {
			return nil, err
		}
		return wc, nil
	}
	pc, err := chunk.NewParagraphChunker(cfg.ChunkSize, cfg.ChunkOverlap, counter)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

// postgresConnector は接続とスキーマ作成を行う ConnectFunc を返す
func postgresConnector(cfg *config.Config, logger *slog.Logger) ConnectFunc {
	return func(ctx context.Context) (*Backend, error) {
		db, err := database.New(ctx, database.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Warn("データベースに接続できません", "error", err)
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db.Pool, cfg.OpenAI.EmbeddingDimension); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("connected to postgres vector store", "host", cfg.Database.Host, "db", cfg.Database.DBName)

		return &Backend{
			Vectors:   postgres.NewVectorStore(db.Pool).WithSearchTimeout(cfg.RAG.SearchTimeout),
			Documents: postgres.NewDocumentRepository(db.Pool),
			Close:     db.Close,
		}, nil
	}
}

// newAnswerCache は設定に応じた回答キャッシュを作成する
// Redis に接続できない場合はプロセス内キャッシュで代替する
func newAnswerCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (chat.AnswerCache, error) {
	switch cfg.Backend {
	case config.CacheNone:
		return cache.Noop{}, nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis に接続できないためメモリキャッシュを使用します", "error", err)
			return cache.NewMemoryCache(cfg.TTL), nil
		}
		return rc, nil
	default:
		return cache.NewMemoryCache(cfg.TTL), nil
	}
}

// DirectoryProvider はローカルディレクトリ用の SourceProvider を返す
func (c *ServiceContainer) DirectoryProvider() ingestion.SourceProvider {
	return filesystem.NewProvider(filesystem.WithExtensions(c.IngestionService.Extensions()...))
}

// GitProvider は Git リポジトリ用の SourceProvider を返す
func (c *ServiceContainer) GitProvider() ingestion.SourceProvider {
	client := git.NewClient(c.Config.Git.SSHKeyPath, c.Config.Git.SSHPassword, nil)
	return git.NewProvider(
		client,
		c.Config.Git.CloneDir,
		c.Config.Git.DefaultBranch,
		git.WithExtensions(c.IngestionService.Extensions()...),
		git.WithProviderLogger(c.logger),
	)
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
