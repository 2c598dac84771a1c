package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// DefaultBodyLimit はリクエストボディの上限（アップロード上限に multipart のヘッダ分を足す）
const DefaultBodyLimit = 10<<20 + 64<<10

// DefaultRequestTimeout は 1 リクエストあたりの処理時間の上限
const DefaultRequestTimeout = 2 * time.Minute

// Config は HTTP サーバ設定
type Config struct {
	Port           string
	AllowedOrigins string
	BodyLimit      int
	RequestTimeout time.Duration
}

// Server は fiber による HTTP API
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger
}

// ServerOption は Server のオプション設定
type ServerOption func(*Server)

// WithServerLogger はロガーを設定する
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// New は Server を作成してルートを登録する
func New(cfg Config, chat ChatService, documents DocumentService, opts ...ServerOption) *Server {
	s := &Server{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.BodyLimit <= 0 {
		s.cfg.BodyLimit = DefaultBodyLimit
	}
	if s.cfg.RequestTimeout <= 0 {
		s.cfg.RequestTimeout = DefaultRequestTimeout
	}
	if s.cfg.AllowedOrigins == "" {
		s.cfg.AllowedOrigins = "*"
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             s.cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(s.requestLogger)
	app.Use(s.requestContext)

	h := &handler{
		chat:      chat,
		documents: documents,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    s.logger,
	}
	h.registerRoutes(app)

	s.app = app
	return s
}

// App は fiber アプリケーションを返す
func (s *Server) App() *fiber.App {
	return s.app
}

// Run はサーバを起動し、ctx がキャンセルされたらグレースフルに停止する
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバを起動します", "port", s.cfg.Port)
		errCh <- s.app.Listen(":" + s.cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTPサーバを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Info("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

// requestContext はハンドラに渡す UserContext にリクエストのタイムアウトを設定する
func (s *Server) requestContext(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()
	c.SetUserContext(ctx)
	return c.Next()
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		s.logger.Error("unhandled error", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Error: message})
}
