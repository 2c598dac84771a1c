package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/gpsrag/internal/core/rag"
)

// ChatService はチャットのユースケース
type ChatService interface {
	Chat(ctx context.Context, q rag.Query) rag.AnswerPayload
}

// DocumentService はドキュメント管理のユースケース
type DocumentService interface {
	Ingest(ctx context.Context, filename string, data []byte) (*rag.UploadResult, error)
	ListDocuments(ctx context.Context) ([]*rag.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*rag.Document], error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

type handler struct {
	chat      ChatService
	documents DocumentService
	validate  *validator.Validate
	logger    *slog.Logger
}

func (h *handler) registerRoutes(app *fiber.App) {
	app.Get("/health", h.health)

	api := app.Group("/api")
	api.Post("/chat", h.postChat)

	docs := api.Group("/documents")
	docs.Post("", h.uploadDocument)
	docs.Get("", h.listDocuments)
	docs.Get("/:id", h.getDocument)
	docs.Delete("/:id", h.deleteDocument)
}

func (h *handler) health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok"})
}

func (h *handler) postChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: validationMessage(err)})
	}

	q := rag.Query{
		Text:           req.Message,
		SessionID:      mo.EmptyableToOption(req.SessionID),
		IncludeGPSData: req.IncludeGPSData,
	}
	return c.JSON(h.chat.Chat(c.UserContext(), q))
}

func (h *handler) uploadDocument(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "No file uploaded"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Failed to open file", Filename: fileHeader.Filename})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "Failed to read file", Filename: fileHeader.Filename})
	}

	result, err := h.documents.Ingest(c.UserContext(), fileHeader.Filename, data)
	if err != nil {
		status := ingestStatus(err)
		h.logger.Warn("ドキュメントのアップロードに失敗しました",
			"filename", fileHeader.Filename,
			"status", status,
			"error", err,
		)
		return c.Status(status).JSON(ErrorResponse{Error: ingestMessage(err), Filename: fileHeader.Filename})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *handler) listDocuments(c *fiber.Ctx) error {
	docs, err := h.documents.ListDocuments(c.UserContext())
	if err != nil {
		return h.storeError(c, err)
	}
	if docs == nil {
		docs = []*rag.Document{}
	}
	return c.JSON(docs)
}

func (h *handler) getDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid document id"})
	}

	found, err := h.documents.GetDocument(c.UserContext(), id)
	if err != nil {
		return h.storeError(c, err)
	}
	doc, ok := found.Get()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "document not found"})
	}
	return c.JSON(doc)
}

func (h *handler) deleteDocument(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid document id"})
	}

	if err := h.documents.DeleteDocument(c.UserContext(), id); err != nil {
		if errors.Is(err, rag.ErrDocumentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "document not found"})
		}
		return h.storeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) storeError(c *fiber.Ctx, err error) error {
	h.logger.Error("document store request failed", "path", c.Path(), "error", err)

	var storeErr *rag.StoreUnavailableError
	if errors.As(err, &storeErr) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "document store unavailable"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
}

// ingestStatus は取り込みエラーを HTTP ステータスに対応付ける
func ingestStatus(err error) int {
	var (
		embedErr *rag.EmbeddingServiceError
		storeErr *rag.StoreUnavailableError
	)
	switch {
	case rag.IsClientError(err):
		return http.StatusBadRequest
	case errors.As(err, &embedErr):
		return http.StatusBadGateway
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ingestMessage(err error) string {
	var ingestErr *rag.IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr.Message()
	}
	return "The document could not be processed"
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid field " + fe.Field() + ": " + fe.Tag()
	}
	return "invalid request"
}
