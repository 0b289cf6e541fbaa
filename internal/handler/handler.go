// Package handler maps the HTTP JSON endpoints onto the chat, file and
// session services. Each handler validates required fields, performs one
// logical operation sequence and maps failures per the error taxonomy:
// 400 for missing input, 500 with the underlying message for storage
// failures; external-service failures are degraded inside the services.
package handler

import (
	"context"
	"io"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/domain"
	"github.com/soft-kiwi/converse/internal/service"
)

// Chatter handles one user message end to end.
type Chatter interface {
	Respond(ctx context.Context, in service.ChatInput) (*service.ChatResult, error)
}

// FileSaver stores one uploaded file and pulls prompt-injectable text
// back out of it.
type FileSaver interface {
	Save(ctx context.Context, sessionID, originalName, mimeType string, size int64, r io.Reader) (*domain.FileUpload, error)
	ExtractText(up *domain.FileUpload) (string, error)
}

// Sessions exposes the read/clear side of a session.
type Sessions interface {
	History(ctx context.Context, sessionID string) ([]domain.Message, error)
	Clear(ctx context.Context, sessionID string) error
	Export(ctx context.Context, sessionID string) (*service.SessionExport, error)
	Stats(ctx context.Context, sessionID string) (*service.SessionInfo, error)
}

// Handler holds all dependencies needed by the HTTP endpoints.
type Handler struct {
	cfg      *config.Config
	chat     Chatter
	files    FileSaver
	sessions Sessions
	webFS    fs.FS
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Cfg      *config.Config
	Chat     Chatter
	Files    FileSaver
	Sessions Sessions
	WebFS    fs.FS
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		cfg:      deps.Cfg,
		chat:     deps.Chat,
		files:    deps.Files,
		sessions: deps.Sessions,
		webFS:    deps.WebFS,
	}
}

// Register wires all routes onto the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/chat", h.handleChat)
	api.POST("/upload", h.handleUpload)
	api.POST("/clear", h.handleClear)
	api.GET("/history", h.handleHistory)
	api.GET("/stats", h.handleStats)
	api.GET("/export", h.handleExport)

	e.GET("/uploads/*", echo.WrapHandler(http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(h.cfg.UploadDir)))))
	e.GET("/generated/*", echo.WrapHandler(http.StripPrefix("/generated/",
		http.FileServer(http.Dir(h.cfg.GeneratedDir)))))

	if h.webFS != nil {
		e.GET("/*", echo.WrapHandler(http.FileServer(http.FS(h.webFS))))
	}
}

func badRequest(c *echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func internalError(c *echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
