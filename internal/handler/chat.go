package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/soft-kiwi/converse/internal/domain"
	"github.com/soft-kiwi/converse/internal/service"
)

type chatRequest struct {
	Message       string `json:"message"`
	SessionID     string `json:"sessionId"`
	FileURL       string `json:"fileUrl"`
	GenerateImage bool   `json:"generateImage"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// handleChat processes one user message, optionally carrying an uploaded
// file reference or the image-generation flag.
func (h *Handler) handleChat(c *echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if strings.TrimSpace(req.Message) == "" {
		return badRequest(c, "message is required")
	}

	result, err := h.chat.Respond(c.Request().Context(), service.ChatInput{
		SessionID:     req.SessionID,
		Message:       req.Message,
		FileName:      uploadName(req.FileURL),
		GenerateImage: req.GenerateImage,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage):
			return badRequest(c, "message is required")
		case errors.Is(err, domain.ErrMessageTooLong):
			return badRequest(c, "message too long")
		case errors.Is(err, domain.ErrUploadNotFound):
			return badRequest(c, "referenced file not found")
		default:
			slog.Error("chat failed", "error", err)
			return internalError(c, err)
		}
	}

	return c.JSON(http.StatusOK, chatResponse{
		Response:  result.Response,
		SessionID: result.SessionID,
		ImageURL:  result.ImageURL,
	})
}

// uploadName reduces a client-supplied file URL ("/uploads/<name>") to the
// stored filename. The session scoping of the lookup prevents cross-session
// file access regardless of what path the client sends.
func uploadName(fileURL string) string {
	if fileURL == "" {
		return ""
	}
	return path.Base(fileURL)
}
