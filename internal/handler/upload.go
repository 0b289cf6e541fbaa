package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/domain"
)

type uploadResponse struct {
	FileURL       string `json:"fileUrl"`
	Filename      string `json:"filename"`
	OriginalName  string `json:"originalName"`
	Size          int64  `json:"size"`
	MimeType      string `json:"mimeType"`
	ExtractedText string `json:"extractedText,omitempty"`
}

// handleUpload accepts one multipart file. Size and type limits are checked
// before anything reaches storage.
func (h *Handler) handleUpload(c *echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	sessionID := strings.TrimSpace(c.FormValue("sessionId"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if fh.Size > config.MaxUploadSize {
		return badRequest(c, "file exceeds the 10 MB limit")
	}

	src, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer src.Close()

	up, err := h.files.Save(c.Request().Context(), sessionID, fh.Filename,
		fh.Header.Get("Content-Type"), fh.Size, src)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrFileTooLarge):
			return badRequest(c, "file exceeds the 10 MB limit")
		case errors.Is(err, domain.ErrFileTypeNotAllowed):
			return badRequest(c, "file type not allowed")
		default:
			slog.Error("upload failed", "error", err, "session_id", sessionID)
			return internalError(c, err)
		}
	}

	extracted, err := h.files.ExtractText(up)
	if err != nil {
		slog.Warn("text extraction failed", "error", err, "file", up.Filename)
		extracted = ""
	}

	return c.JSON(http.StatusOK, uploadResponse{
		FileURL:       "/uploads/" + up.Filename,
		Filename:      up.Filename,
		OriginalName:  up.OriginalName,
		Size:          up.Size,
		MimeType:      up.MimeType,
		ExtractedText: extracted,
	})
}
