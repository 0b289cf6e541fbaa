package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
)

type clearRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *Handler) handleClear(c *echo.Context) error {
	var req clearRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return badRequest(c, "sessionId is required")
	}

	if err := h.sessions.Clear(c.Request().Context(), req.SessionID); err != nil {
		slog.Error("clear session failed", "error", err, "session_id", req.SessionID)
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

type historyMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type historyResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []historyMessage `json:"messages"`
}

func (h *Handler) handleHistory(c *echo.Context) error {
	sessionID := c.QueryParam("sessionId")
	if sessionID == "" {
		return badRequest(c, "sessionId is required")
	}

	msgs, err := h.sessions.History(c.Request().Context(), sessionID)
	if err != nil {
		slog.Error("history failed", "error", err, "session_id", sessionID)
		return internalError(c, err)
	}

	out := historyResponse{SessionID: sessionID, Messages: make([]historyMessage, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, historyMessage{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}

type statsResponse struct {
	SessionID         string     `json:"sessionId"`
	MessageCount      int64      `json:"messageCount"`
	ConversationCount int64      `json:"conversationCount"`
	FileCount         int64      `json:"fileCount"`
	ImageCount        int64      `json:"imageCount"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	LastActive        *time.Time `json:"lastActive,omitempty"`
}

func (h *Handler) handleStats(c *echo.Context) error {
	sessionID := c.QueryParam("sessionId")
	if sessionID == "" {
		return badRequest(c, "sessionId is required")
	}

	info, err := h.sessions.Stats(c.Request().Context(), sessionID)
	if err != nil {
		slog.Error("stats failed", "error", err, "session_id", sessionID)
		return internalError(c, err)
	}

	out := statsResponse{
		SessionID:         info.SessionID,
		MessageCount:      info.Stats.Messages,
		ConversationCount: info.Stats.Turns,
		FileCount:         info.Stats.Files,
		ImageCount:        info.Stats.Images,
	}
	if !info.CreatedAt.IsZero() {
		out.CreatedAt = &info.CreatedAt
		out.LastActive = &info.LastActive
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) handleExport(c *echo.Context) error {
	sessionID := c.QueryParam("sessionId")
	if sessionID == "" {
		return badRequest(c, "sessionId is required")
	}

	export, err := h.sessions.Export(c.Request().Context(), sessionID)
	if err != nil {
		slog.Error("export failed", "error", err, "session_id", sessionID)
		return internalError(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="chat-export-`+sessionID+`.json"`)
	return c.JSON(http.StatusOK, export)
}
