package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/soft-kiwi/converse/internal/domain"
)

// SessionStore is the slice of the store the session service needs.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
	ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error)
	ListUploads(ctx context.Context, sessionID string) ([]domain.FileUpload, error)
	ListGeneratedImages(ctx context.Context, sessionID string) ([]domain.GeneratedImage, error)
	ClearSession(ctx context.Context, sessionID string) error
	Counts(ctx context.Context, sessionID string) (*domain.SessionStats, error)
}

type SessionService struct {
	store        SessionStore
	generatedDir string
}

func NewSessionService(store SessionStore, generatedDir string) *SessionService {
	return &SessionService{store: store, generatedDir: generatedDir}
}

// History returns all messages of a session, oldest first. An unknown
// session yields an empty history, not an error.
func (s *SessionService) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	return s.store.ListMessages(ctx, sessionID)
}

// Clear wipes everything the session owns: rows in one grouped delete, plus
// best-effort removal of the files those rows pointed at.
func (s *SessionService) Clear(ctx context.Context, sessionID string) error {
	uploads, err := s.store.ListUploads(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list uploads for clear: %w", err)
	}
	images, err := s.store.ListGeneratedImages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list images for clear: %w", err)
	}

	if err := s.store.ClearSession(ctx, sessionID); err != nil {
		return err
	}

	for _, up := range uploads {
		if err := os.Remove(up.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove upload file", "error", err, "path", up.Path)
		}
	}
	for _, img := range images {
		// image_path is the public URL path; the file lives in generatedDir.
		name := filepath.Join(s.generatedDir, path.Base(img.Path))
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("remove generated image", "error", err, "path", img.Path)
		}
	}
	return nil
}

// SessionExport is the full JSON export of one session.
type SessionExport struct {
	SessionID     string         `json:"sessionId"`
	ExportedAt    time.Time      `json:"exportedAt"`
	MessageCount  int64          `json:"messageCount"`
	FileCount     int64          `json:"fileCount"`
	Conversations []ExportedTurn `json:"conversations"`
	Files         []ExportedFile `json:"files"`
}

type ExportedTurn struct {
	UserMessage string    `json:"userMessage"`
	BotResponse string    `json:"botResponse"`
	Timestamp   time.Time `json:"timestamp"`
}

type ExportedFile struct {
	OriginalName string    `json:"originalName"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	Timestamp    time.Time `json:"timestamp"`
}

// Export collects the full turn and file lists. A session with no rows
// exports empty lists and zero counts, never an error.
func (s *SessionService) Export(ctx context.Context, sessionID string) (*SessionExport, error) {
	turns, err := s.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	uploads, err := s.store.ListUploads(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Counts(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := &SessionExport{
		SessionID:     sessionID,
		ExportedAt:    time.Now(),
		MessageCount:  counts.Messages,
		FileCount:     counts.Files,
		Conversations: make([]ExportedTurn, 0, len(turns)),
		Files:         make([]ExportedFile, 0, len(uploads)),
	}
	for _, t := range turns {
		out.Conversations = append(out.Conversations, ExportedTurn{
			UserMessage: t.UserMessage,
			BotResponse: t.BotResponse,
			Timestamp:   t.CreatedAt,
		})
	}
	for _, u := range uploads {
		out.Files = append(out.Files, ExportedFile{
			OriginalName: u.OriginalName,
			Filename:     u.Filename,
			Size:         u.Size,
			MimeType:     u.MimeType,
			Timestamp:    u.CreatedAt,
		})
	}
	return out, nil
}

// SessionInfo is the stats view of one session.
type SessionInfo struct {
	SessionID  string
	Stats      domain.SessionStats
	CreatedAt  time.Time
	LastActive time.Time
}

// Stats reports row counts and activity timestamps. Unknown sessions report
// zeroes rather than failing.
func (s *SessionService) Stats(ctx context.Context, sessionID string) (*SessionInfo, error) {
	info := &SessionInfo{SessionID: sessionID}

	sess, err := s.store.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		info.CreatedAt = sess.CreatedAt
		info.LastActive = sess.LastActive
	case errors.Is(err, domain.ErrSessionNotFound):
		return info, nil
	default:
		return nil, err
	}

	counts, err := s.store.Counts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	info.Stats = *counts
	return info, nil
}
