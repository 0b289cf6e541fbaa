package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/domain"
)

const modelErrorReply = "Sorry, I couldn't process your message right now. Please try again."

// ConversationStore is the slice of the store the chat flow needs.
type ConversationStore interface {
	EnsureSession(ctx context.Context, sessionID string) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	AddMessage(ctx context.Context, sessionID, role, content string) (*domain.Message, error)
	AddTurn(ctx context.Context, sessionID, userMessage, botResponse string) error
}

// LLM is the completion gateway used by the chat flow.
type LLM interface {
	Chat(ctx context.Context, model string, messages []ChatMessage) (string, error)
	DescribeImage(ctx context.Context, model, prompt string) (string, error)
}

// ImageGenerator runs the image fallback chain.
type ImageGenerator interface {
	Generate(ctx context.Context, sessionID, prompt string) (string, error)
}

type ChatService struct {
	store  ConversationStore
	llm    LLM
	files  *FileService
	images ImageGenerator
	cfg    *config.Config
}

func NewChatService(store ConversationStore, llm LLM, files *FileService, images ImageGenerator, cfg *config.Config) *ChatService {
	return &ChatService{store: store, llm: llm, files: files, images: images, cfg: cfg}
}

type ChatInput struct {
	SessionID     string
	Message       string
	FileName      string
	GenerateImage bool
}

type ChatResult struct {
	SessionID string
	Response  string
	ImageURL  string
}

// Respond handles one user message: session resolution, optional file
// context or image generation, the model call, and persistence of the
// exchange. The user row is written before the assistant row, always.
func (s *ChatService) Respond(ctx context.Context, in ChatInput) (*ChatResult, error) {
	if in.Message == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len(in.Message) > config.MaxMessageLen {
		return nil, domain.ErrMessageTooLong
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := s.store.EnsureSession(ctx, sessionID); err != nil {
		return nil, err
	}

	if in.GenerateImage {
		return s.respondWithImage(ctx, sessionID, in.Message)
	}

	reply, err := s.completeText(ctx, sessionID, in)
	if err != nil {
		slog.Error("model call failed", "error", err, "session_id", sessionID)
		return &ChatResult{SessionID: sessionID, Response: modelErrorReply}, nil
	}

	s.persistTurn(ctx, sessionID, in.Message, reply)
	return &ChatResult{SessionID: sessionID, Response: reply}, nil
}

func (s *ChatService) completeText(ctx context.Context, sessionID string, in ChatInput) (string, error) {
	// Image uploads go straight to a vision call with inline bytes.
	if in.FileName != "" && IsImageExt(filepath.Ext(in.FileName)) {
		up, data, err := s.files.ReadUpload(ctx, sessionID, in.FileName)
		if err != nil {
			return "", fmt.Errorf("load image upload: %w", err)
		}
		msg := VisionMessage(in.Message, up.MimeType, data)
		return s.llm.Chat(ctx, s.cfg.VisionModel, []ChatMessage{msg})
	}

	var fileText string
	if in.FileName != "" {
		up, err := s.files.store.GetUpload(ctx, sessionID, in.FileName)
		if err != nil {
			return "", fmt.Errorf("look up upload: %w", err)
		}
		fileText, err = s.files.ExtractText(up)
		if err != nil {
			slog.Warn("file text extraction failed", "error", err, "file", in.FileName)
		}
	}

	history, err := s.store.RecentMessages(ctx, sessionID, config.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	prompt := BuildPrompt(history, in.Message, fileText)
	return s.llm.Chat(ctx, s.cfg.ChatModel, []ChatMessage{TextMessage(domain.RoleUser, prompt)})
}

// respondWithImage runs the fallback chain and, when even that is exhausted,
// degrades to a prose description of the requested image. Either outcome is
// persisted as a message pair and a turn.
func (s *ChatService) respondWithImage(ctx context.Context, sessionID, prompt string) (*ChatResult, error) {
	imageURL, err := s.images.Generate(ctx, sessionID, prompt)
	if err == nil {
		reply := fmt.Sprintf("Here is the generated image for: %s", prompt)
		s.persistTurn(ctx, sessionID, prompt, reply)
		return &ChatResult{SessionID: sessionID, Response: reply, ImageURL: imageURL}, nil
	}
	if !errors.Is(err, domain.ErrImageUnavailable) {
		slog.Error("image generation failed", "error", err, "session_id", sessionID)
	}

	desc, derr := s.llm.DescribeImage(ctx, s.cfg.ChatModel, prompt)
	if derr != nil {
		slog.Error("image description fallback failed", "error", derr, "session_id", sessionID)
		return &ChatResult{SessionID: sessionID, Response: modelErrorReply}, nil
	}

	reply := "I couldn't generate the image, but here is what it would look like:\n\n" + desc
	s.persistTurn(ctx, sessionID, prompt, reply)
	return &ChatResult{SessionID: sessionID, Response: reply}, nil
}

// persistTurn writes the user message, the assistant message and the
// denormalized turn, sequentially in that order. A store failure after a
// successful model call is logged; the reply is still returned to the caller.
func (s *ChatService) persistTurn(ctx context.Context, sessionID, userMessage, reply string) {
	if _, err := s.store.AddMessage(ctx, sessionID, domain.RoleUser, userMessage); err != nil {
		slog.Error("persist user message", "error", err, "session_id", sessionID)
		return
	}
	if _, err := s.store.AddMessage(ctx, sessionID, domain.RoleAssistant, reply); err != nil {
		slog.Error("persist assistant message", "error", err, "session_id", sessionID)
		return
	}
	if err := s.store.AddTurn(ctx, sessionID, userMessage, reply); err != nil {
		slog.Error("persist turn", "error", err, "session_id", sessionID)
	}
}
