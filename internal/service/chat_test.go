package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/domain"
)

type fakeStore struct {
	sessions map[string]bool
	messages []domain.Message
	turns    []domain.Turn
	uploads  map[string]*domain.FileUpload

	addMessageErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[string]bool{},
		uploads:  map[string]*domain.FileUpload{},
	}
}

func (f *fakeStore) EnsureSession(_ context.Context, id string) error {
	f.sessions[id] = true
	return nil
}

func (f *fakeStore) RecentMessages(_ context.Context, id string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	for _, m := range f.messages {
		if m.SessionID == id {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) AddMessage(_ context.Context, id, role, content string) (*domain.Message, error) {
	if f.addMessageErr != nil {
		return nil, f.addMessageErr
	}
	m := domain.Message{SessionID: id, Role: role, Content: content}
	f.messages = append(f.messages, m)
	return &m, nil
}

func (f *fakeStore) AddTurn(_ context.Context, id, userMessage, botResponse string) error {
	f.turns = append(f.turns, domain.Turn{SessionID: id, UserMessage: userMessage, BotResponse: botResponse})
	return nil
}

func (f *fakeStore) AddUpload(_ context.Context, up *domain.FileUpload) (*domain.FileUpload, error) {
	f.uploads[up.Filename] = up
	return up, nil
}

func (f *fakeStore) GetUpload(_ context.Context, _, filename string) (*domain.FileUpload, error) {
	up, ok := f.uploads[filename]
	if !ok {
		return nil, domain.ErrUploadNotFound
	}
	return up, nil
}

type fakeLLM struct {
	reply       string
	describe    string
	err         error
	describeErr error
	gotModel    string
	gotMessages []ChatMessage
}

func (f *fakeLLM) Chat(_ context.Context, model string, messages []ChatMessage) (string, error) {
	f.gotModel = model
	f.gotMessages = messages
	return f.reply, f.err
}

func (f *fakeLLM) DescribeImage(_ context.Context, model, _ string) (string, error) {
	f.gotModel = model
	return f.describe, f.describeErr
}

type fakeGenerator struct {
	url string
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return f.url, f.err
}

func testConfig() *config.Config {
	return &config.Config{ChatModel: "chat-model", VisionModel: "vision-model"}
}

func newTestChatService(t *testing.T, store *fakeStore, llm *fakeLLM, gen *fakeGenerator) *ChatService {
	t.Helper()
	files := NewFileService(store, t.TempDir())
	return NewChatService(store, llm, files, gen, testConfig())
}

func TestRespond_PlainMessage(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{reply: "hello back"}
	svc := newTestChatService(t, store, llm, &fakeGenerator{})

	out, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1", Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, "s1", out.SessionID)
	require.Equal(t, "hello back", out.Response)
	require.Empty(t, out.ImageURL)
	require.Equal(t, "chat-model", llm.gotModel)

	// User row precedes assistant row, then the turn.
	require.Len(t, store.messages, 2)
	require.Equal(t, domain.RoleUser, store.messages[0].Role)
	require.Equal(t, "hello", store.messages[0].Content)
	require.Equal(t, domain.RoleAssistant, store.messages[1].Role)
	require.Len(t, store.turns, 1)
	require.Equal(t, "hello", store.turns[0].UserMessage)
}

func TestRespond_GeneratesSessionID(t *testing.T) {
	store := newFakeStore()
	svc := newTestChatService(t, store, &fakeLLM{reply: "ok"}, &fakeGenerator{})

	out, err := svc.Respond(context.Background(), ChatInput{Message: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, out.SessionID)
	require.True(t, store.sessions[out.SessionID])
}

func TestRespond_EmptyMessage(t *testing.T) {
	svc := newTestChatService(t, newFakeStore(), &fakeLLM{}, &fakeGenerator{})

	_, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1"})
	require.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestRespond_ModelFailureDegrades(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{err: errors.New("upstream down")}
	svc := newTestChatService(t, store, llm, &fakeGenerator{})

	out, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, modelErrorReply, out.Response)
	// Nothing persisted for a failed exchange.
	require.Empty(t, store.messages)
	require.Empty(t, store.turns)
}

func TestRespond_HistoryFlowsIntoPrompt(t *testing.T) {
	store := newFakeStore()
	store.sessions["s1"] = true
	store.messages = []domain.Message{
		{SessionID: "s1", Role: domain.RoleUser, Content: "earlier question"},
		{SessionID: "s1", Role: domain.RoleAssistant, Content: "earlier answer"},
	}
	llm := &fakeLLM{reply: "ok"}
	svc := newTestChatService(t, store, llm, &fakeGenerator{})

	_, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1", Message: "follow-up"})
	require.NoError(t, err)

	require.Len(t, llm.gotMessages, 1)
	prompt := llm.gotMessages[0].Content.(string)
	require.Contains(t, prompt, "User: earlier question")
	require.Contains(t, prompt, "Assistant: earlier answer")
	require.Contains(t, prompt, "User: follow-up")
}

func TestRespond_ImageGeneration(t *testing.T) {
	store := newFakeStore()
	svc := newTestChatService(t, store, &fakeLLM{}, &fakeGenerator{url: "/generated/img.png"})

	out, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1", Message: "a sunset", GenerateImage: true})
	require.NoError(t, err)
	require.Equal(t, "/generated/img.png", out.ImageURL)
	require.Contains(t, out.Response, "a sunset")

	require.Len(t, store.messages, 2)
	require.Len(t, store.turns, 1)
}

func TestRespond_ImageExhaustionFallsBackToDescription(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{describe: "it would be golden and hazy"}
	svc := newTestChatService(t, store, llm, &fakeGenerator{err: domain.ErrImageUnavailable})

	out, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1", Message: "a sunset", GenerateImage: true})
	require.NoError(t, err)
	require.Empty(t, out.ImageURL)
	require.Contains(t, out.Response, "it would be golden and hazy")

	// The description outcome is persisted like any other turn.
	require.Len(t, store.messages, 2)
	require.Len(t, store.turns, 1)
}

func TestRespond_ImageUploadTakesVisionPath(t *testing.T) {
	store := newFakeStore()
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(imgPath, []byte{0x89, 0x50}, 0o644))
	store.uploads["abc.png"] = &domain.FileUpload{
		SessionID: "s1", Filename: "abc.png", OriginalName: "photo.png",
		Path: imgPath, MimeType: "image/png",
	}

	llm := &fakeLLM{reply: "that is a cat"}
	files := NewFileService(store, dir)
	svc := NewChatService(store, llm, files, &fakeGenerator{}, testConfig())

	out, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1", Message: "what is this?", FileName: "abc.png"})
	require.NoError(t, err)
	require.Equal(t, "that is a cat", out.Response)
	require.Equal(t, "vision-model", llm.gotModel)

	// Vision content parts, not a flat prompt.
	_, isString := llm.gotMessages[0].Content.(string)
	require.False(t, isString)
}

func TestRespond_TextUploadInjectedIntoPrompt(t *testing.T) {
	store := newFakeStore()
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("meeting notes content"), 0o644))
	store.uploads["n.txt"] = &domain.FileUpload{
		SessionID: "s1", Filename: "n.txt", OriginalName: "notes.txt",
		Path: txtPath, MimeType: "text/plain",
	}

	llm := &fakeLLM{reply: "summarized"}
	files := NewFileService(store, dir)
	svc := NewChatService(store, llm, files, &fakeGenerator{}, testConfig())

	_, err := svc.Respond(context.Background(), ChatInput{SessionID: "s1", Message: "summarize", FileName: "n.txt"})
	require.NoError(t, err)

	prompt := llm.gotMessages[0].Content.(string)
	require.Contains(t, prompt, "meeting notes content")
}
