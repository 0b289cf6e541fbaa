package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/domain"
)

// OpenRouterService is a thin client for the hosted completion API. One call
// per request, no retries; failures are surfaced to the caller to degrade.
type OpenRouterService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewOpenRouterService(apiKey string) *OpenRouterService {
	return &OpenRouterService{
		apiKey:     apiKey,
		baseURL:    "https://openrouter.ai/api/v1",
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// TextMessage builds a plain text chat message.
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: text}
}

// VisionMessage builds a user message carrying inline image bytes as a data
// URI, the content-parts form the completion API expects for vision models.
func VisionMessage(text, mimeType string, data []byte) ChatMessage {
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	return ChatMessage{
		Role: domain.RoleUser,
		Content: []map[string]any{
			{"type": "text", "text": text},
			{"type": "image_url", "image_url": map[string]string{"url": dataURI}},
		},
	}
}

func (s *OpenRouterService) Chat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	payload, err := json.Marshal(ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("rate limited by OpenRouter (429)")
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return "", fmt.Errorf("OpenRouter service unavailable (503)")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from OpenRouter", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", domain.ErrEmptyCompletion
	}
	return chatResp.Choices[0].Message.Content, nil
}

// DescribeImage asks the model for a prose description of the requested
// image. Used as the terminal fallback when no image service produced pixels.
func (s *OpenRouterService) DescribeImage(ctx context.Context, model, prompt string) (string, error) {
	msg := TextMessage(domain.RoleUser, fmt.Sprintf(
		"I wanted to generate an image of: %s\n\nImage generation is unavailable right now. "+
			"Please describe in vivid detail what this image would look like.", prompt))
	return s.Chat(ctx, model, []ChatMessage{msg})
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (s *OpenRouterService) SetBaseURL(url string) {
	s.baseURL = url
}
