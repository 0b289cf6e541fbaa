package domain

import "time"

// Message roles stored in chat_messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session groups all messages, uploads and generated images belonging to one
// browser tab. Created lazily on first contact.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastActive time.Time
}

// Message is a single chat message. Append-only, ordered by timestamp.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Turn is the denormalized user/assistant pairing kept alongside raw
// messages for export and history display.
type Turn struct {
	ID          int64
	SessionID   string
	UserMessage string
	BotResponse string
	CreatedAt   time.Time
}

// FileUpload records one uploaded file.
type FileUpload struct {
	ID           int64
	SessionID    string
	Filename     string
	OriginalName string
	Path         string
	Size         int64
	MimeType     string
	CreatedAt    time.Time
}

// GeneratedImage records the outcome of one image generation request.
type GeneratedImage struct {
	ID        int64
	SessionID string
	Prompt    string
	Path      string
	CreatedAt time.Time
}

// SessionStats holds per-session row counts for the stats endpoint.
type SessionStats struct {
	Messages int64
	Turns    int64
	Files    int64
	Images   int64
}
