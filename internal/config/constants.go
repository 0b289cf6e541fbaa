package config

import "time"

const (
	// Conversation history sent to the model per request
	HistoryLimit = 10

	// AI request timeout
	RequestTimeout = 90 * time.Second

	// Timeout for a single image service attempt
	ImageFetchTimeout = 15 * time.Second

	// Upload limits
	MaxUploadSize = 10 << 20 // 10 MB

	// Message length limit
	MaxMessageLen = 10 * 1024

	// Extracted file text cap for prompt injection
	MaxExtractedTextLen = 64 << 10

	// Downloaded image body cap
	MaxImageBodySize = 20 << 20

	// Thumbnail bounding box for uploaded images
	ThumbnailSize = 256

	// Local placeholder image dimensions
	PlaceholderSize = 512

	// Words of the prompt rendered into the local placeholder
	PlaceholderWordLimit = 8

	// HTTP server timeouts
	ReadTimeout     = 15 * time.Second
	WriteTimeout    = 2 * time.Minute
	IdleTimeout     = 60 * time.Second
	ShutdownTimeout = 30 * time.Second
)

// AllowedExtensions maps accepted upload extensions to their canonical mime type.
var AllowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".json": "application/json",
	".csv":  "text/csv",
}
