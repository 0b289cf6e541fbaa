package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrUploadNotFound     = errors.New("upload not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum upload size")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrEmptyMessage       = errors.New("message is required")
	ErrMessageTooLong     = errors.New("message too long")
	ErrImageUnavailable   = errors.New("image generation unavailable")
	ErrEmptyCompletion    = errors.New("model returned no completion")
)
