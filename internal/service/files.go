package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/disintegration/imaging"
	"github.com/lithammer/shortuuid/v4"

	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/domain"
)

// UploadStore is the slice of the store the file service needs.
type UploadStore interface {
	EnsureSession(ctx context.Context, sessionID string) error
	AddUpload(ctx context.Context, up *domain.FileUpload) (*domain.FileUpload, error)
	GetUpload(ctx context.Context, sessionID, filename string) (*domain.FileUpload, error)
}

// FileService stores uploads on disk and records them per session.
type FileService struct {
	store UploadStore
	dir   string
}

func NewFileService(store UploadStore, dir string) *FileService {
	return &FileService{store: store, dir: dir}
}

// Save validates and persists one uploaded file. Size and type checks run
// before anything touches disk. Image uploads additionally get a thumbnail,
// best-effort.
func (s *FileService) Save(ctx context.Context, sessionID, originalName, mimeType string, size int64, r io.Reader) (*domain.FileUpload, error) {
	if size > config.MaxUploadSize {
		return nil, domain.ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	canonical, ok := config.AllowedExtensions[ext]
	if !ok {
		return nil, domain.ErrFileTypeNotAllowed
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = canonical
	}

	if err := s.store.EnsureSession(ctx, sessionID); err != nil {
		return nil, err
	}

	stored := shortuuid.New() + ext
	path := filepath.Join(s.dir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(r, config.MaxUploadSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write upload file: %w", err)
	}
	if written > config.MaxUploadSize {
		os.Remove(path)
		return nil, domain.ErrFileTooLarge
	}

	if IsImageExt(ext) {
		s.writeThumbnail(path, stored)
	}

	return s.store.AddUpload(ctx, &domain.FileUpload{
		SessionID:    sessionID,
		Filename:     stored,
		OriginalName: originalName,
		Path:         path,
		Size:         written,
		MimeType:     mimeType,
	})
}

// writeThumbnail renders a bounded thumbnail next to the original. Failures
// only lose the thumbnail, never the upload.
func (s *FileService) writeThumbnail(path, stored string) {
	img, err := imaging.Open(path)
	if err != nil {
		slog.Warn("thumbnail decode failed", "file", stored, "error", err)
		return
	}
	thumb := imaging.Fit(img, config.ThumbnailSize, config.ThumbnailSize, imaging.Lanczos)
	thumbPath := filepath.Join(s.dir, "thumb_"+strings.TrimSuffix(stored, filepath.Ext(stored))+".png")
	if err := imaging.Save(thumb, thumbPath); err != nil {
		slog.Warn("thumbnail save failed", "file", stored, "error", err)
	}
}

// ReadUpload returns the record and raw bytes of a stored file, for the
// vision path.
func (s *FileService) ReadUpload(ctx context.Context, sessionID, filename string) (*domain.FileUpload, []byte, error) {
	up, err := s.store.GetUpload(ctx, sessionID, filename)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(up.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	return up, data, nil
}

// ExtractText pulls prompt-injectable text out of an uploaded file. Plain
// formats are read verbatim (capped), HTML is reduced to its visible text.
// Binary document formats yield only a notice line; images yield nothing
// because they travel the vision path instead.
func (s *FileService) ExtractText(up *domain.FileUpload) (string, error) {
	ext := strings.ToLower(filepath.Ext(up.Filename))
	switch ext {
	case ".txt", ".md", ".json", ".csv":
		data, err := os.ReadFile(up.Path)
		if err != nil {
			return "", fmt.Errorf("read upload: %w", err)
		}
		return capText(string(data)), nil
	case ".html":
		f, err := os.Open(up.Path)
		if err != nil {
			return "", fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		doc, err := goquery.NewDocumentFromReader(f)
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
		doc.Find("script, style, noscript").Remove()
		// doc.Text() fuses words across element boundaries, so collect
		// the individual text nodes instead.
		var parts []string
		doc.Find("*").Contents().Each(func(_ int, sel *goquery.Selection) {
			if goquery.NodeName(sel) != "#text" {
				return
			}
			if t := strings.TrimSpace(sel.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		return capText(squashWhitespace(strings.Join(parts, " "))), nil
	case ".pdf", ".doc", ".docx":
		return fmt.Sprintf("[Attached document: %s (%s), content not extracted]", up.OriginalName, up.MimeType), nil
	default:
		return "", nil
	}
}

// IsImageExt reports whether the extension belongs to an accepted image type.
func IsImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

func capText(s string) string {
	if len(s) > config.MaxExtractedTextLen {
		return s[:config.MaxExtractedTextLen]
	}
	return s
}

func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
