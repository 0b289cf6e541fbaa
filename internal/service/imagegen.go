package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/soft-kiwi/converse/internal/config"
	"github.com/soft-kiwi/converse/internal/domain"
)

// ImageSource is the artifact chosen by a strategy: either a URL to download
// (possibly a data URI to decode) or inline bytes with a known extension.
type ImageSource struct {
	URL  string
	Data []byte
	Ext  string
}

// ImageStrategy is one attempt in the fallback chain: a function from prompt
// to optional artifact. Returning an error moves the chain to the next entry.
type ImageStrategy struct {
	Name  string
	Fetch func(ctx context.Context, prompt string) (*ImageSource, error)
}

// GeneratedImageRecorder persists the outcome of a successful generation.
type GeneratedImageRecorder interface {
	AddGeneratedImage(ctx context.Context, sessionID, prompt, imagePath string) error
}

// ImageService runs the ordered fallback chain: prompted remote service,
// generic random-image service, locally synthesized placeholder. First
// success wins; the local placeholder cannot fail.
type ImageService struct {
	store      GeneratedImageRecorder
	dir        string
	httpClient *http.Client
	strategies []ImageStrategy
	now        func() time.Time
}

func NewImageService(cfg *config.Config, store GeneratedImageRecorder) *ImageService {
	s := &ImageService{
		store:      store,
		dir:        cfg.GeneratedDir,
		httpClient: &http.Client{Timeout: config.ImageFetchTimeout},
		now:        time.Now,
	}
	s.strategies = []ImageStrategy{
		{Name: "prompted", Fetch: s.fetchPrompted(cfg.ImageAPIURL)},
		{Name: "random", Fetch: s.fetchRandom(cfg.PlaceholderAPIURL)},
		{Name: "placeholder", Fetch: s.renderPlaceholder},
	}
	return s
}

// Generate runs the chain for the prompt, materializes the winning artifact
// under the generated-images directory and records it. Returns the public
// URL path of the stored file.
func (s *ImageService) Generate(ctx context.Context, sessionID, prompt string) (string, error) {
	for _, strat := range s.strategies {
		src, err := strat.Fetch(ctx, prompt)
		if err != nil {
			slog.Warn("image strategy failed", "strategy", strat.Name, "error", err)
			continue
		}

		name, err := s.materialize(ctx, src)
		if err != nil {
			slog.Warn("image materialize failed", "strategy", strat.Name, "error", err)
			continue
		}

		publicPath := "/generated/" + name
		if err := s.store.AddGeneratedImage(ctx, sessionID, prompt, publicPath); err != nil {
			// The image exists on disk; losing the record is acceptable (no compensation).
			slog.Error("record generated image", "error", err, "path", publicPath)
		}
		slog.Info("image generated", "strategy", strat.Name, "session_id", sessionID, "path", publicPath)
		return publicPath, nil
	}
	return "", domain.ErrImageUnavailable
}

// fetchPrompted probes a text-to-image service that renders the prompt
// directly from the URL path. Success is strictly HTTP 200.
func (s *ImageService) fetchPrompted(baseURL string) func(ctx context.Context, prompt string) (*ImageSource, error) {
	return func(ctx context.Context, prompt string) (*ImageSource, error) {
		return s.fetchURL(ctx, strings.TrimSuffix(baseURL, "/")+"/prompt/"+url.PathEscape(prompt))
	}
}

// fetchRandom pulls an unrelated random image as a creative stand-in.
func (s *ImageService) fetchRandom(baseURL string) func(ctx context.Context, prompt string) (*ImageSource, error) {
	return func(ctx context.Context, _ string) (*ImageSource, error) {
		return s.fetchURL(ctx, fmt.Sprintf("%s/%d", strings.TrimSuffix(baseURL, "/"), config.PlaceholderSize))
	}
}

func (s *ImageService) fetchURL(ctx context.Context, target string) (*ImageSource, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ImageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image service returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxImageBodySize))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image service returned empty body")
	}
	return &ImageSource{Data: data}, nil
}

// renderPlaceholder synthesizes a fixed-size vector graphic from the first
// words of the prompt, a random gradient and a timestamp. Never fails.
func (s *ImageService) renderPlaceholder(_ context.Context, prompt string) (*ImageSource, error) {
	gradients := [][2]string{
		{"#667eea", "#764ba2"},
		{"#f093fb", "#f5576c"},
		{"#4facfe", "#00f2fe"},
		{"#43e97b", "#38f9d7"},
		{"#fa709a", "#fee140"},
	}
	g := gradients[rand.IntN(len(gradients))]

	words := strings.Fields(prompt)
	if len(words) > config.PlaceholderWordLimit {
		words = words[:config.PlaceholderWordLimit]
	}
	caption := html.EscapeString(strings.Join(words, " "))
	size := config.PlaceholderSize

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">
  <defs>
    <linearGradient id="bg" x1="0%%" y1="0%%" x2="100%%" y2="100%%">
      <stop offset="0%%" stop-color="%s"/>
      <stop offset="100%%" stop-color="%s"/>
    </linearGradient>
  </defs>
  <rect width="%d" height="%d" fill="url(#bg)"/>
  <text x="50%%" y="45%%" text-anchor="middle" fill="#ffffff" font-family="sans-serif" font-size="24">%s</text>
  <text x="50%%" y="60%%" text-anchor="middle" fill="#ffffffaa" font-family="sans-serif" font-size="14">%s</text>
</svg>
`, size, size, g[0], g[1], size, size, caption, s.now().Format("2006-01-02 15:04:05"))

	return &ImageSource{Data: []byte(svg), Ext: "svg"}, nil
}

// materialize writes the chosen source to a local file: download-and-write
// for URLs, decode-and-write for data URIs and inline bytes. Raster images
// are decoded and re-encoded as PNG so a broken body fails the strategy
// instead of leaving a corrupt file behind.
func (s *ImageService) materialize(ctx context.Context, src *ImageSource) (string, error) {
	data, ext := src.Data, src.Ext

	if src.URL != "" {
		if strings.HasPrefix(src.URL, "data:") {
			mimeType, decoded, err := ParseDataURI(src.URL)
			if err != nil {
				return "", err
			}
			data = decoded
			if mimeType == "image/svg+xml" {
				ext = "svg"
			}
		} else {
			fetched, err := s.fetchURL(ctx, src.URL)
			if err != nil {
				return "", err
			}
			data = fetched.Data
		}
	}

	if ext != "svg" {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("decode image: %w", err)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return "", fmt.Errorf("encode png: %w", err)
		}
		data = buf.Bytes()
		ext = "png"
	}

	name := uuid.New().String() + "." + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return name, nil
}

// ParseDataURI decodes a "data:<mime>;base64,<payload>" URI.
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	if !strings.HasSuffix(meta, ";base64") {
		return mimeType, []byte(payload), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	return mimeType, data, nil
}
