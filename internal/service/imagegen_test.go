package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soft-kiwi/converse/internal/config"
)

type recordedImage struct {
	sessionID string
	prompt    string
	path      string
}

type fakeRecorder struct {
	records []recordedImage
	err     error
}

func (f *fakeRecorder) AddGeneratedImage(_ context.Context, sessionID, prompt, imagePath string) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, recordedImage{sessionID, prompt, imagePath})
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// deadServer returns a base URL that refuses connections.
func deadServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func newTestImageService(t *testing.T, imageAPI, placeholderAPI string, rec GeneratedImageRecorder) *ImageService {
	t.Helper()
	cfg := &config.Config{
		GeneratedDir:      t.TempDir(),
		ImageAPIURL:       imageAPI,
		PlaceholderAPIURL: placeholderAPI,
	}
	return NewImageService(cfg, rec)
}

func TestGenerate_PromptedServiceWins(t *testing.T) {
	body := pngBytes(t)
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(body)
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	svc := newTestImageService(t, srv.URL, deadServer(t), rec)

	url, err := svc.Generate(context.Background(), "sess-1", "a red fox")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/generated/"))
	require.True(t, strings.HasSuffix(url, ".png"))
	require.Equal(t, "/prompt/a red fox", gotPath)

	require.Len(t, rec.records, 1)
	require.Equal(t, "sess-1", rec.records[0].sessionID)
	require.Equal(t, "a red fox", rec.records[0].prompt)
	require.Equal(t, url, rec.records[0].path)

	// The file was materialized as a decodable PNG.
	data, err := os.ReadFile(filepath.Join(svc.dir, filepath.Base(url)))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
}

func TestGenerate_FallsBackToRandomService(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	random := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(pngBytes(t))
	}))
	defer random.Close()

	rec := &fakeRecorder{}
	svc := newTestImageService(t, failing.URL, random.URL, rec)

	url, err := svc.Generate(context.Background(), "sess-2", "anything")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(url, ".png"))
	require.Len(t, rec.records, 1)
}

func TestGenerate_LocalPlaceholderWhenAllRemotesDown(t *testing.T) {
	rec := &fakeRecorder{}
	svc := newTestImageService(t, deadServer(t), deadServer(t), rec)

	url, err := svc.Generate(context.Background(), "sess-3", "one two three four five six seven eight nine")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(url, ".svg"))

	// Persisted a generated-image record.
	require.Len(t, rec.records, 1)
	require.Equal(t, url, rec.records[0].path)

	data, err := os.ReadFile(filepath.Join(svc.dir, filepath.Base(url)))
	require.NoError(t, err)
	svg := string(data)
	require.Contains(t, svg, "<svg")
	// Only the first 8 words of the prompt are rendered.
	require.Contains(t, svg, "one two three four five six seven eight")
	require.NotContains(t, svg, "nine")
}

func TestGenerate_CorruptRemoteBodySkipsStrategy(t *testing.T) {
	corrupt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer corrupt.Close()

	rec := &fakeRecorder{}
	svc := newTestImageService(t, corrupt.URL, deadServer(t), rec)

	url, err := svc.Generate(context.Background(), "sess-4", "something")
	require.NoError(t, err)
	// Decode failure on both remotes leaves the local placeholder.
	require.True(t, strings.HasSuffix(url, ".svg"))
}

func TestGenerate_RecorderFailureStillReturnsImage(t *testing.T) {
	rec := &fakeRecorder{err: context.DeadlineExceeded}
	svc := newTestImageService(t, deadServer(t), deadServer(t), rec)

	url, err := svc.Generate(context.Background(), "sess-5", "prompt")
	require.NoError(t, err)
	require.NotEmpty(t, url)
}

func TestParseDataURI(t *testing.T) {
	mime, data, err := ParseDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "image/png", mime)
	require.Equal(t, []byte("hello"), data)

	_, _, err = ParseDataURI("http://example.com/x.png")
	require.Error(t, err)

	_, _, err = ParseDataURI("data:image/png;base64")
	require.Error(t, err)
}
