package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/imageprocessor"
)

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	pngHeader  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R'}
)

func TestSaveWritesTimestampedFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != acceptImages {
			t.Errorf("unexpected accept header %q", got)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpegHeader)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := New(server.Client(), dir, zap.NewNop())
	d.now = func() time.Time { return time.UnixMilli(1714564800123) }

	path, err := d.Save(context.Background(), server.URL+"/abc123")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(dir, "passport-photo-1714564800123.jpg"); path != want {
		t.Fatalf("unexpected path %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != len(jpegHeader) {
		t.Fatalf("expected %d bytes, got %d", len(jpegHeader), len(data))
	}
}

func TestFetchRejectsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := New(server.Client(), "", zap.NewNop()).Fetch(context.Background(), server.URL)
	if !errors.Is(err, imageprocessor.ErrEmptyAsset) || !errors.Is(err, imageprocessor.ErrDownload) {
		t.Fatalf("expected empty asset download error, got %v", err)
	}
}

func TestFetchRejectsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rendering", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := New(server.Client(), "", zap.NewNop()).Fetch(context.Background(), server.URL)
	if !errors.Is(err, imageprocessor.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestFetchReportsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New(server.Client(), "", zap.NewNop()).Fetch(context.Background(), url)
	if !errors.Is(err, imageprocessor.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestFileNameExtension(t *testing.T) {
	at := time.UnixMilli(42)
	cases := map[string][]byte{
		"passport-photo-42.png": pngHeader,
		"passport-photo-42.jpg": []byte("not an image"),
	}
	for want, body := range cases {
		if got := FileName(at, body); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}
