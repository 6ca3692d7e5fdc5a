// Package download fetches rendered passport photos and stores them locally.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/imageprocessor"
)

const acceptImages = "image/jpeg,image/png,image/*"

// Downloader fetches a ready derived URL. It never retries.
type Downloader struct {
	client *http.Client
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

// New stores files under dir; a nil client means http.DefaultClient.
func New(client *http.Client, dir string, logger *zap.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if dir == "" {
		dir = "."
	}
	return &Downloader{client: client, dir: dir, now: time.Now, logger: logger.Named("download")}
}

// Fetch returns the full, non-empty asset body.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, imageprocessor.DownloadError(imageprocessor.ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", acceptImages)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, imageprocessor.DownloadError(imageprocessor.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, imageprocessor.DownloadError(imageprocessor.ErrProvider, fmt.Errorf("HTTP error! status: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, imageprocessor.DownloadError(imageprocessor.ErrNetwork, err)
	}
	if len(body) == 0 {
		return nil, imageprocessor.DownloadError(imageprocessor.ErrEmptyAsset, nil)
	}
	return body, nil
}

// Save fetches url and writes it under the downloader's directory, returning the path.
func (d *Downloader) Save(ctx context.Context, url string) (string, error) {
	body, err := d.Fetch(ctx, url)
	if err != nil {
		d.logger.Error("download failed", zap.String("url", url), zap.Error(err))
		return "", err
	}

	path := filepath.Join(d.dir, FileName(d.now(), body))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	d.logger.Info("passport photo saved", zap.String("path", path), zap.Int("bytes", len(body)))
	return path, nil
}

// FileName embeds the time in milliseconds and picks an extension from the content.
func FileName(at time.Time, body []byte) string {
	ext := ".jpg"
	if m := mimetype.Detect(body); strings.HasPrefix(m.String(), "image/") && m.Extension() != "" {
		ext = m.Extension()
	}
	return fmt.Sprintf("passport-photo-%d%s", at.UnixMilli(), ext)
}
