package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/example/passport-photo/internal/imageprocessor"
)

// HTTPProber issues HEAD requests; any 2xx response means ready.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber uses http.DefaultClient when client is nil.
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProber{client: client}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", imageprocessor.ErrInvalidRequest, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", imageprocessor.ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, nil
	}
	return false, fmt.Errorf("%w: status %d", imageprocessor.ErrProvider, resp.StatusCode)
}
