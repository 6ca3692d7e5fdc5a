package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/config"
	"github.com/example/passport-photo/internal/transform"
)

func testConfig() *config.Config {
	return &config.Config{
		CloudName:           "demo",
		APIKey:              "key",
		APISecret:           "secret",
		Profile:             transform.DefaultProfile,
		EagerProfile:        transform.DefaultProfile,
		UploadFolder:        "passport-photos",
		DeliveryBaseURL:     "https://res.cloudinary.com",
		PollInterval:        2 * time.Second,
		PollMaxAttempts:     3,
		PollDeadline:        time.Minute,
		ReadyCacheTTL:       time.Minute,
		MaxUploadBytes:      1 << 20,
		UploadRatePerMinute: 30,
		UploadRateBurst:     5,
		CORSAllowOrigins:    "*",
	}
}

func TestRouterServesProcessHealthAndMetrics(t *testing.T) {
	cfg := testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	registry := prometheus.NewRegistry()
	app, err := buildPipeline(context.Background(), cfg, registry, zap.NewNop())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	defer app.Close()

	server := httptest.NewServer(newRouter(cfg, app, registry, zap.NewNop()))
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/process", "application/json", strings.NewReader(`{"publicId":"abc123"}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		ProcessedURL string `json:"processedUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := "https://res.cloudinary.com/demo/image/upload/c_auto,g_face,w_350,h_450,z_0.75/e_background_removal:fineedges_y/b_white/e_auto_brightness:80/e_auto_contrast:80/e_auto_color:80/e_upscale/q_auto:best,f_jpg/abc123"
	if resp.StatusCode != http.StatusOK || body.ProcessedURL != want {
		t.Fatalf("unexpected process response %d %s", resp.StatusCode, body.ProcessedURL)
	}

	health, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status %d", health.StatusCode)
	}

	metrics, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer metrics.Body.Close()
	text, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(text), "passport_uploaded_bytes_total") {
		t.Fatalf("expected pipeline metrics to be exposed")
	}
}

func TestRouterRejectsForeignAwaitURL(t *testing.T) {
	cfg := testConfig()
	app, err := buildPipeline(context.Background(), cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("build pipeline: %v", err)
	}
	server := httptest.NewServer(newRouter(cfg, app, prometheus.NewRegistry(), zap.NewNop()))
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/await", "application/json", strings.NewReader(`{"processedUrl":"http://127.0.0.1:1/secret"}`))
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
