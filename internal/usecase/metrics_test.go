package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusObserverRecordsStages(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewPrometheusObserver("test", reg)
	if err != nil {
		t.Fatalf("new observer: %v", err)
	}

	o.RecordUpload(time.Second, 1024, nil)
	o.RecordUpload(time.Second, 2048, errors.New("boom"))
	o.RecordDerive(errors.New("missing id"))
	o.RecordAwait(4*time.Second, 3, false, nil)
	o.RecordAwait(0, 0, true, nil)

	if got := testutil.ToFloat64(o.uploadBytes); got != 1024 {
		t.Fatalf("expected 1024 uploaded bytes, got %v", got)
	}
	if got := testutil.ToFloat64(o.stageErrors.WithLabelValues("upload")); got != 1 {
		t.Fatalf("expected 1 upload error, got %v", got)
	}
	if got := testutil.ToFloat64(o.stageErrors.WithLabelValues("derive")); got != 1 {
		t.Fatalf("expected 1 derive error, got %v", got)
	}
	if got := testutil.ToFloat64(o.readyCacheHit); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
	if got := testutil.CollectAndCount(o.probeAttempts); got != 1 {
		t.Fatalf("expected probe histogram to be collected, got %d", got)
	}
}

func TestNewPrometheusObserverToleratesReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusObserver("dup", reg); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := NewPrometheusObserver("dup", reg); err != nil {
		t.Fatalf("second: %v", err)
	}
}
