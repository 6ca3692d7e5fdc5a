package usecase

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for pipeline stages.
type Observer interface {
	RecordUpload(duration time.Duration, sizeBytes int, err error)
	RecordDerive(err error)
	RecordAwait(duration time.Duration, attempts int, cached bool, err error)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) RecordUpload(time.Duration, int, error)      {}
func (NopObserver) RecordDerive(error)                          {}
func (NopObserver) RecordAwait(time.Duration, int, bool, error) {}

// PrometheusObserver exports pipeline metrics to Prometheus.
type PrometheusObserver struct {
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	uploadBytes   prometheus.Counter
	probeAttempts prometheus.Histogram
	readyCacheHit prometheus.Counter
}

// NewPrometheusObserver registers upload/derive/await metrics.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "passport"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of pipeline stages.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"stage"}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Count of pipeline stage failures.",
		}, []string{"stage"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative payload size accepted by the provider.",
		}),
		probeAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_attempts",
			Help:      "Existence probes issued per await.",
			Buckets:   prometheus.LinearBuckets(1, 5, 12),
		}),
		readyCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ready_cache_hits_total",
			Help:      "Awaits answered from the readiness cache.",
		}),
	}
	collectors := []prometheus.Collector{o.stageDuration, o.stageErrors, o.uploadBytes, o.probeAttempts, o.readyCacheHit}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register pipeline metric: %w", err)
		}
	}
	return o, nil
}

// RecordUpload tracks upload duration, size, and failures.
func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes int, err error) {
	o.stageDuration.WithLabelValues("upload").Observe(duration.Seconds())
	if err != nil {
		o.stageErrors.WithLabelValues("upload").Inc()
		return
	}
	o.uploadBytes.Add(float64(sizeBytes))
}

func (o *PrometheusObserver) RecordDerive(err error) {
	if err != nil {
		o.stageErrors.WithLabelValues("derive").Inc()
	}
}

// RecordAwait counts probes only for loops that actually ran.
func (o *PrometheusObserver) RecordAwait(duration time.Duration, attempts int, cached bool, err error) {
	if cached {
		o.readyCacheHit.Inc()
		return
	}
	o.stageDuration.WithLabelValues("await").Observe(duration.Seconds())
	o.probeAttempts.Observe(float64(attempts))
	if err != nil {
		o.stageErrors.WithLabelValues("await").Inc()
	}
}
