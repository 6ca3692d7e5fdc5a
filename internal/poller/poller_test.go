package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/imageprocessor"
)

type fakeClock struct {
	now    time.Time
	waits  []time.Duration
	onWait func()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	if c.onWait != nil {
		c.onWait()
	}
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type failingProber struct {
	failures int
	calls    int
	urls     []string
}

func (p *failingProber) Probe(ctx context.Context, url string) (bool, error) {
	p.calls++
	p.urls = append(p.urls, url)
	if p.calls <= p.failures {
		return false, errors.New("not yet")
	}
	return true, nil
}

func newTestPoller(t *testing.T, prober Prober, opts Options, clock Clock) *Poller {
	t.Helper()
	p, err := New(prober, opts, zap.NewNop())
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	return p.WithClock(clock)
}

func TestAwaitProbesUntilReady(t *testing.T) {
	const url = "https://res.cloudinary.com/demo/image/upload/e_upscale/abc123"
	prober := &failingProber{failures: 4}
	clock := newFakeClock()
	p := newTestPoller(t, prober, Options{Interval: 2 * time.Second, MaxAttempts: 10}, clock)

	state, err := p.Await(context.Background(), url)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if !state.Ready || state.URL != url {
		t.Fatalf("unexpected state: %+v", state)
	}
	if prober.calls != 5 || state.Attempt != 5 {
		t.Fatalf("expected 5 probes, got calls=%d attempt=%d", prober.calls, state.Attempt)
	}
	if len(clock.waits) != 4 {
		t.Fatalf("expected 4 waits, got %d", len(clock.waits))
	}
	for i, w := range clock.waits {
		if w != 2*time.Second {
			t.Fatalf("wait %d was %s", i, w)
		}
	}
	for _, u := range prober.urls {
		if u != url {
			t.Fatalf("probe used %s", u)
		}
	}
}

func TestAwaitReadyOnFirstProbeDoesNotWait(t *testing.T) {
	clock := newFakeClock()
	p := newTestPoller(t, &failingProber{}, Options{MaxAttempts: 3}, clock)

	state, err := p.Await(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if state.Attempt != 1 || len(clock.waits) != 0 {
		t.Fatalf("expected a single probe without waiting, got %+v waits=%d", state, len(clock.waits))
	}
}

func TestAwaitStopsAtMaxAttempts(t *testing.T) {
	prober := &failingProber{failures: 100}
	clock := newFakeClock()
	p := newTestPoller(t, prober, Options{Interval: time.Second, MaxAttempts: 3}, clock)

	state, err := p.Await(context.Background(), "https://example.com/x")
	if !errors.Is(err, imageprocessor.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if prober.calls != 3 || state.Ready {
		t.Fatalf("expected 3 failed probes, got calls=%d state=%+v", prober.calls, state)
	}
	if len(clock.waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(clock.waits))
	}
}

func TestAwaitStopsAtDeadline(t *testing.T) {
	prober := &failingProber{failures: 100}
	clock := newFakeClock()
	p := newTestPoller(t, prober, Options{Interval: 2 * time.Second, Deadline: 5 * time.Second}, clock)

	_, err := p.Await(context.Background(), "https://example.com/x")
	if !errors.Is(err, imageprocessor.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// probes at t=0s, 2s, 4s; a fourth would land past the 5s deadline.
	if prober.calls != 3 {
		t.Fatalf("expected 3 probes, got %d", prober.calls)
	}
}

func TestAwaitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := &failingProber{failures: 100}
	clock := newFakeClock()
	clock.onWait = cancel
	p := newTestPoller(t, prober, Options{MaxAttempts: 50}, clock)

	_, err := p.Await(ctx, "https://example.com/x")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if prober.calls > 2 {
		t.Fatalf("expected polling to stop promptly, got %d probes", prober.calls)
	}
}

func TestAwaitRejectsEmptyURL(t *testing.T) {
	p := newTestPoller(t, &failingProber{}, Options{MaxAttempts: 1}, newFakeClock())
	if _, err := p.Await(context.Background(), ""); !errors.Is(err, imageprocessor.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestNewRequiresBound(t *testing.T) {
	if _, err := New(&failingProber{}, Options{}, zap.NewNop()); err == nil {
		t.Fatal("expected unbounded options to be rejected")
	}
	p, err := New(&failingProber{}, Options{Deadline: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Options().Interval != DefaultInterval {
		t.Fatalf("expected default interval, got %s", p.Options().Interval)
	}
}

func TestHTTPProberUsesHead(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := newTestPoller(t, NewHTTPProber(server.Client()), Options{MaxAttempts: 5}, newFakeClock())
	state, err := p.Await(context.Background(), server.URL+"/abc123")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if state.Attempt != 3 {
		t.Fatalf("expected 3 attempts, got %d", state.Attempt)
	}
}

func TestHTTPProberClassifiesFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusLocked)
	}))
	prober := NewHTTPProber(server.Client())

	ready, err := prober.Probe(context.Background(), server.URL)
	if ready || !errors.Is(err, imageprocessor.ErrProvider) {
		t.Fatalf("expected provider error, got ready=%t err=%v", ready, err)
	}

	server.Close()
	ready, err = prober.Probe(context.Background(), server.URL)
	if ready || !errors.Is(err, imageprocessor.ErrNetwork) {
		t.Fatalf("expected network error, got ready=%t err=%v", ready, err)
	}
}
