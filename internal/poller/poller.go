// Package poller waits for derived assets to become renderable at the provider.
package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/passport-photo/internal/imageprocessor"
)

// DefaultInterval is the fixed delay between existence probes.
const DefaultInterval = 2 * time.Second

// Prober checks whether url is ready without transferring its body.
// A non-nil error is treated the same as "not ready".
type Prober interface {
	Probe(ctx context.Context, url string) (bool, error)
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context, url string) (bool, error)

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, url string) (bool, error) {
	return f(ctx, url)
}

// Clock is the time source used between attempts.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options bound a polling loop. Zero MaxAttempts or Deadline disables that bound,
// but at least one of them must be set.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Deadline    time.Duration
}

// State is owned by a single polling loop.
type State struct {
	URL     string
	Attempt int
	Ready   bool
}

// Poller repeatedly probes a URL at a fixed interval.
type Poller struct {
	prober Prober
	clock  Clock
	opts   Options
	logger *zap.Logger
}

// New constructs a poller using the system clock.
func New(prober Prober, opts Options, logger *zap.Logger) (*Poller, error) {
	if prober == nil {
		return nil, fmt.Errorf("poller: prober is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts < 0 || opts.Deadline < 0 {
		return nil, fmt.Errorf("poller: bounds must not be negative")
	}
	if opts.MaxAttempts == 0 && opts.Deadline == 0 {
		return nil, fmt.Errorf("poller: a max attempt count or deadline is required")
	}
	return &Poller{
		prober: prober,
		clock:  systemClock{},
		opts:   opts,
		logger: logger.Named("poller"),
	}, nil
}

// WithClock replaces the time source.
func (p *Poller) WithClock(clock Clock) *Poller {
	p.clock = clock
	return p
}

// Options returns the effective bounds.
func (p *Poller) Options() Options {
	return p.opts
}

// Await blocks until url is ready, the bounds are exhausted (ErrTimeout) or ctx
// is done. On success the returned state carries url unchanged.
func (p *Poller) Await(ctx context.Context, url string) (State, error) {
	state := State{URL: url}
	if url == "" {
		return state, fmt.Errorf("%w: url is required", imageprocessor.ErrInvalidRequest)
	}

	start := p.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		state.Attempt++
		ready, err := p.prober.Probe(ctx, url)
		if ready {
			state.Ready = true
			return state, nil
		}
		if ce := p.logger.Check(zap.DebugLevel, "asset not ready"); ce != nil {
			ce.Write(zap.String("url", url), zap.Int("attempt", state.Attempt), zap.Error(err))
		}

		if p.opts.MaxAttempts > 0 && state.Attempt >= p.opts.MaxAttempts {
			return state, fmt.Errorf("%w after %d attempts", imageprocessor.ErrTimeout, state.Attempt)
		}
		if p.opts.Deadline > 0 && p.clock.Now().Add(p.opts.Interval).Sub(start) > p.opts.Deadline {
			return state, fmt.Errorf("%w after %s", imageprocessor.ErrTimeout, p.opts.Deadline)
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-p.clock.After(p.opts.Interval):
		}
	}
}
