// internal/humanoid/pacer.go
package humanoid

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/xkilldash9x/coursepilot/internal/config"
	"go.uber.org/zap"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Pacer injects human-like timing around interaction calls. It is applied at
// the call site (see Around) instead of being baked into the primitives.
type Pacer struct {
	cfg    config.PacingConfig
	logger *zap.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	sleep Sleeper
}

// Option customizes a Pacer.
type Option func(*Pacer)

// WithRand fixes the random source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pacer) { p.rng = rng }
}

// WithSleeper replaces the real timer.
func WithSleeper(s Sleeper) Option {
	return func(p *Pacer) { p.sleep = s }
}

// New creates a Pacer from the pacing profile.
func New(cfg config.PacingConfig, logger *zap.Logger, opts ...Option) *Pacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pacer{
		cfg:    cfg,
		logger: logger.Named("pacer"),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Instant returns a disabled Pacer that never waits.
func Instant() *Pacer {
	return New(config.PacingConfig{PathSteps: 1}, nil)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SettleDuration draws one settle delay: a fixed base plus a normally
// distributed random part, capped at SettleMaxMs.
func (p *Pacer) SettleDuration() time.Duration {
	if !p.cfg.Enabled {
		return 0
	}
	p.mu.Lock()
	jitter := p.cfg.SettleMeanMs + p.rng.NormFloat64()*p.cfg.SettleStdDevMs
	p.mu.Unlock()

	ms := float64(p.cfg.SettleBaseMs) + math.Max(0, jitter)
	if p.cfg.SettleMaxMs > 0 {
		ms = math.Min(ms, float64(p.cfg.SettleMaxMs))
	}
	return time.Duration(ms) * time.Millisecond
}

// Settle waits one settle delay.
func (p *Pacer) Settle(ctx context.Context) error {
	return p.sleep(ctx, p.SettleDuration())
}

// PageSettle waits for a freshly loaded page to finish rendering.
func (p *Pacer) PageSettle(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	return p.sleep(ctx, time.Duration(p.cfg.PageSettleMs)*time.Millisecond)
}

// CognitivePause waits a normally distributed time, modelling a user reading
// before acting.
func (p *Pacer) CognitivePause(ctx context.Context, meanMs, stdDevMs float64) error {
	if !p.cfg.Enabled {
		return nil
	}
	p.mu.Lock()
	d := time.Duration(meanMs+p.rng.NormFloat64()*stdDevMs) * time.Millisecond
	p.mu.Unlock()
	if d <= 0 {
		return nil
	}
	return p.sleep(ctx, d)
}

// HoldDuration is how long a mouse button stays pressed during a click.
func (p *Pacer) HoldDuration() time.Duration {
	if !p.cfg.Enabled {
		return 0
	}
	span := p.cfg.ClickHoldMaxMs - p.cfg.ClickHoldMinMs
	p.mu.Lock()
	defer p.mu.Unlock()
	ms := p.cfg.ClickHoldMinMs
	if span > 0 {
		ms += p.rng.Intn(span + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

// Sleep exposes the pacer's sleeper so gesture implementations share the
// same clock as the settle delays.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	if !p.cfg.Enabled {
		return nil
	}
	return p.sleep(ctx, d)
}

// Around runs fn between two settle delays. A cancelled context during the
// leading delay skips fn. Once fn has succeeded the result stands, even if the
// trailing delay is cut short.
func (p *Pacer) Around(ctx context.Context, fn func(context.Context) error) error {
	if err := p.Settle(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		return err
	}
	if err := p.Settle(ctx); err != nil {
		p.logger.Debug("Trailing settle interrupted.", zap.Error(err))
	}
	return nil
}
