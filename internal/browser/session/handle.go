// internal/browser/session/handle.go
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// State is the lifecycle state of the session.
type State int

const (
	// Uninitialized means no page was ever acquired.
	Uninitialized State = iota
	// Live means the last liveness probe succeeded.
	Live
	// Stale means a page existed but stopped answering.
	Stale
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Live:
		return "live"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Provider starts and stops browser sessions. It owns driver startup,
// fingerprint settings and the persistent profile.
type Provider interface {
	Acquire(ctx context.Context) (schemas.Page, error)
	Release(ctx context.Context) error
}

// Source is what components borrow a page from.
type Source interface {
	EnsureLive(ctx context.Context) bool
	Page() (schemas.Page, error)
}

// Handle is the single owner of the browser session. Other components borrow
// the page per call through Borrow and never keep it across a navigation.
type Handle struct {
	provider        Provider
	logger          *zap.Logger
	livenessTimeout time.Duration

	mu         sync.Mutex
	page       schemas.Page
	state      State
	generation uint64

	group singleflight.Group
}

var _ Source = (*Handle)(nil)

// NewHandle creates an uninitialized handle. Nothing is launched until first use.
func NewHandle(provider Provider, livenessTimeout time.Duration, logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if livenessTimeout <= 0 {
		livenessTimeout = 3 * time.Second
	}
	return &Handle{
		provider:        provider,
		logger:          logger.Named("session"),
		livenessTimeout: livenessTimeout,
	}
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Generation counts successful (re)initializations. Element references taken
// under an older generation are invalid.
func (h *Handle) Generation() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation
}

// IsLive performs a cheap location read. Any error marks the session stale.
// An uninitialized handle is not live and stays uninitialized.
func (h *Handle) IsLive(ctx context.Context) bool {
	h.mu.Lock()
	page := h.page
	h.mu.Unlock()
	if page == nil {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, h.livenessTimeout)
	defer cancel()
	_, err := page.Location(probeCtx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page != page {
		// Replaced while probing; the replacement was just acquired.
		return h.state == Live
	}
	if err != nil {
		if h.state == Live {
			h.logger.Warn("Liveness probe failed; session is stale.", zap.Error(err))
		}
		h.state = Stale
		return false
	}
	h.state = Live
	return true
}

// EnsureLive returns true when the session is usable, re-initializing it
// through the provider if the probe fails.
func (h *Handle) EnsureLive(ctx context.Context) bool {
	if h.IsLive(ctx) {
		return true
	}
	_, err, _ := h.group.Do("reinit", func() (interface{}, error) {
		// Another caller may have finished a re-init since our probe.
		if h.IsLive(ctx) {
			return nil, nil
		}
		return nil, h.reinitialize(ctx)
	})
	if err != nil {
		h.logger.Error("Session re-initialization failed.", zap.Error(err))
		return false
	}
	return true
}

// Restart drops the current session and acquires a new one unconditionally.
func (h *Handle) Restart(ctx context.Context) error {
	_, err, _ := h.group.Do("reinit", func() (interface{}, error) {
		return nil, h.reinitialize(ctx)
	})
	return err
}

func (h *Handle) reinitialize(ctx context.Context) error {
	h.mu.Lock()
	prev, prevState := h.page, h.state
	h.page = nil
	h.mu.Unlock()

	if prev != nil {
		if err := h.provider.Release(ctx); err != nil {
			h.logger.Warn("Releasing previous session failed.", zap.Error(err))
		}
	}

	page, err := h.provider.Acquire(ctx)
	if err != nil {
		h.mu.Lock()
		if prevState != Uninitialized {
			h.state = Stale
		}
		h.mu.Unlock()
		return fmt.Errorf("acquire session: %w: %v", schemas.ErrSessionUnavailable, err)
	}

	h.mu.Lock()
	h.page = page
	h.state = Live
	h.generation++
	gen := h.generation
	h.mu.Unlock()

	h.logger.Info("Session initialized.",
		zap.Stringer("previous_state", prevState),
		zap.Uint64("generation", gen),
	)
	return nil
}

// Page returns the current page. It fails unless the session is live.
func (h *Handle) Page() (schemas.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page == nil || h.state != Live {
		return nil, fmt.Errorf("session is %s: %w", h.state, schemas.ErrSessionUnavailable)
	}
	return h.page, nil
}

// Close releases the session. It is safe to call more than once.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	page := h.page
	h.page = nil
	h.state = Uninitialized
	h.mu.Unlock()
	if page == nil {
		return nil
	}
	if err := h.provider.Release(ctx); err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	h.logger.Info("Session closed.")
	return nil
}

// Borrow checks liveness and returns the page for one operation. A failure
// aborts that operation only.
func Borrow(ctx context.Context, src Source) (schemas.Page, error) {
	if !src.EnsureLive(ctx) {
		return nil, fmt.Errorf("borrow page: %w", schemas.ErrSessionUnavailable)
	}
	page, err := src.Page()
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Static is a Source over a fixed page, for offline inspection of saved
// documents. It is live while the page answers.
type Static struct {
	P schemas.Page
}

// EnsureLive implements Source.
func (s Static) EnsureLive(ctx context.Context) bool {
	if s.P == nil {
		return false
	}
	_, err := s.P.Location(ctx)
	return err == nil
}

// Page implements Source.
func (s Static) Page() (schemas.Page, error) {
	if s.P == nil {
		return nil, fmt.Errorf("no page loaded: %w", schemas.ErrSessionUnavailable)
	}
	return s.P, nil
}
