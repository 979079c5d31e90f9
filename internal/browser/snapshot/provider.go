package snapshot

import (
	"context"
	"sync/atomic"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// Provider hands out one Browser as a session, reopening it when it was closed.
type Provider struct {
	Browser *Browser
	// FailAcquire, when set, makes Acquire fail with this error.
	FailAcquire error

	acquired atomic.Int32
	released atomic.Int32
}

// Acquire returns the browser, reopened if its window was closed.
func (p *Provider) Acquire(ctx context.Context) (schemas.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.FailAcquire != nil {
		return nil, p.FailAcquire
	}
	p.Browser.Reopen()
	p.acquired.Add(1)
	return p.Browser, nil
}

// Release counts the release. The browser itself is kept for inspection.
func (p *Provider) Release(context.Context) error {
	p.released.Add(1)
	return nil
}

// Acquired reports how many sessions were handed out.
func (p *Provider) Acquired() int { return int(p.acquired.Load()) }

// Released reports how many sessions were given back.
func (p *Provider) Released() int { return int(p.released.Load()) }
