// internal/browser/live/context.go
package live

import (
	"context"
	"time"
)

// combineContext derives from tab, which carries the chromedp target, and is
// also canceled when op is done. Deadlines of op surface as cancellation.
func combineContext(tab, op context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(tab)
	go func() {
		select {
		case <-op.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach keeps the values of ctx (the chromedp target among them) but drops
// its deadline and cancellation. Teardown runs under a detached context so it
// still reaches the browser after the operation that triggered it was canceled.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
