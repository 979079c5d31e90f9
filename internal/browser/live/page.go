// internal/browser/live/page.go

// Package live implements schemas.Page over a Chrome tab driven through the
// DevTools protocol. Elements are remote object handles held in one object
// group; the group is released and every handle goes stale when the top
// frame navigates.
package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
)

const objectGroup = "coursepilot"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Page is one Chrome tab.
type Page struct {
	tab    context.Context
	cfg    config.BrowserConfig
	pacer  *humanoid.Pacer
	logger *zap.Logger

	gen atomic.Uint64

	mu        sync.Mutex
	mainFrame cdp.FrameID
	mouse     humanoid.Point
}

var (
	_ schemas.Page          = (*Page)(nil)
	_ schemas.Screenshotter = (*Page)(nil)
)

// New wraps the chromedp tab context tab. The tab must already be running.
func New(tab context.Context, cfg config.BrowserConfig, pacer *humanoid.Pacer, logger *zap.Logger) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pacer == nil {
		pacer = humanoid.Instant()
	}
	p := &Page{
		tab:    tab,
		cfg:    cfg,
		pacer:  pacer,
		logger: logger.Named("live"),
		mouse:  humanoid.Point{X: float64(cfg.WindowWidth) / 2, Y: float64(cfg.WindowHeight) / 2},
	}
	chromedp.ListenTarget(tab, p.onEvent)
	return p
}

func (p *Page) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		p.mu.Lock()
		p.mainFrame = e.Frame.ID
		p.mu.Unlock()
		p.bump(e.Frame.URL)
	case *page.EventNavigatedWithinDocument:
		// Client-side routing re-renders the content area.
		p.mu.Lock()
		main := p.mainFrame
		p.mu.Unlock()
		if main == "" || e.FrameID == main {
			p.bump(e.URL)
		}
	}
}

func (p *Page) bump(url string) {
	gen := p.gen.Add(1)
	p.logger.Debug("Top frame navigated.", zap.String("url", url), zap.Uint64("generation", gen))
}

// Generation implements schemas.Page.
func (p *Page) Generation() uint64 { return p.gen.Load() }

// run executes actions on the tab, bounded by ctx and timeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.tab.Err() != nil {
		return fmt.Errorf("tab closed: %w", schemas.ErrSessionUnavailable)
	}
	runCtx, cancel := combineContext(p.tab, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if p.tab.Err() != nil {
		return fmt.Errorf("%v: %w", err, schemas.ErrSessionUnavailable)
	}
	return classify(err)
}

// classify maps protocol errors about released handles onto ErrStaleElement.
func classify(err error) error {
	msg := err.Error()
	for _, marker := range []string{
		"Could not find object with given id",
		"Cannot find context with specified id",
		"No node with given id",
		"does not belong to the document",
	} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%v: %w", err, schemas.ErrStaleElement)
		}
	}
	return err
}

type exceptionError struct {
	details *runtime.ExceptionDetails
}

func (e exceptionError) Error() string {
	text := e.details.Text
	if e.details.Exception != nil && e.details.Exception.Description != "" {
		text = e.details.Exception.Description
	}
	return "page script: " + text
}

func isNull(obj *runtime.RemoteObject) bool {
	return obj == nil || obj.ObjectID == "" || obj.Subtype == runtime.SubtypeNull || obj.Type == runtime.TypeUndefined
}

// evalObject evaluates a page expression and keeps the result as a handle.
func (p *Page) evalObject(ctx context.Context, expr string) (*runtime.RemoteObject, error) {
	var obj *runtime.RemoteObject
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate(expr).WithObjectGroup(objectGroup).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError{exc}
		}
		obj = res
		return nil
	}))
	return obj, err
}

// evalValue evaluates a page expression and decodes its JSON value into out.
func (p *Page) evalValue(ctx context.Context, expr string, out interface{}) error {
	return p.run(ctx, p.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.Evaluate(expr).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError{exc}
		}
		return decode(res, out)
	}))
}

func (p *Page) callObject(ctx context.Context, id runtime.RemoteObjectID, fn string) (*runtime.RemoteObject, error) {
	var obj *runtime.RemoteObject
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn(fn).WithObjectID(id).WithObjectGroup(objectGroup).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError{exc}
		}
		obj = res
		return nil
	}))
	return obj, err
}

func (p *Page) callValue(ctx context.Context, id runtime.RemoteObjectID, fn string, out interface{}) error {
	return p.run(ctx, p.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		res, exc, err := runtime.CallFunctionOn(fn).WithObjectID(id).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError{exc}
		}
		return decode(res, out)
	}))
}

func decode(res *runtime.RemoteObject, out interface{}) error {
	if res == nil || len(res.Value) == 0 {
		return errors.New("script returned no value")
	}
	if err := json.Unmarshal([]byte(res.Value), out); err != nil {
		return fmt.Errorf("decode script result: %w", err)
	}
	return nil
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// expand turns a remote array into element nodes, in order.
func (p *Page) expand(ctx context.Context, gen uint64, arr *runtime.RemoteObject) ([]schemas.Node, error) {
	if isNull(arr) {
		return nil, nil
	}
	var n int
	if err := p.callValue(ctx, arr.ObjectID, jsLength, &n); err != nil {
		return nil, err
	}
	nodes := make([]schemas.Node, 0, n)
	for i := 0; i < n; i++ {
		obj, err := p.callObject(ctx, arr.ObjectID, fmt.Sprintf(jsIndex, i))
		if err != nil {
			return nil, err
		}
		if isNull(obj) {
			continue
		}
		nd, err := p.wrap(ctx, gen, obj)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, nd)
	}
	return nodes, nil
}

// QueryAll implements schemas.Page.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]schemas.Node, error) {
	gen := p.gen.Load()
	arr, err := p.evalObject(ctx, fmt.Sprintf(jsDocQueryAll, jsString(selector)))
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return p.expand(ctx, gen, arr)
}

// ElementByID implements schemas.Page.
func (p *Page) ElementByID(ctx context.Context, id string) (schemas.Node, error) {
	gen := p.gen.Load()
	obj, err := p.evalObject(ctx, fmt.Sprintf(jsDocByID, jsString(id)))
	if err != nil {
		return nil, err
	}
	if isNull(obj) {
		return nil, fmt.Errorf("element #%s: %w", id, schemas.ErrElementNotFound)
	}
	return p.wrap(ctx, gen, obj)
}

// Location implements schemas.Page.
func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, p.cfg.LivenessTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Navigate implements schemas.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))
	err := p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	// Handles from the previous document are dead; free them on the browser side.
	if err := p.run(ctx, p.cfg.ActionTimeout, runtime.ReleaseObjectGroup(objectGroup)); err != nil {
		p.logger.Debug("Releasing object group failed.", zap.Error(err))
	}
	return nil
}

// WaitFor implements schemas.Page.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.cfg.WaitTimeout
	}
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	expr := fmt.Sprintf(jsDocExists, jsString(selector))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		var found bool
		err := p.evalValue(ctx, expr, &found)
		var exc exceptionError
		switch {
		case errors.As(err, &exc):
			return fmt.Errorf("wait for %q: %w", selector, err)
		case errors.Is(err, schemas.ErrSessionUnavailable):
			return err
		case err == nil && found:
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("wait for %q after %s: %w", selector, timeout, schemas.ErrElementNotFound)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Screenshot implements schemas.Screenshotter.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}
