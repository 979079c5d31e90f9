// Package snapshot implements schemas.Page over static HTML documents held in
// memory. It backs offline inspection of saved pages and stands in for the live
// browser in tests: clicks toggle controls and follow links, and every
// navigation re-parses the target document and invalidates earlier nodes.
package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/selectors"
)

// Browser is an in-memory tab over a fixed set of pages keyed by URL.
type Browser struct {
	logger *zap.Logger

	mu      sync.Mutex
	pages   map[string]string
	current string
	doc     *goquery.Document
	gen     uint64
	closed  bool
	visits  []string

	// OnNavigate, when set, runs before every navigation; an error aborts it.
	OnNavigate func(target string) error
}

var _ schemas.Page = (*Browser)(nil)

// New creates a Browser serving pages. It starts on about:blank.
func New(pages map[string]string, logger *zap.Logger) *Browser {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Browser{
		logger: logger.Named("snapshot"),
		pages:  make(map[string]string, len(pages)),
	}
	for u, body := range pages {
		b.pages[normalize(u)] = body
	}
	b.current = "about:blank"
	b.doc = blankDocument()
	return b
}

// FromHTML creates a Browser already showing body at pageURL.
func FromHTML(pageURL, body string, logger *zap.Logger) (*Browser, error) {
	b := New(map[string]string{pageURL: body}, logger)
	if err := b.Navigate(context.Background(), pageURL); err != nil {
		return nil, err
	}
	return b, nil
}

// AddPage registers or replaces a page.
func (b *Browser) AddPage(pageURL, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[normalize(pageURL)] = body
}

// Close simulates the window going away. Every call fails with
// ErrSessionUnavailable until Reopen.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.gen++
}

// Reopen brings a closed window back on about:blank.
func (b *Browser) Reopen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		return
	}
	b.closed = false
	b.current = "about:blank"
	b.doc = blankDocument()
	b.gen++
}

// Closed reports whether the window is gone.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Visits lists every URL loaded, in order.
func (b *Browser) Visits() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

// HTML renders the current document, including state changed by gestures.
func (b *Browser) HTML() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out, err := goquery.OuterHtml(b.doc.Selection)
	if err != nil {
		return ""
	}
	return out
}

// Generation implements schemas.Page.
func (b *Browser) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Location implements schemas.Page.
func (b *Browser) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", fmt.Errorf("reading location: %w", schemas.ErrSessionUnavailable)
	}
	return b.current, nil
}

// Navigate implements schemas.Page.
func (b *Browser) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hook := b.OnNavigate; hook != nil {
		if err := hook(target); err != nil {
			return fmt.Errorf("navigate to %s: %w", target, err)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.navigateLocked(target)
}

func (b *Browser) navigateLocked(target string) error {
	if b.closed {
		return fmt.Errorf("navigate to %s: %w", target, schemas.ErrSessionUnavailable)
	}
	resolved := b.resolveLocked(target)
	body, ok := b.pages[normalize(resolved)]
	if !ok {
		return fmt.Errorf("navigate to %s: page not found", resolved)
	}
	doc, err := parse(body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", resolved, err)
	}
	b.doc = doc
	b.current = resolved
	b.gen++
	b.visits = append(b.visits, resolved)
	b.logger.Debug("Loaded page.", zap.String("url", resolved), zap.Uint64("generation", b.gen))
	return nil
}

func (b *Browser) resolveLocked(ref string) string {
	base, err := url.Parse(b.current)
	if err != nil || base.Scheme == "about" {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// QueryAll implements schemas.Page.
func (b *Browser) QueryAll(ctx context.Context, selector string) ([]schemas.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("query %q: %w", selector, schemas.ErrSessionUnavailable)
	}
	return b.wrapLocked(b.doc.Find(selector)), nil
}

// ElementByID implements schemas.Page.
func (b *Browser) ElementByID(ctx context.Context, id string) (schemas.Node, error) {
	nodes, err := b.QueryAll(ctx, selectors.ByID(id))
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("element #%s: %w", id, schemas.ErrElementNotFound)
	}
	return nodes[0], nil
}

// WaitFor implements schemas.Page. A static document cannot change while
// waiting, so one check decides.
func (b *Browser) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	nodes, err := b.QueryAll(ctx, selector)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("waiting for %q: %w", selector, schemas.ErrElementNotFound)
	}
	return nil
}

func (b *Browser) wrapLocked(sel *goquery.Selection) []schemas.Node {
	out := make([]schemas.Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &node{b: b, sel: s, gen: b.gen})
	})
	return out
}

// parse builds a document the way a browser would, repairing malformed markup.
func parse(body string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

func blankDocument() *goquery.Document {
	doc, _ := parse("")
	return doc
}

func normalize(u string) string {
	u = strings.TrimSpace(u)
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if len(u) > 1 {
		u = strings.TrimSuffix(u, "/")
	}
	return u
}
