// internal/navigation/controller.go

// Package navigation drives traversals out from an anchor page (the course
// outline or the grades table) and back. Targets are addressed by position
// and re-resolved after every load; the anchor is always reached by loading
// its URL, never through history.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
	"github.com/xkilldash9x/coursepilot/internal/observability"
)

// State is where the controller is relative to its anchor.
type State int

const (
	AtAnchor State = iota
	InExcursion
	Recovering
)

func (s State) String() string {
	switch s {
	case AtAnchor:
		return "at_anchor"
	case InExcursion:
		return "in_excursion"
	case Recovering:
		return "recovering"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNoAnchor is returned when a traversal starts before SetAnchor.
var ErrNoAnchor = errors.New("no anchor page set")

// Target is a traversable destination on the anchor page. It holds a
// position and display text only; the element is found again on every visit.
type Target struct {
	// Index is 1-based.
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Status string `json:"status,omitempty"`
}

// Completed reports whether the grades table shows a result for the target.
func (t Target) Completed() bool {
	s := strings.TrimSpace(t.Status)
	return s != "" && s != "--"
}

// Outcome is the result of one Visit.
type Outcome struct {
	Target Target
	// Location is where the excursion ended up before returning.
	Location  string
	CoverPage bool
	// Err is the failure of the excursion itself: reaching the target or
	// processing it.
	Err error
	// Drift is set when the anchor could not be re-established afterwards.
	Drift error
}

// OK reports whether the excursion and the return both succeeded.
func (o Outcome) OK() bool { return o.Err == nil && o.Drift == nil }

// ArriveFunc processes the page a visit landed on.
type ArriveFunc func(ctx context.Context, page schemas.Page) error

// Clicker activates an element through a click cascade.
type Clicker interface {
	Click(ctx context.Context, page schemas.Page, target schemas.Node) error
}

// Capturer saves a diagnostic screenshot.
type Capturer interface {
	Capture(ctx context.Context, page schemas.Page, label string) (string, error)
}

// Options tunes a Controller.
type Options struct {
	WaitTimeout  time.Duration
	PollInterval time.Duration
	// CourseURL is the course home used by OpenAnchor.
	CourseURL   string
	Pacer       *humanoid.Pacer
	Status      *observability.Status
	Screenshots Capturer
}

// Controller is the navigation state machine. It is not safe for concurrent
// traversals; the mutex only guards inspection of its state.
type Controller struct {
	src     session.Source
	clicker Clicker
	opts    Options
	logger  *zap.Logger

	mu     sync.Mutex
	state  State
	anchor *schemas.AnchorPage
}

// New creates a Controller with no anchor.
func New(src session.Source, clicker Clicker, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 15 * time.Second
	}
	if opts.PollInterval <= 0 || opts.PollInterval > opts.WaitTimeout {
		opts.PollInterval = 250 * time.Millisecond
	}
	if opts.Pacer == nil {
		opts.Pacer = humanoid.Instant()
	}
	if opts.Status == nil {
		opts.Status = observability.NopStatus()
	}
	return &Controller{
		src:     src,
		clicker: clicker,
		opts:    opts,
		logger:  logger.Named("navigation"),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Debug("Navigation state changed.", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

// Anchor returns the anchor of the current traversal.
func (c *Controller) Anchor() (schemas.AnchorPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anchor == nil {
		return schemas.AnchorPage{}, false
	}
	return *c.anchor, true
}

// SetAnchor starts a traversal from pageURL.
func (c *Controller) SetAnchor(pageURL string, kind schemas.AnchorKind) error {
	if _, ok := profiles[kind]; !ok {
		return fmt.Errorf("unknown anchor kind %q", kind)
	}
	if pageURL == "" {
		return fmt.Errorf("anchor url is empty")
	}
	c.mu.Lock()
	c.anchor = &schemas.AnchorPage{URL: pageURL, Kind: kind, SetAt: time.Now().UTC()}
	c.state = AtAnchor
	c.mu.Unlock()
	c.logger.Info("Anchor set.", zap.String("url", pageURL), zap.String("kind", string(kind)))
	return nil
}

// OpenAnchor reaches an anchor of the given kind from the course home and
// makes it the current anchor.
func (c *Controller) OpenAnchor(ctx context.Context, kind schemas.AnchorKind) (schemas.AnchorPage, error) {
	profile, ok := profiles[kind]
	if !ok {
		return schemas.AnchorPage{}, fmt.Errorf("unknown anchor kind %q", kind)
	}
	page, err := session.Borrow(ctx, c.src)
	if err != nil {
		return schemas.AnchorPage{}, err
	}

	switch kind {
	case schemas.AnchorOutline:
		if err := c.openCourseHome(ctx, page); err != nil {
			return schemas.AnchorPage{}, err
		}
	case schemas.AnchorGrades:
		if err := c.openGrades(ctx, page); err != nil {
			return schemas.AnchorPage{}, err
		}
	}
	if err := page.WaitFor(ctx, profile.ready, c.opts.WaitTimeout); err != nil {
		return schemas.AnchorPage{}, fmt.Errorf("%s page did not load: %w", kind, err)
	}
	loc, err := page.Location(ctx)
	if err != nil {
		return schemas.AnchorPage{}, err
	}
	if err := c.SetAnchor(loc, kind); err != nil {
		return schemas.AnchorPage{}, err
	}
	c.opts.Status.OK(fmt.Sprintf("Anchored at %s page", kind), zap.String("url", loc))
	anchor, _ := c.Anchor()
	return anchor, nil
}

// openCourseHome loads the configured course unless the outline is already shown.
func (c *Controller) openCourseHome(ctx context.Context, page schemas.Page) error {
	if found, _ := page.QueryAll(ctx, profiles[schemas.AnchorOutline].ready); len(found) > 0 {
		return nil
	}
	if c.opts.CourseURL == "" {
		return fmt.Errorf("course.url is not configured and the current page is not a course home")
	}
	home, err := NormalizeCourseURL(c.opts.CourseURL)
	if err != nil {
		return err
	}
	if err := page.Navigate(ctx, home); err != nil {
		return fmt.Errorf("failed to open course home: %w", err)
	}
	return c.opts.Pacer.PageSettle(ctx)
}

// openGrades clicks the grades entry of the course navigation.
func (c *Controller) openGrades(ctx context.Context, page schemas.Page) error {
	if found, _ := page.QueryAll(ctx, profiles[schemas.AnchorGrades].ready); len(found) > 0 {
		return nil
	}
	items, err := page.QueryAll(ctx, gradesNavSelector)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		if err := c.openCourseHome(ctx, page); err != nil {
			return err
		}
		if items, err = page.QueryAll(ctx, gradesNavSelector); err != nil {
			return err
		}
	}
	if len(items) == 0 {
		return fmt.Errorf("grades navigation item: %w", schemas.ErrElementNotFound)
	}
	target := items[0]
	if links, err := items[0].QueryAll(ctx, "a"); err == nil && len(links) > 0 {
		target = links[0]
	}
	if err := c.clicker.Click(ctx, page, target); err != nil {
		return fmt.Errorf("failed to open grades: %w", err)
	}
	return c.opts.Pacer.PageSettle(ctx)
}

// EnumerateTargets lists the anchor's destinations in document order. The
// anchor is loaded first if the page is elsewhere.
func (c *Controller) EnumerateTargets(ctx context.Context) ([]Target, error) {
	anchor, ok := c.Anchor()
	if !ok {
		return nil, ErrNoAnchor
	}
	page, err := session.Borrow(ctx, c.src)
	if err != nil {
		return nil, err
	}
	if err := c.ensureAtAnchor(ctx, page, anchor); err != nil {
		return nil, err
	}

	profile := profiles[anchor.Kind]
	nodes, err := findTargets(ctx, page, profile)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(nodes))
	for i, n := range nodes {
		label := firstText(ctx, n, profile.label)
		if label == "" {
			label = truncate(nodeText(ctx, n), maxLabelLength)
		}
		targets = append(targets, Target{
			Index:  i + 1,
			Label:  label,
			Status: firstText(ctx, n, profile.status),
		})
	}
	c.logger.Debug("Targets enumerated.", zap.Int("count", len(targets)))
	return targets, nil
}

// Visit makes one excursion from the anchor to target and back. Whatever
// happens on the way, the controller returns to the anchor URL before it
// reports. After cancellation the return runs detached from ctx, bounded by
// twice the wait timeout.
func (c *Controller) Visit(ctx context.Context, target Target, arrive ArriveFunc) Outcome {
	out := Outcome{Target: target}
	anchor, ok := c.Anchor()
	if !ok {
		out.Err = ErrNoAnchor
		return out
	}
	log := c.logger.With(zap.Int("target", target.Index), zap.String("label", target.Label))

	c.setState(InExcursion)
	out.Err = c.excursion(ctx, anchor, target, arrive, &out, log)
	if out.Err != nil {
		log.Warn("Excursion failed.", zap.Error(out.Err))
		c.opts.Status.Warn(fmt.Sprintf("Target %d (%s) failed: %v", target.Index, target.Label, out.Err))
	}
	back := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		back, cancel = context.WithTimeout(context.WithoutCancel(ctx), 2*c.opts.WaitTimeout)
		defer cancel()
	}
	out.Drift = c.reanchor(back, anchor, log)
	return out
}

func (c *Controller) excursion(ctx context.Context, anchor schemas.AnchorPage, target Target, arrive ArriveFunc, out *Outcome, log *zap.Logger) error {
	page, err := session.Borrow(ctx, c.src)
	if err != nil {
		return err
	}
	if err := c.ensureAtAnchor(ctx, page, anchor); err != nil {
		return err
	}

	profile := profiles[anchor.Kind]
	nodes, err := findTargets(ctx, page, profile)
	if err != nil {
		return err
	}
	if target.Index < 1 || target.Index > len(nodes) {
		return fmt.Errorf("target %d of %d: %w", target.Index, len(nodes), schemas.ErrElementNotFound)
	}
	clickable := clickTarget(ctx, nodes[target.Index-1], profile)
	stay := linksToAnchor(ctx, page, clickable, anchor.URL)

	if err := c.clicker.Click(ctx, page, clickable); err != nil {
		return fmt.Errorf("failed to open target: %w", err)
	}
	var loc string
	if stay {
		// The target is the anchor page itself, so the location never changes.
		if err := page.WaitFor(ctx, profile.ready, c.opts.WaitTimeout); err != nil {
			return fmt.Errorf("target did not render: %w", err)
		}
		loc, err = page.Location(ctx)
	} else {
		loc, err = c.waitForLeave(ctx, page, anchor.URL)
	}
	if err != nil {
		return err
	}
	if err := c.opts.Pacer.PageSettle(ctx); err != nil {
		return err
	}
	log.Info("Arrived at target.", zap.String("url", loc))

	cover, err := c.passCoverPage(ctx, page)
	if err != nil {
		return err
	}
	out.CoverPage = cover
	if out.Location, err = page.Location(ctx); err != nil {
		return err
	}

	if arrive == nil {
		return nil
	}
	return runArrive(ctx, page, arrive)
}

// runArrive contains a panic in page processing to this target.
func runArrive(ctx context.Context, page schemas.Page, arrive ArriveFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page processing panicked: %v", r)
		}
	}()
	return arrive(ctx, page)
}

// passCoverPage clicks a single Resume/Start affordance if the page is a
// cover page. It reports whether one was clicked.
func (c *Controller) passCoverPage(ctx context.Context, page schemas.Page) (bool, error) {
	button, err := coverButton(ctx, page)
	if err != nil || button == nil {
		return false, err
	}
	c.logger.Info("Cover page found; continuing into the content.", zap.String("button", button.Describe()))
	if err := c.clicker.Click(ctx, page, button); err != nil {
		return false, fmt.Errorf("failed to leave cover page: %w", err)
	}
	return true, c.opts.Pacer.PageSettle(ctx)
}

func coverButton(ctx context.Context, page schemas.Page) (schemas.Node, error) {
	found, err := page.QueryAll(ctx, coverButtonSelector)
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		return found[0], nil
	}
	buttons, err := page.QueryAll(ctx, "button")
	if err != nil {
		return nil, err
	}
	for _, b := range buttons {
		text, err := b.Text(ctx)
		if err == nil && isCoverCaption(text) {
			return b, nil
		}
	}
	return nil, nil
}

// waitForLeave polls until the location differs from anchorURL.
func (c *Controller) waitForLeave(ctx context.Context, page schemas.Page, anchorURL string) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.WaitTimeout)
	defer cancel()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		loc, err := page.Location(waitCtx)
		if err == nil && !sameURL(loc, anchorURL) {
			return loc, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("still on the anchor after %s", c.opts.WaitTimeout)
		case <-ticker.C:
		}
	}
}

// ensureAtAnchor loads the anchor unless the page already shows it.
func (c *Controller) ensureAtAnchor(ctx context.Context, page schemas.Page, anchor schemas.AnchorPage) error {
	loc, err := page.Location(ctx)
	if err != nil {
		return err
	}
	if sameURL(loc, anchor.URL) {
		return page.WaitFor(ctx, profiles[anchor.Kind].ready, c.opts.WaitTimeout)
	}
	return c.loadAnchor(ctx, page, anchor)
}

// loadAnchor navigates to the anchor URL and verifies it rendered there.
func (c *Controller) loadAnchor(ctx context.Context, page schemas.Page, anchor schemas.AnchorPage) error {
	if err := page.Navigate(ctx, anchor.URL); err != nil {
		return fmt.Errorf("failed to load anchor: %w", err)
	}
	if err := page.WaitFor(ctx, profiles[anchor.Kind].ready, c.opts.WaitTimeout); err != nil {
		return fmt.Errorf("anchor did not render: %w", err)
	}
	loc, err := page.Location(ctx)
	if err != nil {
		return err
	}
	if !sameURL(loc, anchor.URL) {
		return fmt.Errorf("anchor load landed on %s", loc)
	}
	return c.opts.Pacer.PageSettle(ctx)
}

// reanchor returns to the anchor, reloading once more on failure.
func (c *Controller) reanchor(ctx context.Context, anchor schemas.AnchorPage, log *zap.Logger) error {
	var errs []error
	for attempt := 1; attempt <= 2; attempt++ {
		page, err := session.Borrow(ctx, c.src)
		if err == nil {
			err = c.loadAnchor(ctx, page, anchor)
		}
		if err == nil {
			c.setState(AtAnchor)
			if attempt > 1 {
				c.opts.Status.OK("Recovered the anchor page")
			}
			return nil
		}
		errs = append(errs, err)
		c.setState(Recovering)
		log.Warn("Returning to anchor failed.", zap.Int("attempt", attempt), zap.Error(err))
		if page != nil && c.opts.Screenshots != nil {
			if path, serr := c.opts.Screenshots.Capture(ctx, page, "navigation-drift"); serr == nil && path != "" {
				log.Info("Saved drift screenshot.", zap.String("path", path))
			}
		}
	}
	err := fmt.Errorf("%w: %s: %w", schemas.ErrNavigationDrift, anchor.URL, errors.Join(errs...))
	c.opts.Status.Fail(fmt.Sprintf("Could not return to the %s page; skipping target", anchor.Kind), zap.Error(err))
	return err
}

// Traverse visits every target in order. A failing target never stops the
// traversal; only a session that could not be recovered does.
func (c *Controller) Traverse(ctx context.Context, arrive ArriveFunc) ([]Outcome, error) {
	targets, err := c.EnumerateTargets(ctx)
	if err != nil {
		return nil, err
	}
	c.opts.Status.Info(fmt.Sprintf("Visiting %d targets", len(targets)))

	outcomes := make([]Outcome, 0, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out := c.Visit(ctx, t, arrive)
		outcomes = append(outcomes, out)
		if out.OK() {
			c.opts.Status.OK(fmt.Sprintf("Target %d (%s) done", t.Index, t.Label))
		}
		for _, e := range []error{out.Err, out.Drift} {
			if errors.Is(e, schemas.ErrSessionUnavailable) {
				c.opts.Status.Fail("Browser session lost; stopping traversal", zap.Error(e))
				return outcomes, e
			}
		}
	}
	return outcomes, nil
}

func findTargets(ctx context.Context, page schemas.Page, profile anchorProfile) ([]schemas.Node, error) {
	for _, sel := range profile.targets {
		nodes, err := page.QueryAll(ctx, sel)
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			return nodes, nil
		}
	}
	return nil, nil
}

func clickTarget(ctx context.Context, n schemas.Node, profile anchorProfile) schemas.Node {
	for _, sel := range profile.links {
		if links, err := n.QueryAll(ctx, sel); err == nil && len(links) > 0 {
			return links[0]
		}
	}
	return n
}

const maxLabelLength = 80

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// firstText reads the text of the first match of selector inside n.
func firstText(ctx context.Context, n schemas.Node, selector string) string {
	if selector == "" {
		return ""
	}
	found, err := n.QueryAll(ctx, selector)
	if err != nil || len(found) == 0 {
		return ""
	}
	return nodeText(ctx, found[0])
}

func nodeText(ctx context.Context, n schemas.Node) string {
	text, _ := n.Text(ctx)
	return text
}
