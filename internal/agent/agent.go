// internal/agent/agent.go

// Package agent processes one course page at a time: classify it, answer
// what can be answered, and leave the rest for manual review.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
	"github.com/xkilldash9x/coursepilot/internal/classifier"
	"github.com/xkilldash9x/coursepilot/internal/config"
	"github.com/xkilldash9x/coursepilot/internal/extractor"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
	"github.com/xkilldash9x/coursepilot/internal/interaction"
	"github.com/xkilldash9x/coursepilot/internal/observability"
	"github.com/xkilldash9x/coursepilot/internal/oracle"
	"github.com/xkilldash9x/coursepilot/internal/review"
)

// Capturer saves a diagnostic screenshot.
type Capturer interface {
	Capture(ctx context.Context, page schemas.Page, label string) (string, error)
}

// Deps are the components an Agent drives.
type Deps struct {
	Source     session.Source
	Classifier *classifier.Classifier
	Extractor  *extractor.Extractor
	Gateway    *oracle.Gateway
	Executor   *interaction.Executor
	Review     review.Sink
	// Screenshots is optional.
	Screenshots Capturer
	Pacer       *humanoid.Pacer
	Status      *observability.Status
	// OracleBackoff is the fixed wait before the single retry of an
	// unavailable oracle.
	OracleBackoff time.Duration
}

// Options for one ProcessPage call.
type Options struct {
	// Submit presses the page's submit button after answering.
	Submit bool
}

// Report summarizes one processed page.
type Report struct {
	URL       string              `json:"url"`
	Kind      schemas.ContentType `json:"kind"`
	Title     string              `json:"title,omitempty"`
	Units     int                 `json:"units"`
	Answered  int                 `json:"answered"`
	Defaulted int                 `json:"defaulted"`
	Skipped   int                 `json:"skipped"`
	Reviews   int                 `json:"reviews"`
	HonorCode bool                `json:"honor_code,omitempty"`
	Submitted bool                `json:"submitted,omitempty"`
	Summary   string              `json:"summary,omitempty"`
}

// Stats accumulate over the life of an Agent.
type Stats struct {
	RunID     string `json:"run_id"`
	Pages     int    `json:"pages"`
	Units     int    `json:"units"`
	Answered  int    `json:"answered"`
	Defaulted int    `json:"defaulted"`
	Reviews   int    `json:"reviews"`
	Submitted int    `json:"submitted"`
}

// Agent ties classification, extraction, decision and interaction together.
type Agent struct {
	deps   Deps
	cfg    config.AgentConfig
	logger *zap.Logger
	runID  string

	mu    sync.Mutex
	stats Stats
}

// New creates an Agent. Every run gets its own id, stamped on review entries.
func New(deps Deps, cfg config.AgentConfig, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Pacer == nil {
		deps.Pacer = humanoid.Instant()
	}
	if deps.Status == nil {
		deps.Status = observability.NopStatus()
	}
	runID := uuid.NewString()
	return &Agent{
		deps:   deps,
		cfg:    cfg,
		logger: logger.Named("agent").With(zap.String("run_id", runID)),
		runID:  runID,
		stats:  Stats{RunID: runID},
	}
}

// Stats returns a copy of the run statistics.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Agent) record(r Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Pages++
	a.stats.Units += r.Units
	a.stats.Answered += r.Answered
	a.stats.Defaulted += r.Defaulted
	a.stats.Reviews += r.Reviews
	if r.Submitted {
		a.stats.Submitted++
	}
}

// ProcessPage handles whatever the session currently shows. Failures of
// single units are contained; an error means the page could not be
// processed at all.
func (a *Agent) ProcessPage(ctx context.Context, opts Options) (Report, error) {
	page, err := session.Borrow(ctx, a.deps.Source)
	if err != nil {
		a.deps.Status.Fail("Browser session is not available", zap.Error(err))
		return Report{}, err
	}
	if err := a.deps.Pacer.PageSettle(ctx); err != nil {
		return Report{}, err
	}

	var r Report
	r.URL, _ = page.Location(ctx)
	r.Kind = a.deps.Classifier.Classify(ctx)
	a.deps.Status.Info(fmt.Sprintf("Page classified as %s", r.Kind), zap.String("url", r.URL))

	switch r.Kind {
	case schemas.ContentAssessment:
		err = a.processAssessment(ctx, page, opts, &r)
	case schemas.ContentReading:
		a.processReading(ctx, page, &r)
	case schemas.ContentVideo:
		a.processVideo(ctx, page, &r)
	default:
		a.deps.Status.Warn("Could not tell what this page is; nothing done")
	}
	a.record(r)
	if err != nil {
		return r, err
	}
	a.logger.Info("Page processed.",
		zap.String("url", r.URL),
		zap.String("kind", string(r.Kind)),
		zap.Int("units", r.Units),
		zap.Int("answered", r.Answered),
		zap.Int("reviews", r.Reviews),
	)
	return r, nil
}

// processReading summarizes reading content when enabled.
func (a *Agent) processReading(ctx context.Context, page schemas.Page, r *Report) {
	if !a.cfg.SummarizeReadings {
		a.deps.Status.Info("Reading content; summaries are disabled")
		return
	}
	text := readingText(ctx, page)
	if text == "" {
		a.deps.Status.Warn("Reading content is empty")
		return
	}
	summary, err := a.deps.Gateway.Summarize(ctx, text)
	if err != nil {
		a.deps.Status.Warn("Could not summarize the reading", zap.Error(err))
		return
	}
	r.Summary = summary
	a.deps.Status.OK("Reading summarized")
}

const (
	transcriptSelector = `.rc-Transcript`
	transcriptCaption  = "Transcript"
)

// processVideo reports the video title and, when enabled, opens the
// transcript and summarizes it.
func (a *Agent) processVideo(ctx context.Context, page schemas.Page, r *Report) {
	r.Title = firstText(ctx, page, "h1")
	if r.Title != "" {
		a.deps.Status.Info(fmt.Sprintf("Video: %s", r.Title))
	}
	if !a.cfg.SummarizeVideos {
		a.deps.Status.Info("Video content; transcript summaries are disabled")
		return
	}
	if button := transcriptButton(ctx, page); button != nil {
		if err := a.deps.Executor.Click(ctx, page, button); err != nil {
			a.logger.Debug("Transcript button did not respond.", zap.Error(err))
		} else if err := a.deps.Pacer.Settle(ctx); err != nil {
			return
		}
	}
	text := firstText(ctx, page, transcriptSelector)
	if text == "" {
		a.deps.Status.Warn("No transcript found for this video")
		return
	}
	summary, err := a.deps.Gateway.Summarize(ctx, text)
	if err != nil {
		a.deps.Status.Warn("Could not summarize the transcript", zap.Error(err))
		return
	}
	r.Summary = summary
	a.deps.Status.OK("Video transcript summarized")
}

func transcriptButton(ctx context.Context, page schemas.Page) schemas.Node {
	buttons, err := page.QueryAll(ctx, "button")
	if err != nil {
		return nil
	}
	for _, b := range buttons {
		if text, err := b.Text(ctx); err == nil && strings.Contains(text, transcriptCaption) {
			return b
		}
	}
	return nil
}

// firstText is the trimmed text of the first element matching selector.
func firstText(ctx context.Context, page schemas.Page, selector string) string {
	found, err := page.QueryAll(ctx, selector)
	if err != nil || len(found) == 0 {
		return ""
	}
	text, err := found[0].Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func readingText(ctx context.Context, page schemas.Page) string {
	for _, sel := range classifier.ReadingSignatures {
		found, err := page.QueryAll(ctx, sel)
		if err != nil {
			return ""
		}
		for _, n := range found {
			if text, err := n.Text(ctx); err == nil && strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return ""
}

// LoginSignatures appear only for a signed-in user.
var LoginSignatures = []string{
	`button[aria-label*="Your profile"]`,
	`div[class*="c-ph-avatar"]`,
	`a[href*="/user/"]`,
}

// LoggedIn reports whether the current page shows a signed-in user.
func (a *Agent) LoggedIn(ctx context.Context) (bool, error) {
	page, err := session.Borrow(ctx, a.deps.Source)
	if err != nil {
		return false, err
	}
	for _, sel := range LoginSignatures {
		found, err := page.QueryAll(ctx, sel)
		if err != nil {
			return false, err
		}
		if len(found) > 0 {
			return true, nil
		}
	}
	return false, nil
}
