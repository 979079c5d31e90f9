// internal/classifier/classifier.go

// Package classifier decides what kind of content the current page shows.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
)

// Signature sets, highest priority first. Platform class names are matched by
// substring because they carry build-specific suffixes.
var (
	AssessmentSignatures = []string{
		`div[class*="rc-QuestionView"]`,
		`div[class*="QuizSubmission"]`,
		`[data-testid*="part-Submission_"]`,
		`div[role="radiogroup"]`,
		`div[role="group"]`,
		`[data-testid="legend"]`,
	}
	VideoSignatures = []string{
		`video`,
		`iframe`,
		`[class*="video-player"]`,
		`[class*="rc-Video"]`,
		`[class*="VideoPlayer"]`,
	}
	ReadingSignatures = []string{
		`[class*="rc-ReadingItem"]`,
		`[class*="reading-item"]`,
		`main.item-page-content`,
	}
)

var headingKeywords = []struct {
	kind  schemas.ContentType
	words []string
}{
	{schemas.ContentAssessment, []string{"quiz", "exam", "test", "assessment"}},
	{schemas.ContentVideo, []string{"video", "lecture"}},
	{schemas.ContentReading, []string{"reading", "article", "notes"}},
}

// probe inspects the page and reports a type, or ok=false to defer to the next probe.
type probe struct {
	name string
	run  func(ctx context.Context, page schemas.Page) (schemas.ContentType, bool, error)
}

// Classifier runs a fixed-priority cascade of independent probes.
type Classifier struct {
	src    session.Source
	logger *zap.Logger
	probes []probe
}

// New creates a Classifier that borrows its page from src on every call.
func New(src session.Source, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		src:    src,
		logger: logger.Named("classifier"),
		probes: []probe{
			{"assessment", signatureProbe(schemas.ContentAssessment, AssessmentSignatures)},
			{"media", signatureProbe(schemas.ContentVideo, VideoSignatures)},
			{"reading", signatureProbe(schemas.ContentReading, ReadingSignatures)},
			{"heading", headingProbe},
		},
	}
}

// Classify returns the content type of the current page. It never fails:
// anything that goes wrong yields ContentUnknown. The result is not cached.
func (c *Classifier) Classify(ctx context.Context) (kind schemas.ContentType) {
	kind = schemas.ContentUnknown
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Classification panicked.", zap.Any("panic", r))
			kind = schemas.ContentUnknown
		}
	}()

	page, err := session.Borrow(ctx, c.src)
	if err != nil {
		c.logger.Warn("No page to classify.", zap.Error(err))
		return schemas.ContentUnknown
	}
	for _, p := range c.probes {
		found, ok, err := p.run(ctx, page)
		if err != nil {
			c.logger.Warn("Classification probe failed.", zap.String("probe", p.name), zap.Error(err))
			return schemas.ContentUnknown
		}
		if ok {
			c.logger.Debug("Page classified.", zap.String("probe", p.name), zap.String("type", string(found)))
			return found
		}
	}
	return schemas.ContentUnknown
}

func signatureProbe(kind schemas.ContentType, selectors []string) func(context.Context, schemas.Page) (schemas.ContentType, bool, error) {
	return func(ctx context.Context, page schemas.Page) (schemas.ContentType, bool, error) {
		for _, sel := range selectors {
			nodes, err := page.QueryAll(ctx, sel)
			if err != nil {
				return schemas.ContentUnknown, false, fmt.Errorf("probe %q: %w", sel, err)
			}
			if len(nodes) > 0 {
				return kind, true, nil
			}
		}
		return schemas.ContentUnknown, false, nil
	}
}

func headingProbe(ctx context.Context, page schemas.Page) (schemas.ContentType, bool, error) {
	headings, err := page.QueryAll(ctx, "h1")
	if err != nil {
		return schemas.ContentUnknown, false, err
	}
	if len(headings) == 0 {
		return schemas.ContentUnknown, false, nil
	}
	text, err := headings[0].Text(ctx)
	if err != nil {
		return schemas.ContentUnknown, false, err
	}
	kind, ok := KindFromHeading(text)
	return kind, ok, nil
}

// KindFromHeading maps a main heading to a content type by keyword. A word
// matches when it starts with a keyword, so plurals count.
func KindFromHeading(heading string) (schemas.ContentType, bool) {
	words := strings.FieldsFunc(strings.ToLower(heading), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, group := range headingKeywords {
		for _, w := range words {
			for _, kw := range group.words {
				if strings.HasPrefix(w, kw) {
					return group.kind, true
				}
			}
		}
	}
	return schemas.ContentUnknown, false
}
