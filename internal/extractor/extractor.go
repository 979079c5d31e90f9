// internal/extractor/extractor.go

// Package extractor finds the answerable units of an assessment page. The
// platform's markup is versioned and undocumented, so units are discovered by
// an ordered list of independent strategies, each tolerating the absence of
// its structural signature.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/selectors"
	"github.com/xkilldash9x/coursepilot/internal/browser/session"
)

// Strategy names recorded on each unit.
const (
	StrategyStructured   = "structured"
	StrategyContainer    = "container"
	StrategyIconographic = "iconographic"
	StrategyProximity    = "proximity"
)

const (
	viewerSelector     = `[data-testid="cml-viewer"]`
	structuredSelector = `[role="radiogroup"][aria-labelledby], [role="group"][aria-labelledby]`
	containerSelector  = `[data-testid^="part-Submission_"], .rc-FormPartsQuestion, [role="group"]`
	controlSelector    = `input[type="radio"], input[type="checkbox"]`
	iconSelector       = `svg[aria-labelledby*="Checkbox"], svg[aria-labelledby*="RadioButton"]`
	iconOwnerSelector  = `label, [role="radio"], [role="checkbox"]`
	optionSelector     = `label, [role="radio"], [role="checkbox"], [class*="Option"], [data-testid*="option"]`
	textFieldSelector  = `input[type="text"], textarea`
	legendSelector     = `[data-testid="legend"]`

	// minPromptLength separates question prose from short option labels.
	minPromptLength = 20
	// proximityDepth bounds the ancestor climb from a prompt to its controls.
	proximityDepth = 3
)

// DefaultPromptIDPrefixes are the label ids of graded question groups.
var DefaultPromptIDPrefixes = []string{"prompt-autoGradableResponseId"}

type strategy struct {
	name string
	run  func(ctx context.Context, x *extraction) error
}

// Extractor turns the current page into AnswerableUnits. It never mutates the page.
type Extractor struct {
	src        session.Source
	logger     *zap.Logger
	prefixes   []string
	strategies []strategy
}

// New creates an Extractor. Structured groups are only recognized when their
// label id starts with one of prefixes; nil selects DefaultPromptIDPrefixes.
func New(src session.Source, prefixes []string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefixes == nil {
		prefixes = DefaultPromptIDPrefixes
	}
	e := &Extractor{
		src:      src,
		logger:   logger.Named("extractor"),
		prefixes: prefixes,
	}
	e.strategies = []strategy{
		{StrategyStructured, e.structured},
		{StrategyIconographic, e.containers},
		{StrategyProximity, e.proximity},
	}
	return e
}

// extraction is the state of one ExtractUnits call.
type extraction struct {
	page schemas.Page
	// claimed holds keys of unit containers, prompts and everything nested in
	// them, controls included. Later strategies skip claimed elements.
	claimed map[string]bool
	units   []schemas.AnswerableUnit
}

func (x *extraction) add(u schemas.AnswerableUnit) {
	u.Ordinal = len(x.units) + 1
	for i := range u.Options {
		u.Options[i].Letter = schemas.Letter(i)
	}
	if u.Kind == "" {
		u.Kind = schemas.SingleSelect
	}
	x.units = append(x.units, u)
}

// claim marks n and every candidate element inside it as taken.
func (x *extraction) claim(ctx context.Context, n schemas.Node) error {
	x.claimed[n.Key()] = true
	nested, err := n.QueryAll(ctx, selectors.Join(viewerSelector, containerSelector, structuredSelector, controlSelector, iconOwnerSelector))
	if err != nil {
		return err
	}
	for _, c := range nested {
		x.claimed[c.Key()] = true
	}
	return nil
}

// ExtractUnits returns the page's units in extraction order: strategy
// priority first, then document order. Units without options are included.
func (e *Extractor) ExtractUnits(ctx context.Context) ([]schemas.AnswerableUnit, error) {
	page, err := session.Borrow(ctx, e.src)
	if err != nil {
		return nil, err
	}
	x := &extraction{page: page, claimed: make(map[string]bool)}
	for _, s := range e.strategies {
		before := len(x.units)
		if err := s.run(ctx, x); err != nil {
			if errors.Is(err, schemas.ErrSessionUnavailable) || errors.Is(err, schemas.ErrStaleElement) || ctx.Err() != nil {
				return nil, fmt.Errorf("%s extraction: %w", s.name, err)
			}
			// A broken strategy must not hide what the others find.
			e.logger.Warn("Extraction strategy failed.", zap.String("strategy", s.name), zap.Error(err))
			continue
		}
		e.logger.Debug("Extraction strategy finished.",
			zap.String("strategy", s.name),
			zap.Int("units", len(x.units)-before),
		)
	}
	return x.units, nil
}

// ExtractOptionsFor resolves the options under anchor with the same rules the
// unit strategies use. Failures yield no options.
func (e *Extractor) ExtractOptionsFor(ctx context.Context, anchor schemas.Node) ([]schemas.Option, schemas.ResponseKind, string) {
	page, err := session.Borrow(ctx, e.src)
	if err != nil {
		e.logger.Warn("No page for option extraction.", zap.Error(err))
		return nil, schemas.SingleSelect, ""
	}
	r, err := resolveOptions(ctx, page, anchor, nil)
	if err != nil {
		e.logger.Warn("Option extraction failed.", zap.String("anchor", anchor.Describe()), zap.Error(err))
		return nil, schemas.SingleSelect, ""
	}
	for i := range r.options {
		r.options[i].Letter = schemas.Letter(i)
	}
	return r.options, r.kind, r.via
}
