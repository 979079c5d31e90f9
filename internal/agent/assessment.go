package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/selectors"
	"github.com/xkilldash9x/coursepilot/internal/review"
)

var (
	honorCodeSelector = selectors.Join(
		`div[data-testid="agreement-checkbox"] input[type="checkbox"]`,
		`#agreement-checkbox-base`,
		`input[id*="honor-code"]`,
	)
	legalNameSelector = `div[data-testid="legal-name"] input`
	submitSelector    = selectors.Join(`button[data-testid="submit-button"]`, `button[type="submit"]`)
)

func (a *Agent) processAssessment(ctx context.Context, page schemas.Page, opts Options, r *Report) error {
	units, err := a.deps.Extractor.ExtractUnits(ctx)
	if err != nil {
		a.deps.Status.Fail("Could not read the questions on this page", zap.Error(err))
		return err
	}
	r.Units = len(units)
	a.deps.Status.Info(fmt.Sprintf("Found %d questions", len(units)))

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.processUnit(ctx, page, u, r)
		if err := a.deps.Pacer.Settle(ctx); err != nil {
			return err
		}
	}

	if a.cfg.AcceptHonorCode {
		r.HonorCode = a.acceptHonorCode(ctx, page)
	}
	if opts.Submit {
		if err := a.submit(ctx, page); err != nil {
			a.deps.Status.Fail("Submission failed", zap.Error(err))
			return err
		}
		r.Submitted = true
		a.deps.Status.OK("Submitted")
	}
	return nil
}

// processUnit answers one unit. Every failure ends in at most one review entry.
func (a *Agent) processUnit(ctx context.Context, page schemas.Page, u schemas.AnswerableUnit, r *Report) {
	log := a.logger.With(zap.Int("unit", u.Ordinal), zap.String("kind", string(u.Kind)))

	if u.Kind == schemas.FreeText {
		if u.Input == nil {
			r.Skipped++
			log.Warn("Free-text unit has no input field; skipped.")
			return
		}
		d, err := a.decide(ctx, u)
		if err != nil {
			a.flag(ctx, page, u, "", review.ReasonNoDecision, r)
			return
		}
		if err := a.deps.Executor.Type(ctx, page, u.Input, d.Text); err != nil {
			a.flag(ctx, page, u, d.Text, review.ReasonTypingFailed, r)
			return
		}
		r.Answered++
		a.deps.Status.OK(fmt.Sprintf("Question %d answered", u.Ordinal))
		return
	}

	if len(u.Options) == 0 {
		r.Skipped++
		log.Warn("Unit has no options; skipped.")
		return
	}

	d, err := a.decide(ctx, u)
	if err != nil {
		var ok bool
		if d, ok = a.deps.Gateway.Default(u); !ok {
			a.flag(ctx, page, u, "", review.ReasonNoDecision, r)
			return
		}
		r.Defaulted++
		a.deps.Status.Warn(fmt.Sprintf("Question %d: no usable answer, falling back to %s", u.Ordinal, d), zap.Error(err))
	}

	for _, letter := range d.Letters {
		opt, ok := u.Option(letter)
		if !ok || !a.deps.Executor.Select(ctx, page, opt) {
			a.flag(ctx, page, u, d.String(), review.ReasonInteractionFailed, r)
			return
		}
	}
	r.Answered++
	a.deps.Status.OK(fmt.Sprintf("Question %d answered: %s", u.Ordinal, d))
}

// decide asks the gateway, retrying an unavailable oracle once. Invalid
// replies are not retried.
func (a *Agent) decide(ctx context.Context, u schemas.AnswerableUnit) (schemas.Decision, error) {
	var d schemas.Decision
	op := func() error {
		var err error
		d, err = a.deps.Gateway.Decide(ctx, u)
		if errors.Is(err, schemas.ErrOracleResponseInvalid) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(a.deps.OracleBackoff), 1), ctx)
	notify := func(err error, wait time.Duration) {
		a.logger.Warn("Oracle unavailable; retrying.",
			zap.Int("unit", u.Ordinal),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return schemas.Decision{}, err
	}
	return d, nil
}

// flag writes the review entry for a unit the agent gave up on.
func (a *Agent) flag(ctx context.Context, page schemas.Page, u schemas.AnswerableUnit, attempted, reason string, r *Report) {
	r.Reviews++
	e := review.Entry{
		RunID:     a.runID,
		URL:       r.URL,
		Ordinal:   u.Ordinal,
		Prompt:    u.Prompt,
		Options:   u.OptionTexts(),
		Attempted: attempted,
		Reason:    reason,
	}
	if a.cfg.ScreenshotOnFail && a.deps.Screenshots != nil {
		path, err := a.deps.Screenshots.Capture(ctx, page, fmt.Sprintf("unit-%d", u.Ordinal))
		if err != nil {
			a.logger.Debug("Screenshot failed.", zap.Error(err))
		}
		e.Screenshot = path
	}
	if err := a.deps.Review.Record(ctx, e); err != nil {
		a.logger.Error("Could not record review entry.", zap.Int("unit", u.Ordinal), zap.Error(err))
	}
	a.deps.Status.Warn(fmt.Sprintf("Question %d left for manual review (%s)", u.Ordinal, reason))
}

// acceptHonorCode ticks the honor code box and fills in the legal name.
func (a *Agent) acceptHonorCode(ctx context.Context, page schemas.Page) bool {
	boxes, err := page.QueryAll(ctx, honorCodeSelector)
	if err != nil || len(boxes) == 0 {
		a.logger.Debug("No honor code checkbox on this page.")
		return false
	}
	if !a.deps.Executor.Select(ctx, page, schemas.Option{Text: "honor code", Node: boxes[0]}) {
		a.deps.Status.Warn("Could not accept the honor code")
		return false
	}
	if a.cfg.LegalName != "" {
		fields, err := page.QueryAll(ctx, legalNameSelector)
		if err == nil && len(fields) > 0 {
			if err := a.deps.Executor.Type(ctx, page, fields[0], a.cfg.LegalName); err != nil {
				a.deps.Status.Warn("Could not enter the legal name", zap.Error(err))
			}
		}
	}
	a.deps.Status.OK("Honor code accepted")
	return true
}

func (a *Agent) submit(ctx context.Context, page schemas.Page) error {
	button, err := findSubmit(ctx, page)
	if err != nil {
		return err
	}
	return a.deps.Executor.Click(ctx, page, button)
}

func findSubmit(ctx context.Context, page schemas.Page) (schemas.Node, error) {
	found, err := page.QueryAll(ctx, submitSelector)
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
		if text, err := b.Text(ctx); err == nil && strings.EqualFold(strings.TrimSpace(text), "submit") {
			return b, nil
		}
	}
	return nil, fmt.Errorf("submit button: %w", schemas.ErrElementNotFound)
}
