// internal/interaction/executor.go

// Package interaction applies decisions to the page. Every gesture goes
// through an ordered cascade of strategies so one swallowed click does not
// lose an answer.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
)

// Executor runs selection, click and typing cascades against a page.
type Executor struct {
	pacer         *humanoid.Pacer
	actionTimeout time.Duration
	logger        *zap.Logger
}

// New creates an Executor. actionTimeout bounds each individual attempt.
func New(pacer *humanoid.Pacer, actionTimeout time.Duration, logger *zap.Logger) *Executor {
	if pacer == nil {
		pacer = humanoid.Instant()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if actionTimeout <= 0 {
		actionTimeout = 10 * time.Second
	}
	return &Executor{pacer: pacer, actionTimeout: actionTimeout, logger: logger.Named("interaction")}
}

// Select makes opt the selected state of its control. It returns true when
// the option is selected afterwards, including when it already was.
func (e *Executor) Select(ctx context.Context, page schemas.Page, opt schemas.Option) bool {
	if opt.Node == nil {
		e.logger.Warn("Option has no element to act on.", zap.String("letter", opt.Letter))
		return false
	}
	log := e.logger.With(zap.String("letter", opt.Letter), zap.String("target", opt.Node.Describe()))

	e.prepare(ctx, page, opt.Node, log)

	if on, err := opt.Node.Checked(ctx); err == nil && on {
		log.Debug("Option already selected.")
		return true
	}
	native := isNativeControl(ctx, opt.Node)

	for i, s := range selectCascade {
		attempt := i + 1
		err := e.attempt(ctx, page, opt.Node, s)
		if err == nil && native {
			err = verifyChecked(ctx, opt.Node)
		}
		if err == nil {
			log.Info("Option selected.", zap.Int("attempt", attempt), zap.String("strategy", s.name))
			return true
		}
		log.Warn("Selection strategy failed.",
			zap.Int("attempt", attempt),
			zap.String("strategy", s.name),
			zap.Error(err),
		)
		if abandon(ctx, err) {
			log.Warn("Target is gone; abandoning selection.", zap.Error(err))
			return false
		}
	}
	log.Error("All selection strategies failed.", zap.Int("attempts", len(selectCascade)))
	return false
}

// Click activates a navigation target, cover-page affordance or button. No
// selection state is read back.
func (e *Executor) Click(ctx context.Context, page schemas.Page, target schemas.Node) error {
	log := e.logger.With(zap.String("target", target.Describe()))
	e.prepare(ctx, page, target, log)

	var errs []error
	for i, s := range selectCascade[:clickStrategies] {
		err := e.attempt(ctx, page, target, s)
		if err == nil {
			log.Debug("Clicked.", zap.Int("attempt", i+1), zap.String("strategy", s.name))
			return nil
		}
		log.Debug("Click strategy failed.", zap.Int("attempt", i+1), zap.String("strategy", s.name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		if abandon(ctx, err) {
			break
		}
	}
	return fmt.Errorf("click %s: %w: %w", target.Describe(), schemas.ErrInteractionFailed, errors.Join(errs...))
}

// Type replaces the content of a text field.
func (e *Executor) Type(ctx context.Context, page schemas.Page, field schemas.Node, text string) error {
	log := e.logger.With(zap.String("target", field.Describe()))
	e.prepare(ctx, page, field, log)

	err := e.attempt(ctx, page, field, strategy{name: "type", run: func(ctx context.Context, page schemas.Page, target schemas.Node) error {
		return page.TypeText(ctx, target, text)
	}})
	if err != nil {
		log.Warn("Typing failed.", zap.Error(err))
		return fmt.Errorf("type into %s: %w: %w", field.Describe(), schemas.ErrInteractionFailed, err)
	}
	log.Info("Text entered.", zap.Int("chars", len([]rune(text))))
	return nil
}

// prepare scrolls the target to the middle of the viewport and lets the page
// settle. Failure here is not an attempt.
func (e *Executor) prepare(ctx context.Context, page schemas.Page, target schemas.Node, log *zap.Logger) {
	scrollCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()
	if err := page.ScrollIntoView(scrollCtx, target); err != nil {
		log.Debug("Scroll into view failed.", zap.Error(err))
	}
	if err := e.pacer.Settle(ctx); err != nil {
		log.Debug("Settle interrupted.", zap.Error(err))
	}
}

// attempt runs one strategy under its own deadline. A panic inside the
// strategy is a failed attempt.
func (e *Executor) attempt(ctx context.Context, page schemas.Page, target schemas.Node, s strategy) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.name, r)
		}
	}()
	return e.pacer.Around(attemptCtx, func(ctx context.Context) error {
		return s.run(ctx, page, target)
	})
}

func verifyChecked(ctx context.Context, n schemas.Node) error {
	on, err := n.Checked(ctx)
	if err != nil {
		return fmt.Errorf("read back: %w", err)
	}
	if !on {
		return errors.New("control did not become selected")
	}
	return nil
}

// isNativeControl reports whether n is an input radio or checkbox.
func isNativeControl(ctx context.Context, n schemas.Node) bool {
	if !strings.HasPrefix(n.Describe(), "input") {
		return false
	}
	t, _, err := n.Attribute(ctx, "type")
	if err != nil {
		return false
	}
	t = strings.ToLower(t)
	return t == "radio" || t == "checkbox"
}

// abandon reports errors after which no further strategy can succeed.
func abandon(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, schemas.ErrStaleElement) ||
		errors.Is(err, schemas.ErrSessionUnavailable)
}
