// internal/browser/live/gestures.go
package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/humanoid"
)

var (
	errNotInteractable = errors.New("element is not interactable")
	errNotApplicable   = errors.New("gesture does not apply to element")
)

type geometry struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
	Hit     bool    `json:"hit"`
}

// target returns the click point of n, failing when a pointer could not reach it.
func (p *Page) target(ctx context.Context, n *node) (humanoid.Point, error) {
	var g geometry
	if err := p.callValue(ctx, n.id, jsGeometry, &g); err != nil {
		return humanoid.Point{}, err
	}
	if !g.Visible {
		return humanoid.Point{}, fmt.Errorf("%s is hidden: %w", n.label, errNotInteractable)
	}
	if !g.Hit {
		return humanoid.Point{}, fmt.Errorf("%s is covered by another element: %w", n.label, errNotInteractable)
	}
	return humanoid.Point{X: g.X, Y: g.Y}, nil
}

// ScrollIntoView implements schemas.Gestures.
func (p *Page) ScrollIntoView(ctx context.Context, sn schemas.Node) error {
	n, err := p.own(sn)
	if err != nil {
		return err
	}
	var ok bool
	return p.callValue(ctx, n.id, jsScroll, &ok)
}

// ScriptClick implements schemas.Gestures.
func (p *Page) ScriptClick(ctx context.Context, sn schemas.Node) error {
	n, err := p.own(sn)
	if err != nil {
		return err
	}
	var ok bool
	if err := p.callValue(ctx, n.id, jsScriptClick, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is disabled: %w", n.label, errNotInteractable)
	}
	return nil
}

// NativeClick implements schemas.Gestures.
func (p *Page) NativeClick(ctx context.Context, sn schemas.Node) error {
	n, err := p.own(sn)
	if err != nil {
		return err
	}
	pt, err := p.target(ctx, n)
	if err != nil {
		return err
	}
	if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.MouseClickXY(pt.X, pt.Y)); err != nil {
		return err
	}
	p.setMouse(pt)
	return nil
}

// PointerClick implements schemas.Gestures. The pointer travels from its last
// position along a curved path before pressing.
func (p *Page) PointerClick(ctx context.Context, sn schemas.Node) error {
	n, err := p.own(sn)
	if err != nil {
		return err
	}
	end, err := p.target(ctx, n)
	if err != nil {
		return err
	}

	p.mu.Lock()
	start := p.mouse
	p.mu.Unlock()

	path := p.pacer.Path(start, end)
	step := p.pacer.TravelTime(start.Dist(end)) / time.Duration(len(path))
	for _, pt := range path {
		if err := p.run(ctx, p.cfg.ActionTimeout, input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y)); err != nil {
			return fmt.Errorf("move pointer: %w", err)
		}
		if err := p.pacer.Sleep(ctx, step); err != nil {
			return err
		}
	}
	p.setMouse(end)

	press := input.DispatchMouseEvent(input.MousePressed, end.X, end.Y).WithButton(input.Left).WithButtons(1).WithClickCount(1)
	if err := p.run(ctx, p.cfg.ActionTimeout, press); err != nil {
		return fmt.Errorf("press: %w", err)
	}
	if err := p.pacer.Sleep(ctx, p.pacer.HoldDuration()); err != nil {
		// Never leave the button held down.
		p.logger.Debug("Hold interrupted; releasing button.", zap.Error(err))
	}
	release := input.DispatchMouseEvent(input.MouseReleased, end.X, end.Y).WithButton(input.Left).WithClickCount(1)
	if err := p.run(Detach(ctx), p.cfg.ActionTimeout, release); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return ctx.Err()
}

func (p *Page) setMouse(v humanoid.Point) {
	p.mu.Lock()
	p.mouse = v
	p.mu.Unlock()
}

// ForceSelect implements schemas.Gestures.
func (p *Page) ForceSelect(ctx context.Context, sn schemas.Node) error {
	n, err := p.own(sn)
	if err != nil {
		return err
	}
	var ok bool
	if err := p.callValue(ctx, n.id, jsForceSelect, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s has no radio or checkbox control: %w", n.label, errNotApplicable)
	}
	return nil
}

// TypeText implements schemas.Gestures.
func (p *Page) TypeText(ctx context.Context, sn schemas.Node, text string) error {
	n, err := p.own(sn)
	if err != nil {
		return err
	}
	var ok bool
	if err := p.callValue(ctx, n.id, jsClearField, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not a text field: %w", n.label, errNotApplicable)
	}
	for _, r := range text {
		if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("type into %s: %w", n.label, err)
		}
		if err := p.pacer.CognitivePause(ctx, 70, 25); err != nil {
			return err
		}
	}
	return p.callValue(ctx, n.id, jsCommitField, &ok)
}
