// internal/interaction/strategies.go
package interaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/selectors"
)

// errNotApplicable marks a strategy that has nothing to act on for this
// target, such as a label click on an unlabeled control. It still counts as
// a failed attempt.
var errNotApplicable = errors.New("strategy not applicable")

// optionContainerSelector matches the wrappers course pages draw around one
// option.
const optionContainerSelector = `[role="radio"], [role="checkbox"], [class*="Option"], [data-testid*="option"]`

type strategy struct {
	name string
	run  func(ctx context.Context, page schemas.Page, target schemas.Node) error
}

// selectCascade is the ordered list tried by Select. Click uses the first
// five, since direct state mutation only means something for controls.
var selectCascade = []strategy{
	{name: "script_click", run: func(ctx context.Context, page schemas.Page, target schemas.Node) error {
		return page.ScriptClick(ctx, target)
	}},
	{name: "native_click", run: func(ctx context.Context, page schemas.Page, target schemas.Node) error {
		return page.NativeClick(ctx, target)
	}},
	{name: "pointer_click", run: func(ctx context.Context, page schemas.Page, target schemas.Node) error {
		return page.PointerClick(ctx, target)
	}},
	{name: "label_click", run: clickLabel},
	{name: "container_click", run: clickContainer},
	{name: "force_select", run: func(ctx context.Context, page schemas.Page, target schemas.Node) error {
		return page.ForceSelect(ctx, target)
	}},
}

const clickStrategies = 5

// clickLabel activates the label that owns target: the enclosing label, or
// one pointing at target's id.
func clickLabel(ctx context.Context, page schemas.Page, target schemas.Node) error {
	label, err := target.Closest(ctx, "label")
	if errors.Is(err, schemas.ErrElementNotFound) {
		label, err = labelFor(ctx, page, target)
	}
	if err != nil {
		return err
	}
	if label.Key() == target.Key() {
		return fmt.Errorf("%s is its own label: %w", target.Describe(), errNotApplicable)
	}
	return page.ScriptClick(ctx, label)
}

func labelFor(ctx context.Context, page schemas.Page, target schemas.Node) (schemas.Node, error) {
	id, ok, err := target.Attribute(ctx, "id")
	if err != nil {
		return nil, err
	}
	if !ok || id == "" {
		return nil, fmt.Errorf("no label for %s: %w", target.Describe(), errNotApplicable)
	}
	labels, err := page.QueryAll(ctx, "label"+selectors.AttrEquals("for", id))
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no label for %s: %w", target.Describe(), errNotApplicable)
	}
	return labels[0], nil
}

// clickContainer activates the option wrapper around target.
func clickContainer(ctx context.Context, page schemas.Page, target schemas.Node) error {
	start, err := target.Parent(ctx)
	if errors.Is(err, schemas.ErrElementNotFound) {
		return fmt.Errorf("%s has no container: %w", target.Describe(), errNotApplicable)
	}
	if err != nil {
		return err
	}
	container, err := start.Closest(ctx, optionContainerSelector)
	if errors.Is(err, schemas.ErrElementNotFound) {
		return fmt.Errorf("%s has no option container: %w", target.Describe(), errNotApplicable)
	}
	if err != nil {
		return err
	}
	return page.ScriptClick(ctx, container)
}
