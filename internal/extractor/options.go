// internal/extractor/options.go
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/selectors"
)

// resolved is what a scope holds: options, or a text field, or nothing.
type resolved struct {
	options []schemas.Option
	kind    schemas.ResponseKind
	input   schemas.Node
	// via names the rule that produced the result; empty when nothing was found.
	via string
}

func (r resolved) empty() bool { return len(r.options) == 0 && r.input == nil }

// resolveOptions tries native controls, then icon stand-ins, then a text field.
// Controls and icon owners in claimed belong to another unit and are skipped.
func resolveOptions(ctx context.Context, page schemas.Page, scope schemas.Node, claimed map[string]bool) (resolved, error) {
	r, err := controlOptions(ctx, page, scope, claimed)
	if err != nil || !r.empty() {
		return r, err
	}
	r, err = iconOptions(ctx, scope, claimed)
	if err != nil || !r.empty() {
		return r, err
	}
	fields, err := scope.QueryAll(ctx, textFieldSelector)
	if err != nil {
		return resolved{}, err
	}
	if len(fields) > 0 {
		return resolved{kind: schemas.FreeText, input: fields[0], via: StrategyContainer}, nil
	}
	return resolved{kind: schemas.SingleSelect}, nil
}

// controlOptions pairs radio and checkbox inputs with their labels.
func controlOptions(ctx context.Context, page schemas.Page, scope schemas.Node, claimed map[string]bool) (resolved, error) {
	inputs, err := scope.QueryAll(ctx, controlSelector)
	if err != nil {
		return resolved{}, err
	}
	r := resolved{kind: schemas.SingleSelect}
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if seen[in.Key()] || claimed[in.Key()] {
			continue
		}
		seen[in.Key()] = true

		if typ, _, err := in.Attribute(ctx, "type"); err != nil {
			return resolved{}, err
		} else if strings.EqualFold(typ, "checkbox") {
			r.kind = schemas.MultiSelect
		}

		label, err := labelFor(ctx, page, in)
		if err != nil {
			return resolved{}, err
		}
		text := ""
		if label != nil {
			if text, err = optionText(ctx, label); err != nil {
				return resolved{}, err
			}
		}
		if text == "" {
			text = fmt.Sprintf("Option %d", len(r.options)+1)
		}
		r.options = append(r.options, schemas.Option{Text: text, Node: in})
	}
	if len(r.options) > 0 {
		r.via = StrategyStructured
	}
	return r, nil
}

// labelFor returns the enclosing label of a control, else the label that
// points at it by id, else nil.
func labelFor(ctx context.Context, page schemas.Page, in schemas.Node) (schemas.Node, error) {
	label, err := in.Closest(ctx, "label")
	if err == nil {
		return label, nil
	}
	if !errors.Is(err, schemas.ErrElementNotFound) {
		return nil, err
	}
	id, ok, err := in.Attribute(ctx, "id")
	if err != nil || !ok || id == "" {
		return nil, err
	}
	labels, err := page.QueryAll(ctx, "label"+selectors.AttrEquals("for", id))
	if err != nil || len(labels) == 0 {
		return nil, err
	}
	return labels[0], nil
}

// iconOptions handles options drawn as vector icons instead of inputs. The
// clickable owner of each icon becomes the option.
func iconOptions(ctx context.Context, scope schemas.Node, claimed map[string]bool) (resolved, error) {
	icons, err := scope.QueryAll(ctx, iconSelector)
	if err != nil {
		return resolved{}, err
	}
	r := resolved{kind: schemas.SingleSelect}
	seen := make(map[string]bool, len(icons))
	for _, icon := range icons {
		owner, err := icon.Closest(ctx, iconOwnerSelector)
		if errors.Is(err, schemas.ErrElementNotFound) {
			owner, err = icon.Parent(ctx)
		}
		if err != nil {
			return resolved{}, err
		}
		// Checked and unchecked glyphs of one option share an owner.
		if seen[owner.Key()] || claimed[owner.Key()] {
			continue
		}
		seen[owner.Key()] = true

		if ref, _, err := icon.Attribute(ctx, "aria-labelledby"); err != nil {
			return resolved{}, err
		} else if strings.Contains(ref, "Checkbox") {
			r.kind = schemas.MultiSelect
		}

		text, err := optionText(ctx, owner)
		if err != nil {
			return resolved{}, err
		}
		if text == "" {
			text = fmt.Sprintf("Option %d", len(r.options)+1)
		}
		r.options = append(r.options, schemas.Option{Text: text, Node: owner})
	}
	if len(r.options) > 0 {
		r.via = StrategyIconographic
	}
	return r, nil
}

// optionText prefers the rich-text viewer inside n over its raw text.
func optionText(ctx context.Context, n schemas.Node) (string, error) {
	viewers, err := n.QueryAll(ctx, viewerSelector)
	if err != nil {
		return "", err
	}
	for _, v := range viewers {
		text, err := v.Text(ctx)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return n.Text(ctx)
}

// insideOption reports whether n sits in an option container.
func insideOption(ctx context.Context, n schemas.Node) (bool, error) {
	_, err := n.Closest(ctx, optionSelector)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, schemas.ErrElementNotFound) {
		return false, nil
	}
	return false, err
}
