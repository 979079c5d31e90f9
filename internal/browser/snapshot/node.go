package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/coursepilot/api/schemas"
	"github.com/xkilldash9x/coursepilot/internal/browser/selectors"
)

// node is one element of a Browser document, bound to the generation it was
// resolved in.
type node struct {
	b   *Browser
	sel *goquery.Selection
	gen uint64
}

var _ schemas.Node = (*node)(nil)

// live takes the browser lock and verifies the node still belongs to the
// current document. Callers must unlock on success.
func (n *node) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.b.mu.Lock()
	if n.b.closed {
		n.b.mu.Unlock()
		return schemas.ErrSessionUnavailable
	}
	if n.gen != n.b.gen {
		n.b.mu.Unlock()
		return fmt.Errorf("%s: %w", n.Describe(), schemas.ErrStaleElement)
	}
	return nil
}

func (n *node) QueryAll(ctx context.Context, selector string) ([]schemas.Node, error) {
	if err := n.live(ctx); err != nil {
		return nil, err
	}
	defer n.b.mu.Unlock()
	return n.b.wrapLocked(n.sel.Find(selector)), nil
}

func (n *node) Closest(ctx context.Context, selector string) (schemas.Node, error) {
	if err := n.live(ctx); err != nil {
		return nil, err
	}
	defer n.b.mu.Unlock()
	found := n.sel.Closest(selector)
	if found.Length() == 0 {
		return nil, fmt.Errorf("closest %q from %s: %w", selector, n.Describe(), schemas.ErrElementNotFound)
	}
	return &node{b: n.b, sel: found.First(), gen: n.gen}, nil
}

func (n *node) Parent(ctx context.Context) (schemas.Node, error) {
	if err := n.live(ctx); err != nil {
		return nil, err
	}
	defer n.b.mu.Unlock()
	p := n.sel.Parent()
	if p.Length() == 0 || goquery.NodeName(p) == "#document" {
		return nil, fmt.Errorf("parent of %s: %w", n.Describe(), schemas.ErrElementNotFound)
	}
	return &node{b: n.b, sel: p, gen: n.gen}, nil
}

func (n *node) Text(ctx context.Context) (string, error) {
	if err := n.live(ctx); err != nil {
		return "", err
	}
	defer n.b.mu.Unlock()
	return collapse(n.sel.Text()), nil
}

func (n *node) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := n.live(ctx); err != nil {
		return "", false, err
	}
	defer n.b.mu.Unlock()
	v, ok := n.sel.Attr(name)
	return v, ok, nil
}

func (n *node) Checked(ctx context.Context) (bool, error) {
	if err := n.live(ctx); err != nil {
		return false, err
	}
	defer n.b.mu.Unlock()
	if control := n.b.controlLocked(n.sel); control != nil {
		_, checked := control.Attr("checked")
		return checked, nil
	}
	if v, ok := n.sel.Attr("aria-checked"); ok {
		return v == "true", nil
	}
	return false, nil
}

func (n *node) Key() string {
	if n.sel.Length() == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%p", n.gen, n.sel.Get(0))
}

func (n *node) Describe() string {
	if n.sel.Length() == 0 {
		return "<empty>"
	}
	desc := goquery.NodeName(n.sel)
	if id, ok := n.sel.Attr("id"); ok && id != "" {
		return desc + "#" + id
	}
	if class := strings.Fields(n.sel.AttrOr("class", "")); len(class) > 0 {
		return desc + "." + class[0]
	}
	return desc
}

// controlLocked resolves the native radio/checkbox an element stands for: the
// element itself, the control a label points at, or the first control nested
// inside it.
func (b *Browser) controlLocked(sel *goquery.Selection) *goquery.Selection {
	if isCheckable(sel) {
		return sel
	}
	if goquery.NodeName(sel) == "label" {
		if id, ok := sel.Attr("for"); ok && id != "" {
			if target := b.doc.Find(selectors.ByID(id)).First(); target.Length() > 0 && isCheckable(target) {
				return target
			}
		}
	}
	if nested := sel.Find(`input[type="radio"], input[type="checkbox"]`).First(); nested.Length() > 0 {
		return nested
	}
	return nil
}

func isCheckable(sel *goquery.Selection) bool {
	if goquery.NodeName(sel) != "input" {
		return false
	}
	t := strings.ToLower(sel.AttrOr("type", ""))
	return t == "radio" || t == "checkbox"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
