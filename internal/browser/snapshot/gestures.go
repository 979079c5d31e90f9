package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

var errNotInteractable = errors.New("element is not interactable")

// own verifies that n came from this browser and is still current. On
// success the browser lock is held.
func (b *Browser) own(ctx context.Context, n schemas.Node) (*node, error) {
	sn, ok := n.(*node)
	if !ok || sn.b != b {
		return nil, fmt.Errorf("node %s does not belong to this page", n.Describe())
	}
	if err := sn.live(ctx); err != nil {
		return nil, err
	}
	return sn, nil
}

// ScrollIntoView implements schemas.Gestures. A static document has no viewport.
func (b *Browser) ScrollIntoView(ctx context.Context, n schemas.Node) error {
	if _, err := b.own(ctx, n); err != nil {
		return err
	}
	b.mu.Unlock()
	return nil
}

// ScriptClick implements schemas.Gestures. Script clicks ignore visibility,
// the way element.click() does.
func (b *Browser) ScriptClick(ctx context.Context, n schemas.Node) error {
	sn, err := b.own(ctx, n)
	if err != nil {
		return err
	}
	defer b.mu.Unlock()
	if _, disabled := sn.sel.Attr("disabled"); disabled {
		return fmt.Errorf("script click on %s: element is disabled", sn.Describe())
	}
	return b.activateLocked(sn.sel)
}

// NativeClick implements schemas.Gestures. It fails on hidden elements and
// zero-opacity overlays, like a trusted pointer event would miss them.
func (b *Browser) NativeClick(ctx context.Context, n schemas.Node) error {
	return b.pointerClick(ctx, n, "native click")
}

// PointerClick implements schemas.Gestures.
func (b *Browser) PointerClick(ctx context.Context, n schemas.Node) error {
	return b.pointerClick(ctx, n, "pointer click")
}

func (b *Browser) pointerClick(ctx context.Context, n schemas.Node, gesture string) error {
	sn, err := b.own(ctx, n)
	if err != nil {
		return err
	}
	defer b.mu.Unlock()
	if hidden(sn.sel) {
		return fmt.Errorf("%s on %s: %w", gesture, sn.Describe(), errNotInteractable)
	}
	if _, disabled := sn.sel.Attr("disabled"); disabled {
		return fmt.Errorf("%s on %s: element is disabled", gesture, sn.Describe())
	}
	return b.activateLocked(sn.sel)
}

// ForceSelect implements schemas.Gestures.
func (b *Browser) ForceSelect(ctx context.Context, n schemas.Node) error {
	sn, err := b.own(ctx, n)
	if err != nil {
		return err
	}
	defer b.mu.Unlock()
	control := b.controlLocked(sn.sel)
	if control == nil {
		return fmt.Errorf("force select on %s: no selectable control", sn.Describe())
	}
	b.checkLocked(control)
	return nil
}

// TypeText implements schemas.Gestures.
func (b *Browser) TypeText(ctx context.Context, n schemas.Node, text string) error {
	sn, err := b.own(ctx, n)
	if err != nil {
		return err
	}
	defer b.mu.Unlock()
	switch goquery.NodeName(sn.sel) {
	case "textarea":
		sn.sel.SetText(text)
		return nil
	case "input":
		switch strings.ToLower(sn.sel.AttrOr("type", "text")) {
		case "text", "search", "email", "number", "":
			sn.sel.SetAttr("value", text)
			return nil
		}
	}
	if v, ok := sn.sel.Attr("contenteditable"); ok && v != "false" {
		sn.sel.SetText(text)
		return nil
	}
	return fmt.Errorf("type into %s: not a text field", sn.Describe())
}

// activateLocked applies the default action of a click: toggle controls,
// activate a label's control, follow links.
func (b *Browser) activateLocked(sel *goquery.Selection) error {
	if control := b.controlLocked(sel); control != nil {
		if strings.EqualFold(control.AttrOr("type", ""), "checkbox") {
			if _, on := control.Attr("checked"); on {
				control.RemoveAttr("checked")
			} else {
				control.SetAttr("checked", "checked")
			}
		} else {
			b.checkLocked(control)
		}
		return nil
	}
	link := sel.Closest("a[href], [data-href]")
	if link.Length() == 0 {
		return nil
	}
	href := link.AttrOr("href", link.AttrOr("data-href", ""))
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return nil
	}
	return b.navigateLocked(href)
}

// checkLocked marks a control checked; radios uncheck the rest of their group.
func (b *Browser) checkLocked(control *goquery.Selection) {
	if strings.EqualFold(control.AttrOr("type", ""), "radio") {
		if name := control.AttrOr("name", ""); name != "" {
			root := control.Closest("form")
			if root.Length() == 0 {
				root = b.doc.Selection
			}
			root.Find(`input[type="radio"]`).Each(func(_ int, r *goquery.Selection) {
				if r.AttrOr("name", "") == name {
					r.RemoveAttr("checked")
				}
			})
		}
	}
	control.SetAttr("checked", "checked")
}

// hidden reports whether the element or an ancestor cannot receive pointer events.
func hidden(sel *goquery.Selection) bool {
	for cur := sel; cur.Length() > 0; cur = cur.Parent() {
		if _, ok := cur.Attr("hidden"); ok {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(cur.AttrOr("style", "")), " ", "")
		for _, marker := range []string{"display:none", "visibility:hidden", "opacity:0;", "pointer-events:none"} {
			if strings.Contains(style+";", marker) {
				return true
			}
		}
	}
	return false
}
