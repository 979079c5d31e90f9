// internal/browser/live/node.go
package live

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/coursepilot/api/schemas"
)

// node is a remote element handle bound to the page generation it was
// resolved in.
type node struct {
	p     *Page
	id    runtime.RemoteObjectID
	gen   uint64
	key   string
	label string
}

var _ schemas.Node = (*node)(nil)

// wrap describes obj once so the node has a stable key and a log label.
func (p *Page) wrap(ctx context.Context, gen uint64, obj *runtime.RemoteObject) (*node, error) {
	var desc *cdp.Node
	err := p.run(ctx, p.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		desc, err = dom.DescribeNode().WithObjectID(obj.ObjectID).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("describe element: %w", err)
	}
	return &node{
		p:     p,
		id:    obj.ObjectID,
		gen:   gen,
		key:   fmt.Sprintf("%d:%d", gen, desc.BackendNodeID),
		label: describe(desc),
	}, nil
}

// describe renders a node as tag#id.class for logs.
func describe(n *cdp.Node) string {
	tag := strings.ToLower(n.LocalName)
	if tag == "" {
		tag = strings.ToLower(n.NodeName)
	}
	attrs := attributeMap(n.Attributes)
	if id := attrs["id"]; id != "" {
		return tag + "#" + id
	}
	if tid := attrs["data-testid"]; tid != "" {
		return fmt.Sprintf("%s[data-testid=%q]", tag, tid)
	}
	if class := strings.Fields(attrs["class"]); len(class) > 0 {
		return tag + "." + class[0]
	}
	return tag
}

// attributeMap converts the flat name/value list of a DOM node into a map.
func attributeMap(flat []string) map[string]string {
	attrs := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		attrs[flat[i]] = flat[i+1]
	}
	return attrs
}

func (n *node) check() error {
	if n.gen != n.p.gen.Load() {
		return fmt.Errorf("%s: %w", n.label, schemas.ErrStaleElement)
	}
	return nil
}

func (n *node) call(ctx context.Context, fn string) (*runtime.RemoteObject, error) {
	if err := n.check(); err != nil {
		return nil, err
	}
	return n.p.callObject(ctx, n.id, fn)
}

func (n *node) value(ctx context.Context, fn string, out interface{}) error {
	if err := n.check(); err != nil {
		return err
	}
	return n.p.callValue(ctx, n.id, fn, out)
}

func (n *node) QueryAll(ctx context.Context, selector string) ([]schemas.Node, error) {
	arr, err := n.call(ctx, fmt.Sprintf(jsQueryAll, jsString(selector)))
	if err != nil {
		return nil, fmt.Errorf("query %q in %s: %w", selector, n.label, err)
	}
	return n.p.expand(ctx, n.gen, arr)
}

func (n *node) single(ctx context.Context, fn, what string) (schemas.Node, error) {
	obj, err := n.call(ctx, fn)
	if err != nil {
		return nil, err
	}
	if isNull(obj) {
		return nil, fmt.Errorf("%s from %s: %w", what, n.label, schemas.ErrElementNotFound)
	}
	return n.p.wrap(ctx, n.gen, obj)
}

func (n *node) Closest(ctx context.Context, selector string) (schemas.Node, error) {
	return n.single(ctx, fmt.Sprintf(jsClosest, jsString(selector)), fmt.Sprintf("closest %q", selector))
}

func (n *node) Parent(ctx context.Context) (schemas.Node, error) {
	return n.single(ctx, jsParent, "parent")
}

func (n *node) Text(ctx context.Context) (string, error) {
	var text string
	if err := n.value(ctx, jsText, &text); err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(text), " "), nil
}

func (n *node) Attribute(ctx context.Context, name string) (string, bool, error) {
	var res struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := n.value(ctx, fmt.Sprintf(jsAttribute, jsString(name)), &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Present, nil
}

func (n *node) Checked(ctx context.Context) (bool, error) {
	var on bool
	err := n.value(ctx, jsChecked, &on)
	return on, err
}

func (n *node) Key() string      { return n.key }
func (n *node) Describe() string { return n.label }

// own asserts that sn is a live node of this page.
func (p *Page) own(sn schemas.Node) (*node, error) {
	n, ok := sn.(*node)
	if !ok || n.p != p {
		return nil, fmt.Errorf("element %s belongs to another page: %w", sn.Describe(), schemas.ErrStaleElement)
	}
	return n, n.check()
}
