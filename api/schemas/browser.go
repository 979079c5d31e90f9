package schemas

import (
	"context"
	"time"
)

// -- Page Interaction Interfaces --

// Node is a reference to one element of the rendered document. A Node belongs
// to one page load; after the page navigates or the session is re-initialized
// every method returns ErrStaleElement.
type Node interface {
	// QueryAll returns descendants matching a CSS selector, in document order.
	// No match is an empty slice, not an error.
	QueryAll(ctx context.Context, selector string) ([]Node, error)
	// Closest returns the nearest inclusive ancestor matching selector, or ErrElementNotFound.
	Closest(ctx context.Context, selector string) (Node, error)
	// Parent returns the parent element, or ErrElementNotFound at the root.
	Parent(ctx context.Context) (Node, error)
	// Text returns the element's visible text with whitespace collapsed.
	Text(ctx context.Context) (string, error)
	// Attribute returns an attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	// Checked reports whether the control (or the control it wraps) is selected.
	Checked(ctx context.Context) (bool, error)
	// Key identifies the element within its page load.
	Key() string
	// Describe returns a short label such as "input#q1" for logs.
	Describe() string
}

// Gestures are the primitive ways of acting on an element.
type Gestures interface {
	ScrollIntoView(ctx context.Context, n Node) error
	// ScriptClick calls the element's click() from page script.
	ScriptClick(ctx context.Context, n Node) error
	// NativeClick dispatches a trusted pointer click at the element's center.
	NativeClick(ctx context.Context, n Node) error
	// PointerClick moves the pointer along a path to the element, then presses and releases.
	PointerClick(ctx context.Context, n Node) error
	// ForceSelect marks the control checked and dispatches input and change events.
	ForceSelect(ctx context.Context, n Node) error
	// TypeText replaces the value of a text field by typing.
	TypeText(ctx context.Context, n Node, text string) error
}

// Page is one browser tab showing course content.
type Page interface {
	Gestures

	// QueryAll runs a CSS selector against the whole document.
	QueryAll(ctx context.Context, selector string) ([]Node, error)
	// ElementByID returns the element with the given id, or ErrElementNotFound.
	ElementByID(ctx context.Context, id string) (Node, error)
	// Location returns the current URL.
	Location(ctx context.Context) (string, error)
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// WaitFor polls until selector matches or timeout elapses, then fails with ErrElementNotFound.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Generation increases on every top-level navigation. Nodes from an older
	// generation are stale.
	Generation() uint64
}

// Screenshotter is implemented by pages that can capture the viewport.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}
