// Package page defines the browser page capability the rest of robotdriver
// consumes. Browser engines (playwright, rod) and the static HTML page
// implement it; snapshot building and catalog matching only see these
// interfaces.
//
// A Page is owned by one operation at a time. Implementations are not required
// to be safe for concurrent use.
package page

import (
	"context"
	"time"
)

// Page is a read-only view of a live document.
type Page interface {
	// URL returns the current document URL
	URL() string

	// QueryAll returns all nodes matching a CSS selector, in document order
	QueryAll(ctx context.Context, selector string) ([]Node, error)

	// AccessibilityTree returns the root of the page's accessibility tree
	AccessibilityTree(ctx context.Context) (*AXNode, error)
}

// Node is a borrowed handle to one element of a Page. It is only valid while
// the page it came from is unchanged.
type Node interface {
	// TagName returns the lower-cased element name
	TagName(ctx context.Context) (string, error)

	// Attribute returns the attribute value, or "" when it is absent
	Attribute(ctx context.Context, name string) (string, error)

	// InnerText returns the rendered text of the element and its descendants
	InnerText(ctx context.Context) (string, error)

	// QueryAll returns descendants matching a CSS selector, in document order
	QueryAll(ctx context.Context, selector string) ([]Node, error)
}

// Navigator is a Page that can also be driven. Only the login, search and goal
// steps use it.
type Navigator interface {
	Page

	// Goto navigates to url and waits for the load event
	Goto(ctx context.Context, url string, timeout time.Duration) error

	// Fill replaces the value of the input matched by selector
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the element matched by selector
	Click(ctx context.Context, selector string) error

	// Press sends a key (e.g. "Enter") to the element matched by selector
	Press(ctx context.Context, selector, key string) error

	// WaitFor waits until selector matches an attached element
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
}

// Factory opens pages owned by the caller. The returned release function
// closes the page and everything created for it.
type Factory interface {
	Open(ctx context.Context) (Navigator, func(), error)
}
