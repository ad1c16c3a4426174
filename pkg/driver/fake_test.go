package driver

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/robotdriver/pkg/htmlpage"
	"github.com/entrhq/robotdriver/pkg/page"
)

// route computes the next URL from the values filled so far.
type route func(values map[string]string) string

// fakeSite serves static HTML pages to fakeNavs. Clicking (or pressing Enter
// on) a selector listed in routes navigates to the URL the route returns.
type fakeSite struct {
	pages   map[string]string
	routes  map[string]route
	openErr error

	mu       sync.Mutex
	opened   int
	released int
}

func (s *fakeSite) Open(ctx context.Context) (page.Navigator, func(), error) {
	if s.openErr != nil {
		return nil, nil, s.openErr
	}
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	nav := &fakeNav{site: s, values: make(map[string]string)}
	return nav, func() {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	}, nil
}

func (s *fakeSite) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.released
}

type fakeNav struct {
	site    *fakeSite
	current *htmlpage.Page
	values  map[string]string
	visited []string
}

func (n *fakeNav) URL() string {
	if n.current == nil {
		return "about:blank"
	}
	return n.current.URL()
}

func (n *fakeNav) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	if n.current == nil {
		return nil, errors.New("no document")
	}
	return n.current.QueryAll(ctx, selector)
}

func (n *fakeNav) AccessibilityTree(ctx context.Context) (*page.AXNode, error) {
	if n.current == nil {
		return nil, errors.New("no document")
	}
	return n.current.AccessibilityTree(ctx)
}

func (n *fakeNav) Goto(ctx context.Context, url string, _ time.Duration) error {
	src, ok := n.site.pages[url]
	if !ok {
		return fmt.Errorf("GET %s: 404", url)
	}
	p, err := htmlpage.ParseString(url, src)
	if err != nil {
		return err
	}
	n.current = p
	n.visited = append(n.visited, url)
	return nil
}

func (n *fakeNav) require(ctx context.Context, selector string) error {
	nodes, err := n.QueryAll(ctx, selector)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no element matches %s", selector)
	}
	return nil
}

func (n *fakeNav) Fill(ctx context.Context, selector, value string) error {
	if err := n.require(ctx, selector); err != nil {
		return err
	}
	n.values[selector] = value
	return nil
}

func (n *fakeNav) Click(ctx context.Context, selector string) error {
	if err := n.require(ctx, selector); err != nil {
		return err
	}
	return n.follow(ctx, selector)
}

func (n *fakeNav) Press(ctx context.Context, selector, key string) error {
	if err := n.require(ctx, selector); err != nil {
		return err
	}
	if key != "Enter" {
		return nil
	}
	return n.follow(ctx, selector)
}

func (n *fakeNav) follow(ctx context.Context, selector string) error {
	r, ok := n.site.routes[selector]
	if !ok {
		return nil
	}
	return n.Goto(ctx, r(n.values), 0)
}

func (n *fakeNav) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.require(ctx, selector); err != nil {
		return fmt.Errorf("timeout waiting for %s: %w", selector, err)
	}
	return nil
}

type product struct {
	price, name string
}

var inventory = []product{
	{"Rs. 1000", "Sleeveless Dress"},
	{"Rs. 1500", "Stylish Dress"},
	{"Rs. 400", "Men Tshirt"},
}

// productGrid renders the products whose name contains term.
func productGrid(term string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Products</title></head><body><div class="features_items">`)
	for _, p := range inventory {
		if !strings.Contains(strings.ToLower(p.name), strings.ToLower(term)) {
			continue
		}
		fmt.Fprintf(&b, `<div class="product-image-wrapper"><div class="productinfo text-center">`+
			`<h2>%s</h2><p>%s</p><a href="#" class="btn add-to-cart">Add to cart</a></div></div>`,
			html.EscapeString(p.price), html.EscapeString(p.name))
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
