package htmlpage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	neturl "net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/entrhq/robotdriver/pkg/page"
)

// ErrNoDocument is returned by a Navigator that has not loaded a page yet.
var ErrNoDocument = errors.New("no document loaded")

// Browser opens Navigators over plain HTTP. No script runs: forms are
// submitted the way a browser without JavaScript would submit them.
type Browser struct {
	transport http.RoundTripper
	timeout   time.Duration
}

var _ page.Factory = (*Browser)(nil)

// NewBrowser creates a browser using transport (nil for the default one).
// timeout bounds navigations that do not set their own.
func NewBrowser(transport http.RoundTripper, timeout time.Duration) *Browser {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Browser{transport: transport, timeout: timeout}
}

// Open implements page.Factory. Each Navigator keeps its own cookies.
func (b *Browser) Open(ctx context.Context) (page.Navigator, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	nav := &Navigator{
		client:  &http.Client{Transport: b.transport, Jar: jar},
		timeout: b.timeout,
	}
	return nav, func() {}, nil
}

// Navigator drives a static document. Fill edits the parsed document in place,
// so a later submit sends the filled values.
type Navigator struct {
	client  *http.Client
	timeout time.Duration
	current *Page
}

var _ page.Navigator = (*Navigator)(nil)

// Current returns the loaded page, or nil.
func (n *Navigator) Current() *Page { return n.current }

// URL implements page.Page.
func (n *Navigator) URL() string {
	if n.current == nil {
		return "about:blank"
	}
	return n.current.URL()
}

// QueryAll implements page.Page.
func (n *Navigator) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	if n.current == nil {
		return nil, ErrNoDocument
	}
	return n.current.QueryAll(ctx, selector)
}

// AccessibilityTree implements page.Page.
func (n *Navigator) AccessibilityTree(ctx context.Context) (*page.AXNode, error) {
	if n.current == nil {
		return nil, ErrNoDocument
	}
	return n.current.AccessibilityTree(ctx)
}

// Goto implements page.Navigator.
func (n *Navigator) Goto(ctx context.Context, url string, timeout time.Duration) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return n.load(ctx, req, timeout)
}

func (n *Navigator) load(ctx context.Context, req *http.Request, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = n.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	p, err := do(n.client, req.WithContext(ctx))
	if err != nil {
		return err
	}
	n.current = p
	return nil
}

// first returns the first element matching selector.
func (n *Navigator) first(ctx context.Context, selector string) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.current == nil {
		return nil, ErrNoDocument
	}
	nodes, err := query(n.current.doc, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return nodes[0], nil
}

// Fill implements page.Navigator.
func (n *Navigator) Fill(ctx context.Context, selector, value string) error {
	el, err := n.first(ctx, selector)
	if err != nil {
		return err
	}
	switch el.DataAtom {
	case atom.Input:
		setAttr(el, "value", value)
	case atom.Textarea:
		for c := el.FirstChild; c != nil; c = el.FirstChild {
			el.RemoveChild(c)
		}
		el.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	default:
		return fmt.Errorf("element %s is not fillable", el.Data)
	}
	return nil
}

// Click implements page.Navigator. Links are followed and submit buttons
// submit their form; other elements are inert.
func (n *Navigator) Click(ctx context.Context, selector string) error {
	el, err := n.first(ctx, selector)
	if err != nil {
		return err
	}
	switch {
	case el.DataAtom == atom.A && getAttr(el, "href") != "":
		target, err := n.resolve(getAttr(el, "href"))
		if err != nil {
			return err
		}
		return n.Goto(ctx, target, 0)
	case isSubmitter(el):
		if form := formOf(el); form != nil {
			return n.submit(ctx, form, el)
		}
	}
	return nil
}

// Press implements page.Navigator. Enter in a form control submits the form.
func (n *Navigator) Press(ctx context.Context, selector, key string) error {
	el, err := n.first(ctx, selector)
	if err != nil {
		return err
	}
	if key != "Enter" || el.DataAtom == atom.Textarea {
		return nil
	}
	if form := formOf(el); form != nil {
		return n.submit(ctx, form, nil)
	}
	return nil
}

// WaitFor implements page.Navigator. A static document never changes, so the
// selector either matches now or the wait fails.
func (n *Navigator) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := n.first(ctx, selector); err != nil {
		return fmt.Errorf("timeout %s waiting for %s: %w", timeout, selector, err)
	}
	return nil
}

func (n *Navigator) resolve(ref string) (string, error) {
	base, err := neturl.Parse(n.URL())
	if err != nil {
		return "", fmt.Errorf("failed to parse page URL: %w", err)
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", ref, err)
	}
	return u.String(), nil
}

// submit sends form the way a browser does, including the submitter's own
// name and value when it has them.
func (n *Navigator) submit(ctx context.Context, form, submitter *html.Node) error {
	action, err := n.resolve(getAttr(form, "action"))
	if err != nil {
		return err
	}
	values := formValues(form)
	if submitter != nil && getAttr(submitter, "name") != "" {
		values.Add(getAttr(submitter, "name"), getAttr(submitter, "value"))
	}

	var req *http.Request
	if strings.EqualFold(getAttr(form, "method"), http.MethodPost) {
		req, err = http.NewRequest(http.MethodPost, action, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		var u *neturl.URL
		if u, err = neturl.Parse(action); err == nil {
			u.RawQuery = values.Encode()
			u.Fragment = ""
			req, err = http.NewRequest(http.MethodGet, u.String(), nil)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create form request: %w", err)
	}
	return n.load(ctx, req, 0)
}

func isSubmitter(el *html.Node) bool {
	typ := strings.ToLower(getAttr(el, "type"))
	switch el.DataAtom {
	case atom.Button:
		return typ == "" || typ == "submit"
	case atom.Input:
		return typ == "submit" || typ == "image"
	}
	return false
}

func formOf(el *html.Node) *html.Node {
	for p := el; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			return p
		}
	}
	return nil
}

// formValues collects the successful controls of form.
func formValues(form *html.Node) neturl.Values {
	values := neturl.Values{}
	walkElements(form, func(el *html.Node) bool {
		name := getAttr(el, "name")
		if name == "" {
			return true
		}
		if _, disabled := lookupAttr(el, "disabled"); disabled {
			return true
		}
		switch el.DataAtom {
		case atom.Input:
			switch strings.ToLower(getAttr(el, "type")) {
			case "submit", "button", "image", "reset", "file":
			case "checkbox", "radio":
				if _, checked := lookupAttr(el, "checked"); checked {
					val, ok := lookupAttr(el, "value")
					if !ok {
						val = "on"
					}
					values.Add(name, val)
				}
			default:
				values.Add(name, getAttr(el, "value"))
			}
		case atom.Textarea:
			values.Add(name, textContent(el))
		case atom.Select:
			if opt := selectedOption(el); opt != nil {
				val, ok := lookupAttr(opt, "value")
				if !ok {
					val = collapseSpace(textContent(opt))
				}
				values.Add(name, val)
			}
		}
		return true
	})
	return values
}

func selectedOption(sel *html.Node) *html.Node {
	var first, selected *html.Node
	walkElements(sel, func(el *html.Node) bool {
		if el.DataAtom != atom.Option {
			return true
		}
		if first == nil {
			first = el
		}
		if _, ok := lookupAttr(el, "selected"); ok && selected == nil {
			selected = el
		}
		return true
	})
	if selected != nil {
		return selected
	}
	return first
}

func setAttr(n *html.Node, key, val string) {
	for i, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
