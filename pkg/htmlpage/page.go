// Package htmlpage implements the page capability over a static HTML document.
//
// It lets snapshots and catalog matches run without a browser: against a
// saved page, a fixture in tests, or a document fetched over plain HTTP.
// Queries accept full CSS selector groups; the accessibility tree is derived
// from implicit ARIA roles.
package htmlpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/entrhq/robotdriver/pkg/page"
)

const maxDocumentBytes = 32 << 20

// Page is a parsed document.
type Page struct {
	url string
	doc *html.Node
}

var _ page.Page = (*Page)(nil)

// Parse reads an HTML document that was served from url.
func Parse(url string, r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Page{url: url, doc: doc}, nil
}

// ParseString is Parse over a string.
func ParseString(url, src string) (*Page, error) {
	return Parse(url, strings.NewReader(src))
}

// Load parses the file at path. An empty url defaults to a file:// URL.
func Load(path, url string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if url == "" {
		url = "file://" + path
	}
	return Parse(url, f)
}

// Fetch downloads url with a GET request and parses the response. The final
// URL after redirects becomes the page URL.
func Fetch(ctx context.Context, client *http.Client, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return do(client, req)
}

func do(client *http.Client, req *http.Request) (*Page, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req.Header.Set("Accept", "text/html")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", req.URL, resp.StatusCode)
	}
	return Parse(resp.Request.URL.String(), io.LimitReader(resp.Body, maxDocumentBytes))
}

// URL implements page.Page.
func (p *Page) URL() string { return p.url }

// Title returns the document title, trimmed.
func (p *Page) Title() string {
	var title string
	walkElements(p.doc, func(n *html.Node) bool {
		if title != "" {
			return false
		}
		if n.DataAtom == atom.Title {
			title = collapseSpace(textContent(n))
			return false
		}
		return true
	})
	return title
}

// QueryAll implements page.Page.
func (p *Page) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := query(p.doc, selector)
	if err != nil {
		return nil, err
	}
	return wrap(nodes), nil
}

// AccessibilityTree implements page.Page.
func (p *Page) AccessibilityTree(ctx context.Context) (*page.AXNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buildAXTree(p.doc, p.Title()), nil
}

// Node is an element of a parsed document.
type Node struct {
	n *html.Node
}

var _ page.Node = (*Node)(nil)

func wrap(nodes []*html.Node) []page.Node {
	out := make([]page.Node, len(nodes))
	for i, n := range nodes {
		out[i] = &Node{n: n}
	}
	return out
}

// HTML returns the underlying element.
func (n *Node) HTML() *html.Node { return n.n }

// TagName implements page.Node.
func (n *Node) TagName(context.Context) (string, error) {
	return strings.ToLower(n.n.Data), nil
}

// Attribute implements page.Node.
func (n *Node) Attribute(_ context.Context, name string) (string, error) {
	return getAttr(n.n, strings.ToLower(name)), nil
}

// InnerText implements page.Node.
func (n *Node) InnerText(context.Context) (string, error) {
	return innerText(n.n), nil
}

// QueryAll implements page.Node.
func (n *Node) QueryAll(ctx context.Context, selector string) ([]page.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nodes, err := query(n.n, selector)
	if err != nil {
		return nil, err
	}
	return wrap(nodes), nil
}

// walkElements visits the elements under root (root included) in document
// order. Returning false from fn skips that element's subtree and stops when
// it is root.
func walkElements(root *html.Node, fn func(*html.Node) bool) {
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode && !fn(n) {
			if n == root {
				return
			}
			continue
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
}

func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

func getAttr(n *html.Node, key string) string {
	val, _ := lookupAttr(n, key)
	return val
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// isSkipped reports elements that never render text.
func isSkipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}

// isHidden reports elements excluded from rendering and the accessibility tree.
func isHidden(n *html.Node) bool {
	if isSkipped(n) {
		return true
	}
	if _, ok := lookupAttr(n, "hidden"); ok {
		return true
	}
	if getAttr(n, "aria-hidden") == "true" {
		return true
	}
	if n.DataAtom == atom.Input && strings.EqualFold(getAttr(n, "type"), "hidden") {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(getAttr(n, "style")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true, atom.Fieldset: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tr: true, atom.Ul: true,
}

// innerText approximates HTMLElement.innerText: hidden content is dropped,
// block elements and <br> break lines, runs of whitespace collapse.
func innerText(root *html.Node) string {
	var b strings.Builder
	type frame struct {
		n     *html.Node
		close bool
	}
	stack := []frame{{n: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.n
		if f.close {
			b.WriteByte('\n')
			continue
		}
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			continue
		case html.ElementNode:
			if n != root && isHidden(n) {
				continue
			}
			if n.DataAtom == atom.Br {
				b.WriteByte('\n')
				continue
			}
			if blockElements[n.DataAtom] {
				b.WriteByte('\n')
				stack = append(stack, frame{n: n, close: true})
			}
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, frame{n: c})
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = collapseSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// textContent concatenates all descendant text, hidden or not.
func textContent(n *html.Node) string {
	var b strings.Builder
	stack := []*html.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
			continue
		}
		for c := cur.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
