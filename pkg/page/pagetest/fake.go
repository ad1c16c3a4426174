// Package pagetest provides in-memory page.Page and page.Node fakes whose
// selector results and failures are scripted by the test.
package pagetest

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/robotdriver/pkg/page"
)

// ErrScripted is the error returned by failing fakes unless Err is set.
var ErrScripted = errors.New("scripted failure")

// Page is a fake page.Page. Selectors are matched by exact string.
type Page struct {
	PageURL string
	Tree    *page.AXNode
	TreeErr error

	Selectors  map[string][]page.Node
	QueryErrs  map[string]error
	QueryCalls int
}

// URL implements page.Page.
func (p *Page) URL() string { return p.PageURL }

// QueryAll implements page.Page.
func (p *Page) QueryAll(_ context.Context, selector string) ([]page.Node, error) {
	p.QueryCalls++
	if err := p.QueryErrs[selector]; err != nil {
		return nil, err
	}
	return p.Selectors[selector], nil
}

// AccessibilityTree implements page.Page.
func (p *Page) AccessibilityTree(context.Context) (*page.AXNode, error) {
	if p.TreeErr != nil {
		return nil, p.TreeErr
	}
	if p.Tree == nil {
		return nil, fmt.Errorf("no accessibility tree")
	}
	return p.Tree, nil
}

// Node is a fake page.Node.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children map[string][]page.Node

	// Fail names the methods that return Err: "tag", "attr", "text", "query"
	Fail map[string]bool
	Err  error
}

func (n *Node) fail(method string) error {
	if !n.Fail[method] {
		return nil
	}
	if n.Err != nil {
		return n.Err
	}
	return ErrScripted
}

// TagName implements page.Node.
func (n *Node) TagName(context.Context) (string, error) {
	if err := n.fail("tag"); err != nil {
		return "", err
	}
	return n.Tag, nil
}

// Attribute implements page.Node.
func (n *Node) Attribute(_ context.Context, name string) (string, error) {
	if err := n.fail("attr"); err != nil {
		return "", err
	}
	return n.Attrs[name], nil
}

// InnerText implements page.Node.
func (n *Node) InnerText(context.Context) (string, error) {
	if err := n.fail("text"); err != nil {
		return "", err
	}
	return n.Text, nil
}

// QueryAll implements page.Node.
func (n *Node) QueryAll(_ context.Context, selector string) ([]page.Node, error) {
	if err := n.fail("query"); err != nil {
		return nil, err
	}
	return n.Children[selector], nil
}

// Text returns a childless node with the given text.
func Text(tag, text string) *Node {
	return &Node{Tag: tag, Text: text}
}
