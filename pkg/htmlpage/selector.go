package htmlpage

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// query returns the descendants of root matching selector, in document
// order. root itself never matches, but its ancestors may satisfy the
// leading compounds, as with Element.querySelectorAll.
func query(root *html.Node, selector string) ([]*html.Node, error) {
	group, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	return goquery.NewDocumentFromNode(root).FindMatcher(group).Nodes, nil
}
