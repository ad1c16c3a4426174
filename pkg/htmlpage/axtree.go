package htmlpage

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/entrhq/robotdriver/pkg/page"
)

const (
	roleRoot = "RootWebArea"
	roleText = "StaticText"
)

var tagRoles = map[atom.Atom]string{
	atom.Article:  "article",
	atom.Aside:    "complementary",
	atom.Button:   "button",
	atom.Dialog:   "dialog",
	atom.Fieldset: "group",
	atom.Figure:   "figure",
	atom.Footer:   "contentinfo",
	atom.Form:     "form",
	atom.H1:       "heading",
	atom.H2:       "heading",
	atom.H3:       "heading",
	atom.H4:       "heading",
	atom.H5:       "heading",
	atom.H6:       "heading",
	atom.Header:   "banner",
	atom.Hr:       "separator",
	atom.Li:       "listitem",
	atom.Main:     "main",
	atom.Nav:      "navigation",
	atom.Ol:       "list",
	atom.Option:   "option",
	atom.P:        "paragraph",
	atom.Progress: "progressbar",
	atom.Section:  "region",
	atom.Table:    "table",
	atom.Tbody:    "rowgroup",
	atom.Td:       "cell",
	atom.Textarea: "textbox",
	atom.Tfoot:    "rowgroup",
	atom.Th:       "columnheader",
	atom.Thead:    "rowgroup",
	atom.Tr:       "row",
	atom.Ul:       "list",
}

var inputRoles = map[string]string{
	"":         "textbox",
	"text":     "textbox",
	"email":    "textbox",
	"password": "textbox",
	"tel":      "textbox",
	"url":      "textbox",
	"search":   "searchbox",
	"checkbox": "checkbox",
	"radio":    "radio",
	"number":   "spinbutton",
	"range":    "slider",
	"submit":   "button",
	"reset":    "button",
	"button":   "button",
	"image":    "button",
}

// Roles whose accessible name comes from their content.
var nameFromContent = map[string]bool{
	"button":       true,
	"cell":         true,
	"columnheader": true,
	"heading":      true,
	"link":         true,
	"menuitem":     true,
	"option":       true,
	"tab":          true,
}

// buildAXTree derives an accessibility tree from the DOM using implicit ARIA
// roles. Elements without a role are kept as anonymous containers so the
// structure, and therefore document order, is preserved.
func buildAXTree(doc *html.Node, title string) *page.AXNode {
	root := &page.AXNode{Role: page.Str(roleRoot)}
	if title != "" {
		root.Name = page.Str(title)
	}
	labels := collectLabels(doc)

	type item struct {
		dom *html.Node
		ax  *page.AXNode
	}
	stack := []item{{dom: doc, ax: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var pending []item
		for c := it.dom.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if text := collapseSpace(c.Data); text != "" {
					it.ax.Children = append(it.ax.Children, &page.AXNode{Role: page.Str(roleText), Name: page.Str(text)})
				}
			case html.ElementNode:
				if isHidden(c) {
					continue
				}
				child := axNode(c, labels)
				it.ax.Children = append(it.ax.Children, child)
				pending = append(pending, item{dom: c, ax: child})
			}
		}
		for i := len(pending) - 1; i >= 0; i-- {
			stack = append(stack, pending[i])
		}
	}
	return root
}

func axNode(n *html.Node, labels map[string]string) *page.AXNode {
	ax := &page.AXNode{}
	role := roleOf(n)
	if role == "" {
		return ax
	}
	ax.Role = page.Str(role)
	if name := accessibleName(n, role, labels); name != "" {
		ax.Name = page.Str(name)
	}
	if value, ok := valueOf(n, role); ok {
		ax.Value = page.Str(value)
	}
	return ax
}

func roleOf(n *html.Node) string {
	if explicit := strings.Fields(getAttr(n, "role")); len(explicit) > 0 {
		return explicit[0]
	}
	switch n.DataAtom {
	case atom.A, atom.Area:
		if _, ok := lookupAttr(n, "href"); ok {
			return "link"
		}
		return ""
	case atom.Img:
		if alt, ok := lookupAttr(n, "alt"); ok && alt == "" {
			return ""
		}
		return "img"
	case atom.Input:
		return inputRoles[strings.ToLower(getAttr(n, "type"))]
	case atom.Select:
		if _, ok := lookupAttr(n, "multiple"); ok {
			return "listbox"
		}
		return "combobox"
	}
	return tagRoles[n.DataAtom]
}

func accessibleName(n *html.Node, role string, labels map[string]string) string {
	if label := collapseSpace(getAttr(n, "aria-label")); label != "" {
		return label
	}
	switch n.DataAtom {
	case atom.Img, atom.Area:
		if alt := collapseSpace(getAttr(n, "alt")); alt != "" {
			return alt
		}
	case atom.Input:
		switch strings.ToLower(getAttr(n, "type")) {
		case "submit", "reset", "button":
			if v := collapseSpace(getAttr(n, "value")); v != "" {
				return v
			}
		case "image":
			if alt := collapseSpace(getAttr(n, "alt")); alt != "" {
				return alt
			}
		}
	}
	if id := getAttr(n, "id"); id != "" && labels[id] != "" {
		return labels[id]
	}
	if label := wrappingLabel(n); label != "" {
		return label
	}
	if nameFromContent[role] {
		if text := collapseSpace(innerText(n)); text != "" {
			return text
		}
	}
	if placeholder := collapseSpace(getAttr(n, "placeholder")); placeholder != "" {
		return placeholder
	}
	return collapseSpace(getAttr(n, "title"))
}

func valueOf(n *html.Node, role string) (string, bool) {
	switch role {
	case "textbox", "searchbox", "spinbutton", "slider":
		if n.DataAtom == atom.Textarea {
			return textContent(n), true
		}
		if v, ok := lookupAttr(n, "value"); ok {
			return v, true
		}
	case "combobox":
		if n.DataAtom != atom.Select {
			return "", false
		}
		if opt := selectedOption(n); opt != nil {
			if text := collapseSpace(textContent(opt)); text != "" {
				return text, true
			}
		}
	}
	return "", false
}

// collectLabels maps control ids to the text of <label for=...> elements.
func collectLabels(doc *html.Node) map[string]string {
	labels := map[string]string{}
	walkElements(doc, func(n *html.Node) bool {
		if n.DataAtom != atom.Label {
			return true
		}
		if id := getAttr(n, "for"); id != "" {
			if _, seen := labels[id]; !seen {
				labels[id] = collapseSpace(innerText(n))
			}
		}
		return false
	})
	return labels
}

// wrappingLabel returns the text of a <label> enclosing a form control.
func wrappingLabel(n *html.Node) string {
	switch n.DataAtom {
	case atom.Input, atom.Select, atom.Textarea:
	default:
		return ""
	}
	for p := parentElement(n); p != nil; p = parentElement(p) {
		if p.DataAtom == atom.Label {
			return collapseSpace(innerText(p))
		}
	}
	return ""
}
