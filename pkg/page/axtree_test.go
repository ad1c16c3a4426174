package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roles(n *AXNode) []string {
	var out []string
	for _, c := range n.Children {
		if c.Role != nil {
			out = append(out, *c.Role)
		} else {
			out = append(out, "")
		}
	}
	return out
}

func TestBuildAXTree(t *testing.T) {
	flat := []FlatAXNode{
		{ID: "1", Role: Str("RootWebArea"), Name: Str("Shop"), ChildIDs: []string{"2", "3"}},
		{ID: "2", Role: Str("heading"), Name: Str("Products"), ChildIDs: []string{"4"}},
		{ID: "3", Role: Str("button"), Name: Str("Search")},
		{ID: "4", Role: Str("StaticText"), Name: Str("Products")},
	}

	root, err := BuildAXTree(flat)
	require.NoError(t, err)
	assert.Equal(t, "RootWebArea", *root.Role)
	assert.Equal(t, []string{"heading", "button"}, roles(root))
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "StaticText", *root.Children[0].Children[0].Role)
}

func TestBuildAXTreeIgnoredNodesKeepChildren(t *testing.T) {
	flat := []FlatAXNode{
		{ID: "1", Role: Str("RootWebArea"), ChildIDs: []string{"2"}},
		{ID: "2", Ignored: true, Role: Str("none"), Name: Str(""), ChildIDs: []string{"3"}},
		{ID: "3", Role: Str("link"), Name: Str("Home")},
	}

	root, err := BuildAXTree(flat)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	ignored := root.Children[0]
	assert.Nil(t, ignored.Role)
	assert.Nil(t, ignored.Name)
	require.Len(t, ignored.Children, 1)
	assert.Equal(t, "link", *ignored.Children[0].Role)
}

func TestBuildAXTreeCyclesAndDanglingIDs(t *testing.T) {
	flat := []FlatAXNode{
		{ID: "1", Role: Str("RootWebArea"), ChildIDs: []string{"2", "missing"}},
		{ID: "2", Role: Str("group"), ChildIDs: []string{"1", "2", "3"}},
		{ID: "3", Role: Str("button"), ChildIDs: []string{"2"}},
	}

	root, err := BuildAXTree(flat)
	require.NoError(t, err)
	// "1" is referenced as a child, so the first node wins as root
	assert.Equal(t, "RootWebArea", *root.Role)
	require.Len(t, root.Children, 1)
	group := root.Children[0]
	require.Len(t, group.Children, 1)
	assert.Equal(t, "button", *group.Children[0].Role)
	assert.Empty(t, group.Children[0].Children)
}

func TestBuildAXTreeEmpty(t *testing.T) {
	_, err := BuildAXTree(nil)
	assert.Error(t, err)

	_, err = BuildAXTree([]FlatAXNode{{ID: ""}})
	assert.Error(t, err)
}
