package browser

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/entrhq/robotdriver/pkg/page"
)

// Method name of the CDP call both engines use for the accessibility tree.
const cdpFullAXTree = "Accessibility.getFullAXTree"

type cdpAXValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type cdpAXNode struct {
	NodeID   string      `json:"nodeId"`
	Ignored  bool        `json:"ignored"`
	Role     *cdpAXValue `json:"role"`
	Name     *cdpAXValue `json:"name"`
	Value    *cdpAXValue `json:"value"`
	ChildIDs []string    `json:"childIds"`
}

type cdpAXTree struct {
	Nodes []cdpAXNode `json:"nodes"`
}

// parseAXTree decodes an Accessibility.getFullAXTree result into flat nodes.
func parseAXTree(data []byte) ([]page.FlatAXNode, error) {
	var tree cdpAXTree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode accessibility tree: %w", err)
	}
	if tree.Nodes == nil {
		return nil, fmt.Errorf("accessibility tree has no nodes")
	}

	flat := make([]page.FlatAXNode, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		flat = append(flat, page.FlatAXNode{
			ID:       n.NodeID,
			Ignored:  n.Ignored,
			Role:     axString(n.Role),
			Name:     axString(n.Name),
			Value:    axString(n.Value),
			ChildIDs: n.ChildIDs,
		})
	}
	return flat, nil
}

// axTreeFromCDP converts a CDP result (already-decoded JSON or raw bytes)
// into an accessibility tree.
func axTreeFromCDP(result any) (*page.AXNode, error) {
	var data []byte
	switch r := result.(type) {
	case []byte:
		data = r
	case json.RawMessage:
		data = r
	default:
		var err error
		if data, err = json.Marshal(result); err != nil {
			return nil, fmt.Errorf("encode accessibility tree: %w", err)
		}
	}
	flat, err := parseAXTree(data)
	if err != nil {
		return nil, err
	}
	return page.BuildAXTree(flat)
}

// axString renders an AX value as text. Strings are used as-is; numbers and
// booleans keep their JSON spelling; null or missing values are nil.
func axString(v *cdpAXValue) *string {
	if v == nil || len(v.Value) == 0 || string(v.Value) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err == nil {
		return &s
	}
	raw := string(v.Value)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		raw = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return &raw
}
