package page

import "fmt"

// AXNode is one node of an accessibility tree. Nil Role, Name or Value mean the
// browser reported no such property.
type AXNode struct {
	Role     *string
	Name     *string
	Value    *string
	Children []*AXNode
}

// FlatAXNode is a node as reported by the DevTools protocol
// (Accessibility.getFullAXTree): a flat list linked by ids.
type FlatAXNode struct {
	ID       string
	Ignored  bool
	Role     *string
	Name     *string
	Value    *string
	ChildIDs []string
}

// BuildAXTree links a flat node list into a tree. The root is the first node
// that is nobody's child; DevTools lists it first.
//
// Child ids that do not resolve are dropped, and a node is attached to at most
// one parent, so the result is always a finite tree even when the input
// repeats or cycles. Ignored nodes keep their place (and children) but lose
// role and name. Nodes unreachable from the root are discarded.
func BuildAXTree(flat []FlatAXNode) (*AXNode, error) {
	if len(flat) == 0 {
		return nil, fmt.Errorf("accessibility tree is empty")
	}

	nodes := make(map[string]*AXNode, len(flat))
	order := make([]string, 0, len(flat))
	for _, f := range flat {
		if f.ID == "" {
			continue
		}
		if _, dup := nodes[f.ID]; dup {
			continue
		}
		n := &AXNode{Value: f.Value}
		if !f.Ignored {
			n.Role = f.Role
			n.Name = f.Name
		}
		nodes[f.ID] = n
		order = append(order, f.ID)
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("accessibility tree has no identifiable nodes")
	}

	isChild := make(map[string]bool, len(flat))
	for _, f := range flat {
		for _, id := range f.ChildIDs {
			isChild[id] = true
		}
	}

	rootID := order[0]
	for _, id := range order {
		if !isChild[id] {
			rootID = id
			break
		}
	}

	children := make(map[string][]string, len(flat))
	for _, f := range flat {
		if _, ok := children[f.ID]; ok || f.ID == "" {
			continue
		}
		children[f.ID] = f.ChildIDs
	}

	// Breadth-first linking from the root; each node is attached once.
	attached := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		parent := nodes[id]
		for _, childID := range children[id] {
			child, ok := nodes[childID]
			if !ok || attached[childID] {
				continue
			}
			attached[childID] = true
			parent.Children = append(parent.Children, child)
			queue = append(queue, childID)
		}
	}

	return nodes[rootID], nil
}

// Str is a convenience for building optional string properties.
func Str(s string) *string {
	return &s
}
