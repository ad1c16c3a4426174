package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind discriminates the two element shapes.
type Kind int

const (
	// KindAccessibility marks an element taken from the accessibility tree
	KindAccessibility Kind = iota + 1
	// KindInteractive marks an element taken from the DOM query
	KindInteractive
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAccessibility:
		return "accessibility"
	case KindInteractive:
		return "interactive"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Element is one entry of a PageSnapshot. It is implemented only by
// AccessibilityElement and InteractiveElement.
type Element interface {
	Kind() Kind
	sealed()
}

// AccessibilityElement is a node of the accessibility tree that carries a role
// or a name.
type AccessibilityElement struct {
	Role  *string `json:"role,omitempty"`
	Name  *string `json:"name,omitempty"`
	Value *string `json:"value,omitempty"`
}

// Kind implements Element.
func (AccessibilityElement) Kind() Kind { return KindAccessibility }
func (AccessibilityElement) sealed()    {}

// InteractiveElement is a DOM node matched by the interactive selector.
type InteractiveElement struct {
	Tag          string  `json:"tag"`
	ID           string  `json:"id"`
	Classes      string  `json:"classes"`
	Text         string  `json:"text"`
	Name         *string `json:"name,omitempty"`
	SelectorHint string  `json:"selector_hint"`
}

// Kind implements Element.
func (InteractiveElement) Kind() Kind { return KindInteractive }
func (InteractiveElement) sealed()    {}

// PageSnapshot is an order-stable view of a page's actionable surface. All
// accessibility elements precede all interactive elements.
type PageSnapshot struct {
	URL      string    `json:"url"`
	Elements []Element `json:"elements"`
}

// Boundary returns k such that Elements[:k] are accessibility elements and
// Elements[k:] are interactive ones. It fails when the shapes interleave.
func (s PageSnapshot) Boundary() (int, error) {
	k := 0
	for k < len(s.Elements) && s.Elements[k].Kind() == KindAccessibility {
		k++
	}
	for i := k; i < len(s.Elements); i++ {
		if s.Elements[i].Kind() != KindInteractive {
			return 0, fmt.Errorf("element %d: %s element after interactive elements", i, s.Elements[i].Kind())
		}
	}
	return k, nil
}

// Validate checks the ordering invariant.
func (s PageSnapshot) Validate() error {
	_, err := s.Boundary()
	return err
}

// Accessibility returns the accessibility elements.
func (s PageSnapshot) Accessibility() []AccessibilityElement {
	var out []AccessibilityElement
	for _, el := range s.Elements {
		if a, ok := el.(AccessibilityElement); ok {
			out = append(out, a)
		}
	}
	return out
}

// Interactive returns the interactive elements.
func (s PageSnapshot) Interactive() []InteractiveElement {
	var out []InteractiveElement
	for _, el := range s.Elements {
		if i, ok := el.(InteractiveElement); ok {
			out = append(out, i)
		}
	}
	return out
}

// MarshalJSON always emits an elements array, never null.
func (s PageSnapshot) MarshalJSON() ([]byte, error) {
	elements := s.Elements
	if elements == nil {
		elements = []Element{}
	}
	return json.Marshal(struct {
		URL      string    `json:"url"`
		Elements []Element `json:"elements"`
	}{s.URL, elements})
}

// UnmarshalJSON requires "url" and "elements", decodes each element by the
// presence of "tag", and rejects snapshots that violate the ordering invariant.
func (s *PageSnapshot) UnmarshalJSON(data []byte) error {
	var wire struct {
		URL      *string           `json:"url"`
		Elements []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.URL == nil {
		return fmt.Errorf("snapshot: missing \"url\"")
	}
	if wire.Elements == nil {
		return fmt.Errorf("snapshot: missing \"elements\"")
	}

	elements := make([]Element, 0, len(wire.Elements))
	for i, raw := range wire.Elements {
		el, err := decodeElement(raw)
		if err != nil {
			return fmt.Errorf("snapshot: element %d: %w", i, err)
		}
		elements = append(elements, el)
	}

	decoded := PageSnapshot{URL: *wire.URL, Elements: elements}
	if err := decoded.Validate(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	*s = decoded
	return nil
}

func decodeElement(raw json.RawMessage) (Element, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, fmt.Errorf("not an object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	if _, ok := fields["tag"]; ok {
		var el InteractiveElement
		if err := json.Unmarshal(raw, &el); err != nil {
			return nil, err
		}
		if el.Tag == "" {
			return nil, fmt.Errorf("interactive element with empty tag")
		}
		return el, nil
	}

	var el AccessibilityElement
	if err := json.Unmarshal(raw, &el); err != nil {
		return nil, err
	}
	if !present(el.Role) && !present(el.Name) {
		return nil, fmt.Errorf("accessibility element without role or name")
	}
	return el, nil
}
