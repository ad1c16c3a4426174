// Package snapshot builds structured, order-stable snapshots of a page's
// actionable surface.
//
// A snapshot is the concatenation of two independently collected lists: the
// accessibility tree walked in document order, then the DOM nodes matching an
// interactive selector. Either list may come back partial or empty; Build
// itself never fails. What went wrong is reported as Warnings and logged.
package snapshot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
)

// Defaults for the builder.
const (
	DefaultMaxDepth            = 500
	DefaultInteractiveSelector = "button, a, input, select, textarea, [role='button'], [role='link']"
)

// Step names used in warnings.
const (
	StepAccessibility = "accessibility"
	StepInteractive   = "interactive"
)

// Warning records a failure that was absorbed while building a snapshot.
// Index is the position of the offending node within its step, or -1 when the
// whole step is affected.
type Warning struct {
	Step  string
	Index int
	Err   error
}

func (w Warning) String() string {
	if w.Index < 0 {
		return fmt.Sprintf("%s: %v", w.Step, w.Err)
	}
	return fmt.Sprintf("%s[%d]: %v", w.Step, w.Index, w.Err)
}

// Builder produces PageSnapshots from a page.Page.
type Builder struct {
	maxDepth            int
	interactiveSelector string
	logger              *logging.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxDepth caps the accessibility traversal depth (root is depth 0).
func WithMaxDepth(depth int) Option {
	return func(b *Builder) {
		if depth > 0 {
			b.maxDepth = depth
		}
	}
}

// WithInteractiveSelector replaces the selector used for the interactive step.
func WithInteractiveSelector(selector string) Option {
	return func(b *Builder) {
		if selector != "" {
			b.interactiveSelector = selector
		}
	}
}

// WithLogger sets the logger warnings are reported to.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a snapshot builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxDepth:            DefaultMaxDepth,
		interactiveSelector: DefaultInteractiveSelector,
		logger:              logging.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build snapshots p. The accessibility elements always come first.
func (b *Builder) Build(ctx context.Context, p page.Page) (PageSnapshot, []Warning) {
	accessibility, accWarnings := b.accessibilityElements(ctx, p)
	interactive, intWarnings := b.interactiveElements(ctx, p)

	elements := make([]Element, 0, len(accessibility)+len(interactive))
	elements = append(elements, accessibility...)
	elements = append(elements, interactive...)

	warnings := append(accWarnings, intWarnings...)
	for _, w := range warnings {
		b.logger.Warnf("snapshot %s: %s", p.URL(), w)
	}
	b.logger.Debugf("snapshot %s: %d accessibility, %d interactive elements", p.URL(), len(accessibility), len(interactive))

	return PageSnapshot{URL: p.URL(), Elements: elements}, warnings
}

type frame struct {
	node  *page.AXNode
	depth int
}

// accessibilityElements walks the tree pre-order with an explicit stack.
func (b *Builder) accessibilityElements(ctx context.Context, p page.Page) ([]Element, []Warning) {
	root, err := p.AccessibilityTree(ctx)
	if err != nil {
		return nil, []Warning{{Step: StepAccessibility, Index: -1, Err: fmt.Errorf("retrieve tree: %w", err)}}
	}
	if root == nil {
		return nil, nil
	}

	var (
		elements  []Element
		warnings  []Warning
		truncated bool
	)

	stack := []frame{{node: root}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, Warning{Step: StepAccessibility, Index: -1, Err: err})
			break
		}

		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := top.node
		if n == nil {
			continue
		}

		if present(n.Role) || present(n.Name) {
			elements = append(elements, AccessibilityElement{
				Role:  nonEmpty(n.Role),
				Name:  nonEmpty(n.Name),
				Value: nonEmpty(n.Value),
			})
		}

		if len(n.Children) == 0 {
			continue
		}
		if top.depth+1 > b.maxDepth {
			truncated = true
			continue
		}
		// Reverse push keeps document order on pop.
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: n.Children[i], depth: top.depth + 1})
		}
	}

	if truncated {
		warnings = append(warnings, Warning{
			Step:  StepAccessibility,
			Index: -1,
			Err:   fmt.Errorf("tree truncated at depth %d", b.maxDepth),
		})
	}
	return elements, warnings
}

// interactiveElements describes every node matching the interactive selector.
func (b *Builder) interactiveElements(ctx context.Context, p page.Page) ([]Element, []Warning) {
	nodes, err := p.QueryAll(ctx, b.interactiveSelector)
	if err != nil {
		return nil, []Warning{{Step: StepInteractive, Index: -1, Err: fmt.Errorf("query %q: %w", b.interactiveSelector, err)}}
	}

	var (
		elements []Element
		warnings []Warning
	)
	ordinals := make(map[string]int)

	for i, n := range nodes {
		if err := ctx.Err(); err != nil {
			warnings = append(warnings, Warning{
				Step:  StepInteractive,
				Index: -1,
				Err:   fmt.Errorf("stopped after %d of %d nodes: %w", i, len(nodes), err),
			})
			break
		}

		tag, err := n.TagName(ctx)
		if err != nil {
			warnings = append(warnings, Warning{Step: StepInteractive, Index: i, Err: fmt.Errorf("tag name: %w", err)})
			continue
		}
		tag = strings.ToLower(tag)
		ordinals[tag]++
		ordinal := ordinals[tag]

		el, err := describe(ctx, n, tag, ordinal)
		if err != nil {
			warnings = append(warnings, Warning{Step: StepInteractive, Index: i, Err: err})
			continue
		}
		elements = append(elements, el)
	}

	return elements, warnings
}

func describe(ctx context.Context, n page.Node, tag string, ordinal int) (InteractiveElement, error) {
	id, err := n.Attribute(ctx, "id")
	if err != nil {
		return InteractiveElement{}, fmt.Errorf("attribute id: %w", err)
	}
	classes, err := n.Attribute(ctx, "class")
	if err != nil {
		return InteractiveElement{}, fmt.Errorf("attribute class: %w", err)
	}
	text, err := n.InnerText(ctx)
	if err != nil {
		return InteractiveElement{}, fmt.Errorf("inner text: %w", err)
	}
	label, err := n.Attribute(ctx, "aria-label")
	if err != nil {
		return InteractiveElement{}, fmt.Errorf("attribute aria-label: %w", err)
	}

	hint := tag + ":" + strconv.Itoa(ordinal)
	if id != "" {
		hint = "#" + id
	}

	el := InteractiveElement{
		Tag:          tag,
		ID:           id,
		Classes:      classes,
		Text:         strings.TrimSpace(text),
		SelectorHint: hint,
	}
	if label != "" {
		el.Name = &label
	}
	return el, nil
}

func present(s *string) bool {
	return s != nil && *s != ""
}

func nonEmpty(s *string) *string {
	if !present(s) {
		return nil
	}
	v := *s
	return &v
}
