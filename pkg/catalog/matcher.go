// Package catalog matches scraped product entries against a target name and
// extracts a product record from the winner.
//
// Matching is plain case-insensitive containment over each entry's display
// name. Which match wins is decided by a Policy; field extraction then tries a
// prioritized list of selectors per field and falls back to placeholders, so a
// selected entry always yields a complete ProductRecord.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
)

// Policy decides what happens when several entries match.
type Policy string

const (
	// PolicyFirst selects the first match in document order.
	PolicyFirst Policy = "first"
	// PolicyUnique requires exactly one match and reports ambiguity as an error.
	PolicyUnique Policy = "unique"
)

// ParsePolicy validates a policy name. Empty selects PolicyFirst.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyUnique:
		return PolicyUnique, nil
	default:
		return "", fmt.Errorf("unknown catalog policy %q", s)
	}
}

// Selectors locate catalog entries and the fields inside them. Field selectors
// are tried in order; the first one yielding non-blank text wins.
type Selectors struct {
	Entries     string
	DisplayName string
	Name        []string
	Price       []string
	Description []string
}

// DefaultSelectors fit the automationexercise.com product grid.
func DefaultSelectors() Selectors {
	return Selectors{
		Entries:     ".features_items .productinfo, .product-image-wrapper .productinfo",
		DisplayName: "p",
		Name:        []string{"h2", "h3", "h4"},
		Price:       []string{".product-price", ".price", ".productinfo h2", "h2"},
		Description: []string{"p"},
	}
}

// SelectorsFromConfig builds Selectors from configuration, keeping defaults
// for anything left empty.
func SelectorsFromConfig(cfg config.CatalogConfig) Selectors {
	s := DefaultSelectors()
	if cfg.EntrySelector != "" {
		s.Entries = cfg.EntrySelector
	}
	if cfg.DisplayNameSelector != "" {
		s.DisplayName = cfg.DisplayNameSelector
	}
	if len(cfg.NameSelectors) > 0 {
		s.Name = cfg.NameSelectors
	}
	if len(cfg.PriceSelectors) > 0 {
		s.Price = cfg.PriceSelectors
	}
	if len(cfg.DescriptionSelector) > 0 {
		s.Description = cfg.DescriptionSelector
	}
	return s
}

// Matcher matches entries against a target name.
type Matcher struct {
	Selectors Selectors
	Policy    Policy
	logger    *logging.Logger
}

// NewMatcher creates a matcher. A nil logger discards output.
func NewMatcher(selectors Selectors, policy Policy, logger *logging.Logger) *Matcher {
	if logger == nil {
		logger = logging.Nop()
	}
	if policy == "" {
		policy = PolicyFirst
	}
	return &Matcher{Selectors: selectors, Policy: policy, logger: logger}
}

// Collect queries the page for catalog entries.
func Collect(ctx context.Context, p page.Page, selectors Selectors) ([]page.Node, error) {
	entries, err := p.QueryAll(ctx, selectors.Entries)
	if err != nil {
		return nil, fmt.Errorf("query catalog entries: %w", err)
	}
	return entries, nil
}

// Match finds target among entries. It never fails: problems with single
// entries are logged and the entry is skipped, everything else is expressed in
// the Result status. target is matched as given; callers trim user input.
func (m *Matcher) Match(ctx context.Context, entries []page.Node, target string) Result {
	needle := strings.ToLower(target)
	if needle == "" {
		return Failed("empty product name")
	}

	var matched []page.Node
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Failed(fmt.Sprintf("match interrupted: %v", err))
		}
		name, err := m.displayName(ctx, entry)
		if err != nil {
			m.logger.Warnf("skipping catalog entry %d: %v", i, err)
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) {
			matched = append(matched, entry)
		}
	}

	m.logger.Debugf("%d of %d entries match %q", len(matched), len(entries), target)

	switch {
	case len(matched) == 0:
		return NotFound(target)
	case len(matched) > 1 && m.Policy == PolicyUnique:
		return Failed(fmt.Sprintf("multiple products match '%s' (%d found)", target, len(matched)))
	}

	selected := matched[0]
	return Found(ProductRecord{
		Name:        m.field(ctx, selected, m.Selectors.Name, UnknownName),
		Price:       m.field(ctx, selected, m.Selectors.Price, UnknownPrice),
		Description: m.field(ctx, selected, m.Selectors.Description, MissingDescription),
	})
}

// displayName reads the entry's dedicated name element, or its whole text
// when it has none.
func (m *Matcher) displayName(ctx context.Context, entry page.Node) (string, error) {
	if m.Selectors.DisplayName != "" {
		nodes, err := entry.QueryAll(ctx, m.Selectors.DisplayName)
		if err == nil && len(nodes) > 0 {
			text, err := nodes[0].InnerText(ctx)
			if err != nil {
				return "", fmt.Errorf("read display name: %w", err)
			}
			return text, nil
		}
	}
	text, err := entry.InnerText(ctx)
	if err != nil {
		return "", fmt.Errorf("read entry text: %w", err)
	}
	return text, nil
}

func (m *Matcher) field(ctx context.Context, entry page.Node, selectors []string, fallback string) string {
	for _, sel := range selectors {
		nodes, err := entry.QueryAll(ctx, sel)
		if err != nil {
			m.logger.Debugf("field selector %q: %v", sel, err)
			continue
		}
		if len(nodes) == 0 {
			continue
		}
		text, err := nodes[0].InnerText(ctx)
		if err != nil {
			m.logger.Debugf("field selector %q: %v", sel, err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}
	return fallback
}
