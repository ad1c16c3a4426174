package driver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/entrhq/robotdriver/pkg/catalog"
	"github.com/entrhq/robotdriver/pkg/config"
	"github.com/entrhq/robotdriver/pkg/goal"
	"github.com/entrhq/robotdriver/pkg/logging"
	"github.com/entrhq/robotdriver/pkg/page"
	"github.com/entrhq/robotdriver/pkg/remote"
	"github.com/entrhq/robotdriver/pkg/snapshot"
)

// GoalPageTimeout bounds navigation to a goal's site.
const GoalPageTimeout = 30 * time.Second

// Inputs tried when the snapshot shows no search box.
var fallbackSearchSelectors = []string{
	"input[type='search']",
	"input[name*='search']",
	"input[name='q']",
	"input[placeholder*='Search']",
	"input[placeholder*='search']",
}

var cssIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// GoalOutcome is what a goal run produced.
type GoalOutcome struct {
	Goal          string         `json:"goal"`
	Intent        goal.Intent    `json:"intent"`
	Origin        remote.Origin  `json:"snapshot_origin,omitempty"`
	SearchControl string         `json:"search_control,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Result        catalog.Result `json:"result"`
	Error         string         `json:"error,omitempty"`
	Duration      time.Duration  `json:"duration"`
}

// GoalRunner pursues free-text goals: it opens the goal's site, finds a search
// box from the page snapshot, searches for the target phrase and matches the
// results.
type GoalRunner struct {
	Parser    *goal.Parser
	Pages     page.Factory
	Source    *remote.Source
	Selectors catalog.Selectors
	Matcher   *catalog.Matcher
	logger    *logging.Logger
}

// NewGoalRunner wires a runner from configuration. source may be nil for
// local snapshots only.
func NewGoalRunner(cfg *config.Config, pages page.Factory, source *remote.Source, logger *logging.Logger) (*GoalRunner, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	policy, err := catalog.ParsePolicy(cfg.Catalog.Policy)
	if err != nil {
		return nil, err
	}
	if source == nil {
		builder := snapshot.NewBuilder(
			snapshot.WithMaxDepth(cfg.Snapshot.MaxDepth),
			snapshot.WithInteractiveSelector(cfg.Snapshot.InteractiveSelector),
			snapshot.WithLogger(logger),
		)
		source = remote.NewSource(nil, "", builder, logger)
	}
	selectors := catalog.SelectorsFromConfig(cfg.Catalog)
	return &GoalRunner{
		Parser:    goal.NewParser(cfg.Site.BaseURL),
		Pages:     pages,
		Source:    source,
		Selectors: selectors,
		Matcher:   catalog.NewMatcher(selectors, policy, logger),
		logger:    logger,
	}, nil
}

// Run pursues one goal. The error is non-nil only when the goal cannot be
// parsed; every other failure is reported in the outcome's Result.
func (r *GoalRunner) Run(ctx context.Context, text string) (GoalOutcome, error) {
	start := time.Now()
	out, err := r.run(ctx, text)
	out.Duration = time.Since(start)
	return out, err
}

func (r *GoalRunner) run(ctx context.Context, text string) (GoalOutcome, error) {
	out := GoalOutcome{Goal: text}

	intent, err := r.Parser.Parse(text)
	if err != nil {
		out.Error = err.Error()
		out.Result = catalog.Failed(err.Error())
		return out, err
	}
	out.Intent = intent
	r.logger.Infof("goal %q: looking for '%s' at %s", text, intent.TargetPhrase, intent.URL)

	nav, release, err := r.Pages.Open(ctx)
	if err != nil {
		out.Result = catalog.Failed(fmt.Sprintf("open browser page: %v", err))
		return out, nil
	}
	defer release()

	if err := nav.Goto(ctx, intent.URL, GoalPageTimeout); err != nil {
		out.Result = catalog.Failed(fmt.Sprintf("open %s: %v", intent.URL, err))
		return out, nil
	}

	snap, origin, warnings := r.Source.Snapshot(ctx, nav)
	out.Origin = origin
	for _, w := range warnings {
		out.Warnings = append(out.Warnings, w.String())
	}

	control, ok := r.findSearchControl(ctx, nav, snap)
	if !ok {
		r.logger.Warnf("no search control on %s", nav.URL())
		out.Result = catalog.Failed(searchMissingReason)
		return out, nil
	}
	out.SearchControl = control

	if err := nav.Fill(ctx, control, intent.TargetPhrase); err != nil {
		r.logger.Warnf("search control %s not usable: %v", control, err)
		out.Result = catalog.Failed(searchMissingReason)
		return out, nil
	}
	if err := nav.Press(ctx, control, "Enter"); err != nil {
		r.logger.Warnf("submitting search failed: %v", err)
		out.Result = catalog.Failed(searchMissingReason)
		return out, nil
	}

	out.Result = collectAndMatch(ctx, nav, r.Selectors.Entries, r.Selectors, r.Matcher, intent.TargetPhrase, r.logger)
	return out, nil
}

// findSearchControl picks the search box: first an input from the snapshot
// whose id, classes or accessible name mention "search", then the first
// fallback selector present on the page.
func (r *GoalRunner) findSearchControl(ctx context.Context, p page.Page, snap snapshot.PageSnapshot) (string, bool) {
	for _, el := range snap.Interactive() {
		if el.Tag != "input" {
			continue
		}
		name := ""
		if el.Name != nil {
			name = *el.Name
		}
		if !mentionsSearch(el.ID, el.Classes, name) {
			continue
		}
		if sel := selectorFor(el); sel != "" {
			return sel, true
		}
	}

	for _, sel := range fallbackSearchSelectors {
		nodes, err := p.QueryAll(ctx, sel)
		if err == nil && len(nodes) > 0 {
			return sel, true
		}
	}
	return "", false
}

func mentionsSearch(fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), "search") {
			return true
		}
	}
	return false
}

// selectorFor turns an interactive element back into a CSS selector.
func selectorFor(el snapshot.InteractiveElement) string {
	switch {
	case el.ID != "" && cssIdent.MatchString(el.ID):
		return "#" + el.ID
	case el.ID != "":
		return fmt.Sprintf("%s[id=%q]", el.Tag, el.ID)
	case el.Name != nil && *el.Name != "":
		return fmt.Sprintf("%s[aria-label=%q]", el.Tag, *el.Name)
	}
	classes := strings.Fields(el.Classes)
	for _, c := range classes {
		if !cssIdent.MatchString(c) {
			return ""
		}
	}
	if len(classes) == 0 {
		return ""
	}
	return el.Tag + "." + strings.Join(classes, ".")
}
