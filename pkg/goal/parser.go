// Package goal turns free-text shopping goals into search intents.
package goal

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	verbPattern = regexp.MustCompile(`(?i)\b(?:find|buy|search\s+for)\b`)
	urlPattern  = regexp.MustCompile(`https?://\S+`)
)

// Intent is what a goal asks for and where to look for it.
type Intent struct {
	TargetPhrase string `json:"target_phrase"`
	URL          string `json:"url"`
}

// UnparseableGoalError is returned when a goal carries no recognized action
// or names nothing to act on.
type UnparseableGoalError struct {
	Goal   string
	Reason string
}

func (e *UnparseableGoalError) Error() string {
	return fmt.Sprintf("cannot parse goal %q: %s", e.Goal, e.Reason)
}

// Parser extracts intents. DefaultSite is used when the goal names no URL.
type Parser struct {
	DefaultSite string
}

// NewParser returns a parser falling back to defaultSite.
func NewParser(defaultSite string) *Parser {
	return &Parser{DefaultSite: defaultSite}
}

// Parse extracts an Intent from goal. The target phrase is everything after
// the first action verb; the URL is the first http(s) URL anywhere in the goal,
// so a URL written after the verb is part of both.
func (p *Parser) Parse(goal string) (Intent, error) {
	loc := verbPattern.FindStringIndex(goal)
	if loc == nil {
		return Intent{}, &UnparseableGoalError{Goal: goal, Reason: "no action verb (find, buy, search for)"}
	}

	phrase := strings.TrimSpace(goal[loc[1]:])
	phrase = strings.TrimSpace(strings.TrimRight(phrase, "."))
	if phrase == "" {
		return Intent{}, &UnparseableGoalError{Goal: goal, Reason: "nothing to look for"}
	}

	url := p.DefaultSite
	if m := urlPattern.FindString(goal); m != "" {
		url = m
	}
	return Intent{TargetPhrase: phrase, URL: url}, nil
}
