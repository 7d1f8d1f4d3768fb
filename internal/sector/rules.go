// Package sector assigns sector tags to instruments, either from keyword
// rules over theme text or from a batched model pass over news headlines.
package sector

import (
	"strings"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/pkg/models"
)

// Rule tags an instrument with Tag when its theme text contains any of
// Keywords.
type Rule struct {
	Tag      string
	Keywords []string
}

// Matches reports whether any keyword is a substring of theme.
func (r Rule) Matches(theme string) bool {
	for _, k := range r.Keywords {
		if k != "" && strings.Contains(theme, k) {
			return true
		}
	}
	return false
}

// RuleClassifier is the single-label keyword classifier. Overrides are
// checked first; rules are evaluated in order and the first match wins.
type RuleClassifier struct {
	rules     []Rule
	overrides map[string]string
	fallback  string
}

// NewRuleClassifier creates a classifier. An empty fallback uses
// models.FallbackSector.
func NewRuleClassifier(rules []Rule, overrides map[string]string, fallback string) *RuleClassifier {
	if fallback == "" {
		fallback = models.FallbackSector
	}
	if overrides == nil {
		overrides = map[string]string{}
	}
	return &RuleClassifier{
		rules:     append([]Rule(nil), rules...),
		overrides: overrides,
		fallback:  fallback,
	}
}

// NewRuleClassifierFromConfig builds the classifier from the scan config.
func NewRuleClassifierFromConfig(scan config.ScanConfig) *RuleClassifier {
	rules := make([]Rule, 0, len(scan.Rules))
	for _, rc := range scan.Rules {
		if rc.Tag == "" {
			continue
		}
		rules = append(rules, Rule{Tag: rc.Tag, Keywords: rc.Keywords})
	}
	return NewRuleClassifier(rules, scan.OverrideMap(), scan.FallbackSector)
}

// Fallback returns the tag used when nothing matches.
func (c *RuleClassifier) Fallback() string { return c.fallback }

// Classify returns exactly one tag for the instrument. A nil theme is the
// absent marker and only overrides or the fallback can apply.
func (c *RuleClassifier) Classify(name string, theme *string) []string {
	if tag, ok := c.overrides[name]; ok {
		return []string{tag}
	}
	if theme != nil {
		for _, r := range c.rules {
			if r.Matches(*theme) {
				return []string{r.Tag}
			}
		}
	}
	return []string{c.fallback}
}
