package scan

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/goldenkey/pkg/models"
)

// State is an instrument's classification stage within a session.
type State string

const (
	StateUnclassified State = "unclassified"
	StateRuleTagged   State = "rule_tagged"
	StateModelRefined State = "model_refined"
)

// MergePolicy decides how model tags combine with rule tags.
type MergePolicy string

const (
	// MergeOverwrite replaces the rule tags with the model tags.
	MergeOverwrite MergePolicy = "overwrite"
	// MergeUnion keeps rule tags first, then adds model tags. The fallback
	// tag is dropped when any real tag is present.
	MergeUnion MergePolicy = "union"
)

// ParseMergePolicy maps a config value to a policy. Empty means overwrite.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MergeOverwrite:
		return MergeOverwrite, nil
	case MergeUnion:
		return MergeUnion, nil
	}
	return "", fmt.Errorf("unknown merge policy %q (want overwrite or union)", s)
}

// Merge combines rule and model tags under the policy. The result is
// never empty.
func (p MergePolicy) Merge(rule, model []string, fallback string) []string {
	var tags []string
	if p == MergeUnion {
		tags = append(append(tags, rule...), model...)
	} else {
		tags = append(tags, model...)
	}

	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, t := range tags {
		if t == "" || t == fallback {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}

// Session is the caller-owned result of one scan cycle. The pipeline
// never mutates a session; Scan and Refine return new ones.
type Session struct {
	ID           string    `json:"id"`
	ParentID     string    `json:"parent_id,omitempty"`
	ScannedAt    time.Time `json:"scanned_at"`
	RefinedAt    time.Time `json:"refined_at,omitzero"`
	MarketStatus string    `json:"market_status"`

	Quotes  []models.Quote `json:"quotes"`
	Summary Summary        `json:"summary"`

	// RuleSectors keeps the rule-path tags so a later refine merges
	// against them rather than against a previous model result.
	RuleSectors map[string][]string `json:"rule_sectors"`
	States      map[string]State    `json:"states"`

	Classification     map[string]models.ClassificationResult `json:"classification,omitempty"`
	ClassificationKind string                                 `json:"classification_kind,omitempty"`
	News               map[string][]string                    `json:"news,omitempty"`

	Indices  []models.IndexQuote `json:"indices"`
	Themes   []models.ThemeQuote `json:"themes"`
	Warnings []string            `json:"warnings,omitempty"`
}

// Refined reports whether a model pass has run on this session.
func (s *Session) Refined() bool { return !s.RefinedAt.IsZero() }

// StateOf returns the classification state of name. Names the session has
// no record of are unclassified.
func (s *Session) StateOf(name string) State {
	if st, ok := s.States[name]; ok {
		return st
	}
	return StateUnclassified
}

// Quote returns the quote named name.
func (s *Session) Quote(name string) (models.Quote, bool) {
	for _, q := range s.Quotes {
		if q.Name == name {
			return q, true
		}
	}
	return models.Quote{}, false
}

// TotalTradedValue sums the known traded values of the session's quotes.
func (s *Session) TotalTradedValue() decimal.NullDecimal {
	total := decimal.Zero
	known := false
	for _, q := range s.Quotes {
		if q.TradedValue.Valid {
			total = total.Add(q.TradedValue.Decimal)
			known = true
		}
	}
	return decimal.NullDecimal{Decimal: total, Valid: known}
}

// derive copies s for a new cycle step. Slices and maps are copied so the
// result shares nothing mutable with s.
func (s *Session) derive(id string) *Session {
	n := &Session{
		ID:                 id,
		ParentID:           s.ID,
		ScannedAt:          s.ScannedAt,
		RefinedAt:          s.RefinedAt,
		MarketStatus:       s.MarketStatus,
		RuleSectors:        make(map[string][]string, len(s.RuleSectors)),
		States:             make(map[string]State, len(s.States)),
		ClassificationKind: s.ClassificationKind,
		Indices:            append([]models.IndexQuote(nil), s.Indices...),
		Themes:             append([]models.ThemeQuote(nil), s.Themes...),
		Warnings:           append([]string(nil), s.Warnings...),
	}
	n.Quotes = make([]models.Quote, len(s.Quotes))
	for i, q := range s.Quotes {
		n.Quotes[i] = q.Clone()
	}
	for k, v := range s.RuleSectors {
		n.RuleSectors[k] = append([]string(nil), v...)
	}
	for k, v := range s.States {
		n.States[k] = v
	}
	if s.Classification != nil {
		n.Classification = make(map[string]models.ClassificationResult, len(s.Classification))
		for k, v := range s.Classification {
			v.Sectors = append([]string(nil), v.Sectors...)
			n.Classification[k] = v
		}
	}
	if s.News != nil {
		n.News = make(map[string][]string, len(s.News))
		for k, v := range s.News {
			n.News[k] = append([]string(nil), v...)
		}
	}
	return n
}
