// Package scan turns raw listing rows into ranked, sector-grouped scan
// sessions and refines them with news-driven model classification.
package scan

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

// Options are the aggregation knobs.
type Options struct {
	Exclusions       []string
	MinChangePercent decimal.Decimal
	TopN             int
}

// OptionsFromConfig converts the scan config section.
func OptionsFromConfig(scan config.ScanConfig) Options {
	return Options{
		Exclusions:       scan.Exclusions,
		MinChangePercent: decimal.NewFromFloat(scan.MinChangePercent),
		TopN:             scan.TopN,
	}
}

// ThemeLookup resolves an instrument's theme text. A nil result is the
// absent marker. datasource.ThemeTable implements it.
type ThemeLookup interface {
	Lookup(name string) *string
}

// Classifier assigns tags from a name and theme. sector.RuleClassifier
// implements it.
type Classifier interface {
	Classify(name string, theme *string) []string
	Fallback() string
}

// Aggregate runs the order-sensitive pipeline over rows:
// exclude, coerce, rank by traded value, cut to top N, apply the change
// threshold, attach themes and classify.
//
// Exclusion runs before coercion. Unknown numeric fields are kept through
// coercion, rank last and fail the threshold. Equal traded values keep
// fetch order. The threshold is inclusive.
func Aggregate(rows []models.ListingRow, opts Options, themes ThemeLookup, classifier Classifier) []models.Quote {
	quotes := make([]models.Quote, 0, len(rows))
	for _, r := range rows {
		if utils.ContainsAny(r.Name, opts.Exclusions) {
			continue
		}
		quotes = append(quotes, models.Quote{
			Name:          r.Name,
			Market:        r.Market,
			ChangePercent: utils.ParseDisplayDecimal(r.ChangeText),
			TradedValue:   utils.ParseDisplayDecimal(r.ValueText),
		})
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return nullDesc(quotes[i].TradedValue, quotes[j].TradedValue)
	})
	if opts.TopN > 0 && len(quotes) > opts.TopN {
		quotes = quotes[:opts.TopN]
	}

	out := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		if !q.ChangePercent.Valid || q.ChangePercent.Decimal.LessThan(opts.MinChangePercent) {
			continue
		}
		if themes != nil {
			q.Theme = themes.Lookup(q.Name)
		}
		if classifier != nil {
			q.Sectors = classifier.Classify(q.Name, q.Theme)
		}
		if len(q.Sectors) == 0 {
			q.Sectors = []string{fallbackOf(classifier)}
		}
		out = append(out, q)
	}
	return out
}

// nullDesc orders valid values descending with unknown values last.
func nullDesc(a, b decimal.NullDecimal) bool {
	switch {
	case a.Valid && b.Valid:
		return a.Decimal.GreaterThan(b.Decimal)
	case a.Valid:
		return true
	default:
		return false
	}
}

func fallbackOf(c Classifier) string {
	if c == nil || c.Fallback() == "" {
		return models.FallbackSector
	}
	return c.Fallback()
}
