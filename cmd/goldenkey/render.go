package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/goldenkey/internal/scan"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

var heatMark = map[models.HeatBand]string{
	models.HeatHot:     "🔥",
	models.HeatWarm:    "▲",
	models.HeatNeutral: " ",
}

// printSession writes the sector summary, the ungrouped movers and any
// warnings as plain text.
func printSession(w io.Writer, s *scan.Session) {
	fmt.Fprintf(w, "🔑 %s  [%s]  %d movers, %s traded\n",
		utils.FormatDateTimeKST(s.ScannedAt), s.MarketStatus, len(s.Quotes),
		utils.FormatTradedValue(s.TotalTradedValue()))
	if s.Refined() {
		fmt.Fprintf(w, "   refined %s (%s)\n", utils.FormatClockKST(s.RefinedAt), s.ClassificationKind)
	}
	fmt.Fprintln(w)

	if len(s.Indices) > 0 {
		printIndices(w, s.Indices)
		fmt.Fprintln(w)
	}
	if len(s.Themes) > 0 {
		printThemes(w, s.Themes)
		fmt.Fprintln(w)
	}

	for _, g := range s.Summary.Groups {
		fmt.Fprintf(w, "■ %s  (%d, %s)\n", g.Sector, len(g.Members),
			utils.FormatTradedValue(nullable(g.TotalValue)))
		printQuotes(w, g.Members)
		if r, ok := s.Classification[g.Leader.Name]; ok && r.Rationale != "" {
			fmt.Fprintf(w, "    ↳ %s\n", r.Rationale)
		}
		fmt.Fprintln(w)
	}

	if len(s.Summary.Individual) > 0 {
		fmt.Fprintf(w, "■ %s  (%d)\n", fallbackLabel(), len(s.Summary.Individual))
		printQuotes(w, s.Summary.Individual)
		fmt.Fprintln(w)
	}

	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "⚠️  %s\n", warn)
	}
}

func printQuotes(w io.Writer, quotes []models.Quote) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, q := range quotes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t\n",
			heatMark[q.Heat()], q.Name, utils.FormatChangePercent(q.ChangePercent),
			utils.FormatTradedValue(q.TradedValue), strings.Join(q.Sectors, ","))
	}
	tw.Flush()
}

func printIndices(w io.Writer, quotes []models.IndexQuote) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, q := range quotes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t(%s)\n", q.Label, q.Value, q.ChangeDisplay, q.SourceUsed)
	}
	tw.Flush()
}

// printThemes writes the US theme flow panel: one ETF proxy per sector.
func printThemes(w io.Writer, quotes []models.ThemeQuote) {
	fmt.Fprintln(w, "  🇺🇸 theme flow")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, q := range quotes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t(%s)\n", q.Sector, q.Ticker, q.Value, q.ChangeDisplay, q.SourceUsed)
	}
	tw.Flush()
}

func nullable(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

func fallbackLabel() string {
	if cfg != nil && cfg.Scan.FallbackSector != "" {
		return cfg.Scan.FallbackSector
	}
	return models.FallbackSector
}
