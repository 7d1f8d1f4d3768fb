package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/goldenkey/internal/scan"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

func TestPrintSession(t *testing.T) {
	q := func(name, change string, value int64, tags ...string) models.Quote {
		return models.Quote{
			Name:          name,
			Market:        models.MarketKOSDAQ,
			ChangePercent: decimal.NewNullDecimal(decimal.RequireFromString(change)),
			TradedValue:   decimal.NewNullDecimal(decimal.NewFromInt(value)),
			Sectors:       tags,
		}
	}
	quotes := []models.Quote{
		q("알파반도체", "25.1", 2500, "반도체"),
		q("베타", "5.2", 3000, models.FallbackSector),
	}
	s := &scan.Session{
		ID:           "s1",
		ScannedAt:    time.Date(2026, 3, 5, 15, 40, 0, 0, utils.KST),
		MarketStatus: "CLOSED",
		Quotes:       quotes,
		Summary:      scan.GroupBySector(quotes, models.FallbackSector),
		Themes: []models.ThemeQuote{
			models.NewThemeQuote(models.DefaultThemeProxies[0], models.IndexQuote{
				Label: "반도체 (SOXX)", Ticker: "SOXX", Value: "231.40", ChangeDisplay: "-1.20%", SourceUsed: "yahoo-chart",
			}),
		},
		Warnings: []string{"KOSPI 시세를 가져오지 못했습니다"},
	}

	var buf bytes.Buffer
	printSession(&buf, s)
	out := buf.String()

	for _, want := range []string{
		"2 movers",
		"■ 반도체  (1, 25억)",
		"알파반도체",
		"+25.10%",
		"🔥",
		"■ " + models.FallbackSector + "  (1)",
		"⚠️  KOSPI 시세를 가져오지 못했습니다",
		"theme flow",
		"SOXX",
		"-1.20%",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "refined") {
		t.Error("unrefined session should not print a refine line")
	}
}

func TestPrintIndices(t *testing.T) {
	var buf bytes.Buffer
	printIndices(&buf, []models.IndexQuote{
		{Label: "KOSPI", Value: "2,650.12", ChangeDisplay: "+0.52%", SourceUsed: "yahoo-quote"},
	})
	if out := buf.String(); !strings.Contains(out, "2,650.12") || !strings.Contains(out, "(yahoo-quote)") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestParseMarkets(t *testing.T) {
	got, err := parseMarkets([]string{"kosdaq", "KOSPI", "코스닥"})
	if err != nil {
		t.Fatalf("parseMarkets: %v", err)
	}
	want := []models.Market{models.MarketKOSDAQ, models.MarketKOSPI}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("parseMarkets = %v, want %v", got, want)
	}

	if got, err := parseMarkets(nil); err != nil || got != nil {
		t.Errorf("empty flag: got %v, %v", got, err)
	}
	if _, err := parseMarkets([]string{"nasdaq"}); err == nil {
		t.Error("expected an error for an unknown market")
	}
}
