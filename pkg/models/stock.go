// Package models defines the core data structures used throughout goldenkey.
package models

import (
	"github.com/shopspring/decimal"
)

// Market is the venue an instrument is listed on.
type Market string

const (
	MarketKOSPI  Market = "KOSPI"  // primary board
	MarketKOSDAQ Market = "KOSDAQ" // secondary board
)

// Markets lists the venues scanned in one cycle, in fetch order.
var Markets = []Market{MarketKOSPI, MarketKOSDAQ}

// Selector returns the listing-page segment selector for the market.
func (m Market) Selector() string {
	if m == MarketKOSDAQ {
		return "1"
	}
	return "0"
}

// Label returns the Korean display label for the market.
func (m Market) Label() string {
	switch m {
	case MarketKOSPI:
		return "코스피"
	case MarketKOSDAQ:
		return "코스닥"
	default:
		return string(m)
	}
}

// ParseMarket maps a user-supplied market name to a Market.
func ParseMarket(s string) (Market, bool) {
	switch s {
	case "KOSPI", "kospi", "코스피", "0":
		return MarketKOSPI, true
	case "KOSDAQ", "kosdaq", "코스닥", "1":
		return MarketKOSDAQ, true
	}
	return "", false
}

// ListingRow is one raw row scraped from a market listing page.
// Fields hold display text exactly as the page rendered it.
type ListingRow struct {
	Market     Market `json:"market"`
	Name       string `json:"name"`
	ChangeText string `json:"change_text"`
	ValueText  string `json:"value_text"`
}

// Quote is one instrument's snapshot within a scan cycle.
//
// ChangePercent and TradedValue use an invalid NullDecimal as the "unknown"
// marker; zero is a legitimate value. TradedValue is in millions of KRW.
// A nil Theme means the theme table had no entry for the instrument.
type Quote struct {
	Name          string              `json:"name"`
	Market        Market              `json:"market"`
	ChangePercent decimal.NullDecimal `json:"change_percent"`
	TradedValue   decimal.NullDecimal `json:"traded_value"`
	Theme         *string             `json:"theme"`
	Sectors       []string            `json:"sectors"`
}

// Clone returns a deep copy so a later cycle never aliases an earlier one.
func (q Quote) Clone() Quote {
	c := q
	if q.Theme != nil {
		t := *q.Theme
		c.Theme = &t
	}
	c.Sectors = append([]string(nil), q.Sectors...)
	return c
}

// HeatBand buckets a change percent for display emphasis.
type HeatBand string

const (
	HeatHot     HeatBand = "hot"     // >= 20%
	HeatWarm    HeatBand = "warm"    // >= 10%
	HeatNeutral HeatBand = "neutral" // everything else, including unknown
)

// Heat returns the display band for the quote's change percent.
func (q Quote) Heat() HeatBand {
	if !q.ChangePercent.Valid {
		return HeatNeutral
	}
	switch {
	case q.ChangePercent.Decimal.GreaterThanOrEqual(decimal.NewFromInt(20)):
		return HeatHot
	case q.ChangePercent.Decimal.GreaterThanOrEqual(decimal.NewFromInt(10)):
		return HeatWarm
	default:
		return HeatNeutral
	}
}
