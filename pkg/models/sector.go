package models

import "github.com/shopspring/decimal"

// FallbackSector is the tag assigned when nothing else classifies an instrument.
const FallbackSector = "개별주"

// SectorGroup is a derived view: every member carries Sector in its Sectors.
// Members are ordered by change percent, descending; Leader is Members[0].
type SectorGroup struct {
	Sector     string          `json:"sector"`
	Members    []Quote         `json:"members"`
	Leader     Quote           `json:"leader"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// Count returns the number of members.
func (g SectorGroup) Count() int { return len(g.Members) }

// ClassificationResult is one instrument's validated model classification.
type ClassificationResult struct {
	Sectors      []string `json:"sectors"`
	Rationale    string   `json:"rationale"`
	EvidenceDate string   `json:"evidence_date"`
}

// SectorColors is the badge palette handed to the presentation layer.
var SectorColors = map[string]string{
	"반도체":          "#dbeafe",
	"로봇/AI":        "#ede9fe",
	"2차전지":         "#d1fae5",
	"전력/원전":        "#fef3c7",
	"바이오":          "#fee2e2",
	"방산/우주":        "#f1f5f9",
	"금융/지주":        "#f3f4f6",
	FallbackSector: "#ffffff",
}

// SectorColor returns the palette entry for tag, white when unknown.
func SectorColor(tag string) string {
	if c, ok := SectorColors[tag]; ok {
		return c
	}
	return "#ffffff"
}
