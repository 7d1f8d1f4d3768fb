package models

// Index resolution sentinels.
const (
	IndexUnavailable = "N/A"
	IndexZeroChange  = "+0.00%"
	IndexSourceNone  = "none"
	MarketHintKR     = "KR"
	MarketHintUS     = "US"
)

// IndexSpec names one index or ETF proxy shown alongside the scan.
type IndexSpec struct {
	Label      string `json:"label"       mapstructure:"label"       yaml:"label"`
	Ticker     string `json:"ticker"      mapstructure:"ticker"      yaml:"ticker"`
	MarketHint string `json:"market_hint" mapstructure:"market_hint" yaml:"market_hint"`
	// Code is the region-specific page code, used only by sources that need it.
	Code string `json:"code,omitempty" mapstructure:"code" yaml:"code"`
	// Sector ties an ETF proxy to the domestic sector tag it tracks.
	Sector string `json:"sector,omitempty" mapstructure:"sector" yaml:"sector"`
}

// IndexQuote is the resolved display state of one index.
// Value is a display string and is not guaranteed to be numeric.
type IndexQuote struct {
	Label         string `json:"label"`
	Ticker        string `json:"ticker"`
	Value         string `json:"value"`
	ChangeDisplay string `json:"change_display"`
	SourceUsed    string `json:"source_used"`
}

// Available reports whether any source produced the quote.
func (q IndexQuote) Available() bool {
	return q.SourceUsed != IndexSourceNone && q.SourceUsed != ""
}

// ThemeQuote is a resolved ETF proxy for one sector, shown in the US theme
// flow panel with that sector's badge colour.
type ThemeQuote struct {
	IndexQuote
	Sector string `json:"sector"`
	Color  string `json:"color"`
}

// NewThemeQuote attaches the spec's sector and its palette colour to q.
func NewThemeQuote(spec IndexSpec, q IndexQuote) ThemeQuote {
	return ThemeQuote{IndexQuote: q, Sector: spec.Sector, Color: SectorColor(spec.Sector)}
}

// DefaultIndices is the sidebar set: US growth/semis gauges plus the two domestic boards.
var DefaultIndices = []IndexSpec{
	{Label: "나스닥 (기술주)", Ticker: "^IXIC", MarketHint: MarketHintUS},
	{Label: "S&P 500 (우량주)", Ticker: "^GSPC", MarketHint: MarketHintUS},
	{Label: "필라델피아 반도체", Ticker: "^SOX", MarketHint: MarketHintUS},
	{Label: "코스피", Ticker: "^KS11", MarketHint: MarketHintKR, Code: "KOSPI"},
	{Label: "코스닥", Ticker: "^KQ11", MarketHint: MarketHintKR, Code: "KOSDAQ"},
}

// DefaultThemeProxies are US ETFs read as the overnight lead for the
// domestic sectors of the same name.
var DefaultThemeProxies = []IndexSpec{
	{Label: "반도체 (SOXX)", Ticker: "SOXX", MarketHint: MarketHintUS, Sector: "반도체"},
	{Label: "로봇/AI (BOTZ)", Ticker: "BOTZ", MarketHint: MarketHintUS, Sector: "로봇/AI"},
	{Label: "2차전지 (LIT)", Ticker: "LIT", MarketHint: MarketHintUS, Sector: "2차전지"},
	{Label: "전력/원전 (URA)", Ticker: "URA", MarketHint: MarketHintUS, Sector: "전력/원전"},
}
