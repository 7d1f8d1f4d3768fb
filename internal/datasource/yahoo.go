package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

// Tier names reported in IndexQuote.SourceUsed.
const (
	TierYahooQuote = "yahoo-quote"
	TierYahooChart = "yahoo-chart"
	TierNaverIndex = "naver-index"
)

// DefaultYahooChartURL is the v8 chart endpoint; the ticker is appended.
const DefaultYahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// --- Tier 1: quote API through finance-go ---

// QuoteFunc fetches one quote. quote.Get satisfies it.
type QuoteFunc func(symbol string) (*finance.Quote, error)

// YahooQuoteSource reads the regular-market price and change percent from
// the Yahoo quote API.
type YahooQuoteSource struct {
	get QuoteFunc
}

// NewYahooQuoteSource creates the tier. A nil get uses quote.Get.
func NewYahooQuoteSource(get QuoteFunc) *YahooQuoteSource {
	if get == nil {
		get = quote.Get
	}
	return &YahooQuoteSource{get: get}
}

// Name returns the tier name.
func (y *YahooQuoteSource) Name() string { return TierYahooQuote }

// Supports reports true for every ticker.
func (y *YahooQuoteSource) Supports(spec models.IndexSpec) bool { return spec.Ticker != "" }

// Lookup fetches the quote. finance-go has no context support, so the call
// runs in its own goroutine and is abandoned when ctx is done.
func (y *YahooQuoteSource) Lookup(ctx context.Context, spec models.IndexSpec) (IndexReading, error) {
	type result struct {
		q   *finance.Quote
		err error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := y.get(spec.Ticker)
		ch <- result{q, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return IndexReading{}, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		return IndexReading{}, fmt.Errorf("yahoo quote %s: %w", spec.Ticker, r.err)
	}
	if r.q == nil {
		return IndexReading{}, fmt.Errorf("yahoo quote %s: %w", spec.Ticker, ErrTickerNotFound)
	}
	if r.q.RegularMarketPrice == 0 {
		return IndexReading{}, fmt.Errorf("yahoo quote %s price 0: %w", spec.Ticker, ErrDegenerateValue)
	}
	return IndexReading{
		Value:  utils.FormatGrouped(r.q.RegularMarketPrice, 2),
		Change: utils.FormatSignedPercent(decimal.NewFromFloat(r.q.RegularMarketChangePercent)),
	}, nil
}

// --- Tier 2: v8 chart JSON ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta yfChartMeta `json:"meta"`
}

type yfChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	PreviousClose      float64 `json:"previousClose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// YahooChartSource derives the change from the chart meta block: the
// regular-market price against the previous close.
type YahooChartSource struct {
	client  *http.Client
	baseURL string
}

// NewYahooChartSource creates the tier. An empty baseURL uses DefaultYahooChartURL.
func NewYahooChartSource(client *http.Client, baseURL string) *YahooChartSource {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if baseURL == "" {
		baseURL = DefaultYahooChartURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &YahooChartSource{client: client, baseURL: baseURL}
}

// Name returns the tier name.
func (y *YahooChartSource) Name() string { return TierYahooChart }

// Supports reports true for every ticker.
func (y *YahooChartSource) Supports(spec models.IndexSpec) bool { return spec.Ticker != "" }

// Lookup fetches and parses the chart meta.
func (y *YahooChartSource) Lookup(ctx context.Context, spec models.IndexSpec) (IndexReading, error) {
	u := y.baseURL + url.PathEscape(spec.Ticker) + "?range=1d&interval=1d"

	body, _, err := doGet(ctx, y.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return IndexReading{}, err
	}
	defer body.Close()

	var resp yfChartResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return IndexReading{}, fmt.Errorf("decode chart %s: %w", spec.Ticker, err)
	}
	return parseChartReading(resp, spec.Ticker)
}

func parseChartReading(resp yfChartResponse, ticker string) (IndexReading, error) {
	if resp.Chart.Error != nil {
		return IndexReading{}, fmt.Errorf("chart %s: %s: %s: %w", ticker, resp.Chart.Error.Code, resp.Chart.Error.Description, ErrTickerNotFound)
	}
	if len(resp.Chart.Result) == 0 {
		return IndexReading{}, fmt.Errorf("chart %s: empty result: %w", ticker, ErrTickerNotFound)
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice == 0 {
		return IndexReading{}, fmt.Errorf("chart %s price 0: %w", ticker, ErrDegenerateValue)
	}

	prev := meta.ChartPreviousClose
	if prev == 0 {
		prev = meta.PreviousClose
	}
	if prev == 0 {
		return IndexReading{}, fmt.Errorf("chart %s: no previous close: %w", ticker, ErrDegenerateValue)
	}

	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	p := decimal.NewFromFloat(prev)
	pct := price.Sub(p).Div(p).Mul(decimal.NewFromInt(100))
	return IndexReading{
		Value:  utils.FormatGrouped(meta.RegularMarketPrice, 2),
		Change: utils.FormatSignedPercent(pct),
	}, nil
}
