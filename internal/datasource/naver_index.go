package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/goldenkey/pkg/models"
)

// DefaultNaverIndexURL is the domestic index detail page.
const DefaultNaverIndexURL = "https://finance.naver.com/sise/sise_index.naver"

var percentPattern = regexp.MustCompile(`[+\-\x{2212}]?\s*\d+(?:\.\d+)?\s*%`)

// NaverIndexSource scrapes the domestic index page. It is the last tier
// and only serves KR indices that carry a page code.
type NaverIndexSource struct {
	client  *http.Client
	baseURL string
	charset string
}

// NewNaverIndexSource creates the tier.
func NewNaverIndexSource(client *http.Client, baseURL, defaultCharset string) *NaverIndexSource {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if baseURL == "" {
		baseURL = DefaultNaverIndexURL
	}
	if defaultCharset == "" {
		defaultCharset = DefaultListingCharset
	}
	return &NaverIndexSource{client: client, baseURL: baseURL, charset: defaultCharset}
}

// Name returns the tier name.
func (n *NaverIndexSource) Name() string { return TierNaverIndex }

// Supports reports whether spec is a KR index with a page code.
func (n *NaverIndexSource) Supports(spec models.IndexSpec) bool {
	return spec.MarketHint == models.MarketHintKR && spec.Code != ""
}

// Lookup fetches the page for spec.Code.
func (n *NaverIndexSource) Lookup(ctx context.Context, spec models.IndexSpec) (IndexReading, error) {
	if !n.Supports(spec) {
		return IndexReading{}, ErrNotSupported
	}
	u, err := url.Parse(n.baseURL)
	if err != nil {
		return IndexReading{}, fmt.Errorf("index url: %w", err)
	}
	q := u.Query()
	q.Set("code", spec.Code)
	u.RawQuery = q.Encode()

	doc, err := fetchDocument(ctx, n.client, u.String(), n.charset)
	if err != nil {
		return IndexReading{}, err
	}
	return parseNaverIndex(doc)
}

// parseNaverIndex reads #now_value and the percent inside
// #change_value_and_rate. A falling index may render its rate without a
// sign, so the hidden "하락" label decides the sign.
func parseNaverIndex(doc *goquery.Document) (IndexReading, error) {
	value := strings.TrimSpace(doc.Find("#now_value").First().Text())
	if value == "" {
		return IndexReading{}, fmt.Errorf("naver index: missing value: %w", ErrDegenerateValue)
	}

	box := doc.Find("#change_value_and_rate").First()
	rate := strings.ReplaceAll(percentPattern.FindString(box.Text()), " ", "")
	if rate != "" && !strings.HasPrefix(rate, "-") && !strings.HasPrefix(rate, "+") && !strings.HasPrefix(rate, "−") {
		if strings.Contains(box.Find(".blind").Text(), "하락") {
			rate = "-" + rate
		}
	}
	return IndexReading{Value: value, Change: rate}, nil
}
