package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/logger"
)

// HeadlineCollectionFailed is the single-element result returned when no
// headline source produced anything. It is distinct from "no news".
const HeadlineCollectionFailed = "⚠️ 뉴스 수집 실패"

// News defaults.
const (
	DefaultNewsSearchURL   = "https://search.naver.com/search.naver"
	DefaultNewsRSSURL      = "https://news.google.com/rss/search"
	DefaultNewsQueryPrefix = "특징주 "
	DefaultMaxHeadlines    = 10
	DefaultMinHeadlines    = 3
)

// IsCollectionFailure reports whether headlines is the failure sentinel.
func IsCollectionFailure(headlines []string) bool {
	return len(headlines) == 1 && headlines[0] == HeadlineCollectionFailed
}

// HeadlineSource is one news search endpoint.
type HeadlineSource interface {
	Name() string
	Search(ctx context.Context, query string) ([]string, error)
}

// --- Primary: HTML news search ---

// newsTitleSelectors are tried in order until one matches.
var newsTitleSelectors = []string{
	"a.news_tit",
	"div.news_contents a.news_tit",
	"a[data-heatmap-target='.tit']",
}

// NaverNewsSource scrapes the news tab of the web search page.
type NaverNewsSource struct {
	client  *http.Client
	baseURL string
}

// NewNaverNewsSource creates the primary headline source.
func NewNaverNewsSource(client *http.Client, baseURL string) *NaverNewsSource {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if baseURL == "" {
		baseURL = DefaultNewsSearchURL
	}
	return &NaverNewsSource{client: client, baseURL: baseURL}
}

// Name returns the source name.
func (n *NaverNewsSource) Name() string { return "naver-news" }

// Search returns headline texts for query, newest first.
func (n *NaverNewsSource) Search(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(n.baseURL)
	if err != nil {
		return nil, fmt.Errorf("news url: %w", err)
	}
	q := u.Query()
	q.Set("where", "news")
	q.Set("sort", "1")
	q.Set("query", query)
	u.RawQuery = q.Encode()

	doc, err := fetchDocument(ctx, n.client, u.String(), "utf-8")
	if err != nil {
		return nil, err
	}
	return parseNewsTitles(doc), nil
}

func parseNewsTitles(doc *goquery.Document) []string {
	for _, sel := range newsTitleSelectors {
		var titles []string
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			t, ok := a.Attr("title")
			if !ok || strings.TrimSpace(t) == "" {
				t = a.Text()
			}
			if t = strings.TrimSpace(t); t != "" {
				titles = append(titles, t)
			}
		})
		if len(titles) > 0 {
			return titles
		}
	}
	return nil
}

// --- Secondary: RSS news search ---

// GoogleNewsSource queries the RSS search feed.
type GoogleNewsSource struct {
	parser  *gofeed.Parser
	baseURL string
}

// NewGoogleNewsSource creates the secondary headline source.
func NewGoogleNewsSource(client *http.Client, baseURL string) *GoogleNewsSource {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if baseURL == "" {
		baseURL = DefaultNewsRSSURL
	}
	p := gofeed.NewParser()
	p.Client = client
	p.UserAgent = DefaultUserAgent
	return &GoogleNewsSource{parser: p, baseURL: baseURL}
}

// Name returns the source name.
func (g *GoogleNewsSource) Name() string { return "google-news" }

// Search returns item titles for query with the publisher suffix removed.
func (g *GoogleNewsSource) Search(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("rss url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("hl", "ko")
	q.Set("gl", "KR")
	q.Set("ceid", "KR:ko")
	u.RawQuery = q.Encode()

	feed, err := g.parser.ParseURLWithContext(u.String(), ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS: %w", err)
	}

	titles := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if t := trimPublisher(cleanHTML(item.Title)); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// trimPublisher drops the " - Publisher" suffix RSS aggregators append.
func trimPublisher(title string) string {
	if i := strings.LastIndex(title, " - "); i > 0 {
		return strings.TrimSpace(title[:i])
	}
	return title
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// --- Collector ---

// NewsCollector gathers headlines for one instrument from a primary source
// and, when that is thin, a secondary one. It issues at most one request
// per source per call and never retries; pacing is the caller's job.
type NewsCollector struct {
	primary   HeadlineSource
	secondary HeadlineSource
	prefix    string
	min       int
	max       int
	log       logrus.FieldLogger
}

// NewNewsCollector creates a collector over the two sources. Either may be
// nil. Non-positive limits fall back to the defaults.
func NewNewsCollector(primary, secondary HeadlineSource, prefix string, minHeadlines, maxHeadlines int, log logrus.FieldLogger) *NewsCollector {
	if minHeadlines <= 0 {
		minHeadlines = DefaultMinHeadlines
	}
	if maxHeadlines <= 0 {
		maxHeadlines = DefaultMaxHeadlines
	}
	return &NewsCollector{
		primary:   primary,
		secondary: secondary,
		prefix:    prefix,
		min:       minHeadlines,
		max:       maxHeadlines,
		log:       logger.WithComponent(log, "news"),
	}
}

// NewNewsCollectorFromConfig wires the default HTML and RSS sources.
func NewNewsCollectorFromConfig(src config.SourcesConfig, scan config.ScanConfig, log logrus.FieldLogger) *NewsCollector {
	client := NewHTTPClient(src.Timeout)
	prefix := src.NewsQueryPrefix
	if prefix == "" {
		prefix = DefaultNewsQueryPrefix
	}
	return NewNewsCollector(
		NewNaverNewsSource(client, src.NewsSearchURL),
		NewGoogleNewsSource(client, src.NewsRSSURL),
		prefix, scan.MinHeadlines, scan.MaxHeadlines, log,
	)
}

// Query returns the search query used for name.
func (c *NewsCollector) Query(name string) string {
	return c.prefix + name
}

// Collect returns up to max distinct headlines for name, primary results
// first. When both sources come back empty the result is the
// single-element HeadlineCollectionFailed list.
func (c *NewsCollector) Collect(ctx context.Context, name string) []string {
	query := c.Query(name)
	log := c.log.WithField("name", name)

	headlines := dedupe(c.search(ctx, c.primary, query, log), c.max)
	if len(headlines) < c.min && ctx.Err() == nil {
		headlines = dedupe(append(headlines, c.search(ctx, c.secondary, query, log)...), c.max)
	}

	if len(headlines) == 0 {
		log.Warn("no headlines from any source")
		return []string{HeadlineCollectionFailed}
	}
	return headlines
}

func (c *NewsCollector) search(ctx context.Context, src HeadlineSource, query string, log logrus.FieldLogger) []string {
	if src == nil {
		return nil
	}
	titles, err := src.Search(ctx, query)
	if err != nil {
		log.WithError(err).WithField("source", src.Name()).Debug("headline source failed")
		return nil
	}
	return titles
}

// dedupe removes exact duplicates and empty strings, keeping first-seen
// order, and caps the result at limit entries.
func dedupe(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
