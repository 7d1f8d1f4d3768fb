// Package datasource fetches raw market data from public finance pages:
// the per-market traded-value listing, index values from several source
// tiers, news headlines, and the on-disk theme table.
//
// Every exported fetch operation recovers upstream failures at its own
// boundary and reports them as data (an empty slice, a sentinel value or
// the next tier) rather than as an error.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// --- Sentinel errors ---

// ErrDegenerateValue is returned by a source tier whose parse produced an
// empty or zero value, which indicates a broken page rather than a real zero.
var ErrDegenerateValue = errors.New("degenerate value from data source")

// ErrNoTable is returned when a listing page has no matching table.
var ErrNoTable = errors.New("listing table not found")

// ErrNotSupported is returned when a source tier cannot serve a ticker.
var ErrNotSupported = errors.New("operation not supported by this data source")

// ErrTickerNotFound is returned when a source has no data for a ticker.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests. Several
// upstream pages reject the Go default client identification.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// DefaultTimeout bounds every upstream request.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout
// when timeout is not positive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// doGet performs a GET request with browser-like headers and returns the
// response body and its Content-Type. The caller closes the body.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// declaredCharset returns the charset parameter of a Content-Type header,
// or "" when none is declared.
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["charset"])
}

// decodeBody wraps r in a decoder for the charset the response declared,
// falling back to defaultLabel. The body is never sniffed.
func decodeBody(r io.Reader, contentType, defaultLabel string) (io.Reader, error) {
	label := declaredCharset(contentType)
	if label == "" {
		label = defaultLabel
	}
	if label == "" {
		return r, nil
	}
	dec, err := charset.NewReaderLabel(label, r)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", label, err)
	}
	return dec, nil
}

// fetchDocument GETs url, decodes it and parses it into a goquery document.
func fetchDocument(ctx context.Context, client *http.Client, url, defaultCharset string) (*goquery.Document, error) {
	body, contentType, err := doGet(ctx, client, url, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	r, err := decodeBody(body, contentType, defaultCharset)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// --- Throttle ---

// Throttle enforces a minimum delay between consecutive upstream calls.
// A scan issues its calls one at a time, so a burst of one is enough.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle that admits one call per delay. A
// non-positive delay disables throttling.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next call may go out or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return ctx.Err()
	}
	return t.limiter.Wait(ctx)
}
