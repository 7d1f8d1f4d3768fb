package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/logger"
	"github.com/seenimoa/goldenkey/pkg/models"
)

// Column layout of the traded-value listing table.
const (
	listingTableSelector = "table.type_2"
	colName              = 1
	colChange            = 4
	colValue             = 6
	// A row must carry more than this many cells. Header, blank and
	// separator rows have fewer.
	minColumns = colValue
)

// DefaultListingURL is the per-market traded-value ranking page.
const DefaultListingURL = "https://finance.naver.com/sise/sise_quant.naver"

// DefaultListingCharset is used when the listing page declares no charset.
const DefaultListingCharset = "euc-kr"

// Listing fetches the traded-value ranking page of one market.
type Listing struct {
	client  *http.Client
	baseURL string
	charset string
	log     logrus.FieldLogger
}

// NewListing creates a listing fetcher from the sources config.
func NewListing(cfg config.SourcesConfig, log logrus.FieldLogger) *Listing {
	l := &Listing{
		client:  NewHTTPClient(cfg.Timeout),
		baseURL: cfg.ListingURL,
		charset: cfg.DefaultCharset,
		log:     logger.WithComponent(log, "listing"),
	}
	if l.baseURL == "" {
		l.baseURL = DefaultListingURL
	}
	if l.charset == "" {
		l.charset = DefaultListingCharset
	}
	return l
}

// Fetch returns the raw rows of one market's listing page in page order.
// Any failure (transport, non-200, decode, missing table) yields an empty
// slice and a warning in the log; Fetch never returns an error.
func (l *Listing) Fetch(ctx context.Context, market models.Market) []models.ListingRow {
	log := l.log.WithField("market", market.Label())

	rows, err := l.fetch(ctx, market)
	if err != nil {
		log.WithError(err).Warn("listing fetch failed")
		return []models.ListingRow{}
	}
	log.WithField("rows", len(rows)).Debug("listing fetched")
	return rows
}

func (l *Listing) fetch(ctx context.Context, market models.Market) ([]models.ListingRow, error) {
	u, err := url.Parse(l.baseURL)
	if err != nil {
		return nil, fmt.Errorf("listing url: %w", err)
	}
	q := u.Query()
	q.Set("sosok", market.Selector())
	u.RawQuery = q.Encode()

	doc, err := fetchDocument(ctx, l.client, u.String(), l.charset)
	if err != nil {
		return nil, err
	}
	return parseListing(doc, market)
}

// parseListing extracts rows from the first listing table of doc.
func parseListing(doc *goquery.Document, market models.Market) ([]models.ListingRow, error) {
	table := doc.Find(listingTableSelector).First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}

	rows := []models.ListingRow{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() <= minColumns {
			return
		}
		name := cellText(tds, colName)
		if name == "" {
			return
		}
		rows = append(rows, models.ListingRow{
			Market:     market,
			Name:       name,
			ChangeText: cellText(tds, colChange),
			ValueText:  cellText(tds, colValue),
		})
	})
	return rows, nil
}

func cellText(tds *goquery.Selection, i int) string {
	return strings.TrimSpace(tds.Eq(i).Text())
}
