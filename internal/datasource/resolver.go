package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/logger"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

// IndexReading is one source tier's answer for an index, as display text.
// Change may or may not carry an explicit sign or percent mark.
type IndexReading struct {
	Value  string
	Change string
}

// IndexSource is one tier of the index fallback chain.
type IndexSource interface {
	// Name identifies the tier in IndexQuote.SourceUsed.
	Name() string

	// Supports reports whether the tier can serve spec at all.
	Supports(spec models.IndexSpec) bool

	// Lookup fetches the current reading.
	Lookup(ctx context.Context, spec models.IndexSpec) (IndexReading, error)
}

// Resolver walks an ordered list of index sources and returns the first
// usable reading.
type Resolver struct {
	sources  []IndexSource
	throttle *Throttle
	cache    *Cache
	log      logrus.FieldLogger
}

// NewResolver creates a resolver over sources, tried in the given order.
// A non-positive cacheTTL disables caching.
func NewResolver(log logrus.FieldLogger, throttle *Throttle, cacheTTL time.Duration, sources ...IndexSource) *Resolver {
	r := &Resolver{
		sources:  sources,
		throttle: throttle,
		log:      logger.WithComponent(log, "resolver"),
	}
	if cacheTTL > 0 {
		r.cache = NewCache(cacheTTL)
	}
	return r
}

// NewResolverFromConfig wires the default tier order: the Yahoo quote API,
// the Yahoo chart endpoint, then the domestic index page.
func NewResolverFromConfig(src config.SourcesConfig, throttle *Throttle, log logrus.FieldLogger) *Resolver {
	client := NewHTTPClient(src.Timeout)
	return NewResolver(log, throttle, src.IndexCacheTTL,
		NewYahooQuoteSource(nil),
		NewYahooChartSource(client, src.YahooChartURL),
		NewNaverIndexSource(client, src.NaverIndexURL, src.DefaultCharset),
	)
}

// Unavailable is the resolved state when every tier failed.
func Unavailable(spec models.IndexSpec) models.IndexQuote {
	return models.IndexQuote{
		Label:         spec.Label,
		Ticker:        spec.Ticker,
		Value:         models.IndexUnavailable,
		ChangeDisplay: models.IndexZeroChange,
		SourceUsed:    models.IndexSourceNone,
	}
}

// Resolve looks up ticker using the market hint to pick eligible tiers.
func (r *Resolver) Resolve(ctx context.Context, ticker, hint string) models.IndexQuote {
	return r.ResolveSpec(ctx, models.IndexSpec{Label: ticker, Ticker: ticker, MarketHint: hint})
}

// ResolveSpec tries each supporting tier in order and returns the first
// accepted reading. It never fails: when no tier succeeds the result is
// the unavailable sentinel with SourceUsed "none".
func (r *Resolver) ResolveSpec(ctx context.Context, spec models.IndexSpec) models.IndexQuote {
	key := spec.MarketHint + ":" + spec.Ticker + ":" + spec.Code
	if r.cache != nil {
		if cached, ok := r.cache.Get(key); ok {
			q := cached.(models.IndexQuote)
			q.Label = spec.Label
			return q
		}
	}

	log := r.log.WithFields(logrus.Fields{"ticker": spec.Ticker, "hint": spec.MarketHint})
	for _, src := range r.sources {
		if !src.Supports(spec) {
			continue
		}
		if err := r.throttle.Wait(ctx); err != nil {
			log.WithError(err).Debug("resolve cancelled")
			break
		}

		reading, err := src.Lookup(ctx, spec)
		if err == nil {
			reading, err = accept(reading)
		}
		if err != nil {
			log.WithError(err).WithField("tier", src.Name()).Debug("index tier skipped")
			continue
		}

		q := models.IndexQuote{
			Label:         spec.Label,
			Ticker:        spec.Ticker,
			Value:         reading.Value,
			ChangeDisplay: reading.Change,
			SourceUsed:    src.Name(),
		}
		if r.cache != nil {
			r.cache.Set(key, q)
		}
		return q
	}

	log.Warn("index unavailable from every tier")
	return Unavailable(spec)
}

// ResolveAll resolves specs sequentially, in order. Once ctx is done the
// remaining entries are reported unavailable.
func (r *Resolver) ResolveAll(ctx context.Context, specs []models.IndexSpec) []models.IndexQuote {
	out := make([]models.IndexQuote, 0, len(specs))
	for _, spec := range specs {
		if ctx.Err() != nil {
			out = append(out, Unavailable(spec))
			continue
		}
		out = append(out, r.ResolveSpec(ctx, spec))
	}
	return out
}

// accept validates a reading and normalizes its change display. A reading
// without a parseable change is degenerate: a flat "+0.00%" would report a
// move no source gave.
func accept(reading IndexReading) (IndexReading, error) {
	v := utils.ParseDisplayDecimal(reading.Value)
	if !v.Valid || v.Decimal.IsZero() {
		return IndexReading{}, fmt.Errorf("value %q: %w", reading.Value, ErrDegenerateValue)
	}

	change := utils.ParseDisplayDecimal(reading.Change)
	if !change.Valid {
		return IndexReading{}, fmt.Errorf("change %q: %w", reading.Change, ErrDegenerateValue)
	}
	d := change.Decimal.Abs()
	if utils.NormalizeSign(reading.Change)[0] == '-' {
		d = d.Neg()
	}
	reading.Change = utils.FormatSignedPercent(d)
	return reading, nil
}
