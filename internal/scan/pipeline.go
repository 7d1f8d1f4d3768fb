package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/datasource"
	"github.com/seenimoa/goldenkey/internal/llm"
	"github.com/seenimoa/goldenkey/internal/logger"
	"github.com/seenimoa/goldenkey/internal/sector"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

// ListingFetcher returns raw rows for one market; empty means degraded.
type ListingFetcher interface {
	Fetch(ctx context.Context, market models.Market) []models.ListingRow
}

// HeadlineCollector returns headlines for one instrument.
type HeadlineCollector interface {
	Collect(ctx context.Context, name string) []string
}

// IndexResolver resolves the sidebar indices.
type IndexResolver interface {
	ResolveAll(ctx context.Context, specs []models.IndexSpec) []models.IndexQuote
}

// BatchClassifier classifies many instruments in one call.
type BatchClassifier interface {
	Classify(ctx context.Context, headlines map[string][]string) sector.Outcome
}

// Deps are the collaborators of a Pipeline. Listing and Rules are
// required; a nil News or Model disables Refine, a nil Resolver leaves
// indices empty.
type Deps struct {
	Listing  ListingFetcher
	News     HeadlineCollector
	Resolver IndexResolver
	Rules    Classifier
	Model    BatchClassifier
	Throttle *datasource.Throttle

	// Themes is called once per scan so the table is read fresh each cycle.
	Themes func() ThemeLookup
}

// Pipeline runs scan cycles. It holds no per-cycle state; callers own
// the sessions it returns and must not run two cycles at once.
type Pipeline struct {
	deps    Deps
	opts    Options
	markets []models.Market
	indices []models.IndexSpec
	themes  []models.IndexSpec
	merge   MergePolicy
	now     func() time.Time
	newID   func() string
	log     logrus.FieldLogger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMarkets sets the venues fetched per scan.
func WithMarkets(markets ...models.Market) Option {
	return func(p *Pipeline) { p.markets = markets }
}

// WithIndices sets the index list resolved per scan.
func WithIndices(specs []models.IndexSpec) Option {
	return func(p *Pipeline) { p.indices = specs }
}

// WithMergePolicy sets how model tags combine with rule tags.
func WithMergePolicy(m MergePolicy) Option {
	return func(p *Pipeline) { p.merge = m }
}

// WithThemeProxies sets the sector ETF proxies resolved per scan.
func WithThemeProxies(specs []models.IndexSpec) Option {
	return func(p *Pipeline) { p.themes = specs }
}

// WithClock sets the session clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDFunc sets the session ID generator.
func WithIDFunc(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

// New creates a pipeline.
func New(deps Deps, opts Options, log logrus.FieldLogger, options ...Option) *Pipeline {
	p := &Pipeline{
		deps:    deps,
		opts:    opts,
		markets: models.Markets,
		merge:   MergeOverwrite,
		now:     utils.NowKST,
		newID:   uuid.NewString,
		log:     logger.WithComponent(log, "scan"),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// NewFromConfig wires every collaborator from cfg. The model path is
// enabled only when at least one LLM key is configured. options are
// applied after the config-derived ones.
func NewFromConfig(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, options ...Option) (*Pipeline, error) {
	merge, err := ParseMergePolicy(cfg.Scan.MergePolicy)
	if err != nil {
		return nil, err
	}

	throttle := datasource.NewThrottle(cfg.Scan.RequestDelay)
	rules := sector.NewRuleClassifierFromConfig(cfg.Scan)
	deps := Deps{
		Listing:  datasource.NewListing(cfg.Sources, log),
		News:     datasource.NewNewsCollectorFromConfig(cfg.Sources, cfg.Scan, log),
		Resolver: datasource.NewResolverFromConfig(cfg.Sources, throttle, log),
		Rules:    rules,
		Throttle: throttle,
		Themes: func() ThemeLookup {
			return datasource.LoadThemeTable(cfg.Scan.ThemeDB, log)
		},
	}

	if config.AnyLLMKey(cfg) {
		router, err := llm.NewRouterFromConfig(ctx, cfg.LLM, log)
		switch {
		case err == nil:
			deps.Model = sector.NewModelClassifier(router, rules.Fallback(), log,
				sector.WithHints(ruleTags(cfg.Scan)...),
				sector.WithChatOptions(&llm.ChatOptions{
					Temperature: cfg.LLM.Temperature,
					MaxTokens:   cfg.LLM.MaxTokens,
					JSONMode:    true,
				}))
		case errors.Is(err, llm.ErrNoProviders):
			logger.WithComponent(log, "scan").Warn("no usable LLM provider, refine disabled")
		default:
			return nil, fmt.Errorf("llm router: %w", err)
		}
	}

	return New(deps, OptionsFromConfig(cfg.Scan), log, append([]Option{
		WithIndices(cfg.Indices),
		WithThemeProxies(cfg.Themes),
		WithMergePolicy(merge),
	}, options...)...), nil
}

// CanRefine reports whether a model classifier and news collector are wired.
func (p *Pipeline) CanRefine() bool {
	return p.deps.Model != nil && p.deps.News != nil
}

// Scan fetches every market, aggregates, groups and resolves indices into
// a new session. prev, when given, becomes the parent. Upstream failures
// are reported in Warnings; the only error is ctx's.
func (p *Pipeline) Scan(ctx context.Context, prev *Session) (*Session, error) {
	start := time.Now()
	s := &Session{
		ID:          p.newID(),
		ScannedAt:   p.now(),
		RuleSectors: map[string][]string{},
		States:      map[string]State{},
	}
	s.MarketStatus = utils.MarketStatus(s.ScannedAt)
	if prev != nil {
		s.ParentID = prev.ID
	}

	var rows []models.ListingRow
	for _, m := range p.markets {
		if err := p.deps.Throttle.Wait(ctx); err != nil {
			return nil, err
		}
		got := p.deps.Listing.Fetch(ctx, m)
		if len(got) == 0 {
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s 시세를 가져오지 못했습니다", m.Label()))
		}
		rows = append(rows, got...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var themes ThemeLookup
	if p.deps.Themes != nil {
		themes = p.deps.Themes()
	}
	s.Quotes = Aggregate(rows, p.opts, themes, p.deps.Rules)
	for _, q := range s.Quotes {
		s.RuleSectors[q.Name] = append([]string(nil), q.Sectors...)
		s.States[q.Name] = StateRuleTagged
	}
	s.Summary = GroupBySector(s.Quotes, p.fallback())

	s.Indices = p.ResolveIndices(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Themes = p.ResolveThemes(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, iq := range s.Indices {
		if !iq.Available() {
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s 지수를 가져오지 못했습니다", iq.Label))
		}
	}
	for _, tq := range s.Themes {
		if !tq.Available() {
			s.Warnings = append(s.Warnings, fmt.Sprintf("%s 테마 지표를 가져오지 못했습니다", tq.Label))
		}
	}

	p.log.WithFields(logger.Fields{
		"session":  s.ID,
		"rows":     len(rows),
		"quotes":   len(s.Quotes),
		"groups":   len(s.Summary.Groups),
		"warnings": len(s.Warnings),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("scan complete")
	return s, nil
}

// Refine collects news for every quote in s, sequentially and throttled,
// sends one batched model request and returns a new session whose sectors
// are merged per the pipeline's policy. s is left untouched. A failed
// batch keeps the rule tags and records a warning.
func (p *Pipeline) Refine(ctx context.Context, s *Session) (*Session, error) {
	if s == nil {
		return nil, fmt.Errorf("refine: no session")
	}
	n := s.derive(p.newID())
	n.RefinedAt = p.now()
	n.Summary = GroupBySector(n.Quotes, p.fallback())
	if !p.CanRefine() {
		n.Warnings = append(n.Warnings, "AI 분류가 설정되지 않았습니다")
		return n, nil
	}

	n.News = make(map[string][]string, len(n.Quotes))
	batch := make(map[string][]string, len(n.Quotes))
	failed := 0
	for _, q := range n.Quotes {
		if err := p.deps.Throttle.Wait(ctx); err != nil {
			return nil, err
		}
		headlines := p.deps.News.Collect(ctx, q.Name)
		n.News[q.Name] = headlines
		if datasource.IsCollectionFailure(headlines) {
			failed++
			batch[q.Name] = []string{}
			continue
		}
		batch[q.Name] = headlines
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed > 0 {
		n.Warnings = append(n.Warnings, fmt.Sprintf("%d개 종목의 뉴스를 수집하지 못했습니다", failed))
	}

	out := p.deps.Model.Classify(ctx, batch)
	n.Classification = out.Results
	n.ClassificationKind = out.Kind.String()
	if !out.OK() {
		reason := out.Results[sector.SystemErrorKey].Rationale
		n.Warnings = append(n.Warnings, "AI 분류 실패: "+reason)
		p.log.WithField("kind", out.Kind).Warn("refine kept rule tags")
		return n, nil
	}

	fallback := p.fallback()
	for i, q := range n.Quotes {
		if n.StateOf(q.Name) == StateUnclassified {
			// Sessions decoded from elsewhere may lack the rule pass.
			n.RuleSectors[q.Name] = p.deps.Rules.Classify(q.Name, q.Theme)
			n.Quotes[i].Sectors = append([]string(nil), n.RuleSectors[q.Name]...)
			n.States[q.Name] = StateRuleTagged
		}
		res, ok := out.Results[q.Name]
		if !ok {
			continue
		}
		n.Quotes[i].Sectors = p.merge.Merge(n.RuleSectors[q.Name], res.Sectors, fallback)
		n.States[q.Name] = StateModelRefined
	}
	n.Summary = GroupBySector(n.Quotes, fallback)

	p.log.WithFields(logger.Fields{
		"session":    n.ID,
		"parent":     s.ID,
		"classified": len(out.Results),
		"merge":      p.merge,
	}).Info("refine complete")
	return n, nil
}

// ResolveIndices resolves the configured index list. It never fails;
// unavailable indices carry the sentinel value.
func (p *Pipeline) ResolveIndices(ctx context.Context) []models.IndexQuote {
	if p.deps.Resolver == nil || len(p.indices) == 0 {
		return nil
	}
	return p.deps.Resolver.ResolveAll(ctx, p.indices)
}

// ResolveThemes resolves the sector ETF proxies through the same tiers as
// the indices and tags each with its sector colour.
func (p *Pipeline) ResolveThemes(ctx context.Context) []models.ThemeQuote {
	if p.deps.Resolver == nil || len(p.themes) == 0 {
		return nil
	}
	quotes := p.deps.Resolver.ResolveAll(ctx, p.themes)
	out := make([]models.ThemeQuote, len(quotes))
	for i, q := range quotes {
		out[i] = models.NewThemeQuote(p.themes[i], q)
	}
	return out
}

// News collects headlines for one instrument.
func (p *Pipeline) News(ctx context.Context, name string) []string {
	if p.deps.News == nil {
		return []string{datasource.HeadlineCollectionFailed}
	}
	return p.deps.News.Collect(ctx, name)
}

func ruleTags(scan config.ScanConfig) []string {
	tags := make([]string, 0, len(scan.Rules))
	for _, r := range scan.Rules {
		tags = append(tags, r.Tag)
	}
	return tags
}

func (p *Pipeline) fallback() string {
	return fallbackOf(p.deps.Rules)
}
