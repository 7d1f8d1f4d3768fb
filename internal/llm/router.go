package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/logger"
)

// Router sends chat requests to the primary provider and falls back
// through the configured chain when it fails.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]LLMProvider
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	log        logrus.FieldLogger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithLogger sets the router's logger.
func WithLogger(l logrus.FieldLogger) RouterOption {
	return func(r *Router) { r.log = logger.WithComponent(l, "llm") }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]LLMProvider),
		primary:    primary,
		maxRetries: 2,
		retryDelay: 1 * time.Second,
		log:        logger.WithComponent(nil, "llm"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (LLMProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Primary returns the primary provider.
func (r *Router) Primary() (LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.primary]
	if !ok {
		return nil, fmt.Errorf("%w: primary provider %q not registered", ErrNoProviders, r.primary)
	}
	return p, nil
}

// Chat routes a chat request through the provider chain with fallback.
// It tries the primary provider first, then falls back in order.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	chain := r.providerChain()

	var lastErr error
	tried := 0
	for _, providerName := range chain {
		provider, ok := r.GetProvider(providerName)
		if !ok {
			continue
		}
		tried++

		resp, err := r.chatWithRetry(ctx, provider, messages, opts)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.log.WithError(err).WithField("provider", providerName).Warn("provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isNonRetryable(err) {
			return nil, err
		}
	}
	if tried == 0 {
		return nil, ErrNoProviders
	}

	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// HealthCheck pings all registered providers concurrently and returns
// their status.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	r.mu.RLock()
	providers := make(map[string]LLMProvider, len(r.providers))
	for k, v := range r.providers {
		providers[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(providers))
	var mu sync.Mutex
	var g errgroup.Group

	for name, provider := range providers {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			err := provider.Ping(pingCtx)
			mu.Lock()
			results[name] = err
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Name returns the name of the primary provider (satisfies LLMProvider).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// Ping checks the primary provider's health (satisfies LLMProvider).
func (r *Router) Ping(ctx context.Context) error {
	p, err := r.Primary()
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// ProviderNames returns the names of all registered providers, sorted.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) chatWithRetry(ctx context.Context, provider LLMProvider,
	messages []Message, opts *ChatOptions) (*Response, error) {

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		r.log.WithError(err).WithFields(logrus.Fields{
			"provider": provider.Name(),
			"attempt":  attempt + 1,
		}).Debug("chat attempt failed")

		if isNonRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func isNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// Don't retry auth errors, invalid model, or context length issues
	return strings.Contains(msg, "API key") ||
		strings.Contains(msg, ErrNoAPIKey.Error()) ||
		strings.Contains(msg, ErrInvalidModel.Error()) ||
		strings.Contains(msg, ErrContextLength.Error())
}

// NewRouterFromConfig creates a fully configured Router from the application config.
// It instantiates the providers whose API keys are set.
func NewRouterFromConfig(ctx context.Context, cfg config.LLMConfig, log logrus.FieldLogger) (*Router, error) {
	router := NewRouter(cfg.Primary,
		WithMaxRetries(2),
		WithRetryDelay(time.Second),
		WithLogger(log),
	)

	var fallbacks []string
	register := func(p LLMProvider, err error) {
		if err != nil {
			router.log.WithError(err).Warn("provider not registered")
			return
		}
		router.RegisterProvider(p)
		if p.Name() != cfg.Primary {
			fallbacks = append(fallbacks, p.Name())
		}
	}

	if cfg.OpenAIKey != "" {
		register(NewOpenAIProvider(ctx, cfg.OpenAIKey,
			WithOpenAIBaseURL(cfg.OpenAIBaseURL),
			WithOpenAIModel(cfg.Model),
			WithOpenAIDefaults(cfg.Temperature, cfg.MaxTokens),
		))
	}
	if cfg.GeminiKey != "" {
		register(NewGeminiProvider(ctx, cfg.GeminiKey,
			WithGeminiModel(defaultGeminiModel(cfg.GeminiModel)),
			WithGeminiDefaults(cfg.Temperature, cfg.MaxTokens),
		))
	}
	if cfg.AnthropicKey != "" {
		register(NewAnthropicProvider(cfg.AnthropicKey,
			WithAnthropicModel(defaultAnthropicModel(cfg.ClaudeModel)),
			WithAnthropicDefaults(cfg.Temperature, cfg.MaxTokens),
		))
	}

	if len(router.ProviderNames()) == 0 {
		return nil, ErrNoProviders
	}

	router.fallbacks = fallbacks
	return router, nil
}

func defaultGeminiModel(model string) string {
	if strings.HasPrefix(model, "gemini") {
		return model
	}
	return "gemini-2.5-flash"
}

func defaultAnthropicModel(model string) string {
	if strings.HasPrefix(model, "claude") {
		return model
	}
	return "claude-3-5-haiku-latest"
}
