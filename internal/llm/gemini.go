package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenerateContentFunc is the genai call the provider makes.
// (*genai.Models).GenerateContent satisfies it.
type GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiProvider implements LLMProvider for Google's Gemini API.
type GeminiProvider struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	generate    GenerateContentFunc
}

// GeminiOption configures the Gemini provider.
type GeminiOption func(*GeminiProvider)

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

// WithGeminiDefaults sets the default sampling temperature and token cap.
func WithGeminiDefaults(temperature float64, maxTokens int) GeminiOption {
	return func(p *GeminiProvider) {
		p.temperature = temperature
		p.maxTokens = maxTokens
	}
}

// WithGeminiGenerateFunc replaces the genai client call.
func WithGeminiGenerateFunc(fn GenerateContentFunc) GeminiOption {
	return func(p *GeminiProvider) { p.generate = fn }
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &GeminiProvider{
		apiKey:      apiKey,
		model:       "gemini-2.5-flash",
		temperature: 0.1,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.generate != nil {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	p.generate = client.Models.GenerateContent
	return p, nil
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

// Ping sends a minimal request to verify the API key.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	_, err := p.generate(ctx, p.model,
		[]*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)},
		&genai.GenerateContentConfig{MaxOutputTokens: 1},
	)
	if err != nil {
		return classifyError(ProviderGemini, err)
	}
	return nil
}

// Chat sends a generateContent request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model, temperature, maxTokens := resolveOptions(opts, p.model, p.temperature, p.maxTokens)

	system, rest := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts != nil && opts.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.generate(ctx, model, contents, cfg)
	if err != nil {
		return nil, classifyError(ProviderGemini, err)
	}
	text := geminiText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	return &Response{
		Content:  text,
		Model:    model,
		Provider: ProviderGemini,
		Latency:  time.Since(start),
	}, nil
}

// geminiText returns the text of the first candidate that has any.
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if part != nil && part.Text != "" {
				b.WriteString(part.Text)
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
