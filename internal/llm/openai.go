package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatGenerator is the part of an eino chat model the provider uses.
type ChatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// OpenAIProvider implements LLMProvider for OpenAI-compatible chat
// completion endpoints through eino.
type OpenAIProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	cm          ChatGenerator
}

// OpenAIOption configures the OpenAI provider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIBaseURL sets a custom base URL (e.g., a proxy or a local
// OpenAI-compatible server).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.model = model }
}

// WithOpenAIDefaults sets the default sampling temperature and token cap.
func WithOpenAIDefaults(temperature float64, maxTokens int) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.temperature = temperature
		p.maxTokens = maxTokens
	}
}

// WithOpenAIChatModel replaces the eino chat model, mainly for tests.
func WithOpenAIChatModel(cm ChatGenerator) OpenAIOption {
	return func(p *OpenAIProvider) { p.cm = cm }
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(ctx context.Context, apiKey string, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &OpenAIProvider{
		apiKey:      apiKey,
		model:       "gpt-4o-mini",
		temperature: 0.1,
		maxTokens:   4096,
		timeout:     120 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cm != nil {
		return p, nil
	}

	cfg := &einoopenai.ChatModelConfig{
		APIKey:  p.apiKey,
		BaseURL: p.baseURL,
		Model:   p.model,
		Timeout: p.timeout,
	}
	cm, err := einoopenai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("openai: create chat model: %w", err)
	}
	p.cm = cm
	return p, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Ping sends a one-token request to verify the key and endpoint.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	_, err := p.cm.Generate(ctx, []*schema.Message{schema.UserMessage("ping")}, model.WithMaxTokens(1))
	if err != nil {
		return classifyError(ProviderOpenAI, err)
	}
	return nil
}

// Chat sends the conversation as one chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	modelName, temperature, maxTokens := resolveOptions(opts, p.model, p.temperature, p.maxTokens)

	input := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		input = append(input, toEinoMessage(m))
	}

	out, err := p.cm.Generate(ctx, input,
		model.WithModel(modelName),
		model.WithTemperature(float32(temperature)),
		model.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return nil, classifyError(ProviderOpenAI, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	return &Response{
		Content:  out.Content,
		Model:    modelName,
		Provider: ProviderOpenAI,
		Latency:  time.Since(start),
	}, nil
}

func toEinoMessage(m Message) *schema.Message {
	switch m.Role {
	case RoleSystem:
		return schema.SystemMessage(m.Content)
	case RoleAssistant:
		return schema.AssistantMessage(m.Content, nil)
	default:
		return schema.UserMessage(m.Content)
	}
}

// resolveOptions merges per-request options over provider defaults.
func resolveOptions(opts *ChatOptions, model string, temperature float64, maxTokens int) (string, float64, int) {
	if opts == nil {
		return model, temperature, maxTokens
	}
	if opts.Model != "" {
		model = opts.Model
	}
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	return model, temperature, maxTokens
}
