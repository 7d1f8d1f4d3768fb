package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// MessagesNewFunc is the SDK call the provider makes.
// (*anthropic.MessageService).New satisfies it.
type MessagesNewFunc func(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)

// AnthropicProvider implements LLMProvider for Anthropic's Messages API.
type AnthropicProvider struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	newMessage  MessagesNewFunc
}

// AnthropicOption configures the Anthropic provider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicModel sets the default model.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithAnthropicDefaults sets the default sampling temperature and token cap.
func WithAnthropicDefaults(temperature float64, maxTokens int) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.temperature = temperature
		p.maxTokens = maxTokens
	}
}

// WithAnthropicMessagesFunc replaces the SDK call.
func WithAnthropicMessagesFunc(fn MessagesNewFunc) AnthropicOption {
	return func(p *AnthropicProvider) { p.newMessage = fn }
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	p := &AnthropicProvider{
		apiKey:      apiKey,
		model:       "claude-3-5-haiku-latest",
		temperature: 0.1,
		maxTokens:   4096,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.newMessage != nil {
		return p, nil
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(p.apiKey)}
	if p.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(p.baseURL))
	}
	client := anthropic.NewClient(reqOpts...)
	p.newMessage = client.Messages.New
	return p, nil
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// Ping sends a one-token request to verify the API key.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	_, err := p.newMessage(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		return classifyError(ProviderAnthropic, err)
	}
	return nil
}

// Chat sends a Messages API request.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	start := time.Now()
	model, temperature, maxTokens := resolveOptions(opts, p.model, p.temperature, p.maxTokens)

	system, rest := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  convertToAnthropicMessages(rest),
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.newMessage(ctx, params)
	if err != nil {
		return nil, classifyError(ProviderAnthropic, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}

	return &Response{
		Content:  text.String(),
		Model:    model,
		Provider: ProviderAnthropic,
		Latency:  time.Since(start),
	}, nil
}

// convertToAnthropicMessages maps roles onto user/assistant turns. The API
// rejects an empty conversation, so one is never produced.
func convertToAnthropicMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	if len(out) == 0 {
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock("")))
	}
	return out
}
