// Package llm provides a unified chat interface over several LLM providers
// (OpenAI-compatible endpoints, Gemini, Anthropic) and a router that falls
// back across them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider names for routing and configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Common errors returned by LLM providers.
var (
	ErrNoAPIKey      = errors.New("llm: API key not configured")
	ErrRateLimit     = errors.New("llm: rate limit exceeded")
	ErrContextLength = errors.New("llm: context length exceeded")
	ErrProviderDown  = errors.New("llm: provider unavailable")
	ErrInvalidModel  = errors.New("llm: invalid model")
	ErrEmptyResponse = errors.New("llm: empty response")
	ErrNoProviders   = errors.New("llm: no providers configured")
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Response represents a complete response from the LLM.
type Response struct {
	Content  string        `json:"content"`
	Model    string        `json:"model"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
}

// ChatOptions configures a single chat request. Zero fields fall back to
// the provider defaults.
type ChatOptions struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	// JSONMode asks providers that support it for a JSON-only response.
	JSONMode bool `json:"json_mode,omitempty"`
}

// LLMProvider is the interface that all LLM backends must implement.
type LLMProvider interface {
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Chat sends a conversation and returns a complete response.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error)

	// Ping checks if the provider is reachable and the API key is valid.
	Ping(ctx context.Context) error
}

// SystemMessage creates a system prompt message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// splitSystem separates the first system message from the conversation.
// Gemini and Anthropic take the system prompt out of band.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// String returns a human-readable summary of the response.
func (r *Response) String() string {
	truncated := r.Content
	if runes := []rune(truncated); len(runes) > 100 {
		truncated = string(runes[:100]) + "..."
	}
	return fmt.Sprintf("[%s/%s] %q, %v",
		r.Provider, r.Model, truncated, r.Latency.Round(time.Millisecond))
}

// classifyError maps an SDK error onto the package sentinels by its
// message, since each SDK reports HTTP status in its own error type.
func classifyError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "incorrect api key") ||
		strings.Contains(msg, "api_key_invalid"):
		return fmt.Errorf("%s: %w: %v", provider, ErrNoAPIKey, err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted"):
		return fmt.Errorf("%s: %w: %v", provider, ErrRateLimit, err)
	case strings.Contains(msg, "context length") || strings.Contains(msg, "context_length") ||
		strings.Contains(msg, "too many tokens"):
		return fmt.Errorf("%s: %w: %v", provider, ErrContextLength, err)
	case strings.Contains(msg, "model_not_found") || strings.Contains(msg, "model not found") ||
		strings.Contains(msg, "404"):
		return fmt.Errorf("%s: %w: %v", provider, ErrInvalidModel, err)
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "overloaded"):
		return fmt.Errorf("%s: %w: %v", provider, ErrProviderDown, err)
	}
	return fmt.Errorf("%s: %w", provider, err)
}
