// Package llm provides a provider-agnostic completion client used by the
// summarization pipeline. Models are addressed as "provider/model_name".
package llm

import (
	"context"
	"fmt"
	"strings"
)

type Message struct {
	Role    string
	Content string
}

// Client issues text completions. CompleteJSON requests a response constrained
// to a single JSON object where the provider supports an output mode for it;
// providers without such a mode fall back to plain completion and rely on the
// prompt demanding JSON-only output.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteJSON(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// ParseModel splits a "provider/model_name" string.
func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}
