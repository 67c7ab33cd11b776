package llm

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "openai/gpt-4o"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenRouter calls an OpenAI-compatible chat completions endpoint.
type OpenRouter struct {
	client    *resty.Client
	model     string
	maxTokens int
}

// NewOpenRouter creates an OpenRouter client.
func NewOpenRouter(cfg Config) *OpenRouter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		client.SetHeader("X-Title", cfg.Title)
	}

	return &OpenRouter{client: client, model: model, maxTokens: cfg.MaxTokens}
}

// Generate implements Generator.
func (o *OpenRouter) Generate(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model: o.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemInstruction},
				{Role: "user", Content: prompt},
			},
			MaxTokens: o.maxTokens,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", unavailable("openrouter request: %v", err)
	}
	if resp.IsError() {
		return "", unavailable("openrouter status %d", resp.StatusCode())
	}
	if out.Error != nil {
		return "", unavailable("openrouter: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", unavailable("openrouter returned no content")
	}
	return out.Choices[0].Message.Content, nil
}
