package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// chatModel is the part of an eino chat model that Eino uses.
type chatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Eino generates text through an eino chat model.
type Eino struct {
	model chatModel
}

// NewEino creates an eino-backed generator for an OpenAI-compatible endpoint.
func NewEino(ctx context.Context, cfg Config) (*Eino, error) {
	mc := &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		mc.MaxTokens = &maxTokens
	}
	cm, err := openai.NewChatModel(ctx, mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model: %w", err)
	}
	return &Eino{model: cm}, nil
}

// Generate implements Generator.
func (e *Eino) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := e.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemInstruction),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", unavailable("eino: %v", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", unavailable("eino returned no content")
	}
	return msg.Content, nil
}
