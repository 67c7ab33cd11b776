// Package llm provides generative backend clients: OpenRouter over HTTP,
// Gemini through the genai SDK, and any OpenAI-compatible endpoint through eino.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/willow-sdr/internal/metrics"
)

// ErrBackendUnavailable wraps every failure to obtain text from a backend:
// timeouts, non-2xx statuses and unusable payloads alike.
var ErrBackendUnavailable = errors.New("generative backend unavailable")

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderEino       = "eino"
)

const systemInstruction = "You are Willow, a friendly AI sales development representative. " +
	"Follow the instructions in the user message exactly."

// Generator sends a prompt and returns the generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	MaxTokens int
	Timeout   time.Duration
	// Referer and Title are sent to OpenRouter for app attribution.
	Referer string
	Title   string
}

// New builds the configured provider wrapped with a timeout and metrics.
func New(ctx context.Context, cfg Config) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", cfg.Provider)
	}

	var (
		g   Generator
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenRouter, "":
		g = NewOpenRouter(cfg)
	case ProviderGemini:
		g, err = NewGemini(ctx, cfg)
	case ProviderEino:
		g, err = NewEino(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(WithTimeout(g, cfg.Timeout), cfg.Provider), nil
}

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

// WithTimeout bounds every call to g. A non-positive timeout returns g unchanged.
func WithTimeout(g Generator, timeout time.Duration) Generator {
	if timeout <= 0 {
		return g
	}
	return &timeoutGenerator{next: g, timeout: timeout}
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := t.next.Generate(ctx, prompt)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrBackendUnavailable, ctx.Err())
	}
}

type instrumented struct {
	next     Generator
	provider string
}

// Instrument records latency and outcome of each call under provider.
func Instrument(g Generator, provider string) Generator {
	return &instrumented{next: g, provider: provider}
}

func (i *instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := i.next.Generate(ctx, prompt)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.BackendLatency.WithLabelValues(i.provider, outcome).Observe(time.Since(start).Seconds())
	return text, err
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBackendUnavailable, fmt.Sprintf(format, args...))
}
