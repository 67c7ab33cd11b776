// Package speech renders reply text to audio through an OpenAI-compatible
// text-to-speech endpoint.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrSynthesis reports that audio could not be produced.
var ErrSynthesis = errors.New("speech synthesis failed")

// Artifacts is where rendered audio is kept.
type Artifacts interface {
	Put(data []byte, ext string) (string, error)
	URL(id string) string
}

// Config configures the synthesizer.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Voice   string
	// Rate is the playback speed multiplier; 1.0 is normal.
	Rate    float64
	Timeout time.Duration
}

// Synthesizer turns text into an audio artifact URL.
type Synthesizer struct {
	client    *resty.Client
	artifacts Artifacts
	model     string
	voice     string
	rate      float64
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// New creates a Synthesizer.
func New(cfg Config, artifacts Artifacts) *Synthesizer {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	rate := cfg.Rate
	if rate <= 0 {
		rate = 1.0
	}
	return &Synthesizer{client: client, artifacts: artifacts, model: cfg.Model, voice: cfg.Voice, rate: rate}
}

// Synthesize renders text and returns the URL of the stored mp3.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(speechRequest{
			Model:          s.model,
			Input:          text,
			Voice:          s.voice,
			ResponseFormat: "mp3",
			Speed:          s.rate,
		}).
		Post("/audio/speech")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d", ErrSynthesis, resp.StatusCode())
	}
	audio := resp.Body()
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrSynthesis)
	}

	id, err := s.artifacts.Put(audio, ".mp3")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	return s.artifacts.URL(id), nil
}
