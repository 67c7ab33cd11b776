package dialogue

import (
	"context"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// Generator is the generative backend. Every error is treated the same way.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Synthesizer renders reply text to audio and returns a playable URL.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// ArtifactStore persists a blob and returns its identifier.
type ArtifactStore interface {
	Put(data []byte, ext string) (string, error)
}

// LeadSink receives completed leads for handoff.
type LeadSink interface {
	DeliverLead(ctx context.Context, lead domain.StoredLead) error
}

// LeadSinkFunc adapts a function to LeadSink.
type LeadSinkFunc func(ctx context.Context, lead domain.StoredLead) error

// DeliverLead implements LeadSink.
func (f LeadSinkFunc) DeliverLead(ctx context.Context, lead domain.StoredLead) error {
	return f(ctx, lead)
}
