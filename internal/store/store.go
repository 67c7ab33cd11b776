// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// Repository defines the interface for persisting completed leads.
type Repository interface {
	// SaveLead stores a completed lead. Saving the same ID twice replaces it.
	SaveLead(ctx context.Context, lead domain.StoredLead) error

	// GetLead retrieves a lead by ID. It returns nil, nil when none exists.
	GetLead(ctx context.Context, id string) (*domain.StoredLead, error)

	// ListLeads returns the most recent leads, newest first.
	ListLeads(ctx context.Context, limit int) ([]domain.StoredLead, error)

	// DeleteLead removes a lead. Deleting a missing lead is not an error.
	DeleteLead(ctx context.Context, id string) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
