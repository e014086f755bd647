package driven

import (
	"context"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

// PageSource supplies documents to ingest. The core treats it as an
// unreliable upstream: any call may fail or the source may be unavailable.
// The Confluence REST adapter is the reference implementation.
type PageSource interface {
	// GetPage fetches a single page with its full text and metadata.
	// Returns an error wrapping domain.ErrNotFound for unknown IDs.
	GetPage(ctx context.Context, pageID string) (*domain.Document, error)

	// ListSpacePages fetches up to limit pages from a named space.
	ListSpacePages(ctx context.Context, spaceKey string, limit int) ([]domain.Document, error)

	// Ping validates the source is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
