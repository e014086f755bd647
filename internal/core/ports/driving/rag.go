package driving

import (
	"context"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

// RAGService is the primary port for the retrieval-augmented generation
// pipeline: ingestion, querying, inspection and reset.
type RAGService interface {
	// IngestPage fetches one page from the document source and indexes it.
	// Re-ingesting a page ID is idempotent: the collection always ends up
	// with exactly the chunks of the latest version.
	IngestPage(ctx context.Context, pageID string) domain.PageResult

	// IngestPages ingests a batch of pages. Per-page failures are collected
	// in the report and never abort the rest of the batch.
	IngestPages(ctx context.Context, pageIDs []string) domain.IngestReport

	// IngestSpace ingests up to limit pages from a named space.
	IngestSpace(ctx context.Context, spaceKey string, limit int) (domain.IngestReport, error)

	// Query answers a question over the indexed corpus. A collection with
	// no relevant content yields a defined "no information found" result
	// with empty sources; a generation failure is an error wrapping
	// domain.ErrGenerationFailed.
	Query(ctx context.Context, question string, topK int) (*domain.QueryResult, error)

	// Status reports collection counts and upstream health.
	Status(ctx context.Context) domain.Status

	// Reset destroys all persisted records, returning the prior counts.
	Reset(ctx context.Context) (domain.StoreStats, error)
}
