package driven

import (
	"context"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

// VectorStore is a durable mapping from chunk ID to (embedding, metadata,
// text), queryable by cosine similarity. One logical collection whose
// embedding dimension is fixed at first write; a dimension mismatch on
// upsert fails with domain.ErrDimensionMismatch and leaves the store
// unchanged.
type VectorStore interface {
	// Upsert writes or overwrites records by chunk ID. Used only as part of
	// the replace-by-owner sequence in ReplaceDocument.
	Upsert(ctx context.Context, records []domain.StoredRecord) error

	// DeleteByDocument removes every record owned by the document ID.
	// No-op if none exist.
	DeleteByDocument(ctx context.Context, documentID string) error

	// ReplaceDocument atomically replaces all records owned by documentID
	// with the given records. If the insert half fails the document is left
	// with no mixture of old and new records; ingestion must then be
	// retried in full.
	ReplaceDocument(ctx context.Context, documentID string, records []domain.StoredRecord) error

	// Query returns up to topK records ranked by descending cosine
	// similarity to the embedding. Ties are broken by chunk ID for
	// determinism; topK larger than the collection returns everything.
	// An empty collection yields an empty result, not an error.
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievalHit, error)

	// Clear removes all records. Full reset only, not normal operation.
	Clear(ctx context.Context) error

	// Stats returns document and chunk counts derived from persisted
	// metadata. Reflects the true state after any mutation.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// Close releases resources.
	Close() error
}
