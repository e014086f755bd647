package domain

import (
	"fmt"
	"time"
)

// Document is an immutable snapshot of a page fetched from the document
// source. It is the input to ingestion and is never mutated.
type Document struct {
	// ID is the source's identifier for the page.
	ID string

	// Title is the human-readable page title.
	Title string

	// URL is the canonical link back to the page.
	URL string

	// Text is the full plain-text content after HTML extraction.
	Text string

	// LastModified is the page's last modification time at fetch.
	LastModified time.Time

	// SpaceKey identifies the space the page belongs to, when known.
	SpaceKey string
}

// Chunk is a bounded, overlapping slice of a document's text - the unit of
// embedding and retrieval. Chunks are created by the chunker and never
// mutated; re-ingestion supersedes them rather than updating in place.
type Chunk struct {
	// ID is deterministically derived from the document ID and chunk index
	// via ChunkID, so re-chunking identical input yields identical IDs.
	ID string

	// DocumentID links back to the owning document.
	DocumentID string

	// Index is the ordinal position within the document, starting at 0.
	Index int

	// Text is the exact substring Text[Start:End] of the parent document.
	Text string

	// Start is the chunk's starting byte offset in the document text.
	Start int

	// End is the chunk's ending byte offset (exclusive).
	End int
}

// ChunkID derives the deterministic chunk identifier for a document and
// index. Determinism enables delete-by-owner and idempotent re-ingestion.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// ChunkMetadata is the fixed, typed metadata record carried by every stored
// chunk. A closed struct rather than a key-value bag so schema drift is
// caught at compile time.
type ChunkMetadata struct {
	DocumentID   string
	Title        string
	URL          string
	LastModified time.Time
	ChunkIndex   int
}

// StoredRecord is the unit persisted in the vector store: one chunk with its
// embedding and metadata, keyed by chunk ID.
type StoredRecord struct {
	ChunkID   string
	Embedding []float32
	Metadata  ChunkMetadata
	Text      string
}

// RetrievalHit is a transient similarity-query result. Score is cosine
// similarity in [-1, 1], comparable across queries against one collection.
type RetrievalHit struct {
	ChunkID  string
	Text     string
	Metadata ChunkMetadata
	Score    float64
}

// Source is a document-level attribution entry derived from one or more
// matching chunks, for presentation alongside an answer.
type Source struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	RelevanceScore float64 `json:"relevance_score"`
}
