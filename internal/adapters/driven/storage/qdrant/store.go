// Package qdrant implements the vector store against a Qdrant server over
// gRPC, for collections too large for the local SQLite scan.
package qdrant

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultHost       = "localhost"
	DefaultPort       = 6334
	DefaultCollection = "knowhub_chunks"
)

// pointNamespace seeds deterministic point UUIDs derived from chunk IDs, so
// upserting the same chunk ID always addresses the same point.
var pointNamespace = uuid.MustParse("8f3c1f6e-2b9d-4c57-9a71-d25f3e7ab104")

// Config holds configuration for the Qdrant store.
type Config struct {
	// Host is the Qdrant server host (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the collection name (default: knowhub_chunks).
	Collection string

	// Dimensions is the embedding vector size, fixed at collection
	// creation (required).
	Dimensions int
}

// Store is the Qdrant-backed vector store.
type Store struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string
	dimensions  int
}

// NewStore connects to Qdrant and ensures the collection exists with the
// configured dimension and cosine distance.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: qdrant store requires a positive embedding dimension", domain.ErrInvalidInput)
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	conn, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	s := &Store{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		collection:  cfg.Collection,
		dimensions:  cfg.Dimensions,
	}

	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) ensureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}
	for _, col := range list.GetCollections() {
		if col.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(s.dimensions),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", s.collection, err)
	}
	return nil
}

// Upsert writes or overwrites records by chunk ID.
func (s *Store) Upsert(ctx context.Context, records []domain.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		if len(rec.Embedding) != s.dimensions {
			return fmt.Errorf("%w: record %s has dimension %d, collection fixed at %d",
				domain.ErrDimensionMismatch, rec.ChunkID, len(rec.Embedding), s.dimensions)
		}
		points = append(points, s.toPoint(rec))
	}

	_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}
	return nil
}

// DeleteByDocument removes every point whose payload carries documentID.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: documentFilter(documentID),
			},
		},
		Wait: boolPtr(true),
	})
	if err != nil {
		return fmt.Errorf("deleting points for document %s: %w", documentID, err)
	}
	return nil
}

// ReplaceDocument deletes the owner's points and upserts the new set. The
// two halves cannot share a transaction on the wire; if the upsert fails the
// owner is left with zero records, matching the replace contract, and
// ingestion must be retried in full.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, records []domain.StoredRecord) error {
	if err := s.DeleteByDocument(ctx, documentID); err != nil {
		return err
	}
	return s.Upsert(ctx, records)
}

// Query searches the collection for the topK nearest points.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievalHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, topK)
	}
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("%w: query dimension %d, collection fixed at %d",
			domain.ErrDimensionMismatch, len(embedding), s.dimensions)
	}

	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}

	hits := make([]domain.RetrievalHit, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		hits = append(hits, hitFromPayload(point.GetPayload(), float64(point.GetScore())))
	}

	// Qdrant orders by score; re-sort to fix tie order by chunk ID.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	return hits, nil
}

// Clear drops and recreates the collection.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.collections.Delete(ctx, &qdrant.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.collection, err)
	}
	return s.ensureCollection(ctx)
}

// Stats counts points exactly and scrolls payloads to derive the distinct
// document count.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	count, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          boolPtr(true),
	})
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("counting points: %w", err)
	}

	documents := make(map[string]struct{})
	var offset *qdrant.PointId
	for {
		page, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          uint32Ptr(256),
			Offset:         offset,
			WithPayload: &qdrant.WithPayloadSelector{
				SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
			},
		})
		if err != nil {
			return domain.StoreStats{}, fmt.Errorf("scrolling points: %w", err)
		}
		for _, point := range page.GetResult() {
			if id, ok := point.GetPayload()["document_id"]; ok {
				documents[id.GetStringValue()] = struct{}{}
			}
		}
		offset = page.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	return domain.StoreStats{
		Documents: len(documents),
		Chunks:    int(count.GetResult().GetCount()),
	}, nil
}

func (s *Store) toPoint(rec domain.StoredRecord) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{
				Uuid: uuid.NewSHA1(pointNamespace, []byte(rec.ChunkID)).String(),
			},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: rec.Embedding},
			},
		},
		Payload: map[string]*qdrant.Value{
			"chunk_id":      stringValue(rec.ChunkID),
			"document_id":   stringValue(rec.Metadata.DocumentID),
			"title":         stringValue(rec.Metadata.Title),
			"url":           stringValue(rec.Metadata.URL),
			"last_modified": stringValue(rec.Metadata.LastModified.Format(time.RFC3339)),
			"chunk_index":   integerValue(int64(rec.Metadata.ChunkIndex)),
			"text":          stringValue(rec.Text),
		},
	}
}

func hitFromPayload(payload map[string]*qdrant.Value, score float64) domain.RetrievalHit {
	hit := domain.RetrievalHit{
		ChunkID: payload["chunk_id"].GetStringValue(),
		Text:    payload["text"].GetStringValue(),
		Score:   score,
		Metadata: domain.ChunkMetadata{
			DocumentID: payload["document_id"].GetStringValue(),
			Title:      payload["title"].GetStringValue(),
			URL:        payload["url"].GetStringValue(),
			ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		},
	}
	if ts, err := time.Parse(time.RFC3339, payload["last_modified"].GetStringValue()); err == nil {
		hit.Metadata.LastModified = ts
	}
	return hit
}

func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "document_id",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: documentID},
						},
					},
				},
			},
		},
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func integerValue(i int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: i}}
}

func boolPtr(b bool) *bool {
	return &b
}

func uint32Ptr(v uint32) *uint32 {
	return &v
}
