package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/knowhub-ai/knowhub/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/knowhub-ai/knowhub/internal/core/domain"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// dimensionKey is the collection_meta key holding the embedding dimension.
// Set on first upsert and enforced on every write afterwards.
const dimensionKey = "dimension"

// Store is the SQLite-backed vector store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the vector database under dataDir.
// If dataDir is empty, defaults to ~/.knowhub/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".knowhub", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "vectors.db")

	// WAL mode so queries can run concurrently with ingestion writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Upsert writes or overwrites records by chunk ID inside one transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.StoredRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertTx(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteByDocument removes every record owned by documentID.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting records for document %s: %w", documentID, err)
	}
	return nil
}

// ReplaceDocument atomically swaps all records owned by documentID for the
// given set. Delete and insert share one transaction, so a rejected batch
// (for example a dimension mismatch) leaves the previous version fully
// intact and a committed one leaves exactly the new records.
func (s *Store) ReplaceDocument(ctx context.Context, documentID string, records []domain.StoredRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting records for document %s: %w", documentID, err)
	}

	if len(records) > 0 {
		if err := upsertTx(ctx, tx, records); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// upsertTx inserts records within tx, fixing the collection dimension on
// first write and rejecting mismatched vectors.
func upsertTx(ctx context.Context, tx *sql.Tx, records []domain.StoredRecord) error {
	dim, err := collectionDimension(ctx, tx)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (chunk_id, document_id, title, url, last_modified, chunk_index, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			title = excluded.title,
			url = excluded.url,
			last_modified = excluded.last_modified,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("%w: record %s has an empty embedding", domain.ErrInvalidInput, rec.ChunkID)
		}
		if dim == 0 {
			dim = len(rec.Embedding)
			if err := setCollectionDimension(ctx, tx, dim); err != nil {
				return err
			}
		}
		if len(rec.Embedding) != dim {
			return fmt.Errorf("%w: record %s has dimension %d, collection fixed at %d",
				domain.ErrDimensionMismatch, rec.ChunkID, len(rec.Embedding), dim)
		}

		if _, err := stmt.ExecContext(ctx,
			rec.ChunkID, rec.Metadata.DocumentID, rec.Metadata.Title, rec.Metadata.URL,
			rec.Metadata.LastModified, rec.Metadata.ChunkIndex, rec.Text,
			float32SliceToBytes(rec.Embedding)); err != nil {
			return fmt.Errorf("saving record %s: %w", rec.ChunkID, err)
		}
	}

	return nil
}

// Query scans the collection and returns the topK records by descending
// cosine similarity, ties broken by chunk ID.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievalHit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidInput, topK)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", domain.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, document_id, title, url, last_modified, chunk_index, text, embedding
		FROM records
	`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit domain.RetrievalHit
		var lastModified sql.NullTime
		var blob []byte
		if err := rows.Scan(&hit.ChunkID, &hit.Metadata.DocumentID, &hit.Metadata.Title,
			&hit.Metadata.URL, &lastModified, &hit.Metadata.ChunkIndex, &hit.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if lastModified.Valid {
			hit.Metadata.LastModified = lastModified.Time
		}

		stored := bytesToFloat32Slice(blob)
		if len(stored) != len(embedding) {
			return nil, fmt.Errorf("%w: query dimension %d, collection fixed at %d",
				domain.ErrDimensionMismatch, len(embedding), len(stored))
		}
		hit.Score = cosineSimilarity(embedding, stored)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

// Clear removes all records and unfixes the collection dimension, as a full
// reset recreates the logical collection.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM collection_meta WHERE key = ?", dimensionKey); err != nil {
		return fmt.Errorf("clearing collection metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Stats derives document and chunk counts from the persisted rows.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var stats domain.StoreStats
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT document_id) FROM records")
	if err := row.Scan(&stats.Chunks, &stats.Documents); err != nil {
		return domain.StoreStats{}, fmt.Errorf("counting records: %w", err)
	}
	return stats, nil
}

// collectionDimension reads the fixed embedding dimension, or 0 when the
// collection has never been written.
func collectionDimension(ctx context.Context, tx *sql.Tx) (int, error) {
	var value string
	row := tx.QueryRowContext(ctx, "SELECT value FROM collection_meta WHERE key = ?", dimensionKey)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("reading collection dimension: %w", err)
	}

	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing collection dimension %q: %w", value, err)
	}
	return dim, nil
}

func setCollectionDimension(ctx context.Context, tx *sql.Tx, dim int) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO collection_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		dimensionKey, strconv.Itoa(dim))
	if err != nil {
		return fmt.Errorf("storing collection dimension: %w", err)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosineSimilarity computes the cosine of the angle between two equal-length
// vectors, in [-1, 1]. Zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
