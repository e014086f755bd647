package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
)

// fakePageSource serves pages from a fixed map.
type fakePageSource struct {
	pages   map[string]domain.Document
	spaces  map[string][]domain.Document
	listErr error
	pingErr error
}

func (f *fakePageSource) GetPage(_ context.Context, pageID string) (*domain.Document, error) {
	doc, ok := f.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("%w: page %s", domain.ErrNotFound, pageID)
	}
	return &doc, nil
}

func (f *fakePageSource) ListSpacePages(_ context.Context, spaceKey string, limit int) ([]domain.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	docs := f.spaces[spaceKey]
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (f *fakePageSource) Ping(_ context.Context) error { return f.pingErr }
func (f *fakePageSource) Close() error                 { return nil }

// fakeVectorStore records mutations in memory and serves canned query hits.
type fakeVectorStore struct {
	mu        sync.Mutex
	records   map[string]domain.StoredRecord
	queryHits []domain.RetrievalHit
	statsErr  error
	storeErr  error
	replaces  []string
	cleared   bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string]domain.StoredRecord)}
}

func (f *fakeVectorStore) Upsert(_ context.Context, records []domain.StoredRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		f.records[rec.ChunkID] = rec
	}
	return nil
}

func (f *fakeVectorStore) DeleteByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteByDocumentLocked(documentID)
	return nil
}

func (f *fakeVectorStore) deleteByDocumentLocked(documentID string) {
	for id, rec := range f.records {
		if rec.Metadata.DocumentID == documentID {
			delete(f.records, id)
		}
	}
}

func (f *fakeVectorStore) ReplaceDocument(_ context.Context, documentID string, records []domain.StoredRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.replaces = append(f.replaces, documentID)
	f.deleteByDocumentLocked(documentID)
	for _, rec := range records {
		f.records[rec.ChunkID] = rec
	}
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, _ []float32, topK int) ([]domain.RetrievalHit, error) {
	hits := f.queryHits
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *fakeVectorStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = make(map[string]domain.StoredRecord)
	f.cleared = true
	return nil
}

func (f *fakeVectorStore) Stats(_ context.Context) (domain.StoreStats, error) {
	if f.statsErr != nil {
		return domain.StoreStats{}, f.statsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := make(map[string]struct{})
	for _, rec := range f.records {
		docs[rec.Metadata.DocumentID] = struct{}{}
	}
	return domain.StoreStats{Documents: len(docs), Chunks: len(f.records)}, nil
}

func (f *fakeVectorStore) Close() error { return nil }

func (f *fakeVectorStore) chunksFor(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rec := range f.records {
		if rec.Metadata.DocumentID == documentID {
			n++
		}
	}
	return n
}

// fakeGenerationService echoes a canned answer and captures the prompt.
type fakeGenerationService struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeGenerationService) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerationService) ModelName() string            { return "fake-llm" }
func (f *fakeGenerationService) Ping(_ context.Context) error { return nil }
func (f *fakeGenerationService) Close() error                 { return nil }

func page(id, title, text string) domain.Document {
	return domain.Document{
		ID:           id,
		Title:        title,
		URL:          "https://wiki.example.com/pages/" + id,
		Text:         text,
		LastModified: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		SpaceKey:     "ENG",
	}
}

func hit(docID string, index int, score float64) domain.RetrievalHit {
	return domain.RetrievalHit{
		ChunkID: domain.ChunkID(docID, index),
		Text:    "content of " + domain.ChunkID(docID, index),
		Score:   score,
		Metadata: domain.ChunkMetadata{
			DocumentID: docID,
			Title:      "Page " + docID,
			URL:        "https://wiki.example.com/pages/" + docID,
			ChunkIndex: index,
		},
	}
}

type engineFixture struct {
	engine *RAGEngine
	source *fakePageSource
	store  *fakeVectorStore
	llm    *fakeGenerationService
	embed  *fakeEmbeddingService
}

func newEngineFixture() *engineFixture {
	source := &fakePageSource{
		pages:  make(map[string]domain.Document),
		spaces: make(map[string][]domain.Document),
	}
	store := newFakeVectorStore()
	llm := &fakeGenerationService{answer: "the deploy runs through CI"}
	embed := &fakeEmbeddingService{dims: 4}
	engine := NewRAGEngine(source, NewBatchEmbedder(embed, testEmbedderConfig()), store, llm, EngineConfig{
		ChunkSize:    100,
		ChunkOverlap: 20,
	})
	return &engineFixture{engine: engine, source: source, store: store, llm: llm, embed: embed}
}

func TestIngestPage(t *testing.T) {
	f := newEngineFixture()
	f.source.pages["p1"] = page("p1", "Deploy Guide", strings.Repeat("deploy docs. ", 30))

	result := f.engine.IngestPage(context.Background(), "p1")
	require.False(t, result.Failed(), "ingest failed: %v", result.Err)

	assert.Equal(t, "p1", result.PageID)
	assert.Equal(t, "Deploy Guide", result.Title)
	assert.Greater(t, result.Chunks, 1)
	assert.Equal(t, result.Chunks, f.store.chunksFor("p1"))
	assert.Equal(t, []string{"p1"}, f.store.replaces)
}

func TestIngestPage_FetchFailure(t *testing.T) {
	f := newEngineFixture()

	result := f.engine.IngestPage(context.Background(), "missing")
	require.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, domain.ErrNotFound)
	assert.Zero(t, result.Chunks)
	assert.Empty(t, f.store.replaces)
}

func TestIngestPage_ReingestReplacesOldChunks(t *testing.T) {
	f := newEngineFixture()
	f.source.pages["p1"] = page("p1", "Deploy Guide", strings.Repeat("old version. ", 40))

	first := f.engine.IngestPage(context.Background(), "p1")
	require.False(t, first.Failed())

	// The page shrank; stale chunks must disappear.
	f.source.pages["p1"] = page("p1", "Deploy Guide", "short new version")
	second := f.engine.IngestPage(context.Background(), "p1")
	require.False(t, second.Failed())

	assert.Equal(t, 1, second.Chunks)
	assert.Equal(t, 1, f.store.chunksFor("p1"))
}

func TestIngestPage_EmptyTextIsFailure(t *testing.T) {
	f := newEngineFixture()
	f.source.pages["p1"] = page("p1", "Deploy Guide", "some content")
	require.False(t, f.engine.IngestPage(context.Background(), "p1").Failed())

	// The page came back blank; ingestion fails and the indexed version
	// stays untouched.
	f.source.pages["p1"] = page("p1", "Deploy Guide", "   \n\t  ")
	result := f.engine.IngestPage(context.Background(), "p1")
	require.True(t, result.Failed())
	assert.ErrorIs(t, result.Err, domain.ErrInvalidInput)

	assert.Zero(t, result.Chunks)
	assert.Equal(t, 1, f.store.chunksFor("p1"))
	assert.Equal(t, []string{"p1"}, f.store.replaces)
}

func TestIngestPage_StoreFailure(t *testing.T) {
	f := newEngineFixture()
	f.source.pages["p1"] = page("p1", "Deploy Guide", "some content")
	f.store.storeErr = fmt.Errorf("disk full")

	result := f.engine.IngestPage(context.Background(), "p1")
	require.True(t, result.Failed())
	assert.Contains(t, result.Err.Error(), "storing page p1")
}

func TestIngestPages(t *testing.T) {
	f := newEngineFixture()
	f.source.pages["p1"] = page("p1", "One", "content one")
	f.source.pages["p3"] = page("p3", "Three", "content three")

	report := f.engine.IngestPages(context.Background(), []string{"p1", "p2", "p3"})

	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Pages, 3)

	// Results preserve request order; the failed page does not abort the
	// rest of the batch.
	assert.Equal(t, "p1", report.Pages[0].PageID)
	assert.False(t, report.Pages[0].Failed())
	assert.Equal(t, "p2", report.Pages[1].PageID)
	assert.True(t, report.Pages[1].Failed())
	assert.Equal(t, "p3", report.Pages[2].PageID)
	assert.False(t, report.Pages[2].Failed())

	assert.Equal(t, 2, report.PagesProcessed())
	assert.Equal(t, 2, report.ChunksCreated())
}

func TestIngestPages_Empty(t *testing.T) {
	f := newEngineFixture()
	report := f.engine.IngestPages(context.Background(), nil)
	assert.NotEmpty(t, report.RunID)
	assert.Empty(t, report.Pages)
}

func TestIngestSpace(t *testing.T) {
	f := newEngineFixture()
	f.source.spaces["ENG"] = []domain.Document{
		page("p1", "One", "content one"),
		page("p2", "Two", "content two"),
	}

	report, err := f.engine.IngestSpace(context.Background(), "ENG", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, report.PagesProcessed())
	assert.Equal(t, "p1", report.Pages[0].PageID)
	assert.Equal(t, "p2", report.Pages[1].PageID)
}

func TestIngestSpace_ListFailureIsFatal(t *testing.T) {
	f := newEngineFixture()
	f.source.listErr = fmt.Errorf("%w: confluence is down", domain.ErrSourceUnavailable)

	_, err := f.engine.IngestSpace(context.Background(), "ENG", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestIngestSpace_EmptySpace(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.IngestSpace(context.Background(), "EMPTY", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQuery(t *testing.T) {
	f := newEngineFixture()
	f.store.queryHits = []domain.RetrievalHit{
		hit("p1", 0, 0.95),
		hit("p2", 0, 0.90),
		hit("p1", 1, 0.85),
	}

	result, err := f.engine.Query(context.Background(), "how do we deploy?", 8)
	require.NoError(t, err)

	assert.Equal(t, "the deploy runs through CI", result.Answer)
	assert.Equal(t, []string{"p1_0", "p2_0", "p1_1"}, result.ChunksUsed)

	// Sources deduplicate per document, keeping the best chunk score.
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "Page p1", result.Sources[0].Title)
	assert.Equal(t, 0.95, result.Sources[0].RelevanceScore)
	assert.Equal(t, "Page p2", result.Sources[1].Title)
	assert.Equal(t, 0.90, result.Sources[1].RelevanceScore)

	// The prompt carries the question and every retrieved chunk.
	require.Len(t, f.llm.prompts, 1)
	prompt := f.llm.prompts[0]
	assert.Contains(t, prompt, "how do we deploy?")
	assert.Contains(t, prompt, "content of p1_0")
	assert.Contains(t, prompt, "content of p1_1")
	assert.Contains(t, prompt, "[Source 1: Page p1]")
}

func TestQuery_BlankQuestion(t *testing.T) {
	f := newEngineFixture()

	_, err := f.engine.Query(context.Background(), "   \n ", 8)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuery_NoHits(t *testing.T) {
	f := newEngineFixture()

	result, err := f.engine.Query(context.Background(), "anything indexed?", 8)
	require.NoError(t, err)

	assert.Equal(t, NoInformationAnswer, result.Answer)
	assert.Empty(t, result.Sources)
	assert.Empty(t, result.ChunksUsed)
	// Generation is skipped entirely.
	assert.Empty(t, f.llm.prompts)
}

func TestQuery_GenerationFailure(t *testing.T) {
	f := newEngineFixture()
	f.store.queryHits = []domain.RetrievalHit{hit("p1", 0, 0.9)}
	f.llm.err = fmt.Errorf("model overloaded")

	_, err := f.engine.Query(context.Background(), "how do we deploy?", 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

func TestQuery_DefaultTopK(t *testing.T) {
	f := newEngineFixture()
	for i := 0; i < 12; i++ {
		f.store.queryHits = append(f.store.queryHits, hit("p1", i, 0.9-float64(i)*0.01))
	}

	result, err := f.engine.Query(context.Background(), "question", 0)
	require.NoError(t, err)
	assert.Len(t, result.ChunksUsed, DefaultTopK)
}

func TestStatus(t *testing.T) {
	f := newEngineFixture()
	f.source.pages["p1"] = page("p1", "One", "content one")
	require.False(t, f.engine.IngestPage(context.Background(), "p1").Failed())

	status := f.engine.Status(context.Background())
	assert.True(t, status.StoreHealthy)
	assert.True(t, status.SourceConnected)
	assert.Equal(t, 1, status.DocumentsIndexed)
	assert.Equal(t, 1, status.TotalChunks)
}

func TestStatus_DegradedDependencies(t *testing.T) {
	f := newEngineFixture()
	f.store.statsErr = fmt.Errorf("database locked")
	f.source.pingErr = fmt.Errorf("%w: 503", domain.ErrSourceUnavailable)

	status := f.engine.Status(context.Background())
	assert.False(t, status.StoreHealthy)
	assert.False(t, status.SourceConnected)
	assert.Zero(t, status.DocumentsIndexed)
	assert.Zero(t, status.TotalChunks)
}

func TestReset(t *testing.T) {
	f := newEngineFixture()
	f.source.pages["p1"] = page("p1", "One", "content one")
	f.source.pages["p2"] = page("p2", "Two", "content two")
	f.engine.IngestPages(context.Background(), []string{"p1", "p2"})

	stats, err := f.engine.Reset(context.Background())
	require.NoError(t, err)

	// Prior counts come back; the store is now empty.
	assert.Equal(t, domain.StoreStats{Documents: 2, Chunks: 2}, stats)
	assert.True(t, f.store.cleared)

	after, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StoreStats{}, after)
}
