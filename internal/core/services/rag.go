package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/knowhub-ai/knowhub/internal/chunker"
	"github.com/knowhub-ai/knowhub/internal/core/domain"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driving"
	"github.com/knowhub-ai/knowhub/internal/logger"
)

// Ensure RAGEngine implements the driving port.
var _ driving.RAGService = (*RAGEngine)(nil)

// Default engine configuration values.
const (
	DefaultTopK          = 8
	DefaultIngestWorkers = 4
	DefaultMaxTokens     = 1024
	DefaultTemperature   = 0.2
)

// NoInformationAnswer is returned verbatim when retrieval yields nothing;
// the generation service is not called in that case.
const NoInformationAnswer = "I couldn't find relevant information in the indexed documentation to answer your question. Could you rephrase or ask about a related topic?"

// EngineConfig tunes the ingestion and query pipelines.
type EngineConfig struct {
	// ChunkSize is the maximum chunk length in bytes (default: 800).
	ChunkSize int

	// ChunkOverlap is the overlap between consecutive chunks
	// (default: 150).
	ChunkOverlap int

	// TopK is the default number of chunks retrieved per query
	// (default: 8).
	TopK int

	// IngestWorkers bounds concurrent page ingestions (default: 4).
	IngestWorkers int

	// MaxTokens caps answer generation length (default: 1024).
	MaxTokens int

	// Temperature controls generation randomness (default: 0.2).
	Temperature float64
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = chunker.DefaultOverlap
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.IngestWorkers <= 0 {
		c.IngestWorkers = DefaultIngestWorkers
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	return c
}

// RAGEngine orchestrates the pipeline: fetch, chunk, embed, store, retrieve,
// generate. It owns no I/O of its own; everything flows through the ports.
type RAGEngine struct {
	source   driven.PageSource
	embedder *BatchEmbedder
	store    driven.VectorStore
	llm      driven.GenerationService
	cfg      EngineConfig
	locks    *keyedMutex
}

// NewRAGEngine assembles the engine from its dependencies.
func NewRAGEngine(
	source driven.PageSource,
	embedder *BatchEmbedder,
	store driven.VectorStore,
	llm driven.GenerationService,
	cfg EngineConfig,
) *RAGEngine {
	return &RAGEngine{
		source:   source,
		embedder: embedder,
		store:    store,
		llm:      llm,
		cfg:      cfg.withDefaults(),
		locks:    newKeyedMutex(),
	}
}

// IngestPage fetches one page and replaces its indexed chunks with the
// current version. A page whose extracted text is empty is reported as a
// failed result; any previously indexed version is left in place.
func (e *RAGEngine) IngestPage(ctx context.Context, pageID string) domain.PageResult {
	doc, err := e.source.GetPage(ctx, pageID)
	if err != nil {
		return domain.PageResult{PageID: pageID, Err: fmt.Errorf("fetching page %s: %w", pageID, err)}
	}
	return e.ingestDocument(ctx, *doc)
}

func (e *RAGEngine) ingestDocument(ctx context.Context, doc domain.Document) domain.PageResult {
	result := domain.PageResult{PageID: doc.ID, Title: doc.Title}

	chunks, err := chunker.Split(doc.ID, doc.Text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if err != nil {
		result.Err = fmt.Errorf("chunking page %s: %w", doc.ID, err)
		return result
	}
	if len(chunks) == 0 {
		result.Err = fmt.Errorf("%w: page %s has no text content to chunk", domain.ErrInvalidInput, doc.ID)
		return result
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := e.embedder.EmbedChunks(ctx, texts)
	if err != nil {
		result.Err = fmt.Errorf("embedding page %s: %w", doc.ID, err)
		return result
	}

	records := make([]domain.StoredRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.StoredRecord{
			ChunkID:   c.ID,
			Embedding: embeddings[i],
			Text:      c.Text,
			Metadata: domain.ChunkMetadata{
				DocumentID:   doc.ID,
				Title:        doc.Title,
				URL:          doc.URL,
				LastModified: doc.LastModified,
				ChunkIndex:   c.Index,
			},
		}
	}

	// Serialize replaces per document so two concurrent ingestions of the
	// same page cannot interleave.
	unlock := e.locks.Lock(doc.ID)
	defer unlock()

	if err := e.store.ReplaceDocument(ctx, doc.ID, records); err != nil {
		result.Err = fmt.Errorf("storing page %s: %w", doc.ID, err)
		return result
	}

	result.Chunks = len(records)
	logger.Debug("indexed page %s (%q): %d chunks", doc.ID, doc.Title, result.Chunks)
	return result
}

// IngestPages ingests pages concurrently through a bounded worker pool.
// Results preserve request order; a failed page is reported, not fatal.
func (e *RAGEngine) IngestPages(ctx context.Context, pageIDs []string) domain.IngestReport {
	report := domain.IngestReport{
		RunID: uuid.NewString(),
		Pages: make([]domain.PageResult, len(pageIDs)),
	}
	if len(pageIDs) == 0 {
		return report
	}

	logger.Info("ingestion run %s: %d pages", report.RunID, len(pageIDs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.IngestWorkers)
	for i, pageID := range pageIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, pageID string) {
			defer wg.Done()
			defer func() { <-sem }()
			report.Pages[i] = e.IngestPage(ctx, pageID)
			if report.Pages[i].Failed() {
				logger.Warn("run %s: page %s failed: %v", report.RunID, pageID, report.Pages[i].Err)
			}
		}(i, pageID)
	}
	wg.Wait()

	logger.Info("ingestion run %s: %d/%d pages, %d chunks",
		report.RunID, report.PagesProcessed(), len(pageIDs), report.ChunksCreated())
	return report
}

// IngestSpace lists up to limit pages from a space and ingests them. The
// listing call failing is fatal; individual page failures are not.
func (e *RAGEngine) IngestSpace(ctx context.Context, spaceKey string, limit int) (domain.IngestReport, error) {
	docs, err := e.source.ListSpacePages(ctx, spaceKey, limit)
	if err != nil {
		return domain.IngestReport{}, fmt.Errorf("listing pages in space %s: %w", spaceKey, err)
	}
	if len(docs) == 0 {
		return domain.IngestReport{}, fmt.Errorf("%w: no pages found in space %s", domain.ErrNotFound, spaceKey)
	}

	report := domain.IngestReport{
		RunID: uuid.NewString(),
		Pages: make([]domain.PageResult, len(docs)),
	}
	logger.Info("ingestion run %s: space %s, %d pages", report.RunID, spaceKey, len(docs))

	// Pages were already fetched by the listing; skip the per-page fetch
	// and go straight to chunking.
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.IngestWorkers)
	for i, doc := range docs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, doc domain.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			report.Pages[i] = e.ingestDocument(ctx, doc)
		}(i, doc)
	}
	wg.Wait()

	return report, nil
}

// Query embeds the question, retrieves the topK most similar chunks, and
// asks the generation service for an answer grounded in them.
func (e *RAGEngine) Query(ctx context.Context, question string, topK int) (*domain.QueryResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must not be empty", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	embedding, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := e.store.Query(ctx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}

	if len(hits) == 0 {
		logger.Debug("no hits for question %q", question)
		return &domain.QueryResult{Answer: NoInformationAnswer}, nil
	}

	prompt := buildPrompt(question, hits)
	logger.Debug("generating answer from %d chunks (%d prompt bytes)", len(hits), len(prompt))

	answer, err := e.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	chunksUsed := make([]string, len(hits))
	for i, hit := range hits {
		chunksUsed[i] = hit.ChunkID
	}

	return &domain.QueryResult{
		Answer:     strings.TrimSpace(answer),
		Sources:    domain.DedupSources(hits),
		ChunksUsed: chunksUsed,
	}, nil
}

// buildPrompt assembles the grounded generation prompt. Hits arrive in
// descending similarity order and keep that order in the context block.
func buildPrompt(question string, hits []domain.RetrievalHit) string {
	var b strings.Builder
	b.WriteString("You are a knowledge assistant for an internal documentation wiki.\n")
	b.WriteString("Use ONLY the following context to answer the question.\n")
	b.WriteString("Always provide detailed, step-by-step answers when applicable.\n")
	b.WriteString("Format steps as numbered lists for clarity.\n\n")
	b.WriteString("Context:\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "[Source %d: %s]\n%s\n\n", i+1, hit.Metadata.Title, hit.Text)
	}
	b.WriteString("User Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nInstructions:\n")
	b.WriteString("- Base your answer ONLY on the provided context\n")
	b.WriteString("- If the context doesn't contain enough information, say so clearly\n")
	b.WriteString("- Include specific details like commands, URLs, or configuration values when present\n")
	b.WriteString("- Cite which page(s) you're referencing\n\n")
	b.WriteString("Answer:")
	return b.String()
}

// Status reports collection counts and upstream health. It never fails;
// unreachable dependencies show up as false flags and zero counts.
func (e *RAGEngine) Status(ctx context.Context) domain.Status {
	status := domain.Status{}

	stats, err := e.store.Stats(ctx)
	if err != nil {
		logger.Warn("vector store stats unavailable: %v", err)
	} else {
		status.StoreHealthy = true
		status.DocumentsIndexed = stats.Documents
		status.TotalChunks = stats.Chunks
	}

	if err := e.source.Ping(ctx); err != nil {
		logger.Warn("document source unreachable: %v", err)
	} else {
		status.SourceConnected = true
	}

	return status
}

// Reset destroys all indexed records and returns the counts from just
// before the wipe.
func (e *RAGEngine) Reset(ctx context.Context) (domain.StoreStats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return domain.StoreStats{}, fmt.Errorf("reading store stats: %w", err)
	}
	if err := e.store.Clear(ctx); err != nil {
		return domain.StoreStats{}, fmt.Errorf("clearing store: %w", err)
	}
	logger.Info("reset collection: dropped %d documents, %d chunks", stats.Documents, stats.Chunks)
	return stats, nil
}
