package domain

import "sort"

// QueryResult is the outcome of a successful query: the generated answer,
// deduplicated sources sorted by descending relevance, and the IDs of the
// chunks fed into the prompt.
type QueryResult struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	ChunksUsed []string `json:"chunks_used"`
}

// PageResult reports the outcome of ingesting a single page. A batch collects
// one PageResult per page; a failed page never aborts the batch.
type PageResult struct {
	PageID string `json:"page_id"`
	Title  string `json:"title,omitempty"`
	Chunks int    `json:"chunks"`
	Err    error  `json:"-"`
}

// Failed reports whether ingestion of this page failed.
func (r PageResult) Failed() bool {
	return r.Err != nil
}

// IngestReport aggregates the per-page results of a batch ingestion.
type IngestReport struct {
	// RunID identifies this ingestion run in logs.
	RunID string `json:"run_id"`

	// Pages holds one result per requested page, in request order.
	Pages []PageResult `json:"pages"`
}

// PagesProcessed returns the number of successfully ingested pages.
func (r IngestReport) PagesProcessed() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Failed() {
			n++
		}
	}
	return n
}

// ChunksCreated returns the total chunk count across successful pages.
func (r IngestReport) ChunksCreated() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Failed() {
			n += p.Chunks
		}
	}
	return n
}

// StoreStats describes the persisted state of the vector collection, derived
// from stored metadata rather than cached counters.
type StoreStats struct {
	Documents int `json:"documents_indexed"`
	Chunks    int `json:"total_chunks"`
}

// Status is the system inspection contract.
type Status struct {
	DocumentsIndexed int  `json:"documents_indexed"`
	TotalChunks      int  `json:"total_chunks"`
	StoreHealthy     bool `json:"store_healthy"`
	SourceConnected  bool `json:"source_connected"`
}

// DedupSources aggregates retrieval hits into one Source per document,
// keeping each document's maximum chunk similarity as its relevance score.
// The result is sorted by descending relevance, ties broken by URL for
// determinism.
func DedupSources(hits []RetrievalHit) []Source {
	if len(hits) == 0 {
		return nil
	}

	best := make(map[string]Source, len(hits))
	for _, hit := range hits {
		id := hit.Metadata.DocumentID
		if cur, ok := best[id]; !ok || hit.Score > cur.RelevanceScore {
			best[id] = Source{
				Title:          hit.Metadata.Title,
				URL:            hit.Metadata.URL,
				RelevanceScore: hit.Score,
			}
		}
	}

	sources := make([]Source, 0, len(best))
	for _, s := range best {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool {
		if sources[i].RelevanceScore != sources[j].RelevanceScore {
			return sources[i].RelevanceScore > sources[j].RelevanceScore
		}
		return sources[i].URL < sources[j].URL
	})

	return sources
}
