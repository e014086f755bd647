// Package chunker splits document text into overlapping, paragraph-aware
// segments for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

// DefaultChunkSize is the default maximum chunk length in runes.
const DefaultChunkSize = 800

// DefaultOverlap is the default overlap between consecutive chunks.
const DefaultOverlap = 150

// Split cuts text into chunks of at most chunkSize runes where each chunk
// after the first starts exactly overlap runes before the end of its
// predecessor. Window arithmetic is rune-based so a multi-byte character is
// never split across chunks; Start/End remain byte offsets and every chunk
// is an exact substring of text, so concatenating chunks with the overlaps
// removed reconstructs the input.
//
// Chunk boundaries prefer the last blank-line paragraph break inside the
// window; a paragraph longer than chunkSize is hard-split into fixed windows
// with the same overlap carry-over. Empty or whitespace-only input yields no
// chunks. Split is pure and deterministic.
//
// Requires 0 < overlap < chunkSize; anything else fails with
// domain.ErrInvalidInput rather than being clamped.
func Split(documentID, text string, chunkSize, overlap int) ([]domain.Chunk, error) {
	if chunkSize <= 0 || overlap <= 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d with overlap %d", domain.ErrInvalidInput, chunkSize, overlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	offsets := runeOffsets(text)
	total := len(offsets) - 1

	var chunks []domain.Chunk
	start := 0 // rune index
	index := 0

	for {
		end := start + chunkSize
		if end >= total {
			chunks = append(chunks, newChunk(documentID, index, text, offsets[start], len(text)))
			break
		}

		if cut := paragraphCut(text[offsets[start]:offsets[end]], overlap); cut > 0 {
			end = start + cut
		}

		chunks = append(chunks, newChunk(documentID, index, text, offsets[start], offsets[end]))
		start = end - overlap
		index++
	}

	return chunks, nil
}

// runeOffsets returns the byte offset of every rune in text, with a final
// entry for len(text), so rune index i spans offsets[i]:offsets[i+1].
func runeOffsets(text string) []int {
	offsets := make([]int, 0, len(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}

// paragraphCut returns the rune count up to just past the last blank-line
// separator in window, or 0 when no break point leaves room for forward
// progress.
func paragraphCut(window string, overlap int) int {
	i := strings.LastIndex(window, "\n\n")
	if i < 0 {
		return 0
	}
	cut := utf8.RuneCountInString(window[:i+2])
	// The next chunk starts overlap runes back from the cut; a cut at or
	// before overlap would not advance past the previous start.
	if cut <= overlap {
		return 0
	}
	return cut
}

func newChunk(documentID string, index int, text string, start, end int) domain.Chunk {
	return domain.Chunk{
		ID:         domain.ChunkID(documentID, index),
		DocumentID: documentID,
		Index:      index,
		Text:       text[start:end],
		Start:      start,
		End:        end,
	}
}
