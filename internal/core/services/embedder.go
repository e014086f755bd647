package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
	"github.com/knowhub-ai/knowhub/internal/logger"
	"github.com/knowhub-ai/knowhub/internal/retry"
)

// Default embedder configuration values.
const (
	DefaultMaxBatchSize       = 100
	DefaultRequestsPerSecond  = 2.0
	DefaultQueryRetryAttempts = 2
)

// EmbedderConfig configures batching, throttling and retry behaviour for
// the embedding pipeline.
type EmbedderConfig struct {
	// MaxBatchSize caps the number of texts per upstream call
	// (default: 100).
	MaxBatchSize int

	// RequestsPerSecond throttles upstream calls (default: 2).
	RequestsPerSecond float64

	// Retry is the backoff policy for transient upstream failures.
	Retry retry.Config
}

func (c EmbedderConfig) withDefaults() EmbedderConfig {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	return c
}

// BatchEmbedder wraps an embedding service with sub-batch partitioning,
// rate limiting, retry with backoff, and dimension verification. It is the
// only path the engine uses to produce embeddings.
type BatchEmbedder struct {
	svc     driven.EmbeddingService
	cfg     EmbedderConfig
	limiter *rate.Limiter
}

// NewBatchEmbedder wraps svc with the given policy.
func NewBatchEmbedder(svc driven.EmbeddingService, cfg EmbedderConfig) *BatchEmbedder {
	cfg = cfg.withDefaults()
	return &BatchEmbedder{
		svc:     svc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// EmbedChunks embeds texts in order, partitioning into sub-batches of at
// most MaxBatchSize. Result i corresponds to texts[i]. A sub-batch that
// fails after retries fails the whole call; no partial result is returned.
func (e *BatchEmbedder) EmbedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	want := e.svc.Dimensions()
	out := make([][]float32, 0, len(texts))

	batches := (len(texts) + e.cfg.MaxBatchSize - 1) / e.cfg.MaxBatchSize
	for i := 0; i < len(texts); i += e.cfg.MaxBatchSize {
		end := i + e.cfg.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]
		logger.Debug("embedding batch %d/%d (%d texts)", i/e.cfg.MaxBatchSize+1, batches, len(batch))

		var vectors [][]float32
		err := retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) error {
			if err := e.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
			var embedErr error
			vectors, embedErr = e.svc.EmbedBatch(ctx, batch)
			return classify(embedErr)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
		}

		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts",
				domain.ErrEmbeddingFailed, len(vectors), len(batch))
		}
		for j, vec := range vectors {
			if len(vec) != want {
				return nil, fmt.Errorf("%w: embedding %d has dimension %d, model %s produces %d",
					domain.ErrDimensionMismatch, i+j, len(vec), e.svc.ModelName(), want)
			}
		}

		out = append(out, vectors...)
	}

	return out, nil
}

// EmbedQuery embeds a single query text with a tighter retry budget, since
// an interactive caller is waiting.
func (e *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	queryRetry := e.cfg.Retry
	queryRetry.MaxAttempts = DefaultQueryRetryAttempts

	var vector []float32
	err := retry.Do(ctx, queryRetry, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		var embedErr error
		vector, embedErr = e.svc.Embed(ctx, text)
		return classify(embedErr)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}

	if want := e.svc.Dimensions(); len(vector) != want {
		return nil, fmt.Errorf("%w: query embedding has dimension %d, model %s produces %d",
			domain.ErrDimensionMismatch, len(vector), e.svc.ModelName(), want)
	}

	return vector, nil
}

// Dimensions reports the wrapped model's embedding size.
func (e *BatchEmbedder) Dimensions() int {
	return e.svc.Dimensions()
}

// classify decides whether an upstream error is worth retrying. Rate limits
// and transient unavailability retry with backoff; everything else stops
// immediately.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrUnavailable) {
		return err
	}
	return retry.Permanent(err)
}
