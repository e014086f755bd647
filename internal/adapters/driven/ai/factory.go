// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	geminiembed "github.com/knowhub-ai/knowhub/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/knowhub-ai/knowhub/internal/adapters/driven/embedding/ollama"
	geminillm "github.com/knowhub-ai/knowhub/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/knowhub-ai/knowhub/internal/adapters/driven/llm/ollama"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// EmbeddingSettings selects and configures the embedding provider.
type EmbeddingSettings struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// GenerationSettings selects and configures the generation provider.
type GenerationSettings struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// CreateEmbeddingService builds the embedding adapter for the configured
// provider.
func CreateEmbeddingService(settings EmbeddingSettings) (driven.EmbeddingService, error) {
	switch settings.Provider {
	case ProviderGemini:
		return geminiembed.NewEmbeddingService(geminiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})
	case ProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (supported: %s, %s)",
			settings.Provider, ProviderGemini, ProviderOllama)
	}
}

// CreateGenerationService builds the generation adapter for the configured
// provider.
func CreateGenerationService(settings GenerationSettings) (driven.GenerationService, error) {
	switch settings.Provider {
	case ProviderGemini:
		return geminillm.NewGenerationService(geminillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})
	case ProviderOllama:
		return ollamallm.NewGenerationService(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q (supported: %s, %s)",
			settings.Provider, ProviderGemini, ProviderOllama)
	}
}

// CreateAndValidateEmbeddingService builds the embedding adapter and
// validates connectivity before handing it out.
func CreateAndValidateEmbeddingService(settings EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("embedding service unreachable: %w", err)
	}
	return svc, nil
}

// CreateAndValidateGenerationService builds the generation adapter and
// validates connectivity before handing it out.
func CreateAndValidateGenerationService(settings GenerationSettings) (driven.GenerationService, error) {
	svc, err := CreateGenerationService(settings)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("generation service unreachable: %w", err)
	}
	return svc, nil
}
