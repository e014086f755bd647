package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/knowhub-ai/knowhub/internal/adapters/driven/ai"
	configfile "github.com/knowhub-ai/knowhub/internal/adapters/driven/config/file"
	"github.com/knowhub-ai/knowhub/internal/adapters/driven/confluence"
	"github.com/knowhub-ai/knowhub/internal/adapters/driven/storage/qdrant"
	"github.com/knowhub-ai/knowhub/internal/adapters/driven/storage/sqlite"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driven"
	"github.com/knowhub-ai/knowhub/internal/core/ports/driving"
	"github.com/knowhub-ai/knowhub/internal/core/services"
	"github.com/knowhub-ai/knowhub/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Package-level services, assembled by initServices and swapped out by
// tests.
var (
	configStore driven.ConfigStore
	ragService  driving.RAGService
	closers     []io.Closer
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "knowhub",
	Short: "Ask questions over your Confluence wiki",
	Long: `knowhub indexes Confluence pages into a local vector collection and
answers questions about them with a grounded LLM prompt.

Start with 'knowhub init' to configure access, 'knowhub ingest' to index
pages, then 'knowhub ask' to query them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if skipsServices(cmd) {
			return nil
		}
		return initServices()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// skipsServices reports whether a command runs without the full pipeline.
func skipsServices(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "init", "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	return false
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	defer closeServices()

	if err := rootCmd.Execute(); err != nil {
		logger.Error("%v", err)
		return 1
	}
	return 0
}

// initServices wires the adapters behind the ports from persisted
// configuration. Idempotent so tests can pre-populate the services.
func initServices() error {
	if ragService != nil {
		return nil
	}

	store, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	configStore = store

	baseURL := store.GetString("confluence.base_url")
	token := store.GetString("confluence.token")
	if baseURL == "" || token == "" {
		return fmt.Errorf("confluence is not configured; run 'knowhub init' first")
	}

	source, err := confluence.NewClient(confluence.Config{
		BaseURL: baseURL,
		Token:   token,
	})
	if err != nil {
		return fmt.Errorf("building confluence client: %w", err)
	}
	closers = append(closers, source)

	provider := store.GetString("ai.provider")
	if provider == "" {
		provider = ai.ProviderGemini
	}

	embedSvc, err := ai.CreateAndValidateEmbeddingService(ai.EmbeddingSettings{
		Provider: provider,
		APIKey:   store.GetString("ai.api_key"),
		BaseURL:  store.GetString("ai.base_url"),
		Model:    store.GetString("ai.embedding_model"),
	})
	if err != nil {
		return fmt.Errorf("building embedding service: %w", err)
	}
	closers = append(closers, embedSvc)

	genSvc, err := ai.CreateAndValidateGenerationService(ai.GenerationSettings{
		Provider: provider,
		APIKey:   store.GetString("ai.api_key"),
		BaseURL:  store.GetString("ai.base_url"),
		Model:    store.GetString("ai.generation_model"),
	})
	if err != nil {
		return fmt.Errorf("building generation service: %w", err)
	}
	closers = append(closers, genSvc)

	vectorStore, err := buildVectorStore(store, embedSvc)
	if err != nil {
		return fmt.Errorf("building vector store: %w", err)
	}
	closers = append(closers, vectorStore)

	embedder := services.NewBatchEmbedder(embedSvc, services.EmbedderConfig{
		MaxBatchSize:      store.GetInt("rag.max_batch_size"),
		RequestsPerSecond: store.GetFloat("rag.requests_per_second"),
	})

	ragService = services.NewRAGEngine(source, embedder, vectorStore, genSvc, services.EngineConfig{
		ChunkSize:    store.GetInt("rag.chunk_size"),
		ChunkOverlap: store.GetInt("rag.chunk_overlap"),
		TopK:         store.GetInt("rag.top_k"),
		MaxTokens:    store.GetInt("rag.max_tokens"),
		Temperature:  store.GetFloat("rag.temperature"),
	})

	return nil
}

func buildVectorStore(store driven.ConfigStore, embedSvc driven.EmbeddingService) (driven.VectorStore, error) {
	switch backend := store.GetString("storage.backend"); backend {
	case "", "sqlite":
		return sqlite.NewStore(store.GetString("storage.data_dir"))
	case "qdrant":
		return qdrant.NewStore(context.Background(), qdrant.Config{
			Host:       store.GetString("storage.qdrant_host"),
			Port:       store.GetInt("storage.qdrant_port"),
			Collection: store.GetString("storage.qdrant_collection"),
			Dimensions: embedSvc.Dimensions(),
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q (supported: sqlite, qdrant)", backend)
	}
}

func closeServices() {
	for _, c := range closers {
		c.Close()
	}
	closers = nil
}
