package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

var (
	ingestSpace string
	ingestLimit int
	ingestJSON  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [page-id...]",
	Short: "Index Confluence pages into the knowledge base",
	Long: `Fetches pages from Confluence, chunks their text, embeds the chunks and
stores them in the vector collection. Re-ingesting a page replaces its
previous version completely.

Pass page IDs as arguments, or use --space to ingest a whole space.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestSpace, "space", "s", "", "ingest pages from this space key")
	ingestCmd.Flags().IntVarP(&ingestLimit, "limit", "n", 10, "maximum pages to ingest from a space")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}
	if len(args) == 0 && ingestSpace == "" {
		return errors.New("provide page IDs or --space")
	}
	if len(args) > 0 && ingestSpace != "" {
		return errors.New("page IDs and --space are mutually exclusive")
	}

	ctx := cmd.Context()

	var report domain.IngestReport
	if ingestSpace != "" {
		var err error
		report, err = ragService.IngestSpace(ctx, ingestSpace, ingestLimit)
		if err != nil {
			return fmt.Errorf("ingesting space %s: %w", ingestSpace, err)
		}
	} else {
		report = ragService.IngestPages(ctx, args)
	}

	if ingestJSON {
		return outputIngestJSON(cmd, report)
	}
	return outputIngestReport(cmd, report)
}

func outputIngestJSON(cmd *cobra.Command, report domain.IngestReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputIngestReport(cmd *cobra.Command, report domain.IngestReport) error {
	for _, page := range report.Pages {
		if page.Failed() {
			cmd.Printf("  ✗ %s: %v\n", page.PageID, page.Err)
			continue
		}
		cmd.Printf("  ✓ %s (%s): %d chunks\n", page.PageID, page.Title, page.Chunks)
	}

	cmd.Println()
	cmd.Printf("Ingested %d/%d pages, %d chunks\n",
		report.PagesProcessed(), len(report.Pages), report.ChunksCreated())

	if report.PagesProcessed() < len(report.Pages) {
		return fmt.Errorf("%d page(s) failed", len(report.Pages)-report.PagesProcessed())
	}
	return nil
}
