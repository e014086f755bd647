package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/knowhub-ai/knowhub/internal/core/domain"
)

var (
	askTopK int
	askJSON bool
)

var (
	answerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("6"))

	sourceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the indexed pages",
	Long: `Embeds the question, retrieves the most similar chunks from the
collection, and generates an answer grounded in them. Sources are listed
with their relevance scores.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	result, err := ragService.Query(cmd.Context(), args[0], askTopK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if askJSON {
		return outputAskJSON(cmd, result)
	}
	return outputAskText(cmd, result)
}

func outputAskJSON(cmd *cobra.Command, result *domain.QueryResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputAskText(cmd *cobra.Command, result *domain.QueryResult) error {
	cmd.Println(answerStyle.Render("Answer"))
	cmd.Println(result.Answer)

	if len(result.Sources) == 0 {
		return nil
	}

	cmd.Println()
	cmd.Println(answerStyle.Render("Sources"))
	for i, src := range result.Sources {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, src.Title, src.RelevanceScore)
		if src.URL != "" {
			cmd.Println(sourceStyle.Render("      " + src.URL))
		}
	}
	return nil
}
