package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every indexed document and chunk",
	Long: `Destroys the whole vector collection. The next ingestion starts from an
empty store and may use a different embedding model. Requires --force.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "confirm the destructive reset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}
	if !resetForce {
		return errors.New("reset is destructive; re-run with --force to confirm")
	}

	stats, err := ragService.Reset(cmd.Context())
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}

	cmd.Printf("Removed %d documents (%d chunks)\n", stats.Documents, stats.Chunks)
	return nil
}
