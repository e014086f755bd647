package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show collection counts and upstream health",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if ragService == nil {
		return errors.New("rag service not configured")
	}

	status := ragService.Status(cmd.Context())

	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Documents indexed: %d\n", status.DocumentsIndexed)
	cmd.Printf("Total chunks:      %d\n", status.TotalChunks)
	cmd.Printf("Vector store:      %s\n", healthWord(status.StoreHealthy))
	cmd.Printf("Confluence:        %s\n", connectedWord(status.SourceConnected))
	return nil
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unavailable"
}

func connectedWord(ok bool) string {
	if ok {
		return "connected"
	}
	return "unreachable"
}
