package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/knowhub-ai/knowhub/internal/adapters/driven/ai"
	configfile "github.com/knowhub-ai/knowhub/internal/adapters/driven/config/file"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Configure Confluence access and AI providers",
	Long: `Interactively configures the Confluence instance, API token, and the
embedding/generation provider. Settings are written to ~/.knowhub/config.toml
with owner-only permissions.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	store, err := configfile.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	reader := bufio.NewReader(cmd.InOrStdin())

	baseURL, err := prompt(cmd, reader, "Confluence base URL (e.g. https://wiki.example.com): ")
	if err != nil {
		return err
	}
	if baseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	store.Set("confluence.base_url", strings.TrimRight(baseURL, "/"))

	token, err := promptSecret(cmd, reader, "Confluence API token: ")
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("API token is required")
	}
	store.Set("confluence.token", token)

	provider, err := prompt(cmd, reader, "AI provider [gemini/ollama] (default gemini): ")
	if err != nil {
		return err
	}
	if provider == "" {
		provider = ai.ProviderGemini
	}
	if provider != ai.ProviderGemini && provider != ai.ProviderOllama {
		return fmt.Errorf("unknown provider %q (supported: gemini, ollama)", provider)
	}
	store.Set("ai.provider", provider)

	if provider == ai.ProviderGemini {
		apiKey, err := promptSecret(cmd, reader, "Gemini API key: ")
		if err != nil {
			return err
		}
		if apiKey == "" {
			return fmt.Errorf("API key is required for gemini")
		}
		store.Set("ai.api_key", apiKey)
	}

	if err := store.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	cmd.Printf("Configuration written to %s\n", store.Path())
	cmd.Println("Next: 'knowhub ingest <page-id>' or 'knowhub ingest --space <KEY>'")
	return nil
}

func prompt(cmd *cobra.Command, reader *bufio.Reader, label string) (string, error) {
	cmd.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo when stdin is a terminal, falling back to
// a plain read when it is not (tests, pipes).
func promptSecret(cmd *cobra.Command, reader *bufio.Reader, label string) (string, error) {
	cmd.Print(label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
