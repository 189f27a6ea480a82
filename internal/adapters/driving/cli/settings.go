package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the database, chunking, embedding, reranker and
LLM settings.

Settings resolve from defaults, then ~/.pdfrag/config.toml, then the
environment (DATABASE_URL, DB_*, VOYAGE_API, OPENAI_API_KEY,
OLLAMA_BASE_URL, RERANKER_URL).`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Stores a setting in the config file using dot notation, for example:

  pdfrag settings set embedding.provider ollama
  pdfrag settings set chunking.size 800

When the value is omitted it is read from the terminal without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the configured providers are reachable",
	RunE:  runSettingsCheck,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("Config file: %s\n", settingsService.ConfigPath())

	section := ""
	for _, row := range settingsService.Describe(settings) {
		key, value := row[0], row[1]
		group, name, _ := strings.Cut(key, ".")
		if name == "" {
			group, name = "general", key
		}
		if group != section {
			cmd.Printf("\n[%s]\n", group)
			section = group
		}
		if value == "" {
			value = "(not set)"
		}
		cmd.Printf("  %s: %s\n", name, value)
	}
	cmd.Println()

	if !settings.Embedding.IsConfigured() {
		cmd.Println("Warning: embedding provider is not configured.")
	}
	if !settings.LLM.IsConfigured() {
		cmd.Println("Warning: LLM provider is not configured.")
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		cmd.Printf("Enter value for %s: ", key)
		value = readSecret()
		cmd.Println()
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	if isSecretKey(key) {
		value = maskAPIKey(value)
	}
	cmd.Printf("%s set to %s\n", key, value)
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if configChecker == nil {
		return errors.New("config checker not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	failed := 0
	for _, check := range configChecker.ValidateAll(cmd.Context(), settings) {
		switch {
		case check.Skipped:
			cmd.Printf("  %-10s %s: skipped\n", check.Stage, check.Provider)
		case check.Err != nil:
			failed++
			cmd.Printf("  %-10s %s (%s): FAILED: %v\n", check.Stage, check.Provider, check.Model, check.Err)
		default:
			cmd.Printf("  %-10s %s (%s): OK\n", check.Stage, check.Provider, check.Model)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d provider check(s) failed", failed)
	}
	cmd.Println("All providers reachable.")
	return nil
}

// Helper functions.

func isSecretKey(key string) bool {
	return key == "database.url" || strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "password")
}

//nolint:errcheck // CLI helper, error ignored for UX
func readSecret() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
