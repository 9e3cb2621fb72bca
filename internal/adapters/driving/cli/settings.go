package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, personas, and other options.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the chat provider",
	Long:  `Configure the LLM provider that drives conversations.`,
	RunE:  runSettingsLLM,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long:  `Configure the embedding provider used for retrieval over documents and notes.`,
	RunE:  runSettingsEmbedding,
}

var settingsPersonaCmd = &cobra.Command{
	Use:   "persona [name]",
	Short: "List or switch personas",
	Long: `Without an argument, list available personas. With an argument,
switch the active persona. Personas are editable text files; run
'valet settings show' to see where they live.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsPersona,
}

var settingsGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Configure the Google tools credential",
	Long: `Configure the OAuth credential behind the calendar and task tools.

Valet does not run an OAuth flow itself: provide a client ID, client
secret and a refresh token obtained out of band (for example via the
OAuth playground). Calendar and task tools stay disabled until all
three are set.`,
	RunE: runSettingsGoogle,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsPersonaCmd)
	settingsCmd.AddCommand(settingsGoogleCmd)
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
	cmd.Println()

	cmd.Println("[Chat]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.LLM.APIKey))
	}
	cmd.Printf("  Persona: %s\n", settings.Chat.Persona)
	cmd.Printf("  RAG: %s\n", onOff(settings.Chat.RAGEnabled))
	cmd.Printf("  Max tool hops: %d\n", settings.Chat.MaxToolHops)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Chunk size: %d bytes (overlap %d)\n",
		settings.Retrieval.ChunkSize, settings.Retrieval.ChunkOverlap)
	cmd.Printf("  Sentence-aware: %s\n", onOff(settings.Retrieval.SentenceAware))
	cmd.Printf("  Top K: %d (threshold %.2f)\n",
		settings.Retrieval.TopK, settings.Retrieval.SimilarityThreshold)
	cmd.Println()

	cmd.Println("[Google Tools]")
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Google.IsConfigured()))
	cmd.Println()

	if !settings.LLM.IsConfigured() {
		cmd.Println("Run 'valet settings wizard' to finish setting up.")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("Valet Settings Wizard")
	cmd.Println("=====================")
	cmd.Println()

	reader := bufio.NewReader(os.Stdin)

	cmd.Println("Step 1: Chat Provider")
	cmd.Println("---------------------")
	if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Step 2: Embedding Provider")
	cmd.Println("--------------------------")
	cmd.Println("Needed for answering from your documents and notes.")
	cmd.Print("Configure one now? [Y/n]: ")
	if answer := readLine(reader); answer == "" || strings.EqualFold(answer, "y") {
		if err := configureEmbeddingProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Skipped. Retrieval stays disabled until one is set.")
		cmd.Println()
	}

	cmd.Println("Step 3: Persona")
	cmd.Println("---------------")
	if err := choosePersona(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	cmd.Println("Run 'valet chat' to start a conversation.")
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(os.Stdin)
	return configureLLMProvider(cmd, reader)
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	reader := bufio.NewReader(os.Stdin)
	return configureEmbeddingProvider(cmd, reader)
}

func runSettingsPersona(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if len(args) == 0 {
		return listPersonas(cmd)
	}

	name := args[0]
	if err := settingsService.SetPersona(name); err != nil {
		return fmt.Errorf("failed to set persona: %w", err)
	}
	cmd.Printf("Persona set to: %s\n", name)
	return nil
}

func listPersonas(cmd *cobra.Command) error {
	names, err := settingsService.Personas()
	if err != nil {
		return fmt.Errorf("failed to list personas: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Available personas:")
	for _, name := range names {
		marker := " "
		if name == settings.Chat.Persona {
			marker = "*"
		}
		cmd.Printf("  %s %s\n", marker, name)
	}
	return nil
}

func runSettingsGoogle(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	cmd.Print("Client ID: ")
	settings.Google.ClientID = readLine(reader)
	cmd.Print("Client secret: ")
	settings.Google.ClientSecret = readPassword()
	cmd.Println()
	cmd.Print("Refresh token: ")
	settings.Google.RefreshToken = readPassword()
	cmd.Println()

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	if settings.Google.IsConfigured() {
		cmd.Println("Google credential saved. Calendar and task tools are enabled on next start.")
	} else {
		cmd.Println("Credential incomplete; calendar and task tools stay disabled.")
	}
	return nil
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword()
		cmd.Println()
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to set embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Chat Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaults := domain.DefaultLLMModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword()
		cmd.Println()
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to set chat provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("chat configuration failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Chat provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

// choosePersona lists personas and applies the user's selection.
func choosePersona(cmd *cobra.Command, reader *bufio.Reader) error {
	names, err := settingsService.Personas()
	if err != nil {
		return fmt.Errorf("failed to list personas: %w", err)
	}

	for i, name := range names {
		cmd.Printf("  %d. %s\n", i+1, name)
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(names), 1)

	if err := settingsService.SetPersona(names[idx-1]); err != nil {
		return fmt.Errorf("failed to set persona: %w", err)
	}
	cmd.Printf("Persona set to: %s\n\n", names[idx-1])
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
