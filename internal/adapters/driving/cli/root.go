// Package cli implements the valet command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/valet-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/valet-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/valet-cli/internal/adapters/driven/storage/sqlite"
	googletools "github.com/custodia-labs/valet-cli/internal/adapters/driven/tools/google"
	"github.com/custodia-labs/valet-cli/internal/adapters/driven/tools/weather"
	"github.com/custodia-labs/valet-cli/internal/connectors/filesystem"
	githubconn "github.com/custodia-labs/valet-cli/internal/connectors/github"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/core/services"
	"github.com/custodia-labs/valet-cli/internal/logger"
	"github.com/custodia-labs/valet-cli/internal/postprocessors/chunker"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services used by the commands. Wired in wireServices; tests swap
// these for mocks and call rootCmd.Execute directly.
var (
	settingsService   driving.SettingsService
	chatService       driving.ChatService
	retrievalService  driving.RetrievalService
	noteService       driving.NoteService
	ingestService     driving.IngestService
	toolRunner        driving.ToolRunner
	conversationStore driven.ConversationStore
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "valet",
	Short: "A personal assistant in your terminal",
	Long: `Valet is a conversational personal assistant. It chats through a
configurable LLM provider, answers from your own documents and notes,
and manages your calendar and tasks through tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// Execute wires the services and runs the root command.
func Execute() {
	ctx := context.Background()

	cleanup, err := wireServices(ctx)
	if err != nil {
		// Commands nil-check the services they need, so a partial
		// wiring still leaves version, help and settings usable.
		logger.Warn("Service initialisation incomplete: %v", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// wireServices builds the full service graph from persisted settings.
// Optional collaborators that fail to initialise degrade to nil rather
// than aborting startup.
func wireServices(ctx context.Context) (func(), error) {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("opening config store: %w", err)
	}

	personaStore, err := file.NewPersonaStore("")
	if err != nil {
		return nil, fmt.Errorf("opening persona store: %w", err)
	}

	settingsSvc := services.NewSettingsService(configStore, ai.NewConfigValidator(), personaStore)
	settingsService = settingsSvc

	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	cleanup := func() {
		store.Close() //nolint:errcheck
	}
	conversationStore = store.ConversationStore()

	// Retrieval pipeline. Without a configured embedding provider the
	// service still wires; Ingest and Retrieve report the gap.
	var embedder driven.EmbeddingService
	if settings.Embedding.IsConfigured() {
		embedder, err = ai.CreateEmbeddingService(&settings.Embedding)
		if err != nil {
			logger.Warn("Embedding provider unavailable: %v", err)
		}
	}
	retrievalSvc := services.NewRetrievalService(
		newChunker(settings.Retrieval),
		embedder,
		store.VectorStore(embeddingDimensions(settings.Embedding.Model)),
		settings.Retrieval,
	)
	retrievalService = retrievalSvc

	noteSvc := services.NewNoteService(store.NoteStore(), retrievalSvc)
	noteService = noteSvc

	ingestService = services.NewIngestService(retrievalSvc,
		filesystem.NewLoader(),
		githubconn.NewLoader(githubconn.NewClient(ctx, os.Getenv("GITHUB_TOKEN"))),
	)

	registry := newToolRegistry(ctx, settings, noteSvc)
	toolRunner = registry

	var llm driven.LLMService
	if settings.LLM.IsConfigured() {
		llm, err = ai.CreateLLMService(&settings.LLM)
		if err != nil {
			logger.Warn("Chat provider unavailable: %v", err)
		}
	}

	sessionConfig, err := settingsSvc.SessionConfig()
	if err != nil {
		// Not configured yet; the chat commands surface this.
		sessionConfig = domain.SessionConfig{}
	}

	chatSvc := services.NewChatService(llm, retrievalSvc, registry, conversationStore, sessionConfig)
	chatService = chatSvc

	// Settings mutations invalidate the running session and swap the
	// provider client in place.
	settingsSvc.OnSessionConfigChange(func(config domain.SessionConfig) {
		if current, err := settingsSvc.Get(); err == nil && current.LLM.IsConfigured() {
			if fresh, err := ai.CreateLLMService(&current.LLM); err == nil {
				chatSvc.SetLLM(fresh)
			}
		}
		if err := chatSvc.Configure(config); err != nil {
			logger.Warn("Reconfiguring session: %v", err)
		}
	})

	return cleanup, nil
}

// newChunker builds the chunker from retrieval settings. Inconsistent
// stored values fall back to the chunker defaults rather than panicking.
func newChunker(settings domain.RetrievalSettings) driven.Chunker {
	var opts []chunker.Option
	if settings.ChunkSize > settings.ChunkOverlap && settings.ChunkOverlap >= 0 {
		opts = append(opts,
			chunker.WithChunkSize(settings.ChunkSize),
			chunker.WithOverlap(settings.ChunkOverlap),
		)
	} else {
		logger.Warn("Ignoring invalid chunk settings (size %d, overlap %d)",
			settings.ChunkSize, settings.ChunkOverlap)
	}
	if settings.SentenceAware {
		opts = append(opts, chunker.WithSentenceSplitting())
	}
	return chunker.New(opts...)
}

// newToolRegistry wires the built-in tools behind the registry.
func newToolRegistry(ctx context.Context, settings *domain.AppSettings, notes driving.NoteService) *services.ToolRegistry {
	registry := services.NewToolRegistry(time.Duration(settings.Chat.ToolTimeoutSeconds) * time.Second)

	deps := services.BuiltinToolDeps{
		Weather: weather.NewService(weather.Config{}),
		Notes:   notes,
	}

	if settings.Google.IsConfigured() {
		if calendar, err := googletools.NewCalendarAdapter(ctx, settings.Google); err == nil {
			deps.Calendar = calendar
		} else {
			logger.Warn("Calendar tools unavailable: %v", err)
		}
		if tasks, err := googletools.NewTasksAdapter(ctx, settings.Google); err == nil {
			deps.Tasks = tasks
		} else {
			logger.Warn("Task tools unavailable: %v", err)
		}
	}

	if err := services.RegisterBuiltinTools(registry, deps); err != nil {
		logger.Warn("Registering tools: %v", err)
	}
	return registry
}

// embeddingDimensions resolves the vector dimension for a model name.
func embeddingDimensions(model string) int {
	if dims, ok := domain.EmbeddingDimensions()[model]; ok {
		return dims
	}
	return 768
}
