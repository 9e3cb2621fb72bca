package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List ingested sources",
	Long:  `List every ingested source with its chunk count and last ingest time.`,
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func runSources(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	sources, err := retrievalService.Sources(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if len(sources) == 0 {
		cmd.Println("No sources ingested yet. Run 'valet ingest <path>' to add some.")
		return nil
	}

	for _, src := range sources {
		title := src.Title
		if title == "" {
			title = src.ID
		}
		cmd.Printf("  %s\n", title)
		cmd.Printf("    ID: %s\n", src.ID)
		cmd.Printf("    Type: %s\n", src.Type)
		if src.URI != "" {
			cmd.Printf("    URI: %s\n", src.URI)
		}
		cmd.Printf("    Chunks: %d\n", src.ChunkCount)
		if !src.IngestedAt.IsZero() {
			cmd.Printf("    Ingested: %s\n", src.IngestedAt.Format("2006-01-02 15:04:05"))
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d sources\n", len(sources))
	return nil
}
