package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/valet-cli/internal/connectors/filesystem"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [target]",
	Short: "Ingest documents for retrieval",
	Long: `Ingest documents so the assistant can answer from them.

The target is a file, a directory (ingested recursively), or a GitHub
repository reference like owner/repo or owner/repo@branch. Re-ingesting
a target replaces its previous content.

With --watch the command keeps running and re-ingests files as they
change on disk. Watching only applies to local targets.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestRemoveCmd = &cobra.Command{
	Use:   "remove [source-id]",
	Short: "Remove an ingested source",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestRemove,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "Keep watching the target and re-ingest on change")
	ingestCmd.AddCommand(ingestRemoveCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	target := args[0]
	report, err := ingestService.IngestTarget(cmd.Context(), target)
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", target, err)
	}

	cmd.Printf("Ingested %d documents (%d chunks", report.Documents, report.Chunks)
	if report.Skipped > 0 {
		cmd.Printf(", %d skipped", report.Skipped)
	}
	cmd.Println(")")

	if !ingestWatch {
		return nil
	}
	return watchTarget(cmd, target)
}

// watchTarget blocks, re-ingesting the target as files change.
func watchTarget(cmd *cobra.Command, target string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	watcher, err := filesystem.NewWatcher(retrievalService)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(target); err != nil {
		return fmt.Errorf("watching %s: %w", target, err)
	}

	cmd.Printf("Watching %s for changes. Press Ctrl+C to stop.\n", target)
	return watcher.Run(cmd.Context())
}

func runIngestRemove(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	sourceID := args[0]
	if err := ingestService.Remove(cmd.Context(), sourceID); err != nil {
		return fmt.Errorf("failed to remove %s: %w", sourceID, err)
	}

	cmd.Printf("Removed source %s.\n", sourceID)
	return nil
}
