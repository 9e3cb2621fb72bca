package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past conversations",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

// historyLimit is a flag for the show command.
var historyLimit int

func init() {
	historyShowCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Show only the last N turns (0 = all)")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if conversationStore == nil {
		return errors.New("conversation store not configured")
	}

	sessions, err := conversationStore.Sessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(sessions) == 0 {
		cmd.Println("No conversations recorded yet.")
		return nil
	}

	for _, session := range sessions {
		cmd.Printf("  %s\n", session.SessionID)
		cmd.Printf("      Turns: %d\n", session.Turns)
		cmd.Printf("      Started: %s\n", session.StartedAt.Format("2006-01-02 15:04"))
		cmd.Printf("      Last: %s\n", session.LastAt.Format("2006-01-02 15:04"))
		cmd.Println()
	}

	cmd.Printf("Total: %d conversations\n", len(sessions))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if conversationStore == nil {
		return errors.New("conversation store not configured")
	}

	sessionID := args[0]
	turns, err := conversationStore.Turns(cmd.Context(), sessionID, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	if len(turns) == 0 {
		cmd.Printf("No turns recorded for session %s.\n", sessionID)
		return nil
	}

	for _, turn := range turns {
		label := "You"
		if turn.Role == domain.RoleModel {
			label = "Valet"
		}
		cmd.Printf("[%s] %s\n", turn.Timestamp.Format("15:04"), label)
		cmd.Println(turn.Text)
		if turn.Error != "" {
			cmd.Printf("(error: %s)\n", turn.Error)
		}
		cmd.Println()
	}

	return nil
}
