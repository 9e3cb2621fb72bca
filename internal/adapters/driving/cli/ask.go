package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Ask a single question and print the streamed answer.

The answer is grounded in your ingested documents and notes when
retrieval is configured and enabled. Tools run as usual.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if err := sendPlain(cmd.Context(), cmd.OutOrStdout(), question); err != nil {
		return err
	}
	return nil
}
