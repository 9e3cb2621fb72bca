package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/valet-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

var (
	chatPlain  bool
	chatResume bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation with the assistant.

By default this opens a full-screen terminal UI. Use --plain for a
line-based prompt suitable for dumb terminals and scripting.

Use --resume to continue the most recent persisted conversation.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Line-based prompt instead of the full-screen UI")
	chatCmd.Flags().BoolVar(&chatResume, "resume", false, "Continue the most recent conversation")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	if chatResume {
		if err := resumeLatestSession(cmd.Context()); err != nil {
			cmd.Printf("Could not resume: %v\n", err)
		}
	}

	if chatPlain {
		return runPlainChat(cmd)
	}

	app := tui.NewApp(tui.Ports{
		Chat:     chatService,
		Settings: settingsService,
	})
	return app.Run(cmd.Context())
}

// resumeLatestSession seeds the chat service with the most recently
// persisted transcript.
func resumeLatestSession(ctx context.Context) error {
	if conversationStore == nil {
		return errors.New("no conversation store configured")
	}

	sessionID, err := conversationStore.LatestSessionID(ctx)
	if err != nil {
		return err
	}

	turns, err := conversationStore.Turns(ctx, sessionID, 0)
	if err != nil {
		return err
	}

	chatService.Resume(sessionID, turns)
	return nil
}

// runPlainChat reads lines from stdin and streams responses to stdout.
func runPlainChat(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if history := chatService.History(); len(history) > 0 {
		fmt.Fprintf(out, "Resumed conversation (%d turns).\n\n", len(history))
	}
	fmt.Fprintln(out, `Type a message and press enter. Commands: /reset, /exit.`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/exit" || line == "/quit":
			return nil
		case line == "/reset":
			chatService.Reset()
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		if err := sendPlain(ctx, out, line); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// sendPlain runs one turn and renders its events as they arrive.
func sendPlain(ctx context.Context, out io.Writer, text string) error {
	turn, err := chatService.Send(ctx, text, func(event domain.TurnEvent) {
		switch event.Kind {
		case domain.TurnEventDelta:
			fmt.Fprint(out, event.Delta)
		case domain.TurnEventToolCall:
			fmt.Fprintf(out, "\n[calling %s...]\n", event.ToolName)
		case domain.TurnEventToolResult:
			if !event.ToolOK {
				fmt.Fprintf(out, "[%s reported a problem]\n", event.ToolName)
			}
		case domain.TurnEventError:
			fmt.Fprintf(out, "\n[error: %s]\n", event.Err)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	printSources(out, turn.Sources)
	return nil
}

// printSources renders turn citations, if any.
func printSources(out io.Writer, sources []domain.SourceRef) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for _, src := range sources {
		if src.URI != "" {
			fmt.Fprintf(out, "  - %s (%s)\n", src.Title, src.URI)
		} else {
			fmt.Fprintf(out, "  - %s\n", src.Title)
		}
	}
}
