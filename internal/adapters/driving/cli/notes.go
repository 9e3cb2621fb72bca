package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage saved notes",
	Long: `Save, list, search and delete notes.

Saved notes are ingested for retrieval: the assistant can cite them
when answering, and 'notes search' finds them by meaning rather than
keyword.`,
	RunE: runNotesList,
}

var notesAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Save a new note",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotesAdd,
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes",
	RunE:  runNotesList,
}

var notesShowCmd = &cobra.Command{
	Use:   "show [note-id]",
	Short: "Print a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotesShow,
}

var notesSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find notes by meaning",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotesSearch,
}

var notesDeleteCmd = &cobra.Command{
	Use:   "delete [note-id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotesDelete,
}

// noteTitle is a flag for the add command.
var noteTitle string

// noteSearchK is a flag for the search command.
var noteSearchK int

func init() {
	notesAddCmd.Flags().StringVarP(&noteTitle, "title", "t", "", "Note title")
	notesSearchCmd.Flags().IntVarP(&noteSearchK, "limit", "n", 5, "Maximum number of results")

	notesCmd.AddCommand(notesAddCmd)
	notesCmd.AddCommand(notesListCmd)
	notesCmd.AddCommand(notesShowCmd)
	notesCmd.AddCommand(notesSearchCmd)
	notesCmd.AddCommand(notesDeleteCmd)
	rootCmd.AddCommand(notesCmd)
}

func runNotesAdd(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	text := strings.Join(args, " ")
	note, err := noteService.Add(cmd.Context(), noteTitle, text)
	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}

	cmd.Printf("Saved note %s: %s\n", note.ID, note.DisplayTitle())
	return nil
}

func runNotesList(cmd *cobra.Command, _ []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	notes, err := noteService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}

	if len(notes) == 0 {
		cmd.Println("No notes yet. Run 'valet notes add <text>' to save one.")
		return nil
	}

	for _, note := range notes {
		cmd.Printf("  %s  %s\n", note.ID, note.DisplayTitle())
		cmd.Printf("      Updated: %s\n", note.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	cmd.Printf("\nTotal: %d notes\n", len(notes))
	return nil
}

func runNotesShow(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	note, err := noteService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	if note.Title != "" {
		cmd.Printf("%s\n\n", note.Title)
	}
	cmd.Println(note.Text)
	return nil
}

func runNotesSearch(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	query := strings.Join(args, " ")
	hits, err := noteService.Search(cmd.Context(), query, noteSearchK)
	if err != nil {
		return fmt.Errorf("failed to search notes: %w", err)
	}

	if len(hits) == 0 {
		cmd.Println("No matching notes.")
		return nil
	}

	for _, hit := range hits {
		cmd.Printf("  %s (%.0f%%)\n", hit.Source.Title, hit.Similarity*100)
		cmd.Printf("      %s\n", firstLine(hit.Chunk.Text))
	}
	return nil
}

func runNotesDelete(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}

	noteID := args[0]
	if err := noteService.Delete(cmd.Context(), noteID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	cmd.Printf("Deleted note %s.\n", noteID)
	return nil
}

// firstLine returns the first line of text, truncated for display.
func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if runes := []rune(line); len(runes) > 80 {
		return string(runes[:80]) + "…"
	}
	return line
}
