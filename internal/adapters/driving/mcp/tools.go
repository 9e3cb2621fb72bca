package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query      string `json:"query" jsonschema:"the query to find relevant content for"`
	K          int    `json:"k,omitempty" jsonschema:"maximum number of chunks to return (default 5)"`
	SourceType string `json:"source_type,omitempty" jsonschema:"restrict results to one source kind: file or note"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ChunkOutput represents a single retrieved chunk.
type ChunkOutput struct {
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
	Title      string  `json:"title"`
	URI        string  `json:"uri"`
}

// SaveNoteInput is the input schema for the save_note tool.
type SaveNoteInput struct {
	Title string `json:"title,omitempty" jsonschema:"short note title"`
	Text  string `json:"text" jsonschema:"the note body to save"`
}

// SaveNoteOutput is the output schema for the save_note tool.
type SaveNoteOutput struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SearchNotesInput is the input schema for the search_notes tool.
type SearchNotesInput struct {
	Query string `json:"query" jsonschema:"the query to find relevant notes for"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of notes to return (default 5)"`
}

// IngestTextInput is the input schema for the ingest_text tool.
type IngestTextInput struct {
	SourceID string `json:"source_id" jsonschema:"stable identifier; re-ingesting the same id replaces prior content"`
	Title    string `json:"title,omitempty" jsonschema:"human-readable document name"`
	Text     string `json:"text" jsonschema:"the document text to ingest"`
}

// IngestTextOutput is the output schema for the ingest_text tool.
type IngestTextOutput struct {
	Chunks int `json:"chunks"`
}

// ClearSourceInput is the input schema for the clear_source tool.
type ClearSourceInput struct {
	SourceID string `json:"source_id" jsonschema:"identifier of the source to remove"`
}

// ClearSourceOutput is the output schema for the clear_source tool.
type ClearSourceOutput struct {
	Cleared bool `json:"cleared"`
}

// registerTools registers all tool handlers with the MCP server.
// Tools backed by an absent port are not registered at all.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find ingested content relevant to a query via vector similarity",
	}, s.handleRetrieve)

	if s.ports.Notes != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "save_note",
			Description: "Save a note; saved notes become retrievable content",
		}, s.handleSaveNote)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search_notes",
			Description: "Find saved notes relevant to a query",
		}, s.handleSearchNotes)
	}

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_text",
			Description: "Ingest a text document for retrieval, replacing prior content under the same source id",
		}, s.handleIngestText)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "clear_source",
			Description: "Remove all ingested content for a source id",
		}, s.handleClearSource)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	opts := domain.RetrieveOptions{K: input.K}
	if input.SourceType != "" {
		st := domain.SourceType(strings.ToLower(input.SourceType))
		if !st.IsValid() {
			return nil, RetrieveOutput{}, fmt.Errorf("unknown source type %q", input.SourceType)
		}
		opts.SourceType = st
	}

	hits, err := s.ports.Retrieval.Retrieve(ctx, input.Query, opts)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, toRetrieveOutput(hits), nil
}

// handleSaveNote handles the save_note tool invocation.
func (s *Server) handleSaveNote(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SaveNoteInput,
) (*mcp.CallToolResult, SaveNoteOutput, error) {
	note, err := s.ports.Notes.Add(ctx, input.Title, input.Text)
	if err != nil {
		return nil, SaveNoteOutput{}, err
	}

	return nil, SaveNoteOutput{ID: note.ID, Title: note.DisplayTitle()}, nil
}

// handleSearchNotes handles the search_notes tool invocation.
func (s *Server) handleSearchNotes(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchNotesInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	hits, err := s.ports.Notes.Search(ctx, input.Query, input.K)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, toRetrieveOutput(hits), nil
}

// handleIngestText handles the ingest_text tool invocation.
func (s *Server) handleIngestText(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestTextInput,
) (*mcp.CallToolResult, IngestTextOutput, error) {
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, IngestTextOutput{}, fmt.Errorf("source_id is required")
	}

	info := domain.SourceInfo{
		ID:    input.SourceID,
		Type:  domain.SourceTypeFile,
		Title: input.Title,
		URI:   "mcp:" + input.SourceID,
	}
	count, err := s.ports.Ingest.IngestDocument(ctx, info, input.Text)
	if err != nil {
		return nil, IngestTextOutput{}, err
	}

	return nil, IngestTextOutput{Chunks: count}, nil
}

// handleClearSource handles the clear_source tool invocation.
func (s *Server) handleClearSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ClearSourceInput,
) (*mcp.CallToolResult, ClearSourceOutput, error) {
	if strings.TrimSpace(input.SourceID) == "" {
		return nil, ClearSourceOutput{}, fmt.Errorf("source_id is required")
	}

	if err := s.ports.Ingest.Remove(ctx, input.SourceID); err != nil {
		return nil, ClearSourceOutput{}, err
	}

	return nil, ClearSourceOutput{Cleared: true}, nil
}

// toRetrieveOutput converts ranked chunks into the wire shape.
func toRetrieveOutput(hits []domain.RankedChunk) RetrieveOutput {
	out := RetrieveOutput{
		Results: make([]ChunkOutput, len(hits)),
		Count:   len(hits),
	}
	for i := range hits {
		out.Results[i] = ChunkOutput{
			Text:       hits[i].Chunk.Text,
			Similarity: hits[i].Similarity,
			Title:      hits[i].Source.Title,
			URI:        hits[i].Source.URI,
		}
	}
	return out
}
