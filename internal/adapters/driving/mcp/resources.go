package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// uriScheme is the custom URI scheme for Valet resources.
const uriScheme = "valet://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing ingested sources.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "Ingested sources with chunk counts",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	if s.ports.Notes != nil {
		// Static resource for listing notes.
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "notes",
			Name:        "notes",
			Description: "Saved notes, most recently updated first",
			MIMEType:    "application/json",
		}, s.handleNotesResource)

		// Template for note content.
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "notes/{noteId}",
			Name:        "note-content",
			Description: "Body of a specific note",
			MIMEType:    "text/plain",
		}, s.handleNoteContentResource)
	}
}

// handleSourcesResource returns the list of ingested sources.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sources, err := s.ports.Retrieval.Sources(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	type sourceInfo struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Title      string `json:"title"`
		URI        string `json:"uri"`
		Chunks     int    `json:"chunks"`
		IngestedAt string `json:"ingested_at"`
	}

	infos := make([]sourceInfo, len(sources))
	for i, src := range sources {
		infos[i] = sourceInfo{
			ID:         src.ID,
			Type:       string(src.Type),
			Title:      src.Title,
			URI:        src.URI,
			Chunks:     src.ChunkCount,
			IngestedAt: src.IngestedAt.Format(time.RFC3339),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sources: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleNotesResource returns the list of saved notes.
func (s *Server) handleNotesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	notes, err := s.ports.Notes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}

	type noteInfo struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		UpdatedAt string `json:"updated_at"`
	}

	infos := make([]noteInfo, len(notes))
	for i, note := range notes {
		infos[i] = noteInfo{
			ID:        note.ID,
			Title:     note.DisplayTitle(),
			UpdatedAt: note.UpdatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling notes: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleNoteContentResource returns the body of one note.
func (s *Server) handleNoteContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	noteID := strings.TrimPrefix(req.Params.URI, uriScheme+"notes/")
	if noteID == "" || strings.Contains(noteID, "/") {
		return nil, fmt.Errorf("invalid note URI: %s", req.Params.URI)
	}

	note, err := s.ports.Notes.Get(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("getting note %s: %w", noteID, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     note.Text,
		}},
	}, nil
}
