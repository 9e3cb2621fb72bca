package mcp

import (
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces exposed over MCP.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retrieval answers similarity queries and lists sources.
	Retrieval driving.RetrievalService

	// Notes manages user notes.
	Notes driving.NoteService

	// Ingest feeds documents into retrieval.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	// Notes and Ingest are optional; their tools are simply not registered.
	return nil
}
