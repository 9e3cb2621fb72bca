// Package mcp provides an MCP (Model Context Protocol) server adapter for Valet.
// It lets external AI assistants query the local retrieval index, save and
// search notes, and ingest new documents.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
