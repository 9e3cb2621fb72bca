package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driving"
	"github.com/custodia-labs/valet-cli/internal/logger"
)

// Ensure ToolRegistry implements the interface.
var _ driving.ToolRunner = (*ToolRegistry)(nil)

// DefaultToolTimeout bounds a single tool dispatch.
const DefaultToolTimeout = 15 * time.Second

// ToolHandler executes one tool call. A returned error becomes a
// structured failure result, never a turn failure.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// CredentialCheck verifies a tool's external account is usable before
// the handler runs. Returning an error short-circuits dispatch with a
// structured result so the model can respond conversationally.
type CredentialCheck func() error

// ToolEntry is one registered tool: its schema, its handler and an
// optional credential check.
type ToolEntry struct {
	Definition domain.ToolDefinition
	Handler    ToolHandler
	Credential CredentialCheck
}

// ToolRegistry maps tool names to entries and dispatches calls.
// Registration happens at startup; dispatch is concurrent-safe and
// read-only afterwards.
type ToolRegistry struct {
	mu      sync.RWMutex
	entries map[string]ToolEntry
	timeout time.Duration
}

// NewToolRegistry creates an empty registry. A non-positive timeout
// falls back to DefaultToolTimeout.
func NewToolRegistry(timeout time.Duration) *ToolRegistry {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &ToolRegistry{
		entries: make(map[string]ToolEntry),
		timeout: timeout,
	}
}

// Register adds a tool entry. Duplicate names are a wiring bug and fail
// with domain.ErrAlreadyExists.
func (r *ToolRegistry) Register(entry ToolEntry) error {
	name := entry.Definition.Name
	if name == "" {
		return fmt.Errorf("%w: tool has no name", domain.ErrInvalidInput)
	}
	if entry.Handler == nil {
		return fmt.Errorf("%w: tool %s has no handler", domain.ErrInvalidInput, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: tool %s", domain.ErrAlreadyExists, name)
	}
	r.entries[name] = entry
	return nil
}

// MustRegister registers an entry and panics on failure. Intended for
// startup wiring where a duplicate is a programmer error.
func (r *ToolRegistry) MustRegister(entry ToolEntry) {
	if err := r.Register(entry); err != nil {
		panic(fmt.Sprintf("registering tool %s: %v", entry.Definition.Name, err))
	}
}

// Definitions returns the registered tool schemas, sorted by name.
func (r *ToolRegistry) Definitions() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]domain.ToolDefinition, 0, len(r.entries))
	for _, entry := range r.entries {
		defs = append(defs, entry.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dispatch runs one tool call and returns its structured outcome.
// Every failure mode is a result value: the orchestrator must always
// have something to feed back to the model.
func (r *ToolRegistry) Dispatch(ctx context.Context, req domain.ToolCallRequest) domain.ToolResult {
	logger.Section("Tool Dispatch")
	logger.Debug("Tool: %s, args: %v", req.Name, req.Args)

	r.mu.RLock()
	entry, ok := r.entries[req.Name]
	r.mu.RUnlock()

	if !ok {
		logger.Warn("Model requested unknown tool %q", req.Name)
		return domain.NewToolError("unknown tool %q", req.Name)
	}

	if missing := missingArguments(entry.Definition, req.Args); len(missing) > 0 {
		logger.Debug("Missing required arguments: %v", missing)
		return domain.NewToolError("missing required arguments: %s", strings.Join(missing, ", "))
	}

	if entry.Credential != nil {
		if err := entry.Credential(); err != nil {
			logger.Debug("Credential check failed for %s: %v", req.Name, err)
			return domain.NewToolError("%s is not connected: %v", req.Name, err)
		}
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	value, err := entry.Handler(dispatchCtx, req.Args)
	if err != nil {
		if dispatchCtx.Err() == context.DeadlineExceeded {
			logger.Warn("Tool %s timed out after %s", req.Name, r.timeout)
			return domain.NewToolError("%s timed out after %s", req.Name, r.timeout)
		}
		logger.Debug("Tool %s failed: %v", req.Name, err)
		return domain.NewToolError("%s failed: %v", req.Name, err)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return domain.NewToolError("%s produced an unencodable result: %v", req.Name, err)
	}

	logger.Debug("Tool %s succeeded (%d bytes)", req.Name, len(encoded))
	return domain.ToolResult{OK: true, Value: encoded}
}

// missingArguments returns required parameter names absent from args.
// A present-but-null argument counts as missing.
func missingArguments(def domain.ToolDefinition, args map[string]any) []string {
	var missing []string
	for _, name := range def.RequiredParameters() {
		v, ok := args[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
