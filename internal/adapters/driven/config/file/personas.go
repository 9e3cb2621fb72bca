package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/valet-cli/internal/core/domain"
	"github.com/custodia-labs/valet-cli/internal/core/ports/driven"
)

// Ensure PersonaStore implements the interface.
var _ driven.PersonaStore = (*PersonaStore)(nil)

// PersonaStore loads persona system prompts from user-editable files on
// disk, with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when first
// accessed, not in the constructor. This makes testing easier and avoids
// unexpected I/O.
type PersonaStore struct {
	mu         sync.RWMutex
	personaDir string
	cache      map[string]string
	initOnce   sync.Once
	initErr    error
}

// defaultPersonas contains embedded default personas.
// These are used when user files don't exist and as the initial content
// for new files.
//
//nolint:lll // Persona content is intentionally long and should not be wrapped.
var defaultPersonas = map[string]string{
	driven.PersonaDefault: `You are Valet, a personal assistant. You help with notes, documents, calendar events, tasks and weather.

When context from the user's documents and notes is provided, ground your answers in it and mention which source you relied on. When a tool is available for a request (calendar, tasks, weather, notes), use it rather than guessing. If a tool fails or needs information you don't have, ask the user instead of inventing details.

Be concise and direct.`,

	"concise": `You are Valet, a personal assistant. Answer in as few words as accuracy allows. Prefer a single sentence. Use provided context and tools; never pad answers with caveats or pleasantries.`,

	"thorough": `You are Valet, a personal assistant. Give complete, structured answers: explain your reasoning, cite the context sources you used, and point out anything the user may want to double-check. Use the available tools whenever they can ground an answer in real data.`,
}

// NewPersonaStore creates a new file-based persona store.
// If personaDir is empty, defaults to ~/.valet/personas/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPersonaStore(personaDir string) (*PersonaStore, error) {
	if personaDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		personaDir = filepath.Join(home, ".valet", "personas")
	}

	return &PersonaStore{
		personaDir: personaDir,
		cache:      make(map[string]string),
	}, nil
}

// Load returns the system prompt for the named persona.
// On first call, initialises the persona directory and creates default
// files. Returns cached value if available, otherwise loads from file.
// Falls back to the embedded default if the file doesn't exist.
func (s *PersonaStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if prompt, ok := defaultPersonas[name]; ok {
			return prompt, nil
		}
		return "", fmt.Errorf("persona store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	prompt, err := s.loadFromFile(name)
	if err != nil {
		if prompt, ok := defaultPersonas[name]; ok {
			return prompt, nil
		}
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: persona %q", domain.ErrNotFound, name)
		}
		return "", fmt.Errorf("load persona %q: %w", name, err)
	}

	// Use double-check pattern to avoid overwriting concurrent loads
	s.mu.Lock()
	if _, ok := s.cache[name]; !ok {
		s.cache[name] = prompt
	} else {
		prompt = s.cache[name]
	}
	s.mu.Unlock()

	return prompt, nil
}

// List returns the names of all available personas: every .txt file in
// the persona directory plus the embedded defaults, sorted.
func (s *PersonaStore) List() ([]string, error) {
	s.initOnce.Do(s.initialise)

	names := make(map[string]bool)
	for name := range defaultPersonas {
		names[name] = true
	}

	entries, err := os.ReadDir(s.personaDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read persona directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(entry.Name(), ".txt"); ok {
			names[name] = true
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	return sorted, nil
}

// Reload clears the persona cache, forcing fresh loads from disk.
func (s *PersonaStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the persona directory path.
func (s *PersonaStore) Dir() string {
	return s.personaDir
}

// initialise creates the persona directory and default files.
// Called once via sync.Once on first access.
func (s *PersonaStore) initialise() {
	if err := os.MkdirAll(s.personaDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create persona directory: %w", err)
		return
	}

	// Create default persona files (only if they don't exist)
	for name, content := range defaultPersonas {
		path := filepath.Join(s.personaDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default persona %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// loadFromFile reads a persona from disk.
func (s *PersonaStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.personaDir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// createReadme writes a README file explaining the personas directory.
func (s *PersonaStore) createReadme() error {
	path := filepath.Join(s.personaDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Valet Personas

This directory contains the system prompts Valet can adopt in chat.

## Files

Each ` + "`<name>.txt`" + ` file is one persona. The active persona is chosen
with ` + "`valet settings set chat.persona <name>`" + ` or in the settings wizard.

## Customisation

Edit any file, or add a new one, to change how Valet speaks. Changes
take effect on the next conversation.
`
	return os.WriteFile(path, []byte(content), 0600)
}
