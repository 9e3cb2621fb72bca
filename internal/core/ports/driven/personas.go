package driven

// PersonaStore provides access to persona system prompts.
// Implementations may load personas from user-editable files, embed them
// in the binary, or both.
type PersonaStore interface {
	// Load returns the system prompt for the named persona.
	// Returns domain.ErrNotFound for an unknown persona.
	Load(name string) (string, error)

	// List returns the names of all available personas, built-ins included.
	List() ([]string, error)

	// Reload clears any cached personas, forcing fresh loads on next access.
	// Useful when persona files may have been edited on disk.
	Reload()
}

// PersonaDefault is the persona used when none is configured.
const PersonaDefault = "default"
