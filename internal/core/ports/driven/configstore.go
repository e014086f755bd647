package driven

// ConfigStore persists user configuration as key-value pairs.
// Keys use dotted notation, e.g. "confluence.base_url" or "rag.chunk_size".
type ConfigStore interface {
	// Get retrieves a raw configuration value by key.
	Get(key string) (any, bool)

	// GetString retrieves a string value, or "" if unset.
	GetString(key string) string

	// GetInt retrieves an integer value, or 0 if unset.
	GetInt(key string) int

	// GetFloat retrieves a float value, or 0 if unset.
	GetFloat(key string) float64

	// GetBool retrieves a boolean value, or false if unset.
	GetBool(key string) bool

	// Set stores a configuration value in memory.
	Set(key string, value any)

	// Save persists the current values.
	Save() error

	// Path returns the location of the backing file, for display.
	Path() string
}
