package driven

// ConfigStore edits the on-disk configuration file. Keys use dot
// notation ("vector.host") and map onto nested TOML tables.
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string configuration value.
	// Returns empty string if key doesn't exist or isn't a string.
	GetString(key string) string

	// Set stores a configuration value.
	// The value is persisted immediately.
	Set(key string, value any) error

	// Keys returns every key in sorted order.
	Keys() []string

	// Init writes defaults for every key not yet present. With force the
	// file is replaced by the defaults.
	Init(defaults map[string]any, force bool) error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
