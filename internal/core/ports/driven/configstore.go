package driven

// ConfigStore persists settings under dot-notation keys such as
// "chunking.size". Values come back with the type they were decoded as,
// usually string, int64, float64 or bool.
type ConfigStore interface {
	// Get returns the stored value and whether the key is set.
	Get(key string) (any, bool)

	// Set stores value and persists it before returning.
	Set(key string, value any) error

	// Path names the backing file, for display.
	Path() string
}
