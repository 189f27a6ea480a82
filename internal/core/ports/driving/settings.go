package driving

import "github.com/custodia-labs/pdfrag/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get resolves settings from defaults, the config file and the environment.
	Get() (*domain.AppSettings, error)

	// Set stores a single dot-notation key in the config file.
	Set(key, value string) error

	// ConfigPath returns where settings are persisted.
	ConfigPath() string

	// Keys returns the recognised config keys in display order.
	Keys() []string

	// Describe renders every setting as key/value rows. Secrets are masked.
	Describe(settings *domain.AppSettings) [][2]string

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
