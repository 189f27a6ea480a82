package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// setting binds a dot-notation config key to a field of AppSettings.
type setting struct {
	key    string
	secret bool
	apply  func(s *domain.AppSettings, v string) error
	show   func(s *domain.AppSettings) string
}

// Environment variables consulted after the config file. They win over it.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	envDatabaseURL  = "DATABASE_URL"
	envDBUser       = "DB_USER"
	envDBPass       = "DB_PASS"
	envDBHost       = "DB_HOST"
	envDBPort       = "DB_PORT"
	envDBName       = "DB_NAME"
	envVoyageKey    = "VOYAGE_API"
	envVoyageKeyAlt = "VOYAGE_API_KEY"
	envOpenAIKey    = "OPENAI_API_KEY"
	envOllamaURL    = "OLLAMA_BASE_URL"
	envRerankerURL  = "RERANKER_URL"
)

// SettingsService resolves application settings from defaults, the config
// store and the environment, in that order of increasing precedence.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
	settings    []setting
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
		settings:    settingTable(),
	}
}

// SetEnvLookup replaces os.Getenv, mainly for tests.
func (s *SettingsService) SetEnvLookup(fn func(string) string) {
	s.getenv = fn
}

// Get resolves the current settings and validates them.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	for _, st := range s.settings {
		raw, ok := s.configStore.Get(st.key)
		if !ok {
			continue
		}
		if err := st.apply(&settings, stringify(raw)); err != nil {
			return nil, fmt.Errorf("config %s: %w", st.key, err)
		}
	}

	s.applyEnv(&settings)

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Set validates and stores a single key.
func (s *SettingsService) Set(key, value string) error {
	st, ok := s.lookup(key)
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	probe := domain.DefaultAppSettings()
	if err := st.apply(&probe, value); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}

	return s.configStore.Set(key, value)
}

// ConfigPath returns where settings are persisted.
func (s *SettingsService) ConfigPath() string {
	return s.configStore.Path()
}

// Keys returns the recognised config keys in display order.
func (s *SettingsService) Keys() []string {
	keys := make([]string, len(s.settings))
	for i, st := range s.settings {
		keys[i] = st.key
	}
	return keys
}

// Describe renders every setting for display. Secrets are masked.
func (s *SettingsService) Describe(settings *domain.AppSettings) [][2]string {
	rows := make([][2]string, 0, len(s.settings))
	for _, st := range s.settings {
		v := st.show(settings)
		if st.secret && v != "" {
			v = maskSecret(v)
		}
		rows = append(rows, [2]string{st.key, v})
	}
	return rows
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) lookup(key string) (setting, bool) {
	for _, st := range s.settings {
		if st.key == key {
			return st, true
		}
	}
	return setting{}, false
}

// applyEnv overlays environment variables. A full DATABASE_URL wins over the
// DB_* parts; API keys apply to whichever stage uses that provider.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	setIf := func(dst *string, name string) {
		if v := s.getenv(name); v != "" {
			*dst = v
		}
	}

	setIf(&settings.Database.URL, envDatabaseURL)
	setIf(&settings.Database.User, envDBUser)
	setIf(&settings.Database.Password, envDBPass)
	setIf(&settings.Database.Host, envDBHost)
	setIf(&settings.Database.Port, envDBPort)
	setIf(&settings.Database.Name, envDBName)

	voyageKey := s.getenv(envVoyageKey)
	if voyageKey == "" {
		voyageKey = s.getenv(envVoyageKeyAlt)
	}
	openAIKey := s.getenv(envOpenAIKey)

	keyFor := func(p domain.AIProvider) string {
		switch p {
		case domain.AIProviderVoyage:
			return voyageKey
		case domain.AIProviderOpenAI:
			return openAIKey
		default:
			return ""
		}
	}
	if k := keyFor(settings.Embedding.Provider); k != "" {
		settings.Embedding.APIKey = k
	}
	if k := keyFor(settings.Reranker.Provider); k != "" {
		settings.Reranker.APIKey = k
	}
	if k := keyFor(settings.LLM.Provider); k != "" {
		settings.LLM.APIKey = k
	}

	if v := s.getenv(envOllamaURL); v != "" {
		if settings.LLM.Provider == domain.AIProviderOllama {
			settings.LLM.BaseURL = v
		}
		if settings.Embedding.Provider == domain.AIProviderOllama {
			settings.Embedding.BaseURL = v
		}
	}
	setIf(&settings.Reranker.BaseURL, envRerankerURL)
}

// stringify converts a decoded TOML value to the string form accepted by Set.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func maskSecret(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

func parseProvider(v string, allowed []domain.AIProvider) (domain.AIProvider, error) {
	p := domain.AIProvider(strings.ToLower(strings.TrimSpace(v)))
	for _, a := range allowed {
		if p == a {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported provider %q", v)
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}

func parseDuration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative, got %s", d)
	}
	return d, nil
}

func stringSetting(key string, secret bool, field func(*domain.AppSettings) *string) setting {
	return setting{
		key:    key,
		secret: secret,
		apply: func(s *domain.AppSettings, v string) error {
			*field(s) = v
			return nil
		},
		show: func(s *domain.AppSettings) string { return *field(s) },
	}
}

func intSetting(key string, field func(*domain.AppSettings) *int) setting {
	return setting{
		key: key,
		apply: func(s *domain.AppSettings, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return err
			}
			*field(s) = n
			return nil
		},
		show: func(s *domain.AppSettings) string { return strconv.Itoa(*field(s)) },
	}
}

func durationSetting(key string, field func(*domain.AppSettings) *time.Duration) setting {
	return setting{
		key: key,
		apply: func(s *domain.AppSettings, v string) error {
			d, err := parseDuration(v)
			if err != nil {
				return err
			}
			*field(s) = d
			return nil
		},
		show: func(s *domain.AppSettings) string { return field(s).String() },
	}
}

func floatSetting(key string, field func(*domain.AppSettings) *float64) setting {
	return setting{
		key: key,
		apply: func(s *domain.AppSettings, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return err
			}
			*field(s) = f
			return nil
		},
		show: func(s *domain.AppSettings) string { return strconv.FormatFloat(*field(s), 'f', -1, 64) },
	}
}

func providerSetting(key string, allowed []domain.AIProvider, field func(*domain.AppSettings) *domain.AIProvider) setting {
	return setting{
		key: key,
		apply: func(s *domain.AppSettings, v string) error {
			p, err := parseProvider(v, allowed)
			if err != nil {
				return err
			}
			*field(s) = p
			return nil
		},
		show: func(s *domain.AppSettings) string { return field(s).String() },
	}
}

//nolint:funlen // One line per setting reads better than splitting the table.
func settingTable() []setting {
	return []setting{
		stringSetting("database.url", true, func(s *domain.AppSettings) *string { return &s.Database.URL }),
		stringSetting("database.host", false, func(s *domain.AppSettings) *string { return &s.Database.Host }),
		stringSetting("database.port", false, func(s *domain.AppSettings) *string { return &s.Database.Port }),
		stringSetting("database.user", false, func(s *domain.AppSettings) *string { return &s.Database.User }),
		stringSetting("database.password", true, func(s *domain.AppSettings) *string { return &s.Database.Password }),
		stringSetting("database.name", false, func(s *domain.AppSettings) *string { return &s.Database.Name }),

		intSetting("chunking.size", func(s *domain.AppSettings) *int { return &s.Chunking.Size }),
		intSetting("chunking.overlap", func(s *domain.AppSettings) *int { return &s.Chunking.Overlap }),
		intSetting("chunking.batch_size", func(s *domain.AppSettings) *int { return &s.Chunking.BatchSize }),

		providerSetting("embedding.provider", domain.AllEmbeddingProviders(),
			func(s *domain.AppSettings) *domain.AIProvider { return &s.Embedding.Provider }),
		stringSetting("embedding.model", false, func(s *domain.AppSettings) *string { return &s.Embedding.Model }),
		stringSetting("embedding.base_url", false, func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }),
		stringSetting("embedding.api_key", true, func(s *domain.AppSettings) *string { return &s.Embedding.APIKey }),
		intSetting("embedding.dimensions", func(s *domain.AppSettings) *int { return &s.Embedding.Dimensions }),
		intSetting("embedding.sub_batch_size", func(s *domain.AppSettings) *int { return &s.Embedding.SubBatchSize }),
		durationSetting("embedding.request_interval",
			func(s *domain.AppSettings) *time.Duration { return &s.Embedding.RequestInterval }),
		intSetting("embedding.checkpoint_every", func(s *domain.AppSettings) *int { return &s.Embedding.CheckpointEvery }),
		intSetting("embedding.requests_per_minute",
			func(s *domain.AppSettings) *int { return &s.Embedding.RequestsPerMinute }),
		durationSetting("embedding.backoff_base",
			func(s *domain.AppSettings) *time.Duration { return &s.Embedding.BackoffBase }),
		floatSetting("embedding.backoff_factor", func(s *domain.AppSettings) *float64 { return &s.Embedding.BackoffFactor }),
		durationSetting("embedding.backoff_max",
			func(s *domain.AppSettings) *time.Duration { return &s.Embedding.BackoffMax }),

		intSetting("retrieval.limit", func(s *domain.AppSettings) *int { return &s.Retrieval.Limit }),
		floatSetting("retrieval.distance_threshold",
			func(s *domain.AppSettings) *float64 { return &s.Retrieval.DistanceThreshold }),
		{
			key: "retrieval.lexical",
			apply: func(s *domain.AppSettings, v string) error {
				b := domain.LexicalBackend(strings.ToLower(strings.TrimSpace(v)))
				if !b.IsValid() {
					return fmt.Errorf("unsupported lexical backend %q", v)
				}
				s.Retrieval.Lexical = b
				return nil
			},
			show: func(s *domain.AppSettings) string { return string(s.Retrieval.Lexical) },
		},

		providerSetting("reranker.provider", domain.AllRerankerProviders(),
			func(s *domain.AppSettings) *domain.AIProvider { return &s.Reranker.Provider }),
		stringSetting("reranker.model", false, func(s *domain.AppSettings) *string { return &s.Reranker.Model }),
		stringSetting("reranker.base_url", false, func(s *domain.AppSettings) *string { return &s.Reranker.BaseURL }),
		stringSetting("reranker.api_key", true, func(s *domain.AppSettings) *string { return &s.Reranker.APIKey }),
		{
			key: "reranker.top_k",
			apply: func(s *domain.AppSettings, v string) error {
				n, err := parsePositiveInt(v)
				if err != nil {
					return err
				}
				s.Reranker.TopK = n
				return nil
			},
			show: func(s *domain.AppSettings) string { return strconv.Itoa(s.Reranker.TopK) },
		},

		providerSetting("llm.provider", domain.AllLLMProviders(),
			func(s *domain.AppSettings) *domain.AIProvider { return &s.LLM.Provider }),
		stringSetting("llm.model", false, func(s *domain.AppSettings) *string { return &s.LLM.Model }),
		stringSetting("llm.base_url", false, func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
		stringSetting("llm.api_key", true, func(s *domain.AppSettings) *string { return &s.LLM.APIKey }),
		intSetting("llm.num_ctx", func(s *domain.AppSettings) *int { return &s.LLM.NumCtx }),
		durationSetting("llm.timeout", func(s *domain.AppSettings) *time.Duration { return &s.LLM.Timeout }),

		stringSetting("ingest.data_dir", false, func(s *domain.AppSettings) *string { return &s.Ingest.DataDir }),
		stringSetting("ingest.checkpoint_dir", false, func(s *domain.AppSettings) *string { return &s.Ingest.CheckpointDir }),
		{
			key: "ingest.checkpoint_backend",
			apply: func(s *domain.AppSettings, v string) error {
				b := domain.CheckpointBackend(strings.ToLower(strings.TrimSpace(v)))
				if !b.IsValid() {
					return fmt.Errorf("unsupported checkpoint backend %q", v)
				}
				s.Ingest.CheckpointBackend = b
				return nil
			},
			show: func(s *domain.AppSettings) string { return string(s.Ingest.CheckpointBackend) },
		},
		durationSetting("ingest.retry_interval",
			func(s *domain.AppSettings) *time.Duration { return &s.Ingest.RetryInterval }),

		stringSetting("log.file", false, func(s *domain.AppSettings) *string { return &s.LogFile }),
	}
}
