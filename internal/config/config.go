package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration derived from an optional YAML file
// and environment variables. Environment values win over the file.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Inference InferenceConfig `yaml:"inference"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Cache     CacheConfig     `yaml:"cache"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Places    PlacesConfig    `yaml:"places"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level `yaml:"-"`
	Format string     `yaml:"format"`

	// LevelName is the YAML form of Level.
	LevelName string `yaml:"level"`
}

// InferenceConfig configures the remote text-generation service. An empty
// APIKey puts the pipeline into basic-stats-only mode.
type InferenceConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Models            []string      `yaml:"models"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxOutputTokens   int           `yaml:"max_output_tokens"`
	OutputTokenCeil   int           `yaml:"output_token_ceiling"`
	ReasoningEffort   string        `yaml:"reasoning_effort"`
	Verbosity         string        `yaml:"verbosity"`
}

// Enabled reports whether inference credentials are configured.
func (c InferenceConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// PipelineConfig holds batching and normalization parameters.
type PipelineConfig struct {
	Timezone          string        `yaml:"timezone"`
	LocationBatchSize int           `yaml:"location_batch_size"`
	ClassifyBatchSize int           `yaml:"classify_batch_size"`
	Workers           int           `yaml:"workers"`
	BatchPause        time.Duration `yaml:"batch_pause"`
	TopN              int           `yaml:"top_n"`
	MinFriendEvents   int           `yaml:"min_friend_events"`
}

// CacheConfig selects the enrichment cache persistence medium.
type CacheConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CalendarConfig locates provider credentials for fetching events.
type CalendarConfig struct {
	TokenFile  string `yaml:"token_file"`
	CalendarID string `yaml:"calendar_id"`
	DataDir    string `yaml:"data_dir"`
}

// PlacesConfig enables Google Places lookups for map links and coordinates.
type PlacesConfig struct {
	APIKey string `yaml:"api_key"`
}

// Enabled reports whether a Places API key is configured.
func (c PlacesConfig) Enabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

const (
	defaultLogFormat = "json"

	defaultModel             = "gpt-5-mini"
	defaultFallbackModel     = "gpt-4o-mini"
	defaultRequestsPerWindow = 3
	defaultWindow            = 60 * time.Second
	defaultTimeout           = 90 * time.Second
	defaultMaxRetries        = 3
	defaultInitialBackoff    = 5 * time.Second
	defaultMaxOutputTokens   = 4000
	defaultOutputTokenCeil   = 16000
	defaultReasoningEffort   = "low"
	defaultVerbosity         = "low"

	defaultTimezone          = "America/New_York"
	defaultLocationBatchSize = 30
	defaultClassifyBatchSize = 15
	defaultWorkers           = 2
	defaultTopN              = 5
	defaultMinFriendEvents   = 1

	defaultCacheDriver = "sqlite"
	defaultDataDir     = "data"
	defaultCalendarID  = "primary"
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Inference: InferenceConfig{
			Models:            []string{defaultModel, defaultFallbackModel},
			RequestsPerWindow: defaultRequestsPerWindow,
			Window:            defaultWindow,
			Timeout:           defaultTimeout,
			MaxRetries:        defaultMaxRetries,
			InitialBackoff:    defaultInitialBackoff,
			MaxOutputTokens:   defaultMaxOutputTokens,
			OutputTokenCeil:   defaultOutputTokenCeil,
			ReasoningEffort:   defaultReasoningEffort,
			Verbosity:         defaultVerbosity,
		},
		Pipeline: PipelineConfig{
			Timezone:          defaultTimezone,
			LocationBatchSize: defaultLocationBatchSize,
			ClassifyBatchSize: defaultClassifyBatchSize,
			Workers:           defaultWorkers,
			TopN:              defaultTopN,
			MinFriendEvents:   defaultMinFriendEvents,
		},
		Cache: CacheConfig{
			Driver: defaultCacheDriver,
		},
		Calendar: CalendarConfig{
			CalendarID: defaultCalendarID,
			DataDir:    defaultDataDir,
		},
	}
}

// Load reads configuration from the YAML file named by LIFELY_CONFIG (if any)
// and then from environment variables, applying defaults when values are not
// provided.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("LIFELY_CONFIG"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Cache.DSN == "" && cfg.Cache.Driver == "sqlite" {
		cfg.Cache.DSN = strings.TrimRight(cfg.Calendar.DataDir, "/") + "/lifely.db"
	}

	return cfg, cfg.Validate()
}

// LoadFile overlays YAML settings from path onto cfg. A missing file is not
// an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if cfg.Logging.LevelName != "" {
		level, err := parseLogLevel(cfg.Logging.LevelName)
		if err != nil {
			return fmt.Errorf("invalid logging.level: %w", err)
		}
		cfg.Logging.Level = level
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	cfg.Inference.APIKey = getEnv("OPENAI_API_KEY", cfg.Inference.APIKey)
	cfg.Inference.BaseURL = getEnv("OPENAI_BASE_URL", cfg.Inference.BaseURL)
	cfg.Places.APIKey = getEnv("GOOGLE_MAPS_API_KEY", cfg.Places.APIKey)
	cfg.Inference.ReasoningEffort = getEnv("LIFELY_LLM_REASONING_EFFORT", cfg.Inference.ReasoningEffort)
	cfg.Inference.Verbosity = getEnv("LIFELY_LLM_VERBOSITY", cfg.Inference.Verbosity)

	if v := os.Getenv("LIFELY_LLM_MODELS"); v != "" {
		cfg.Inference.Models = splitList(v)
	}

	if v := os.Getenv("LIFELY_LLM_MAX_RETRIES"); v != "" {
		n, err := parseNonNegativeInt(v)
		if err != nil {
			return fmt.Errorf("invalid LIFELY_LLM_MAX_RETRIES: %w", err)
		}
		cfg.Inference.MaxRetries = n
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"LIFELY_LLM_RPM", &cfg.Inference.RequestsPerWindow},
		{"LIFELY_LLM_MAX_OUTPUT_TOKENS", &cfg.Inference.MaxOutputTokens},
		{"LIFELY_LLM_OUTPUT_TOKEN_CEILING", &cfg.Inference.OutputTokenCeil},
		{"LIFELY_LLM_BATCH_SIZE", &cfg.Pipeline.LocationBatchSize},
		{"LIFELY_LLM_CLASSIFY_BATCH_SIZE", &cfg.Pipeline.ClassifyBatchSize},
		{"LIFELY_LLM_MAX_CONCURRENCY", &cfg.Pipeline.Workers},
		{"LIFELY_TOP_N", &cfg.Pipeline.TopN},
	}
	for _, field := range ints {
		v := os.Getenv(field.key)
		if v == "" {
			continue
		}
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field.key, err)
		}
		*field.dst = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LIFELY_LLM_TIMEOUT", &cfg.Inference.Timeout},
		{"LIFELY_LLM_WINDOW_SECONDS", &cfg.Inference.Window},
		{"LIFELY_LLM_BATCH_PAUSE_SECONDS", &cfg.Pipeline.BatchPause},
	}
	for _, field := range durations {
		v := os.Getenv(field.key)
		if v == "" {
			continue
		}
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field.key, err)
		}
		*field.dst = d
	}

	cfg.Pipeline.Timezone = getEnv("LIFELY_TIMEZONE", cfg.Pipeline.Timezone)
	cfg.Cache.Driver = getEnv("LIFELY_CACHE_DRIVER", cfg.Cache.Driver)
	cfg.Cache.DSN = getEnv("LIFELY_CACHE_DSN", cfg.Cache.DSN)
	if cfg.Cache.DSN == "" && cfg.Cache.Driver == "postgres" {
		cfg.Cache.DSN = os.Getenv("DATABASE_URL")
	}
	cfg.Calendar.TokenFile = getEnv("LIFELY_GOOGLE_TOKEN_FILE", cfg.Calendar.TokenFile)
	cfg.Calendar.CalendarID = getEnv("LIFELY_CALENDAR_ID", cfg.Calendar.CalendarID)
	cfg.Calendar.DataDir = getEnv("LIFELY_DATA_DIR", cfg.Calendar.DataDir)
	cfg.Metrics.Addr = getEnv("LIFELY_METRICS_ADDR", cfg.Metrics.Addr)

	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
	}

	switch c.Cache.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid cache driver %q: must be memory, sqlite or postgres", c.Cache.Driver)
	}
	if c.Cache.Driver == "postgres" && c.Cache.DSN == "" {
		return fmt.Errorf("postgres cache requires LIFELY_CACHE_DSN or DATABASE_URL")
	}

	if len(c.Inference.Models) == 0 {
		return fmt.Errorf("at least one inference model is required")
	}
	if c.Inference.RequestsPerWindow <= 0 {
		return fmt.Errorf("requests per window must be positive, got %d", c.Inference.RequestsPerWindow)
	}
	if c.Inference.Window <= 0 {
		return fmt.Errorf("throttle window must be positive, got %v", c.Inference.Window)
	}
	if c.Inference.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.Inference.MaxRetries)
	}
	if c.Inference.OutputTokenCeil < c.Inference.MaxOutputTokens {
		return fmt.Errorf("output token ceiling %d is below initial budget %d",
			c.Inference.OutputTokenCeil, c.Inference.MaxOutputTokens)
	}

	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Pipeline.Timezone, err)
	}

	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func parseNonNegativeInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
