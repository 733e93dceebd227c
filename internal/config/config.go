// Package config provides application configuration management.
// It loads settings from environment variables and provides defaults for
// the database connection, LLM providers, catalog paths and timeouts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database Configuration
	DBDriver string // "mysql" or "sqlite" (default: "mysql")
	DBDSN    string // driver DSN, required
	DBPrefix string // Moodle table prefix (e.g. "mdl_"), required

	// Catalog Configuration
	CatalogPath  string // JSON catalog of curated question/SQL templates
	ExamplesPath string // few-shot SQL example corpus (optional)

	// LLM Configuration
	LLMProvider  string // "openai", "gemini" or "groq" (empty = generation disabled)
	LLMModel     string // chat model for SQL generation and analysis
	LLMEndpoint  string // OpenAI-compatible base URL override (optional)
	OpenAIAPIKey string
	GeminiAPIKey string
	GroqAPIKey   string

	// Embedding Configuration
	EmbeddingModel string // Gemini embedding model for semantic ranking

	// Metrics Authentication
	MetricsUsername string // Username for /metrics endpoint Basic Auth (default: "prometheus")
	MetricsPassword string // Password for /metrics endpoint Basic Auth (empty = no auth)

	// Sentry Configuration
	SentryDSN         string
	SentryEnvironment string

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration

	// Query Configuration
	QueryTimeout    time.Duration // per-statement execution deadline
	DefaultPageSize int           // rows per page when the client sends none
}

// MaxPageSize caps the client-supplied page size.
const MaxPageSize = 1000

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		// Database Configuration
		DBDriver: getEnv("DB_DRIVER", "mysql"),
		DBDSN:    getEnv("DB_DSN", ""),
		DBPrefix: getEnv("DB_PREFIX", ""),

		// Catalog Configuration
		CatalogPath:  getEnv("CATALOG_PATH", "sql_base.json"),
		ExamplesPath: getEnv("EXAMPLES_PATH", "ejemplos_sql.txt"),

		// LLM Configuration
		LLMProvider:  getEnv("LLM_PROVIDER", "openai"),
		LLMModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMEndpoint:  getEnv("LLM_ENDPOINT", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GroqAPIKey:   getEnv("GROQ_API_KEY", ""),

		// Embedding Configuration
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),

		// Metrics Authentication
		MetricsUsername: getEnv("METRICS_USERNAME", "prometheus"),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),

		// Sentry Configuration
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "production"),

		// Server Configuration
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		// Query Configuration
		QueryTimeout:    getDurationEnv("QUERY_TIMEOUT", 30*time.Second),
		DefaultPageSize: getIntEnv("DEFAULT_PAGE_SIZE", 200),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.DBPrefix == "" {
		errs = append(errs, errors.New("DB_PREFIX is required"))
	}
	if c.DBDriver != "mysql" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be mysql or sqlite, got %q", c.DBDriver))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.CatalogPath == "" {
		errs = append(errs, errors.New("CATALOG_PATH is required"))
	}
	if c.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("QUERY_TIMEOUT must be positive, got %v", c.QueryTimeout))
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("DEFAULT_PAGE_SIZE must be in [1, %d], got %d", MaxPageSize, c.DefaultPageSize))
	}
	if c.LLMProvider != "" && c.LLMModel == "" {
		errs = append(errs, errors.New("LLM_MODEL is required when LLM_PROVIDER is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LLMAPIKey returns the API key matching the configured provider.
func (c *Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "gemini":
		return c.GeminiAPIKey
	case "groq":
		return c.GroqAPIKey
	}
	return ""
}

// HasLLMProvider returns true if the configured provider has an API key.
func (c *Config) HasLLMProvider() bool {
	return c.LLMProvider != "" && c.LLMAPIKey() != ""
}

// HasEmbeddings returns true if semantic ranking can be enabled.
func (c *Config) HasEmbeddings() bool {
	return c.GeminiAPIKey != "" && c.EmbeddingModel != ""
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
