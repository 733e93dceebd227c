package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "user:pass@tcp(localhost:3306)/moodle")
	t.Setenv("DB_PREFIX", "mdl_")
}

func TestLoad(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check required fields
	if cfg.DBDSN != "user:pass@tcp(localhost:3306)/moodle" {
		t.Errorf("Expected DSN from env, got '%s'", cfg.DBDSN)
	}
	if cfg.DBPrefix != "mdl_" {
		t.Errorf("Expected prefix 'mdl_', got '%s'", cfg.DBPrefix)
	}

	// Check defaults
	if cfg.DBDriver != "mysql" {
		t.Errorf("Expected default driver 'mysql', got '%s'", cfg.DBDriver)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port '8080', got '%s'", cfg.Port)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("Expected default model 'gpt-4o-mini', got '%s'", cfg.LLMModel)
	}
	if cfg.DefaultPageSize != 200 {
		t.Errorf("Expected default page size 200, got %d", cfg.DefaultPageSize)
	}
	if cfg.QueryTimeout != 30*time.Second {
		t.Errorf("Expected default query timeout 30s, got %v", cfg.QueryTimeout)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_PREFIX", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error when DB_DSN and DB_PREFIX are missing")
	}
	if !strings.Contains(err.Error(), "DB_DSN") {
		t.Errorf("Expected error to mention DB_DSN, got: %v", err)
	}
	if !strings.Contains(err.Error(), "DB_PREFIX") {
		t.Errorf("Expected error to mention DB_PREFIX, got: %v", err)
	}
}

func TestLoadInvalidDriver(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_DRIVER", "postgres")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DB_DRIVER") {
		t.Errorf("Expected DB_DRIVER validation error, got: %v", err)
	}
}

func TestLoadPageSizeBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEFAULT_PAGE_SIZE", "5000")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DEFAULT_PAGE_SIZE") {
		t.Errorf("Expected DEFAULT_PAGE_SIZE validation error, got: %v", err)
	}
}

func TestLoadProviderRequiresModel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("LLM_MODEL", "")

	// LLM_MODEL has a default, so clear it via the validation path directly
	cfg := &Config{
		DBDSN:           "dsn",
		DBPrefix:        "mdl_",
		DBDriver:        "mysql",
		Port:            "8080",
		CatalogPath:     "sql_base.json",
		QueryTimeout:    time.Second,
		DefaultPageSize: 200,
		LLMProvider:     "groq",
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "LLM_MODEL") {
		t.Errorf("Expected LLM_MODEL validation error, got: %v", err)
	}
}

func TestLLMAPIKey(t *testing.T) {
	cfg := &Config{
		LLMProvider:  "groq",
		OpenAIAPIKey: "openai-key",
		GroqAPIKey:   "groq-key",
	}
	if got := cfg.LLMAPIKey(); got != "groq-key" {
		t.Errorf("Expected groq key, got '%s'", got)
	}
	if !cfg.HasLLMProvider() {
		t.Error("Expected HasLLMProvider() true")
	}

	cfg.LLMProvider = "gemini"
	if cfg.HasLLMProvider() {
		t.Error("Expected HasLLMProvider() false without gemini key")
	}
}

func TestHasEmbeddings(t *testing.T) {
	cfg := &Config{GeminiAPIKey: "key", EmbeddingModel: "gemini-embedding-001"}
	if !cfg.HasEmbeddings() {
		t.Error("Expected HasEmbeddings() true")
	}

	cfg.GeminiAPIKey = ""
	if cfg.HasEmbeddings() {
		t.Error("Expected HasEmbeddings() false without key")
	}
}
