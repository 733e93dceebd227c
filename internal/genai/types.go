// Package genai integrates the generative and embedding capabilities used
// by intent resolution: SQL generation, candidate re-ranking and result
// analysis. Gemini uses the official SDK; Groq and any OpenAI-compatible
// endpoint go through openai-go.
//
// Every call site in this codebase must treat generation failures as
// recoverable: the resolution pipeline always has a non-generative fallback.
package genai

import (
	"context"
	"time"
)

// Provider identifies an LLM backend.
type Provider string

const (
	// ProviderGemini uses google.golang.org/genai (native SDK).
	ProviderGemini Provider = "gemini"
	// ProviderGroq uses Groq's OpenAI-compatible API.
	ProviderGroq Provider = "groq"
	// ProviderOpenAI uses any OpenAI-compatible endpoint (custom base URL).
	ProviderOpenAI Provider = "openai"
)

// ProviderEndpoint defines the base URL for OpenAI-compatible providers.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq:   "https://api.groq.com/openai/v1/",
	ProviderOpenAI: "https://api.openai.com/v1/",
}

// String returns the string representation of the provider.
func (p Provider) String() string { return string(p) }

// Message is one chat turn sent to a text generator.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage builds an assistant-role message, used for few-shot
// example answers.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// TextGenerator is the generative-text capability. Complete returns the raw
// model text; callers clean and validate it themselves.
type TextGenerator interface {
	Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error)
	Provider() Provider
	Close() error
}

// Embedder turns text into a vector. Implementations are safe for
// concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	IsConfigured() bool
}

// RetryConfig defines retry behavior for LLM API calls.
// Uses Full Jitter exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialDelay is the base delay before first retry.
	InitialDelay time.Duration

	// MaxDelay is the maximum delay between retries.
	MaxDelay time.Duration
}

// Retry configuration defaults.
const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig is the retry policy applied when none is given.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  DefaultMaxRetryAttempts,
	InitialDelay: DefaultInitialRetryDelay,
	MaxDelay:     DefaultMaxRetryDelay,
}
