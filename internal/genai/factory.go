package genai

import (
	"context"
	"fmt"

	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/metrics"
)

// NewTextGenerator builds the generator for the configured provider.
// Returns (nil, nil) when apiKey is empty: generation is optional and every
// caller must handle a nil generator by taking its fallback path.
func NewTextGenerator(ctx context.Context, provider Provider, apiKey, model, endpoint string, m *metrics.Metrics, log *logger.Logger) (TextGenerator, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiGenerator(ctx, apiKey, model, m, log)
	case ProviderGroq, ProviderOpenAI:
		return NewOpenAIGenerator(provider, apiKey, model, endpoint, m, log)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
}
