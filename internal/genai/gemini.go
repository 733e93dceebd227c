// Gemini text generation via the official SDK.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/metrics"
)

type geminiGenerator struct {
	client  *genai.Client
	model   string
	retry   RetryConfig
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewGeminiGenerator creates a Gemini-backed text generator.
// Returns nil without error when apiKey is empty (generation disabled).
func NewGeminiGenerator(ctx context.Context, apiKey, model string, m *metrics.Metrics, log *logger.Logger) (TextGenerator, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // generation disabled when no API key
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiGenerator{
		client:  client,
		model:   model,
		retry:   DefaultRetryConfig,
		log:     log.WithComponent("genai"),
		metrics: m,
	}, nil
}

func (g *geminiGenerator) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	if g == nil {
		return "", errors.New("text generator is nil")
	}

	// Gemini has no separate system role here; system turns are folded into
	// the prompt ahead of the user content.
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	var sys []string
	var user []string
	for _, m := range messages {
		switch m.Role {
		case "system":
			sys = append(sys, m.Content)
		case "assistant":
			user = append(user, "Respuesta de ejemplo:\n"+m.Content)
		default:
			user = append(user, m.Content)
		}
	}
	if len(sys) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(sys, "\n\n"), genai.RoleUser)
	}
	prompt := strings.Join(user, "\n\n")

	var out string
	err := WithRetry(ctx, g.retry, func() error {
		start := time.Now()
		result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		duration := time.Since(start)

		if err != nil {
			wrapped := WrapError(err, ProviderGemini, 0)
			g.metrics.RecordLLMRequest(string(ProviderGemini), "generate", classifyErrorType(wrapped), duration.Seconds())
			g.log.WithError(err).WithFields(map[string]any{
				"provider":    ProviderGemini,
				"model":       g.model,
				"duration_ms": duration.Milliseconds(),
			}).Warn("generate content failed")
			return wrapped
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			g.metrics.RecordLLMRequest(string(ProviderGemini), "generate", "error", duration.Seconds())
			return errors.New("empty response from model")
		}

		var sb strings.Builder
		for _, part := range result.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		out = sb.String()
		g.metrics.RecordLLMRequest(string(ProviderGemini), "generate", "success", duration.Seconds())
		if result.UsageMetadata != nil {
			g.metrics.RecordLLMTokens(string(ProviderGemini),
				int64(result.UsageMetadata.PromptTokenCount),
				int64(result.UsageMetadata.CandidatesTokenCount))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (g *geminiGenerator) Provider() Provider { return ProviderGemini }

// Close releases resources. The genai client needs no cleanup.
func (g *geminiGenerator) Close() error { return nil }
