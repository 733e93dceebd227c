// OpenAI-compatible text generation (Groq, OpenAI, and compatible endpoints).
package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/metrics"
)

type openaiGenerator struct {
	client   openai.Client
	model    string
	provider Provider
	retry    RetryConfig
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewOpenAIGenerator creates a text generator backed by an OpenAI-compatible
// API. endpoint overrides the provider's default base URL when non-empty.
// Returns nil without error when apiKey is empty (generation disabled).
func NewOpenAIGenerator(provider Provider, apiKey, model, endpoint string, m *metrics.Metrics, log *logger.Logger) (TextGenerator, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // generation disabled when no API key
	}
	if model == "" {
		return nil, fmt.Errorf("model is required for provider %s", provider)
	}

	baseURL := endpoint
	if baseURL == "" {
		var ok bool
		baseURL, ok = ProviderEndpoint[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported OpenAI-compatible provider: %s", provider)
		}
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	)

	return &openaiGenerator{
		client:   client,
		model:    model,
		provider: provider,
		retry:    DefaultRetryConfig,
		log:      log.WithComponent("genai"),
		metrics:  m,
	}, nil
}

func (g *openaiGenerator) Complete(ctx context.Context, messages []Message, maxTokens int, temperature float64) (string, error) {
	if g == nil {
		return "", errors.New("text generator is nil")
	}

	params := openai.ChatCompletionNewParams{
		Model:       g.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	}

	var out string
	err := WithRetry(ctx, g.retry, func() error {
		start := time.Now()
		resp, err := g.client.Chat.Completions.New(ctx, params)
		duration := time.Since(start)

		if err != nil {
			wrapped := WrapError(err, g.provider, 0)
			g.metrics.RecordLLMRequest(string(g.provider), "generate", classifyErrorType(wrapped), duration.Seconds())
			g.log.WithError(err).WithFields(map[string]any{
				"provider":    g.provider,
				"model":       g.model,
				"duration_ms": duration.Milliseconds(),
			}).Warn("chat completion failed")
			return wrapped
		}
		if len(resp.Choices) == 0 {
			g.metrics.RecordLLMRequest(string(g.provider), "generate", "error", duration.Seconds())
			return errors.New("empty response from model")
		}

		out = resp.Choices[0].Message.Content
		g.metrics.RecordLLMRequest(string(g.provider), "generate", "success", duration.Seconds())
		g.metrics.RecordLLMTokens(string(g.provider), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		g.log.WithFields(map[string]any{
			"provider":      g.provider,
			"model":         g.model,
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
			"duration_ms":   duration.Milliseconds(),
		}).Debug("chat completion done")
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (g *openaiGenerator) Provider() Provider {
	if g == nil {
		return ""
	}
	return g.provider
}

// Close releases resources. openai-go clients need no cleanup.
func (g *openaiGenerator) Close() error { return nil }
