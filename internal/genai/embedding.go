// Embedding generation via the Gemini embedding API.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/asistenteia/moodle-nlq-go/internal/metrics"
	"github.com/asistenteia/moodle-nlq-go/internal/ratelimit"
)

const (
	// DefaultEmbeddingModel is the model used for generating embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"

	// geminiAPIRateLimit is the requests per minute limit for the embedding API.
	geminiAPIRateLimit = 1000

	// geminiAPIBaseURL is the base URL for the Gemini API.
	geminiAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	embedMaxRetries    = 5
	embedInitialDelay  = 2 * time.Second
	embedBackoffFactor = 2.0
	embedJitterFactor  = 0.25
)

// EmbeddingClient generates embeddings with the Gemini API over plain HTTP.
type EmbeddingClient struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	rateLimiter *ratelimit.Limiter
	metrics     *metrics.Metrics
}

// NewEmbeddingClient creates a Gemini embedding client. model falls back to
// DefaultEmbeddingModel when empty.
func NewEmbeddingClient(apiKey, model string, m *metrics.Metrics) *EmbeddingClient {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &EmbeddingClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiAPIBaseURL,
		metrics: m,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		rateLimiter: ratelimit.NewPerMinute(geminiAPIRateLimit),
	}
}

type embeddingRequest struct {
	Model   string           `json:"model"`
	Content embeddingContent `json:"content"`
}

type embeddingContent struct {
	Parts []embeddingPart `json:"parts"`
}

type embeddingPart struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding vector for the given text.
// Transient errors (429, 5xx, network) are retried with exponential backoff.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini API key not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty or whitespace-only text cannot be embedded")
	}

	var lastErr error
	delay := embedInitialDelay

	for attempt := 0; attempt <= embedMaxRetries; attempt++ {
		waitStart := time.Now()
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		c.metrics.RecordRateLimiterWait("embedding", time.Since(waitStart).Seconds())

		start := time.Now()
		result, retryable, err := c.embedOnce(ctx, text)
		c.metrics.RecordLLMRequest(string(ProviderGemini), "embed", classifyErrorType(err), time.Since(start).Seconds())
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable {
			return nil, err
		}
		if attempt == embedMaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.applyJitter(delay)):
		}
		delay = time.Duration(float64(delay) * embedBackoffFactor)
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// embedOnce performs a single embedding request.
// Returns (result, retryable, error).
func (c *EmbeddingClient) embedOnce(ctx context.Context, text string) ([]float32, bool, error) {
	url := fmt.Sprintf("%s/%s:embedContent?key=%s", c.baseURL, c.model, c.apiKey)

	reqBody := embeddingRequest{
		Model: fmt.Sprintf("models/%s", c.model),
		Content: embeddingContent{
			Parts: []embeddingPart{{Text: text}},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("HTTP %d: server error or rate limited", resp.StatusCode)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}

	if embeddingResp.Error != nil {
		retryable := embeddingResp.Error.Code == http.StatusTooManyRequests ||
			embeddingResp.Error.Status == "RESOURCE_EXHAUSTED" ||
			embeddingResp.Error.Code >= 500
		return nil, retryable, fmt.Errorf("API error %d: %s - %s",
			embeddingResp.Error.Code,
			embeddingResp.Error.Status,
			embeddingResp.Error.Message)
	}

	if len(embeddingResp.Embedding.Values) == 0 {
		return nil, false, fmt.Errorf("empty embedding returned")
	}

	return embeddingResp.Embedding.Values, false, nil
}

// applyJitter adds random jitter to delay (±25%).
func (c *EmbeddingClient) applyJitter(delay time.Duration) time.Duration {
	jitter := float64(time.Now().UnixNano()%1000) / 1000.0
	jitter = (jitter - 0.5) * 2 * embedJitterFactor
	return time.Duration(float64(delay) * (1 + jitter))
}

// NewEmbeddingFunc adapts an EmbeddingClient to chromem-go's EmbeddingFunc.
func NewEmbeddingFunc(client *EmbeddingClient) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return client.Embed(ctx, text)
	}
}

// IsConfigured returns true if the API key is set.
func (c *EmbeddingClient) IsConfigured() bool {
	return c.apiKey != ""
}
