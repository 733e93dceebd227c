package genai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistenteia/moodle-nlq-go/internal/metrics"
)

func TestEmbedRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer srv.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	c := NewEmbeddingClient("key", "", m)
	c.baseURL = srv.URL

	vec, err := c.Embed(context.Background(), "hola mundo")
	require.NoError(t, err)
	require.Len(t, vec, 3)

	families, err := registry.Gather()
	require.NoError(t, err)

	requests := counterValue(families, "nlq_llm_requests_total", map[string]string{
		"provider":  "gemini",
		"operation": "embed",
		"status":    "success",
	})
	assert.Equal(t, 1.0, requests)

	waits := histogramCount(families, "nlq_rate_limiter_wait_duration_seconds", map[string]string{
		"limiter_type": "embedding",
	})
	assert.Equal(t, uint64(1), waits)
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func histogramCount(families []*dto.MetricFamily, name string, labels map[string]string) uint64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, pair := range metric.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}
