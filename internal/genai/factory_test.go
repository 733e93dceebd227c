package genai

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistenteia/moodle-nlq-go/internal/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter("debug", io.Discard)
}

func TestNewTextGeneratorDisabledWithoutKey(t *testing.T) {
	gen, err := NewTextGenerator(context.Background(), ProviderGroq, "", "llama-3.3-70b-versatile", "", nil, testLogger())
	require.NoError(t, err)
	assert.Nil(t, gen)
}

func TestNewTextGeneratorUnknownProvider(t *testing.T) {
	_, err := NewTextGenerator(context.Background(), Provider("claude"), "key", "model", "", nil, testLogger())
	assert.Error(t, err)
}

func TestNewTextGeneratorRequiresModel(t *testing.T) {
	_, err := NewOpenAIGenerator(ProviderGroq, "key", "", "", nil, testLogger())
	assert.Error(t, err)
}

func TestNewOpenAIGenerator(t *testing.T) {
	gen, err := NewOpenAIGenerator(ProviderGroq, "key", "llama-3.3-70b-versatile", "", nil, testLogger())
	require.NoError(t, err)
	require.NotNil(t, gen)
	assert.Equal(t, ProviderGroq, gen.Provider())
	assert.NoError(t, gen.Close())
}

func TestEmbeddingClientNotConfigured(t *testing.T) {
	c := NewEmbeddingClient("", "", nil)
	assert.False(t, c.IsConfigured())

	_, err := c.Embed(context.Background(), "hola")
	assert.Error(t, err)
}

func TestEmbeddingClientRejectsEmptyText(t *testing.T) {
	c := NewEmbeddingClient("key", "", nil)
	_, err := c.Embed(context.Background(), "   ")
	assert.Error(t, err)
}
