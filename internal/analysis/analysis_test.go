package analysis

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistenteia/moodle-nlq-go/internal/genai"
	"github.com/asistenteia/moodle-nlq-go/internal/logger"
)

type recordingGenerator struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (g *recordingGenerator) Complete(_ context.Context, msgs []genai.Message, _ int, _ float64) (string, error) {
	g.calls++
	if len(msgs) > 0 {
		g.prompts = append(g.prompts, msgs[len(msgs)-1].Content)
	}
	return g.response, g.err
}

func (g *recordingGenerator) Provider() genai.Provider { return genai.ProviderOpenAI }
func (g *recordingGenerator) Close() error             { return nil }

func testLog() *logger.Logger {
	return logger.NewWithWriter("debug", io.Discard)
}

func forumRows() []map[string]any {
	return []map[string]any{
		{"firstname": "Ana", "lastname": "García", "message": "No entiendo la consigna 3."},
		{"firstname": "Luis", "lastname": "Pérez", "message": "Yo tampoco, el enunciado es confuso."},
		{"firstname": "Mara", "lastname": "Ruiz", "message": ""},
	}
}

func TestAnalyzeBuildsPromptFromMessages(t *testing.T) {
	gen := &recordingGenerator{response: "Los estudiantes reportan confusión con la consigna 3."}
	a := New(gen, testLog())

	answer, err := a.Analyze(context.Background(), "Detectá dudas recurrentes.", forumRows())
	require.NoError(t, err)
	assert.Equal(t, "Los estudiantes reportan confusión con la consigna 3.", answer)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Detectá dudas recurrentes.")
	assert.Contains(t, gen.prompts[0], "Ana García: No entiendo la consigna 3.")
	assert.Contains(t, gen.prompts[0], "Luis Pérez: Yo tampoco, el enunciado es confuso.")
	assert.NotContains(t, gen.prompts[0], "Mara Ruiz")
}

func TestAnalyzeNoMessages(t *testing.T) {
	gen := &recordingGenerator{}
	a := New(gen, testLog())

	answer, err := a.Analyze(context.Background(), "Resumí.", nil)
	require.NoError(t, err)
	assert.Equal(t, NoMessagesAnswer, answer)
	assert.Zero(t, gen.calls)
}

func TestAnalyzeCachesByInstructionAndContent(t *testing.T) {
	gen := &recordingGenerator{response: "Resumen."}
	a := New(gen, testLog())

	_, err := a.Analyze(context.Background(), "Resumí.", forumRows())
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), "Resumí.", forumRows())
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)

	_, err = a.Analyze(context.Background(), "Detectá conflictos.", forumRows())
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls)
}

func TestAnalyzePropagatesGeneratorError(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("429 rate limited")}
	a := New(gen, testLog())

	_, err := a.Analyze(context.Background(), "Resumí.", forumRows())
	assert.Error(t, err)
}

func TestAnalyzeEmptyModelAnswer(t *testing.T) {
	gen := &recordingGenerator{response: "   "}
	a := New(gen, testLog())

	answer, err := a.Analyze(context.Background(), "Resumí.", forumRows())
	require.NoError(t, err)
	assert.Equal(t, emptyModelAnswer, answer)
}
