// Package analysis runs the "Análisis IA" branch: catalog templates that
// carry a description get their query rows summarized by the language model
// instead of returned as a table.
package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/asistenteia/moodle-nlq-go/internal/cache"
	"github.com/asistenteia/moodle-nlq-go/internal/genai"
	"github.com/asistenteia/moodle-nlq-go/internal/logger"
)

const (
	// CacheTTL keeps repeated analyses of the same rows from re-billing
	// the model. Forum content changes slowly relative to this window.
	CacheTTL = time.Hour

	analysisMaxTokens   = 600
	analysisTemperature = 0.3
	analysisTimeout     = 45 * time.Second
)

// NoMessagesAnswer is returned when the query matched no rows to analyze.
const NoMessagesAnswer = "No se encontraron mensajes para analizar en este curso."

const emptyModelAnswer = "La IA no encontró evidencia relevante."

// Analyzer summarizes query rows according to a template instruction.
type Analyzer struct {
	generator genai.TextGenerator
	cache     *cache.TTLCache[string, string]
	log       *logger.Logger
}

func New(generator genai.TextGenerator, log *logger.Logger) *Analyzer {
	return &Analyzer{
		generator: generator,
		cache:     cache.New[string, string](CacheTTL),
		log:       log.WithComponent("analysis"),
	}
}

// Analyze summarizes rows per the instruction. Rows are expected with raw
// column names (firstname, lastname, message); rows without a message are
// skipped. Results are cached for CacheTTL keyed by instruction and content.
func (a *Analyzer) Analyze(ctx context.Context, instruction string, rows []map[string]any) (string, error) {
	joined := joinMessages(rows)
	if joined == "" {
		return NoMessagesAnswer, nil
	}

	key := cacheKey(instruction, joined)
	if answer, ok := a.cache.Get(key); ok {
		a.log.Debug("analysis served from cache")
		return answer, nil
	}

	prompt := fmt.Sprintf(
		"Sos un asistente educativo. Analizá los mensajes del foro según la siguiente consigna:\n\n"+
			"Instrucción:\n%s\n\nMensajes:\n%s\n\nRespuesta:",
		instruction, joined)

	genCtx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	start := time.Now()
	answer, err := a.generator.Complete(genCtx,
		[]genai.Message{genai.UserMessage(prompt)},
		analysisMaxTokens, analysisTemperature)
	if err != nil {
		return "", err
	}
	a.log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("analysis generated")

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyModelAnswer
	}
	a.cache.Set(key, answer)
	return answer, nil
}

// joinMessages renders each row as "Nombre Apellido: mensaje", one block per
// message, matching the shape the model is prompted to analyze.
func joinMessages(rows []map[string]any) string {
	var blocks []string
	for _, row := range rows {
		message := stringField(row, "message")
		if message == "" {
			continue
		}
		author := strings.TrimSpace(stringField(row, "firstname") + " " + stringField(row, "lastname"))
		blocks = append(blocks, author+": "+message)
	}
	return strings.Join(blocks, "\n\n")
}

func stringField(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func cacheKey(instruction, joined string) string {
	h := fnv.New64a()
	h.Write([]byte(instruction))
	h.Write([]byte{0})
	h.Write([]byte(joined))
	return fmt.Sprintf("%x", h.Sum64())
}
