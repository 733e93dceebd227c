// Package semantic ranks catalog templates against a user phrase with
// embedding nearest-neighbor search over chromem-go, optionally refined by a
// generative relevance pass. Embeddings for the catalog are computed once at
// index time and held in memory; only the query phrase is embedded per call.
package semantic

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	chromem "github.com/philippgille/chromem-go"

	"github.com/asistenteia/moodle-nlq-go/internal/catalog"
	apperrors "github.com/asistenteia/moodle-nlq-go/internal/errors"
	"github.com/asistenteia/moodle-nlq-go/internal/genai"
	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/textnorm"
)

const (
	// DefaultTopK is the shortlist size taken from the embedding search.
	DefaultTopK = 5

	// AcceptThreshold is the minimum 0-100 score for the top candidate to be
	// treated as an automatic match instead of a suggestion list.
	// This is a tuned heuristic, not a guarantee.
	AcceptThreshold = 90

	// rerankFallbackSize is how many pre-rerank candidates survive when the
	// generative pass returns garbage.
	rerankFallbackSize = 3

	rerankMaxTokens   = 100
	rerankTemperature = 0.0

	// noneSentinel is what the re-rank prompt asks for when nothing fits.
	noneSentinel = "ninguna"
)

// Ranker performs embedding search over indexed catalog partitions.
// A nil generator disables the re-ranking pass; ranking still works.
type Ranker struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
	generator genai.TextGenerator
	log       *logger.Logger

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	templates   map[string][]catalog.Template
}

// NewRanker builds an in-memory ranker. embedFunc must be non-nil; the
// generator may be nil when no LLM is configured.
func NewRanker(embedFunc chromem.EmbeddingFunc, generator genai.TextGenerator, log *logger.Logger) *Ranker {
	return &Ranker{
		db:          chromem.NewDB(),
		embedFunc:   embedFunc,
		generator:   generator,
		log:         log.WithComponent("semantic"),
		collections: make(map[string]*chromem.Collection),
		templates:   make(map[string][]catalog.Template),
	}
}

// Index embeds the candidate phrases into a named collection. Meant to run
// once per catalog partition at startup; re-indexing a name replaces its
// template snapshot.
func (r *Ranker) Index(ctx context.Context, name string, candidates []catalog.Template) error {
	collection, err := r.db.GetOrCreateCollection(name, nil, r.embedFunc)
	if err != nil {
		return fmt.Errorf("get/create collection %s: %w", name, err)
	}

	docs := make([]chromem.Document, 0, len(candidates))
	for i, t := range candidates {
		if strings.TrimSpace(t.Phrase) == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      strconv.Itoa(i),
			Content: t.Phrase,
			Metadata: map[string]string{
				"idx": strconv.Itoa(i),
			},
		})
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, 4); err != nil {
			return fmt.Errorf("index collection %s: %w", name, err)
		}
	}

	r.mu.Lock()
	r.collections[name] = collection
	r.templates[name] = candidates
	r.mu.Unlock()
	return nil
}

// Rank returns the best-first shortlist for phrase from the named partition.
// When consent is true and a generator is available, the shortlist goes
// through a generative topic-relevance pass; a malformed or failed pass
// degrades to the pre-rerank top candidates, never to an error.
func (r *Ranker) Rank(ctx context.Context, name, phrase string, topK int, consent bool) ([]catalog.Template, error) {
	if strings.TrimSpace(phrase) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	r.mu.RLock()
	collection := r.collections[name]
	templates := r.templates[name]
	r.mu.RUnlock()

	if collection == nil || collection.Count() == 0 {
		return nil, nil
	}

	n := topK
	if count := collection.Count(); n > count {
		n = count
	}

	results, err := collection.Query(ctx, phrase, n, nil, nil)
	if err != nil {
		return nil, apperrors.NewUpstreamServiceError("embedding", err)
	}

	shortlist := make([]catalog.Template, 0, len(results))
	for _, res := range results {
		idx, err := strconv.Atoi(res.Metadata["idx"])
		if err != nil || idx < 0 || idx >= len(templates) {
			continue
		}
		shortlist = append(shortlist, templates[idx])
	}

	if !consent || r.generator == nil || len(shortlist) == 0 {
		return shortlist, nil
	}
	return r.rerank(ctx, phrase, shortlist), nil
}

// rerank asks the generator which shortlist entries match the phrase's topic
// and reorders accordingly. Any failure keeps the pre-rerank top candidates.
func (r *Ranker) rerank(ctx context.Context, phrase string, shortlist []catalog.Template) []catalog.Template {
	fallback := shortlist
	if len(fallback) > rerankFallbackSize {
		fallback = fallback[:rerankFallbackSize]
	}

	var sb strings.Builder
	for i, t := range shortlist {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t.Phrase)
	}
	prompt := fmt.Sprintf(
		"Pregunta del usuario: %q\n\n"+
			"Preguntas disponibles:\n%s\n"+
			"Indica cuáles preguntas tratan el MISMO TEMA que la pregunta del usuario "+
			"(no hace falta que coincidan las palabras). Responde SOLO con los números "+
			"separados por comas, en orden de relevancia, o %q si ninguna corresponde.",
		phrase, sb.String(), noneSentinel)

	resp, err := r.generator.Complete(ctx, []genai.Message{
		genai.SystemMessage("Eres un clasificador de relevancia temática. Respondes solo números separados por comas."),
		genai.UserMessage(prompt),
	}, rerankMaxTokens, rerankTemperature)
	if err != nil {
		r.log.WithError(err).Warn("generative re-rank failed, keeping embedding order")
		return fallback
	}

	indices := parseIndexList(resp, len(shortlist))
	if indices == nil {
		return fallback
	}
	if len(indices) == 0 {
		// Explicit "none": the model saw no topical match, keep the
		// embedding order so the caller can still surface suggestions.
		return fallback
	}

	reranked := make([]catalog.Template, 0, len(indices))
	for _, idx := range indices {
		reranked = append(reranked, shortlist[idx])
	}
	return reranked
}

// parseIndexList parses a comma-separated list of 1-based indices.
// Returns nil for a malformed response, an empty slice for the explicit
// "none" sentinel, and 0-based indices otherwise (out-of-range discarded).
func parseIndexList(resp string, n int) []int {
	resp = strings.TrimSpace(strings.ToLower(resp))
	if resp == "" {
		return nil
	}
	if strings.Contains(resp, noneSentinel) || strings.Contains(resp, "none") {
		return []int{}
	}

	seen := make(map[int]bool)
	out := []int{}
	for _, part := range strings.Split(resp, ",") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "."))
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil
		}
		idx := v - 1
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// AcceptanceScore computes a 0-100 similarity between phrase and the
// template's phrase using an unordered-character comparison, used when the
// ranking pass supplies no native score.
func AcceptanceScore(phrase string, t catalog.Template) int {
	return fuzzy.Ratio(sortedChars(phrase), sortedChars(t.Phrase))
}

func sortedChars(s string) string {
	runes := []rune(strings.ReplaceAll(textnorm.Normalize(s), " ", ""))
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })
	return string(runes)
}
