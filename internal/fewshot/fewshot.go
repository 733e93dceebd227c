// Package fewshot loads the static question→SQL example corpus and selects
// the examples most similar to a user phrase to seed generative SQL prompts.
// Selection prefers embedding similarity (chromem-go); when embeddings are
// not configured, a BM25 keyword index over the example questions is used
// instead, so the generative fallback never loses its few-shots entirely.
package fewshot

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/crawlab-team/bm25/bm25"
	chromem "github.com/philippgille/chromem-go"

	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/sqlsafe"
	"github.com/asistenteia/moodle-nlq-go/internal/textnorm"
)

// DefaultK is how many examples seed a generation prompt.
const DefaultK = 3

// Example is one question with its reference SQL.
type Example struct {
	Question string
	SQL      string
}

var (
	blockSplitRe   = regexp.MustCompile(`\n-{3,}\n`)
	questionLineRe = regexp.MustCompile(`(?im)^pregunta:\s*(.+)$`)
	sqlLineRe      = regexp.MustCompile(`(?is)^sql:\s*(.+)$`)
	commentHeadRe  = regexp.MustCompile(`(?im)^\s*--\s*pregunta:\s*`)
)

// Parse extracts examples from the corpus text. Two formats coexist in the
// maintained file:
//
//	A: "Pregunta: ..." / "SQL: ..." blocks separated by "---" lines
//	B: "-- PREGUNTA: ..." comment headers followed by the SQL
//
// Examples whose SQL is not read-only are dropped, and duplicates
// (same question and SQL) are collapsed.
func Parse(content string) []Example {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var examples []Example

	for _, block := range blockSplitRe.Split(strings.TrimSpace(content), -1) {
		mq := questionLineRe.FindStringSubmatch(block)
		ms := sqlLineRe.FindStringSubmatch(block)
		if mq == nil || ms == nil {
			continue
		}
		sql := strings.TrimSpace(ms[1])
		if sqlsafe.IsReadOnly(sql) {
			examples = append(examples, Example{Question: strings.TrimSpace(mq[1]), SQL: sql})
		}
	}

	chunks := commentHeadRe.Split(content, -1)
	for _, chunk := range chunks[1:] {
		lines := strings.SplitN(chunk, "\n", 2)
		q := strings.TrimSpace(lines[0])
		var sql string
		if len(lines) > 1 {
			sql = strings.TrimSpace(commentHeadRe.Split(lines[1], 2)[0])
		}
		if q != "" && sqlsafe.IsReadOnly(sql) {
			examples = append(examples, Example{Question: q, SQL: sql})
		}
	}

	seen := make(map[Example]bool, len(examples))
	unique := examples[:0]
	for _, ex := range examples {
		if !seen[ex] {
			seen[ex] = true
			unique = append(unique, ex)
		}
	}
	return unique
}

// Load reads and parses the example corpus file. A missing file is not an
// error: generation simply runs without few-shots.
func Load(path string) ([]Example, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read examples: %w", err)
	}
	return Parse(string(content)), nil
}

// Selector picks the k examples most similar to a phrase.
type Selector struct {
	examples []Example
	log      *logger.Logger

	mu         sync.RWMutex
	collection *chromem.Collection
	keyword    *bm25.BM25Okapi
}

// NewSelector indexes the example questions. embedFunc may be nil; the
// selector then relies on the BM25 index alone.
func NewSelector(ctx context.Context, examples []Example, embedFunc chromem.EmbeddingFunc, log *logger.Logger) (*Selector, error) {
	s := &Selector{
		examples: examples,
		log:      log.WithComponent("fewshot"),
	}
	if len(examples) == 0 {
		return s, nil
	}

	corpus := make([]string, len(examples))
	for i, ex := range examples {
		corpus[i] = ex.Question
	}

	// k1=1.5, b=0.75 are standard BM25 parameters.
	keyword, err := bm25.NewBM25Okapi(corpus, tokenize, 1.5, 0.75, nil)
	if err != nil {
		return nil, fmt.Errorf("build keyword index: %w", err)
	}
	s.keyword = keyword

	if embedFunc != nil {
		db := chromem.NewDB()
		collection, err := db.GetOrCreateCollection("ejemplos", nil, embedFunc)
		if err != nil {
			return nil, fmt.Errorf("create example collection: %w", err)
		}
		docs := make([]chromem.Document, len(examples))
		for i, ex := range examples {
			docs[i] = chromem.Document{ID: strconv.Itoa(i), Content: ex.Question}
		}
		if err := collection.AddDocuments(ctx, docs, 4); err != nil {
			return nil, fmt.Errorf("index examples: %w", err)
		}
		s.collection = collection
	}

	return s, nil
}

// Select returns up to k examples similar to phrase, best-first. An
// embedding failure quietly falls back to the keyword index.
func (s *Selector) Select(ctx context.Context, phrase string, k int) []Example {
	if s == nil || len(s.examples) == 0 || strings.TrimSpace(phrase) == "" {
		return nil
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > len(s.examples) {
		k = len(s.examples)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.collection != nil {
		results, err := s.collection.Query(ctx, phrase, k, nil, nil)
		if err == nil {
			out := make([]Example, 0, len(results))
			for _, res := range results {
				if idx, err := strconv.Atoi(res.ID); err == nil && idx >= 0 && idx < len(s.examples) {
					out = append(out, s.examples[idx])
				}
			}
			if len(out) > 0 {
				return out
			}
		} else {
			s.log.WithError(err).Warn("embedding selection failed, using keyword index")
		}
	}

	return s.selectKeyword(phrase, k)
}

func (s *Selector) selectKeyword(phrase string, k int) []Example {
	tokens := tokenize(phrase)
	if len(tokens) == 0 || s.keyword == nil {
		return nil
	}

	scores, err := s.keyword.GetScores(tokens)
	if err != nil {
		s.log.WithError(err).Warn("keyword scoring failed")
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	for i, sc := range scores {
		if sc > 0 {
			ranked = append(ranked, scored{idx: i, score: sc})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]Example, len(ranked))
	for i, r := range ranked {
		out[i] = s.examples[r.idx]
	}
	return out
}

// tokenize lowercases, strips diacritics and splits on non-alphanumerics.
func tokenize(text string) []string {
	norm := textnorm.Normalize(text)
	return strings.FieldsFunc(norm, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
