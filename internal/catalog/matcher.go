package catalog

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/asistenteia/moodle-nlq-go/internal/textnorm"
)

// DefaultThreshold is the minimum token-sort ratio for a literal match.
const DefaultThreshold = 85

// FindLiteral fuzzy-matches phrase against the candidate templates and
// returns the best one when its token-sort ratio reaches threshold.
// Both sides are lowercased and stripped of diacritics before scoring, so
// "¿Cuántos cursos hay?" and "cuantos cursos hay" score identically.
// Returns nil when the phrase is empty, there are no candidates, or no
// candidate reaches the threshold. Ties keep the first maximal candidate.
func FindLiteral(phrase string, candidates []Template, threshold int) *Template {
	if phrase == "" || len(candidates) == 0 {
		return nil
	}
	norm := textnorm.Normalize(phrase)

	best := -1
	bestScore := 0
	for i, c := range candidates {
		score := fuzzy.TokenSortRatio(norm, textnorm.Normalize(c.Phrase))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < threshold {
		return nil
	}
	match := candidates[best]
	return &match
}

// Score computes the 0-100 token-sort ratio between phrase and the
// template's phrase, with the same normalization FindLiteral applies.
func Score(phrase string, t Template) int {
	return fuzzy.TokenSortRatio(textnorm.Normalize(phrase), textnorm.Normalize(t.Phrase))
}
