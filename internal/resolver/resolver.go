// Package resolver orchestrates intent resolution: literal catalog match,
// semantic ranking, pattern rules, then a generative fallback. One call
// produces one resolved SQL template, a disambiguation list, or a typed
// failure; no state is retained between calls.
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/asistenteia/moodle-nlq-go/internal/catalog"
	"github.com/asistenteia/moodle-nlq-go/internal/fewshot"
	"github.com/asistenteia/moodle-nlq-go/internal/genai"
	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/pattern"
	"github.com/asistenteia/moodle-nlq-go/internal/semantic"
	"github.com/asistenteia/moodle-nlq-go/internal/sqlsafe"
	"github.com/asistenteia/moodle-nlq-go/internal/templater"
)

// Route names the strategy that produced the SQL.
type Route string

const (
	RouteCatalog    Route = "catalog"
	RouteSemantic   Route = "semantic"
	RoutePattern    Route = "pattern"
	RouteGenerative Route = "generative"
	RouteNone       Route = "none"
)

// Partition names for the semantic index.
const (
	PartitionGeneral   = "generales"
	PartitionPerCourse = "por_curso"
)

// AllCoursesSentinel marks a course context meaning "no specific course".
const AllCoursesSentinel = "__all__"

// generationTimeout bounds each generative call; an unbounded upstream call
// would stall the whole resolution.
const generationTimeout = 30 * time.Second

const (
	genMaxTokens   = 300
	genTemperature = 0.0
)

// Outcome discriminates the three resolution results.
type Outcome int

const (
	// OutcomeSuccess carries a resolved intent ready for the templater.
	OutcomeSuccess Outcome = iota
	// OutcomeDisambiguation carries suggestions for explicit user selection.
	OutcomeDisambiguation
	// OutcomeFailure means no strategy produced usable SQL.
	OutcomeFailure
)

// Intent is the resolved SQL template with its provenance.
type Intent struct {
	MatchedPhrase string
	SQLTemplate   string
	Score         float64 // 0-1
	Explanation   string
	Route         Route
	Template      *catalog.Template // set for catalog/semantic routes
}

// Resolution is the outcome of one Resolve call.
type Resolution struct {
	Outcome     Outcome
	Intent      Intent
	Suggestions []catalog.Template
	Explanation string
}

// Request carries one phrase plus its resolution context.
type Request struct {
	Phrase     string
	CourseName string // "" or AllCoursesSentinel when not course-scoped
	// FreeForm enables the pattern-engine stage instead of stopping at a
	// disambiguation list when the catalog path is inconclusive.
	FreeForm bool
	// AllowGenerative gates both the semantic re-rank pass and the final
	// generative SQL fallback.
	AllowGenerative bool
}

// FewShotSelector supplies prompt examples for the generative fallback.
type FewShotSelector interface {
	Select(ctx context.Context, phrase string, k int) []fewshot.Example
}

// Resolver sequences the resolution strategies.
type Resolver struct {
	catalog   *catalog.Catalog
	ranker    *semantic.Ranker // nil when embeddings are not configured
	patterns  *pattern.Engine
	generator genai.TextGenerator // nil when no LLM is configured
	fewshots  FewShotSelector
	prefix    string
	log       *logger.Logger
}

// New builds a resolver. ranker, generator and fewshots may be nil; the
// corresponding stages are skipped.
func New(cat *catalog.Catalog, ranker *semantic.Ranker, patterns *pattern.Engine, generator genai.TextGenerator, fewshots FewShotSelector, prefix string, log *logger.Logger) *Resolver {
	return &Resolver{
		catalog:   cat,
		ranker:    ranker,
		patterns:  patterns,
		generator: generator,
		fewshots:  fewshots,
		prefix:    prefix,
		log:       log.WithComponent("resolver"),
	}
}

// Resolve maps one phrase to a SQL template. The returned template still has
// its {PREFIX} and __CURSO__ placeholders; parameterization and the final
// read-only gate happen downstream.
func (r *Resolver) Resolve(ctx context.Context, req Request) Resolution {
	phrase := strings.TrimSpace(req.Phrase)
	if phrase == "" {
		return Resolution{Outcome: OutcomeFailure, Explanation: "Frase vacía."}
	}

	partitionName, candidates := r.partition(phrase, req.CourseName)

	// 1. Literal catalog match.
	if match := catalog.FindLiteral(phrase, candidates, catalog.DefaultThreshold); match != nil {
		score := catalog.Score(phrase, *match)
		r.log.WithFields(map[string]any{"route": RouteCatalog, "score": score}).Debug("resolved by literal match")
		return success(Intent{
			MatchedPhrase: match.Phrase,
			SQLTemplate:   match.SQL,
			Score:         float64(score) / 100,
			Explanation:   match.Explanation,
			Route:         RouteCatalog,
			Template:      match,
		})
	}

	// 2. Semantic ranking over the same partition.
	if r.ranker != nil && len(candidates) > 0 {
		shortlist, err := r.ranker.Rank(ctx, partitionName, phrase, semantic.DefaultTopK, req.AllowGenerative)
		if err != nil {
			// Embedding trouble is a precision loss, not a failure.
			r.log.WithError(err).Warn("semantic ranking unavailable")
		} else if len(shortlist) > 0 {
			top := shortlist[0]
			score := semantic.AcceptanceScore(phrase, top)
			if score >= semantic.AcceptThreshold {
				r.log.WithFields(map[string]any{"route": RouteSemantic, "score": score}).Debug("resolved by semantic match")
				return success(Intent{
					MatchedPhrase: top.Phrase,
					SQLTemplate:   top.SQL,
					Score:         float64(score) / 100,
					Explanation:   top.Explanation,
					Route:         RouteSemantic,
					Template:      &top,
				})
			}
			if !req.FreeForm {
				return Resolution{
					Outcome:     OutcomeDisambiguation,
					Suggestions: shortlist,
					Explanation: "Ninguna pregunta del catálogo coincide con suficiente confianza.",
				}
			}
		}
	}

	// 3. Pattern rules, free-form mode only.
	if req.FreeForm && r.patterns != nil {
		res := r.patterns.Build(ctx, phrase, courseHint(req.CourseName))
		if res.OK {
			r.log.WithField("rule", res.RuleID).Debug("resolved by pattern rule")
			return success(Intent{
				MatchedPhrase: phrase,
				SQLTemplate:   res.SQL,
				Score:         1,
				Explanation:   res.Explanation,
				Route:         RoutePattern,
			})
		}
	}

	// 4. Generative fallback.
	if req.AllowGenerative && r.generator != nil {
		if sql := r.generateSQL(ctx, phrase, courseHint(req.CourseName)); sql != "" {
			return success(Intent{
				MatchedPhrase: phrase,
				SQLTemplate:   sql,
				Score:         0.85,
				Explanation:   "Consulta generada por IA a partir de ejemplos.",
				Route:         RouteGenerative,
			})
		}
	}

	return Resolution{
		Outcome:     OutcomeFailure,
		Explanation: "No se pudo generar una consulta válida.",
	}
}

func success(intent Intent) Resolution {
	return Resolution{Outcome: OutcomeSuccess, Intent: intent}
}

// partition picks the catalog slice the phrase should match against: the
// per-course partition when the template references the current course or a
// course context was supplied, the general partition otherwise.
func (r *Resolver) partition(phrase, courseName string) (string, []catalog.Template) {
	if strings.Contains(phrase, templater.CourseToken) || courseHint(courseName) != "" {
		return PartitionPerCourse, r.catalog.PerCoursePartition()
	}
	return PartitionGeneral, r.catalog.GeneralPartition()
}

func courseHint(courseName string) string {
	name := strings.TrimSpace(courseName)
	if name == "" || strings.EqualFold(name, AllCoursesSentinel) {
		return ""
	}
	return name
}

// generateSQL asks the LLM for a read-only statement. The first attempt uses
// the standard rules; a non-read-only answer gets one reinforced retry.
// Returns "" when both attempts fail.
func (r *Resolver) generateSQL(ctx context.Context, phrase, course string) string {
	var shots []fewshot.Example
	if r.fewshots != nil {
		shots = r.fewshots.Select(ctx, phrase, 3)
	}

	for _, reinforced := range []bool{false, true} {
		genCtx, cancel := context.WithTimeout(ctx, generationTimeout)
		raw, err := r.generator.Complete(genCtx, r.buildPrompt(phrase, course, shots, reinforced), genMaxTokens, genTemperature)
		cancel()
		if err != nil {
			r.log.WithError(err).WithField("reinforced", reinforced).Warn("SQL generation failed")
			continue
		}

		sql := sqlsafe.CleanModelOutput(raw)
		if sqlsafe.IsReadOnly(sql) {
			return sql
		}
		r.log.WithField("reinforced", reinforced).Warn("generated SQL rejected by read-only gate")
	}
	return ""
}
