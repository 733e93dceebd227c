// Package entity resolves free-text course, quiz and assignment names to
// their numeric ids, with a short cache in front of the database so repeated
// resolutions inside a conversation do not hammer the LMS.
package entity

import (
	"context"
	"fmt"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"golang.org/x/sync/singleflight"

	"github.com/asistenteia/moodle-nlq-go/internal/cache"
	"github.com/asistenteia/moodle-nlq-go/internal/lmsdb"
	"github.com/asistenteia/moodle-nlq-go/internal/logger"
	"github.com/asistenteia/moodle-nlq-go/internal/textnorm"
)

// MatchThreshold is the minimum token-sort ratio to accept a name match.
const MatchThreshold = 90

// CacheTTL bounds how stale a cached entity listing may be.
const CacheTTL = 60 * time.Second

// Lister is the slice of the database layer the resolver needs.
type Lister interface {
	ListCourses(ctx context.Context) ([]lmsdb.NamedEntity, error)
	ListQuizzes(ctx context.Context, courseID int64) ([]lmsdb.NamedEntity, error)
	ListAssignments(ctx context.Context, courseID int64) ([]lmsdb.NamedEntity, error)
}

// Resolver maps fuzzy entity names to ids using cached LMS listings.
type Resolver struct {
	db    Lister
	cache *cache.TTLCache[string, []lmsdb.NamedEntity]
	group singleflight.Group
	log   *logger.Logger
}

// NewResolver builds a resolver over the given listing source.
func NewResolver(db Lister, log *logger.Logger) *Resolver {
	return &Resolver{
		db:    db,
		cache: cache.New[string, []lmsdb.NamedEntity](CacheTTL),
		log:   log.WithComponent("entity"),
	}
}

// ResolveCourse finds the course whose fullname best matches name.
// The boolean is false when nothing scores at or above MatchThreshold.
func (r *Resolver) ResolveCourse(ctx context.Context, name string) (lmsdb.NamedEntity, bool) {
	list := r.listing(ctx, "courses", func(ctx context.Context) ([]lmsdb.NamedEntity, error) {
		return r.db.ListCourses(ctx)
	})
	return bestMatch(name, list)
}

// ResolveQuiz finds the quiz in courseID whose name best matches name.
func (r *Resolver) ResolveQuiz(ctx context.Context, courseID int64, name string) (lmsdb.NamedEntity, bool) {
	key := fmt.Sprintf("quizzes:%d", courseID)
	list := r.listing(ctx, key, func(ctx context.Context) ([]lmsdb.NamedEntity, error) {
		return r.db.ListQuizzes(ctx, courseID)
	})
	return bestMatch(name, list)
}

// ResolveAssignment finds the assignment in courseID whose name best matches name.
func (r *Resolver) ResolveAssignment(ctx context.Context, courseID int64, name string) (lmsdb.NamedEntity, bool) {
	key := fmt.Sprintf("assigns:%d", courseID)
	list := r.listing(ctx, key, func(ctx context.Context) ([]lmsdb.NamedEntity, error) {
		return r.db.ListAssignments(ctx, courseID)
	})
	return bestMatch(name, list)
}

// Courses returns the cached course listing, refreshing it when stale.
func (r *Resolver) Courses(ctx context.Context) []lmsdb.NamedEntity {
	return r.listing(ctx, "courses", func(ctx context.Context) ([]lmsdb.NamedEntity, error) {
		return r.db.ListCourses(ctx)
	})
}

// listing serves one cache key, collapsing concurrent refreshes. A fetch
// failure is cached as an empty listing so a broken database does not turn
// every request into a fresh query for the next minute.
func (r *Resolver) listing(ctx context.Context, key string, fetch func(context.Context) ([]lmsdb.NamedEntity, error)) []lmsdb.NamedEntity {
	if cached, ok := r.cache.Get(key); ok {
		return cached
	}

	result, _, _ := r.group.Do(key, func() (any, error) {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
		list, err := fetch(ctx)
		if err != nil {
			r.log.WithError(err).Warnf("entity listing failed, caching empty set: %s", key)
			list = nil
		}
		r.cache.Set(key, list)
		return list, nil
	})
	list, _ := result.([]lmsdb.NamedEntity)
	return list
}

// bestMatch scores name against every candidate and keeps the first maximal
// one if it reaches the threshold. Scoring ignores case and diacritics.
func bestMatch(name string, candidates []lmsdb.NamedEntity) (lmsdb.NamedEntity, bool) {
	if name == "" || len(candidates) == 0 {
		return lmsdb.NamedEntity{}, false
	}
	norm := textnorm.Normalize(name)

	best := -1
	bestScore := 0
	for i, c := range candidates {
		score := fuzzy.TokenSortRatio(norm, textnorm.Normalize(c.Name))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 || bestScore < MatchThreshold {
		return lmsdb.NamedEntity{}, false
	}
	return candidates[best], true
}
