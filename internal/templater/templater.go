// Package templater turns a catalog or model-produced SQL template into an
// executable parameterized statement: schema-prefix substitution, course
// placeholder parameterization, course-name-to-id upgrade, and pagination.
package templater

import (
	"regexp"
	"strings"
)

const (
	// PrefixToken is the schema-prefix placeholder used by every template.
	PrefixToken = "{PREFIX}"

	// CourseToken is the "current course" placeholder. Templates may quote it
	// or not; both forms are parameterized.
	CourseToken = "__CURSO__"

	// MaxPageSize caps the automatic pagination size.
	MaxPageSize = 1000
)

var (
	quotedCourseRe = regexp.MustCompile(`(['"])__CURSO__(['"])`)
	bareCourseRe   = regexp.MustCompile(`\b__CURSO__\b`)
	courseEqRe     = regexp.MustCompile(`(?i)(\b(?:\w+\.)?course\s*=\s*)\?`)
	limitRe        = regexp.MustCompile(`(?i)\blimit\s+\d+`)
)

// Statement is a fully prepared statement: the SQL text with positional `?`
// markers and the parameter list in left-to-right marker order.
type Statement struct {
	SQL               string
	Params            []any
	HadExplicitLimit  bool
	PaginationApplied bool
}

// Templater rewrites SQL templates against a fixed, trusted schema prefix.
// The prefix comes from operator configuration and is substituted verbatim;
// it must never be derived from user input.
type Templater struct {
	prefix string
}

// New creates a templater for the given schema prefix (e.g. "mdl_").
func New(prefix string) *Templater {
	return &Templater{prefix: prefix}
}

// Prefix returns the configured schema prefix.
func (t *Templater) Prefix() string {
	return t.prefix
}

// Prepare rewrites template into an executable statement.
//
// Steps, in order:
//  1. every {PREFIX} becomes the configured table prefix;
//  2. every __CURSO__ (quoted or bare) becomes a `?` marker, with courseName
//     appended to the parameters once per occurrence;
//  3. any remaining `<alias>.course = ?` comparison is upgraded to a scalar
//     subquery that resolves the course id by fullname (only when a course
//     name was supplied and at least one marker exists);
//  4. if the template carries no explicit LIMIT, a `LIMIT ? OFFSET ?` clause
//     is appended with the clamped page size and offset.
//
// The output always has exactly as many `?` markers as parameters.
func (t *Templater) Prepare(template, courseName string, page, pageSize int) Statement {
	if strings.TrimSpace(template) == "" {
		return Statement{}
	}

	sql := strings.TrimSpace(strings.ReplaceAll(template, PrefixToken, t.prefix))

	var params []any
	replaced := 0
	sql = quotedCourseRe.ReplaceAllStringFunc(sql, func(string) string {
		replaced++
		return "?"
	})
	sql = bareCourseRe.ReplaceAllStringFunc(sql, func(string) string {
		replaced++
		return "?"
	})
	for i := 0; i < replaced; i++ {
		params = append(params, courseName)
	}

	if courseName != "" && strings.Contains(sql, "?") {
		sql = courseEqRe.ReplaceAllString(sql,
			"${1}(SELECT id FROM "+t.prefix+"course WHERE fullname = ? LIMIT 1)")
	}

	hadLimit := limitRe.MatchString(sql)
	paginated := false
	if !hadLimit {
		if page < 1 {
			page = 1
		}
		if pageSize < 1 {
			pageSize = 1
		}
		if pageSize > MaxPageSize {
			pageSize = MaxPageSize
		}
		sql = strings.TrimRight(strings.TrimSpace(sql), ";")
		sql += " LIMIT ? OFFSET ?"
		params = append(params, pageSize, (page-1)*pageSize)
		paginated = true
	}

	return Statement{
		SQL:               sql,
		Params:            params,
		HadExplicitLimit:  hadLimit,
		PaginationApplied: paginated,
	}
}
