// Package pattern builds read-only SQL from a fixed table of phrase rules.
// Rules match on the normalized phrase (lowercased, diacritics stripped),
// in declaration order, first match wins. Course/quiz/assignment slots are
// filled with numeric ids resolved against the LMS before the SQL leaves
// this package.
package pattern

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/asistenteia/moodle-nlq-go/internal/lmsdb"
	"github.com/asistenteia/moodle-nlq-go/internal/sqlsafe"
	"github.com/asistenteia/moodle-nlq-go/internal/textnorm"
)

// Scope classifies a rule as platform-wide or bound to one course.
type Scope string

const (
	ScopePlatform Scope = "plataforma"
	ScopeCourse   Scope = "curso"
)

// Slot names an entity the rule needs resolved before its SQL is usable.
type Slot string

const (
	SlotCourse Slot = "CURSO"
	SlotQuiz   Slot = "QUIZ"
	SlotAssign Slot = "ASSIGN"
)

// Rule is one phrase pattern with its SQL template. Templates keep {PREFIX}
// literal; {CURSO_ID}, {QUIZ_ID} and {ASSIGN_ID} are replaced with resolved
// numeric ids.
type Rule struct {
	ID    string
	Regex *regexp.Regexp
	SQL   string
	Scope Scope
	Slots []Slot
}

// rules is evaluated top to bottom, most specific first. The course-scoped
// count rules sit above their platform siblings because the platform regexes
// also match the longer "... en <curso>" phrasings.
var rules = []Rule{
	{
		ID:    "count_estudiantes_curso",
		Regex: regexp.MustCompile(`(?i)^(cuantos|cantidad\s+de)\s+(alumnos|estudiantes)\s+(hay|existen)\s+en\s+`),
		SQL: "SELECT COUNT(DISTINCT u.id) AS cantidad " +
			"FROM {PREFIX}user u " +
			"JOIN {PREFIX}user_enrolments ue ON ue.userid = u.id " +
			"JOIN {PREFIX}enrol e ON e.id = ue.enrolid " +
			"JOIN {PREFIX}course c ON c.id = e.courseid " +
			"JOIN {PREFIX}context ctx ON ctx.instanceid = c.id AND ctx.contextlevel = 50 " +
			"JOIN {PREFIX}role_assignments ra ON ra.userid = u.id AND ra.contextid = ctx.id " +
			"WHERE c.id = {CURSO_ID} AND ra.roleid = 5;",
		Scope: ScopeCourse,
		Slots: []Slot{SlotCourse},
	},
	{
		ID:    "count_foros_curso",
		Regex: regexp.MustCompile(`(?i)^(cuantos|cantidad\s+de)\s+foros\s+(hay|existen)\s+en\s+`),
		SQL:   "SELECT COUNT(*) AS cantidad FROM {PREFIX}forum f WHERE f.course = {CURSO_ID};",
		Scope: ScopeCourse,
		Slots: []Slot{SlotCourse},
	},
	{
		ID:    "count_cursos_plataforma",
		Regex: regexp.MustCompile(`(?i)^(cuantos|cantidad\s+de)\s+cursos(\s+(hay|existen))?`),
		SQL:   "SELECT COUNT(*) AS cantidad FROM {PREFIX}course;",
		Scope: ScopePlatform,
	},
	{
		ID:    "count_foros_plataforma",
		Regex: regexp.MustCompile(`(?i)^(cuantos|cantidad\s+de)\s+foros(\s+(hay|existen))?`),
		SQL:   "SELECT COUNT(*) AS cantidad FROM {PREFIX}forum;",
		Scope: ScopePlatform,
	},
	{
		ID:    "count_usuarios_estudiantes_plataforma",
		Regex: regexp.MustCompile(`(?i)^(cuantos|cantidad\s+de)\s+(alumnos|estudiantes)(\s+(hay|existen))?`),
		SQL: "SELECT COUNT(DISTINCT u.id) AS cantidad " +
			"FROM {PREFIX}user u " +
			"JOIN {PREFIX}role_assignments ra ON ra.userid = u.id " +
			"WHERE ra.roleid = 5 AND u.deleted = 0;",
		Scope: ScopePlatform,
	},
	{
		ID:    "promedio_curso",
		Regex: regexp.MustCompile(`(?i)^cual\s+es\s+el\s+promedio(\s+general)?\s+del\s+curso`),
		SQL: "SELECT ROUND(AVG(gg.finalgrade), 2) AS promedio " +
			"FROM {PREFIX}grade_grades gg " +
			"JOIN {PREFIX}grade_items gi ON gg.itemid = gi.id " +
			"WHERE gi.courseid = {CURSO_ID};",
		Scope: ScopeCourse,
		Slots: []Slot{SlotCourse},
	},
	{
		ID:    "intentos_quiz_en_curso",
		Regex: regexp.MustCompile(`(?i)^cuantos\s+intentos\s+(tiene|se\s+h(i|a)n\s+hecho)\s+el\s+quiz\s+`),
		SQL: "SELECT COUNT(*) AS intentos " +
			"FROM {PREFIX}quiz_attempts qa " +
			"JOIN {PREFIX}quiz q ON qa.quiz = q.id " +
			"WHERE q.id = {QUIZ_ID};",
		Scope: ScopeCourse,
		Slots: []Slot{SlotCourse, SlotQuiz},
	},
	{
		ID:    "duedate_assign_en_curso_es",
		Regex: regexp.MustCompile(`(?i)(fecha\s+de\s+finalizacion|vencimiento|limite|deadline|due\s+date).*(actividad|tarea|assign|entrega)`),
		SQL:   "SELECT a.name AS actividad, a.duedate FROM {PREFIX}assign a WHERE a.id = {ASSIGN_ID};",
		Scope: ScopeCourse,
		Slots: []Slot{SlotCourse, SlotAssign},
	},
	{
		ID:    "duedate_assign_en_curso_en",
		Regex: regexp.MustCompile(`(?i)(what\s+is\s+the\s+due\s+date|when\s+is\s+the\s+deadline).*(assignment|activity|deliverable|submission|task)`),
		SQL:   "SELECT a.name AS actividad, a.duedate FROM {PREFIX}assign a WHERE a.id = {ASSIGN_ID};",
		Scope: ScopeCourse,
		Slots: []Slot{SlotCourse, SlotAssign},
	},
}

var nameCutRe = regexp.MustCompile(`[?.]`)

// Spanish questions open with inverted punctuation, which would defeat the
// ^-anchored rules.
var punctTrim = strings.NewReplacer("¿", "", "¡", "")

// EntityResolver is the part of the entity package the engine depends on.
type EntityResolver interface {
	ResolveCourse(ctx context.Context, name string) (lmsdb.NamedEntity, bool)
	ResolveQuiz(ctx context.Context, courseID int64, name string) (lmsdb.NamedEntity, bool)
	ResolveAssignment(ctx context.Context, courseID int64, name string) (lmsdb.NamedEntity, bool)
}

// Result is the outcome of a pattern build attempt. When OK is false,
// Explanation carries a user-facing reason (in Spanish, matching the rest
// of the service surface).
type Result struct {
	OK          bool
	SQL         string
	Explanation string
	RuleID      string
	Scope       Scope
	Course      *lmsdb.NamedEntity
	Quiz        *lmsdb.NamedEntity
	Assign      *lmsdb.NamedEntity
}

// Engine matches phrases against the rule table and fills entity slots.
type Engine struct {
	resolver EntityResolver
}

// NewEngine builds a pattern engine over the given entity resolver.
func NewEngine(resolver EntityResolver) *Engine {
	return &Engine{resolver: resolver}
}

// Build tries to produce read-only SQL for phrase. courseHint, when present
// and not the sentinel "__all__", is preferred over extracting the course
// name from the phrase itself.
func (e *Engine) Build(ctx context.Context, phrase, courseHint string) Result {
	if strings.TrimSpace(phrase) == "" {
		return Result{Explanation: "Frase vacía."}
	}

	norm := strings.TrimSpace(punctTrim.Replace(textnorm.Normalize(phrase)))
	rule := matchRule(norm)
	if rule == nil {
		return Result{Explanation: "Sin patrón coincidente."}
	}

	res := Result{RuleID: rule.ID, Scope: rule.Scope}
	sql := rule.SQL

	var course lmsdb.NamedEntity
	if hasSlot(rule, SlotCourse) {
		found := false
		if hint := strings.TrimSpace(courseHint); hint != "" && textnorm.Normalize(hint) != "__all__" {
			course, found = e.resolver.ResolveCourse(ctx, hint)
		}
		if !found {
			// Only the first marker that yields a name is tried; if that
			// name does not resolve, the build fails.
			var name string
			for _, marker := range []string{"en ", "del curso ", "en el curso "} {
				if name = extractNameAfter(norm, marker); name != "" {
					break
				}
			}
			if name != "" {
				course, found = e.resolver.ResolveCourse(ctx, name)
			}
		}
		if !found {
			res.Explanation = "No pude identificar el curso."
			return res
		}
		sql = strings.ReplaceAll(sql, "{CURSO_ID}", strconv.FormatInt(course.ID, 10))
		res.Course = &course
	}

	if hasSlot(rule, SlotQuiz) {
		name := firstNameAfter(norm, "el quiz ", "el cuestionario ", "el examen ")
		if name == "" {
			res.Explanation = "No pude identificar el nombre del quiz."
			return res
		}
		quiz, found := e.resolver.ResolveQuiz(ctx, course.ID, name)
		if !found {
			res.Explanation = "No encontré un quiz que coincida."
			return res
		}
		sql = strings.ReplaceAll(sql, "{QUIZ_ID}", strconv.FormatInt(quiz.ID, 10))
		res.Quiz = &quiz
	}

	if hasSlot(rule, SlotAssign) {
		name := firstNameAfter(norm,
			"de la actividad ", "actividad ", "de la tarea ", "tarea ",
			"entrega ", "assign ", "assignment ")
		if name == "" {
			res.Explanation = "No pude identificar el nombre de la actividad."
			return res
		}
		assign, found := e.resolver.ResolveAssignment(ctx, course.ID, name)
		if !found {
			res.Explanation = "No encontré una actividad que coincida."
			return res
		}
		sql = strings.ReplaceAll(sql, "{ASSIGN_ID}", strconv.FormatInt(assign.ID, 10))
		res.Assign = &assign
	}

	if !sqlsafe.IsReadOnly(sql) {
		res.Explanation = "La consulta no es de lectura."
		return res
	}

	res.OK = true
	res.SQL = sql
	res.Explanation = "Generada por patrones."
	return res
}

func matchRule(norm string) *Rule {
	for i := range rules {
		if rules[i].Regex.MatchString(norm) {
			return &rules[i]
		}
	}
	return nil
}

func hasSlot(r *Rule, s Slot) bool {
	for _, have := range r.Slots {
		if have == s {
			return true
		}
	}
	return false
}

// extractNameAfter returns the text following the first occurrence of
// marker, cut at the first '?' or '.', or "" when the marker is absent.
func extractNameAfter(norm, marker string) string {
	idx := strings.Index(norm, marker)
	if idx == -1 {
		return ""
	}
	name := strings.TrimSpace(norm[idx+len(marker):])
	name = strings.TrimSpace(nameCutRe.Split(name, 2)[0])
	return name
}

func firstNameAfter(norm string, markers ...string) string {
	for _, m := range markers {
		if name := extractNameAfter(norm, m); name != "" {
			return name
		}
	}
	return ""
}
