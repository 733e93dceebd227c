package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistenteia/moodle-nlq-go/internal/lmsdb"
)

type fakeResolver struct {
	courses map[string]lmsdb.NamedEntity
	quizzes map[string]lmsdb.NamedEntity
	assigns map[string]lmsdb.NamedEntity
}

func (f *fakeResolver) ResolveCourse(_ context.Context, name string) (lmsdb.NamedEntity, bool) {
	e, ok := f.courses[name]
	return e, ok
}

func (f *fakeResolver) ResolveQuiz(_ context.Context, _ int64, name string) (lmsdb.NamedEntity, bool) {
	e, ok := f.quizzes[name]
	return e, ok
}

func (f *fakeResolver) ResolveAssignment(_ context.Context, _ int64, name string) (lmsdb.NamedEntity, bool) {
	e, ok := f.assigns[name]
	return e, ok
}

func TestBuildPlatformCount(t *testing.T) {
	e := NewEngine(&fakeResolver{})

	res := e.Build(context.Background(), "cuantos cursos hay", "")
	require.True(t, res.OK)
	assert.Equal(t, "count_cursos_plataforma", res.RuleID)
	assert.Equal(t, "SELECT COUNT(*) AS cantidad FROM {PREFIX}course;", res.SQL)
	assert.Equal(t, ScopePlatform, res.Scope)
}

func TestBuildPlatformCountWithAccents(t *testing.T) {
	e := NewEngine(&fakeResolver{})

	res := e.Build(context.Background(), "¿Cuántos foros existen?", "")
	require.True(t, res.OK)
	assert.Equal(t, "count_foros_plataforma", res.RuleID)
}

func TestBuildCourseStudentCount(t *testing.T) {
	e := NewEngine(&fakeResolver{courses: map[string]lmsdb.NamedEntity{
		"matematica i": {ID: 7, Name: "Matemática I"},
	}})

	res := e.Build(context.Background(), "¿Cuántos estudiantes hay en Matemática I?", "")
	require.True(t, res.OK)
	assert.Equal(t, "count_estudiantes_curso", res.RuleID)
	assert.Contains(t, res.SQL, "WHERE c.id = 7 AND ra.roleid = 5;")
	assert.NotContains(t, res.SQL, "{CURSO_ID}")
	require.NotNil(t, res.Course)
	assert.Equal(t, int64(7), res.Course.ID)
}

func TestBuildCourseRuleWinsOverPlatformRule(t *testing.T) {
	e := NewEngine(&fakeResolver{courses: map[string]lmsdb.NamedEntity{
		"fisica ii": {ID: 5, Name: "Física II"},
	}})

	res := e.Build(context.Background(), "cuantos foros hay en fisica ii", "")
	require.True(t, res.OK)
	assert.Equal(t, "count_foros_curso", res.RuleID)
	assert.Contains(t, res.SQL, "f.course = 5")
}

func TestBuildCourseFirstExtractionIsFinal(t *testing.T) {
	e := NewEngine(&fakeResolver{courses: map[string]lmsdb.NamedEntity{
		"matematica i": {ID: 7, Name: "Matemática I"},
	}})

	// "en " extracts "linea del curso matematica i", which does not
	// resolve; later markers are not retried.
	res := e.Build(context.Background(), "cuantos foros hay en linea del curso matematica i", "")
	assert.False(t, res.OK)
	assert.Equal(t, "No pude identificar el curso.", res.Explanation)
}

func TestBuildCourseHintPreferred(t *testing.T) {
	e := NewEngine(&fakeResolver{courses: map[string]lmsdb.NamedEntity{
		"Física II": {ID: 5, Name: "Física II"},
	}})

	res := e.Build(context.Background(), "cual es el promedio del curso", "Física II")
	require.True(t, res.OK)
	assert.Equal(t, "promedio_curso", res.RuleID)
	assert.Contains(t, res.SQL, "gi.courseid = 5")
}

func TestBuildAllCoursesSentinelIgnored(t *testing.T) {
	e := NewEngine(&fakeResolver{})

	res := e.Build(context.Background(), "cual es el promedio del curso", "__all__")
	assert.False(t, res.OK)
	assert.Equal(t, "No pude identificar el curso.", res.Explanation)
}

func TestBuildQuizAttempts(t *testing.T) {
	e := NewEngine(&fakeResolver{
		courses: map[string]lmsdb.NamedEntity{
			"Matemática I": {ID: 7, Name: "Matemática I"},
		},
		quizzes: map[string]lmsdb.NamedEntity{
			"parcial 1": {ID: 9, Name: "Parcial 1"},
		},
	})

	res := e.Build(context.Background(), "¿Cuántos intentos tiene el quiz Parcial 1?", "Matemática I")
	require.True(t, res.OK)
	assert.Equal(t, "intentos_quiz_en_curso", res.RuleID)
	assert.Contains(t, res.SQL, "q.id = 9")
	require.NotNil(t, res.Quiz)
}

func TestBuildQuizNameMissing(t *testing.T) {
	e := NewEngine(&fakeResolver{courses: map[string]lmsdb.NamedEntity{
		"Matemática I": {ID: 7, Name: "Matemática I"},
	}})

	res := e.Build(context.Background(), "cuantos intentos tiene el quiz ?", "Matemática I")
	assert.False(t, res.OK)
	assert.Equal(t, "No pude identificar el nombre del quiz.", res.Explanation)
}

func TestBuildAssignmentDueDateSpanish(t *testing.T) {
	e := NewEngine(&fakeResolver{
		courses: map[string]lmsdb.NamedEntity{
			"Física II": {ID: 5, Name: "Física II"},
		},
		assigns: map[string]lmsdb.NamedEntity{
			"informe final": {ID: 21, Name: "Informe Final"},
		},
	})

	res := e.Build(context.Background(), "¿Cuál es la fecha de finalización de la tarea Informe Final?", "Física II")
	require.True(t, res.OK)
	assert.Equal(t, "duedate_assign_en_curso_es", res.RuleID)
	assert.Contains(t, res.SQL, "a.id = 21")
}

func TestBuildAssignmentDueDateEnglish(t *testing.T) {
	e := NewEngine(&fakeResolver{
		courses: map[string]lmsdb.NamedEntity{
			"Física II": {ID: 5, Name: "Física II"},
		},
		assigns: map[string]lmsdb.NamedEntity{
			"final report": {ID: 22, Name: "Final Report"},
		},
	})

	// "due date" and "assign" also satisfy the Spanish rule, which sits
	// earlier in the table and therefore wins.
	res := e.Build(context.Background(), "what is the due date of the assignment final report", "Física II")
	require.True(t, res.OK)
	assert.Equal(t, "duedate_assign_en_curso_es", res.RuleID)
	assert.Contains(t, res.SQL, "a.id = 22")
}

func TestBuildNoMatch(t *testing.T) {
	e := NewEngine(&fakeResolver{})

	res := e.Build(context.Background(), "dame el clima de hoy", "")
	assert.False(t, res.OK)
	assert.Equal(t, "Sin patrón coincidente.", res.Explanation)
	assert.Empty(t, res.RuleID)
}

func TestBuildEmptyPhrase(t *testing.T) {
	e := NewEngine(&fakeResolver{})

	res := e.Build(context.Background(), "   ", "")
	assert.False(t, res.OK)
	assert.Equal(t, "Frase vacía.", res.Explanation)
}

func TestBuildUnknownCourse(t *testing.T) {
	e := NewEngine(&fakeResolver{courses: map[string]lmsdb.NamedEntity{}})

	res := e.Build(context.Background(), "cuantos estudiantes hay en quimica organica", "")
	assert.False(t, res.OK)
	assert.Equal(t, "No pude identificar el curso.", res.Explanation)
	assert.Equal(t, "count_estudiantes_curso", res.RuleID)
}

func TestNameExtractionStopsAtPunctuation(t *testing.T) {
	assert.Equal(t, "matematica i", extractNameAfter("cuantos estudiantes hay en matematica i?", "en "))
	assert.Equal(t, "fisica ii", extractNameAfter("promedio del curso fisica ii. gracias", "del curso "))
	assert.Empty(t, extractNameAfter("sin marcador", "del curso "))
}
