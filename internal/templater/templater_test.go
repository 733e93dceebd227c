package templater

import (
	"strings"
	"testing"

	"github.com/asistenteia/moodle-nlq-go/internal/sqlsafe"
)

func markerCount(sql string) int {
	return strings.Count(sql, "?")
}

func TestPrefixSubstitution(t *testing.T) {
	tpl := New("mdl_")
	st := tpl.Prepare("SELECT COUNT(*) FROM {PREFIX}course;", "", 1, 50)

	if strings.Contains(st.SQL, PrefixToken) {
		t.Errorf("prefix token must not survive substitution: %q", st.SQL)
	}
	if !strings.Contains(st.SQL, "mdl_course") {
		t.Errorf("expected substituted table name, got %q", st.SQL)
	}
}

func TestPrefixSubstitutionIdempotent(t *testing.T) {
	tpl := New("mdl_")
	first := tpl.Prepare("SELECT COUNT(*) FROM {PREFIX}course LIMIT 10", "", 1, 50)
	second := tpl.Prepare(first.SQL, "", 1, 50)

	if first.SQL != second.SQL {
		t.Errorf("second pass changed SQL:\nfirst:  %q\nsecond: %q", first.SQL, second.SQL)
	}
}

func TestCourseParameterization(t *testing.T) {
	tpl := New("mdl_")
	st := tpl.Prepare(
		"SELECT * FROM {PREFIX}forum f JOIN {PREFIX}course c ON c.id = f.course WHERE c.fullname = '__CURSO__' LIMIT 20",
		"Matemática I", 1, 50,
	)

	if strings.Contains(st.SQL, CourseToken) {
		t.Errorf("course token must not survive: %q", st.SQL)
	}
	if len(st.Params) != 1 {
		t.Fatalf("expected 1 param, got %d: %v", len(st.Params), st.Params)
	}
	if st.Params[0] != "Matemática I" {
		t.Errorf("expected course name param, got %v", st.Params[0])
	}
	if !st.HadExplicitLimit {
		t.Error("template has explicit LIMIT; pagination must not apply")
	}
}

func TestCourseEqUpgradedToSubquery(t *testing.T) {
	tpl := New("mdl_")
	st := tpl.Prepare(
		"SELECT f.name FROM {PREFIX}forum f WHERE f.course = __CURSO__ LIMIT 5",
		"Historia", 1, 50,
	)

	want := "(SELECT id FROM mdl_course WHERE fullname = ? LIMIT 1)"
	if !strings.Contains(st.SQL, want) {
		t.Errorf("expected id subquery in %q", st.SQL)
	}
	if markerCount(st.SQL) != len(st.Params) {
		t.Errorf("marker/param mismatch: %d markers, %d params", markerCount(st.SQL), len(st.Params))
	}
}

func TestNoSubqueryWithoutCourse(t *testing.T) {
	tpl := New("mdl_")
	st := tpl.Prepare("SELECT f.name FROM {PREFIX}forum f WHERE f.course = __CURSO__ LIMIT 5", "", 1, 50)

	if strings.Contains(st.SQL, "SELECT id FROM mdl_course") {
		t.Errorf("course-eq rewrite must not apply without a course name: %q", st.SQL)
	}
	// Marker/param exactness holds even with an empty course name.
	if markerCount(st.SQL) != len(st.Params) {
		t.Errorf("marker/param mismatch: %d markers, %d params", markerCount(st.SQL), len(st.Params))
	}
}

func TestPaginationAppended(t *testing.T) {
	tpl := New("mdl_")
	st := tpl.Prepare("SELECT fullname FROM {PREFIX}course ORDER BY fullname;", "", 3, 200)

	if !strings.HasSuffix(st.SQL, "LIMIT ? OFFSET ?") {
		t.Errorf("expected pagination clause, got %q", st.SQL)
	}
	if st.HadExplicitLimit {
		t.Error("HadExplicitLimit should be false")
	}
	if !st.PaginationApplied {
		t.Error("PaginationApplied should be true")
	}
	if len(st.Params) != 2 || st.Params[0] != 200 || st.Params[1] != 400 {
		t.Errorf("expected params [200 400], got %v", st.Params)
	}
	if strings.Contains(st.SQL, ";") {
		t.Errorf("trailing terminator should be stripped before pagination: %q", st.SQL)
	}
}

func TestPageAndSizeClamping(t *testing.T) {
	tpl := New("mdl_")

	st := tpl.Prepare("SELECT 1 FROM {PREFIX}course", "", -3, 9999)
	if st.Params[0] != MaxPageSize {
		t.Errorf("size should clamp to %d, got %v", MaxPageSize, st.Params[0])
	}
	if st.Params[1] != 0 {
		t.Errorf("page should clamp to 1 (offset 0), got %v", st.Params[1])
	}

	st = tpl.Prepare("SELECT 1 FROM {PREFIX}course", "", 2, 0)
	if st.Params[0] != 1 {
		t.Errorf("size should clamp to 1, got %v", st.Params[0])
	}
}

func TestParamCountExactness(t *testing.T) {
	tpl := New("mdl_")
	templates := []string{
		"SELECT COUNT(*) FROM {PREFIX}course;",
		"SELECT * FROM {PREFIX}forum WHERE course = __CURSO__",
		"SELECT u.firstname FROM {PREFIX}user u JOIN {PREFIX}course c ON c.fullname = '__CURSO__' WHERE c.fullname = '__CURSO__'",
		"SELECT 1 LIMIT 10",
	}
	for _, raw := range templates {
		st := tpl.Prepare(raw, "Curso X", 1, 100)
		if markerCount(st.SQL) != len(st.Params) {
			t.Errorf("template %q: %d markers vs %d params", raw, markerCount(st.SQL), len(st.Params))
		}
	}
}

func TestPreparePreservesReadOnly(t *testing.T) {
	tpl := New("mdl_")
	templates := []string{
		"SELECT COUNT(*) AS cantidad FROM {PREFIX}course;",
		"WITH x AS (SELECT id FROM {PREFIX}course WHERE fullname = '__CURSO__') SELECT * FROM x",
		"SELECT f.name FROM {PREFIX}forum f WHERE f.course = __CURSO__",
	}
	for _, raw := range templates {
		if !sqlsafe.IsReadOnly(raw) {
			t.Fatalf("test template must start read-only: %q", raw)
		}
		st := tpl.Prepare(raw, "Curso X", 1, 100)
		if !sqlsafe.IsReadOnly(st.SQL) {
			t.Errorf("prepared SQL lost read-only property: %q", st.SQL)
		}
	}
}

func TestEmptyTemplate(t *testing.T) {
	tpl := New("mdl_")
	st := tpl.Prepare("   ", "Curso", 1, 10)
	if st.SQL != "" || len(st.Params) != 0 {
		t.Errorf("empty template should produce empty statement, got %+v", st)
	}
}
