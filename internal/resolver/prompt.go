package resolver

import (
	"fmt"
	"strings"

	"github.com/asistenteia/moodle-nlq-go/internal/fewshot"
	"github.com/asistenteia/moodle-nlq-go/internal/genai"
)

// promptRules instructs the model to answer with a bare read-only statement
// keeping {PREFIX} and __CURSO__ literal. Real prefix and course values are
// never interpolated into the prompt; substitution happens in the templater.
const promptRules = "Devolvé SOLO una consulta SQL de lectura (SELECT o WITH). " +
	"NO incluyas explicaciones ni bloques de código. " +
	"Usá {PREFIX} como prefijo literal de tablas (no lo reemplaces). " +
	"Si hay que filtrar por curso, usá el literal __CURSO__ sin comillas en la condición, por ejemplo: " +
	"WHERE c.fullname = __CURSO__ " +
	"(el backend parametrizará y pondrá las comillas). " +
	"No agregues LIMIT a menos que la pregunta lo pida explícitamente."

const promptReinforcement = " La respuesta DEBE empezar con SELECT o WITH y contener únicamente SQL."

// promptTables lists the schema slice the model may reference.
const promptTables = "- {PREFIX}course (id, fullname)\n" +
	"- {PREFIX}user (id, firstname, lastname)\n" +
	"- {PREFIX}forum (id, course, name)\n" +
	"- {PREFIX}forum_posts (id, discussion, message, userid, created)\n" +
	"- {PREFIX}grade_items (id, courseid)\n" +
	"- {PREFIX}grade_grades (id, userid, itemid, finalgrade)\n" +
	"- {PREFIX}quiz (id, course, name)\n" +
	"- {PREFIX}quiz_attempts (id, quiz, userid)\n" +
	"- {PREFIX}assign (id, course, name, duedate)\n" +
	"- {PREFIX}logstore_standard_log (id, userid, courseid, timecreated)\n"

// buildPrompt assembles the generation messages: rules, few-shot pairs,
// schema reference, then the question with its active course.
func (r *Resolver) buildPrompt(phrase, course string, shots []fewshot.Example, reinforced bool) []genai.Message {
	rules := promptRules
	if reinforced {
		rules += promptReinforcement
	}

	messages := []genai.Message{
		genai.SystemMessage("Sos un generador de SQL para Moodle. Respondé solo con la SQL."),
		genai.UserMessage("Reglas: " + rules),
	}

	for _, shot := range shots {
		messages = append(messages,
			genai.UserMessage(shot.Question),
			genai.AssistantMessage(r.normalizeExampleSQL(shot.SQL)),
		)
	}

	messages = append(messages,
		genai.UserMessage("Tablas disponibles:\n"+promptTables),
		genai.UserMessage(fmt.Sprintf("Pregunta:\n%s\nCurso activo: %q", phrase, course)),
	)
	return messages
}

// normalizeExampleSQL keeps corpus examples placeholder-pure: any real table
// prefix becomes {PREFIX} and quoted course placeholders lose their quotes.
func (r *Resolver) normalizeExampleSQL(sql string) string {
	if r.prefix != "" {
		sql = strings.ReplaceAll(sql, r.prefix, "{PREFIX}")
	}
	sql = strings.ReplaceAll(sql, "'__CURSO__'", "__CURSO__")
	return sql
}
