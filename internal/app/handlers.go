package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/asistenteia/moodle-nlq-go/internal/catalog"
	"github.com/asistenteia/moodle-nlq-go/internal/config"
	"github.com/asistenteia/moodle-nlq-go/internal/resolver"
	"github.com/asistenteia/moodle-nlq-go/internal/results"
	"github.com/asistenteia/moodle-nlq-go/internal/sentry"
	"github.com/asistenteia/moodle-nlq-go/internal/sqlsafe"
)

// askRequest mirrors the front-end contract: Spanish field names, pagination
// optional, generation consent defaulting to allowed.
type askRequest struct {
	Pregunta   string `json:"pregunta"`
	Curso      string `json:"curso"`
	Libre      bool   `json:"libre"`
	Page       int    `json:"page"`
	Size       int    `json:"size"`
	Guardar    bool   `json:"guardar"`
	PermitirIA *bool  `json:"permitir_ia"`
}

// handleAsk resolves one question to SQL, executes it and returns the rows
// (or an AI analysis for templates that carry an instruction).
func (a *Application) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.metrics.RecordHTTPError("validation", "/ask")
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Cuerpo de la petición inválido.",
		})
		return
	}

	req.Pregunta = strings.TrimSpace(req.Pregunta)
	req.Curso = strings.TrimSpace(req.Curso)
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Size < 1 {
		req.Size = a.cfg.DefaultPageSize
	}
	if req.Size > config.MaxPageSize {
		req.Size = config.MaxPageSize
	}
	allowGenerative := req.PermitirIA == nil || *req.PermitirIA

	start := time.Now()
	res := a.resolver.Resolve(c.Request.Context(), resolver.Request{
		Phrase:          req.Pregunta,
		CourseName:      req.Curso,
		FreeForm:        req.Libre,
		AllowGenerative: allowGenerative,
	})
	a.metrics.RecordResolution(string(res.Intent.Route), outcomeLabel(res.Outcome), time.Since(start).Seconds())

	switch res.Outcome {
	case resolver.OutcomeDisambiguation:
		c.JSON(http.StatusOK, gin.H{
			"status":      "elegir",
			"explicacion": res.Explanation,
			"sugerencias": catalog.Phrases(res.Suggestions),
		})
		return
	case resolver.OutcomeFailure:
		a.metrics.RecordHTTPError("resolution", "/ask")
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "No se pudo generar una consulta de lectura para esa pregunta.",
		})
		return
	}

	stmt := a.templater.Prepare(res.Intent.SQLTemplate, courseName(req.Curso), req.Page, req.Size)

	// The resolver already gated generated SQL, but the final statement is
	// what actually runs, so it gets its own check.
	if !sqlsafe.IsReadOnly(stmt.SQL) {
		a.metrics.RecordHTTPError("not_read_only", "/ask")
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Solo se permiten consultas de lectura (SELECT/WITH).",
		})
		return
	}

	queryCtx, cancel := context.WithTimeout(c.Request.Context(), a.cfg.QueryTimeout)
	defer cancel()

	queryStart := time.Now()
	rs, err := a.db.Execute(queryCtx, stmt.SQL, stmt.Params)
	if err != nil {
		a.metrics.RecordQuery("error", time.Since(queryStart).Seconds())
		a.metrics.RecordHTTPError("db", "/ask")
		a.logger.WithError(err).WithField("route", res.Intent.Route).Error("Query execution failed")
		sentry.CaptureException(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Error al ejecutar la consulta.",
		})
		return
	}
	a.metrics.RecordQuery("success", time.Since(queryStart).Seconds())

	response := gin.H{
		"status":      "ok",
		"ia":          false,
		"ruta":        string(res.Intent.Route),
		"explicacion": res.Intent.Explanation,
		"query":       stmt.SQL,
		"params":      stmt.Params,
		"page":        req.Page,
		"size":        req.Size,
		"count":       len(rs.Rows),
		"has_more":    len(rs.Rows) == req.Size && !stmt.HadExplicitLimit,
	}

	// Analysis templates summarize the rows instead of returning them.
	if a.analyzer != nil && res.Intent.Template != nil && res.Intent.Template.Description != "" {
		answer, err := a.analyzer.Analyze(c.Request.Context(), res.Intent.Template.Description, rs.Rows)
		if err != nil {
			a.metrics.RecordHTTPError("upstream", "/ask")
			a.logger.WithError(err).Warn("AI analysis failed, returning raw rows")
		} else {
			response["ia"] = true
			response["respuesta"] = []map[string]any{{"Análisis IA": answer}}
			a.finishAsk(c, req, response)
			return
		}
	}

	response["respuesta"] = results.Serialize(rs)
	a.finishAsk(c, req, response)
}

func (a *Application) finishAsk(c *gin.Context, req askRequest, response gin.H) {
	if req.Guardar {
		a.interactions.WithFields(map[string]any{
			"pregunta": req.Pregunta,
			"curso":    req.Curso,
			"ruta":     response["ruta"],
			"count":    response["count"],
			"ia":       response["ia"],
		}).Info("Interaction saved")
	}
	c.JSON(http.StatusOK, response)
}

// handleFAQ lists the catalog phrases, partitioned the way the front end
// renders them.
func (a *Application) handleFAQ(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"generales": catalog.Phrases(a.catalog.GeneralPartition()),
		"por_curso": catalog.Phrases(a.catalog.PerCoursePartition()),
	})
}

// handleCourses lists visible courses. Degrades to an empty list when the
// database is unavailable; availability beats correctness at this read path.
func (a *Application) handleCourses(c *gin.Context) {
	const key = "courses"

	courses, ok := a.courses.Get(key)
	if ok {
		a.metrics.RecordCacheHit("courses")
	} else {
		a.metrics.RecordCacheMiss("courses")
		courses = a.entities.Courses(c.Request.Context())
		a.courses.Set(key, courses)
	}

	names := make([]string, 0, len(courses))
	for _, course := range courses {
		names = append(names, course.Name)
	}
	c.JSON(http.StatusOK, gin.H{"cursos": names})
}

func outcomeLabel(o resolver.Outcome) string {
	switch o {
	case resolver.OutcomeSuccess:
		return "success"
	case resolver.OutcomeDisambiguation:
		return "disambiguation"
	default:
		return "failure"
	}
}

// courseName normalizes the course context: empty and the all-courses
// sentinel both mean "no course".
func courseName(curso string) string {
	if curso == "" || strings.EqualFold(curso, resolver.AllCoursesSentinel) {
		return ""
	}
	return curso
}
