// Package catalog holds the static set of pre-authored question→SQL
// templates and the literal fuzzy matcher over them.
//
// The catalog file is the same JSON shape the authoring side maintains:
// four groups (general / per-course, each with a plain and an AI-analysis
// variant). It is loaded once at startup and treated as immutable.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Template is one pre-authored question with its SQL template.
// Entries with a Description are AI-analysis questions: the fetched rows are
// summarized by the generative capability using Description as instruction.
type Template struct {
	Phrase      string `json:"pregunta"`
	SQL         string `json:"sql"`
	Explanation string `json:"explicacion,omitempty"`
	Description string `json:"descripcion,omitempty"`
}

// IsAI reports whether this template triggers the AI-analysis branch.
func (t Template) IsAI() bool {
	return t.Description != ""
}

// Catalog is the full template set, partitioned by scope and variant.
type Catalog struct {
	General     []Template `json:"generales"`
	GeneralAI   []Template `json:"generales_ia"`
	PerCourse   []Template `json:"por_curso"`
	PerCourseAI []Template `json:"por_curso_ia"`
}

// Load reads and parses the catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// All returns every template that carries SQL, across all partitions.
func (c *Catalog) All() []Template {
	return c.collect(c.General, c.PerCourse, c.GeneralAI, c.PerCourseAI)
}

// GeneralPartition returns platform-scope templates (plain + AI variants).
func (c *Catalog) GeneralPartition() []Template {
	return c.collect(c.General, c.GeneralAI)
}

// PerCoursePartition returns course-scope templates (plain + AI variants).
func (c *Catalog) PerCoursePartition() []Template {
	return c.collect(c.PerCourse, c.PerCourseAI)
}

func (c *Catalog) collect(groups ...[]Template) []Template {
	var out []Template
	for _, g := range groups {
		for _, t := range g {
			if t.SQL != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// Phrases returns the phrase text of each template, in order.
func Phrases(ts []Template) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Phrase
	}
	return out
}
