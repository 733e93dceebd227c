// Package results turns raw query rows into the response payload: Spanish
// column names, Unix timestamps rendered as dates and module identifiers
// translated for display.
package results

import (
	"strings"
	"time"

	"github.com/asistenteia/moodle-nlq-go/internal/lmsdb"
)

// dateLayout is the display format for timestamp columns.
const dateLayout = "02/01/2006 15:04"

// columnNames maps raw schema column names to their display names.
var columnNames = map[string]string{
	"firstname":        "Nombre",
	"lastname":         "Apellido",
	"message":          "Mensaje",
	"fecha":            "Fecha",
	"finalgrade":       "Nota",
	"promedio":         "Promedio",
	"fullname":         "Curso",
	"ultima_conexion":  "Última conexión",
	"primera_conexion": "Primera conexión",
	"accesos":          "Cantidad de accesos",
	"tipo_recurso":     "Tipo de recurso",
	"cantidad":         "Cantidad",
	"duedate":          "Fecha de Finalización",
}

// moduleNames maps Moodle module identifiers to display names.
var moduleNames = map[string]string{
	"forum":    "Foro",
	"assign":   "Tarea",
	"resource": "Archivo",
	"quiz":     "Cuestionario",
}

// timestampHints mark column names holding Unix timestamps.
var timestampHints = []string{"fecha", "time", "conexion", "due", "created"}

// Serialize converts a result set into display rows. Column keys are
// translated to Spanish, COUNT(*) style columns collapse to "cantidad", and
// integer seconds in timestamp columns become formatted dates.
func Serialize(rs *lmsdb.ResultSet) []map[string]any {
	rows := make([]map[string]any, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		out := make(map[string]any, len(row))
		for key, value := range row {
			name := normalizeKey(key)
			if isTimestampColumn(name) {
				value = formatTimestamp(value)
			}
			display := columnNames[name]
			if display == "" {
				display = name
			}
			if display == "Tipo de recurso" {
				value = translateModule(value)
			}
			out[display] = value
		}
		rows = append(rows, out)
	}
	return rows
}

// Columns translates a column list the same way Serialize translates row
// keys, preserving the statement's column order for tabular rendering.
func Columns(rs *lmsdb.ResultSet) []string {
	cols := make([]string, 0, len(rs.Columns))
	for _, c := range rs.Columns {
		name := normalizeKey(c)
		if display := columnNames[name]; display != "" {
			name = display
		}
		cols = append(cols, name)
	}
	return cols
}

// normalizeKey collapses count expressions to "cantidad" so COUNT(*) and
// aliased counts render under the same name.
func normalizeKey(key string) string {
	if strings.Contains(strings.ToLower(key), "count") {
		return "cantidad"
	}
	return key
}

func isTimestampColumn(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range timestampHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// formatTimestamp renders numeric Unix seconds as a date. Non-numeric and
// non-positive values pass through untouched, so NULL duedates stay as-is.
func formatTimestamp(value any) any {
	var seconds int64
	switch v := value.(type) {
	case int64:
		seconds = v
	case int:
		seconds = int64(v)
	case float64:
		seconds = int64(v)
	case time.Time:
		return v.Format(dateLayout)
	default:
		return value
	}
	if seconds <= 0 {
		return value
	}
	return time.Unix(seconds, 0).Format(dateLayout)
}

func translateModule(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if name, ok := moduleNames[strings.ToLower(s)]; ok {
		return name
	}
	return value
}
