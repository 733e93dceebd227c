package results

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asistenteia/moodle-nlq-go/internal/lmsdb"
)

func TestSerializeTranslatesColumns(t *testing.T) {
	rs := &lmsdb.ResultSet{
		Columns: []string{"firstname", "lastname", "finalgrade"},
		Rows: []map[string]any{
			{"firstname": "Ana", "lastname": "García", "finalgrade": 8.5},
		},
	}

	rows := Serialize(rs)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana", rows[0]["Nombre"])
	assert.Equal(t, "García", rows[0]["Apellido"])
	assert.Equal(t, 8.5, rows[0]["Nota"])
}

func TestSerializeCountColumnsBecomeCantidad(t *testing.T) {
	rs := &lmsdb.ResultSet{
		Columns: []string{"COUNT(*)"},
		Rows:    []map[string]any{{"COUNT(*)": int64(42)}},
	}

	rows := Serialize(rs)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(42), rows[0]["Cantidad"])
}

func TestSerializeFormatsTimestamps(t *testing.T) {
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.Local)
	rs := &lmsdb.ResultSet{
		Columns: []string{"duedate", "ultima_conexion"},
		Rows: []map[string]any{
			{"duedate": ts.Unix(), "ultima_conexion": float64(ts.Unix())},
		},
	}

	rows := Serialize(rs)
	require.Len(t, rows, 1)
	assert.Equal(t, "15/03/2026 10:30", rows[0]["Fecha de Finalización"])
	assert.Equal(t, "15/03/2026 10:30", rows[0]["Última conexión"])
}

func TestSerializeLeavesZeroTimestampAlone(t *testing.T) {
	rs := &lmsdb.ResultSet{
		Columns: []string{"duedate"},
		Rows:    []map[string]any{{"duedate": int64(0)}},
	}

	rows := Serialize(rs)
	assert.Equal(t, int64(0), rows[0]["Fecha de Finalización"])
}

func TestSerializeTranslatesModuleNames(t *testing.T) {
	rs := &lmsdb.ResultSet{
		Columns: []string{"tipo_recurso", "cantidad"},
		Rows: []map[string]any{
			{"tipo_recurso": "quiz", "cantidad": int64(3)},
			{"tipo_recurso": "workshop", "cantidad": int64(1)},
		},
	}

	rows := Serialize(rs)
	require.Len(t, rows, 2)
	assert.Equal(t, "Cuestionario", rows[0]["Tipo de recurso"])
	assert.Equal(t, "workshop", rows[1]["Tipo de recurso"])
}

func TestSerializeKeepsUnknownColumns(t *testing.T) {
	rs := &lmsdb.ResultSet{
		Columns: []string{"shortname"},
		Rows:    []map[string]any{{"shortname": "MAT1"}},
	}

	rows := Serialize(rs)
	assert.Equal(t, "MAT1", rows[0]["shortname"])
}

func TestColumnsPreserveOrder(t *testing.T) {
	rs := &lmsdb.ResultSet{
		Columns: []string{"fullname", "count(id)", "duedate", "shortname"},
	}

	assert.Equal(t,
		[]string{"Curso", "Cantidad", "Fecha de Finalización", "shortname"},
		Columns(rs))
}
