// Package lmsdb is the read-only access layer over the LMS database.
// Queries always run through Execute, which returns generic rows so the
// serialization layer can post-process column values uniformly.
package lmsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	apperrors "github.com/asistenteia/moodle-nlq-go/internal/errors"
)

// Store wraps the SQL connection pool together with the table prefix.
type Store struct {
	db     *sql.DB
	prefix string
}

// Open connects to the LMS database and verifies the connection.
// driver is "mysql" for a live Moodle instance or "sqlite" for local runs.
func Open(driver, dsn, prefix string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, apperrors.NewDatabaseError("open", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewDatabaseError("ping", err)
	}
	return &Store{db: db, prefix: prefix}, nil
}

// NewWithDB wraps an existing pool, for tests.
func NewWithDB(db *sql.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

// Prefix returns the configured table prefix (e.g. "mdl_").
func (s *Store) Prefix() string { return s.prefix }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks database liveness.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewDatabaseError("ping", err)
	}
	return nil
}

// Execute runs a query and materializes every row as a column→value map.
// Column order is preserved separately via Columns on the result.
func (s *Store) Execute(ctx context.Context, query string, params []any) (*ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewDatabaseError("columns", err)
	}

	rs := &ResultSet{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.NewDatabaseError("scan", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("rows", err)
	}
	return rs, nil
}

// ResultSet holds query output with stable column ordering.
type ResultSet struct {
	Columns []string
	Rows    []map[string]any
}

// NamedEntity is a course, quiz or assignment reference used by the
// entity resolver and the course listing endpoint.
type NamedEntity struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

// ListCourses returns every visible course, newest first.
func (s *Store) ListCourses(ctx context.Context) ([]NamedEntity, error) {
	q := fmt.Sprintf(
		"SELECT id, fullname FROM %scourse WHERE id <> 1 AND visible = 1 ORDER BY id DESC",
		s.prefix)
	return s.listNamed(ctx, q)
}

// ListQuizzes returns the quizzes of one course.
func (s *Store) ListQuizzes(ctx context.Context, courseID int64) ([]NamedEntity, error) {
	q := fmt.Sprintf("SELECT id, name FROM %squiz WHERE course = ? ORDER BY id", s.prefix)
	return s.listNamed(ctx, q, courseID)
}

// ListAssignments returns the assignments of one course.
func (s *Store) ListAssignments(ctx context.Context, courseID int64) ([]NamedEntity, error) {
	q := fmt.Sprintf("SELECT id, name FROM %sassign WHERE course = ? ORDER BY id", s.prefix)
	return s.listNamed(ctx, q, courseID)
}

func (s *Store) listNamed(ctx context.Context, query string, args ...any) ([]NamedEntity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query", err)
	}
	defer rows.Close()

	var out []NamedEntity
	for rows.Next() {
		var e NamedEntity
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, apperrors.NewDatabaseError("scan", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("rows", err)
	}
	return out, nil
}
