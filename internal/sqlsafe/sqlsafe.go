// Package sqlsafe is the read-only gate for every SQL statement the service
// produces. Nothing reaches the database without passing IsReadOnly on the
// fully substituted statement.
package sqlsafe

import (
	"regexp"
	"strings"
)

var (
	readOnlyRe = regexp.MustCompile(`(?i)^\s*(SELECT|WITH)\b`)
	fenceRe    = regexp.MustCompile(`(?s)^\x60\x60\x60(\w+)?\s*|\s*\x60\x60\x60$`)
	fromReadRe = regexp.MustCompile(`(?is)((SELECT|WITH)\b[\s\S]+)$`)
	commentRe  = regexp.MustCompile(`^\s*(--|#)`)
)

// IsReadOnly reports whether every non-empty statement in sql begins with
// SELECT or WITH (case-insensitive, whitespace-tolerant). Empty or
// whitespace-only input is not read-only: the gate fails closed.
func IsReadOnly(sql string) bool {
	if sql == "" {
		return false
	}

	found := false
	for _, part := range strings.Split(sql, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !readOnlyRe.MatchString(part) {
			return false
		}
		found = true
	}
	return found
}

// CleanModelOutput normalizes raw text returned by a generative model into a
// bare SQL candidate: code fences are removed, everything before the first
// SELECT/WITH is dropped, and comment-only lines are stripped. The result
// still has to pass IsReadOnly; this only removes decoration.
func CleanModelOutput(s string) string {
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(s)
	s = fenceRe.ReplaceAllString(s, "")

	if m := fromReadRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		if commentRe.MatchString(ln) {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
