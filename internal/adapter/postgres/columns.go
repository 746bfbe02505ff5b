package postgres

import "strings"

// Columns joins column names for RETURNING clauses.
func Columns(cols []string) string {
	return strings.Join(cols, ", ")
}
