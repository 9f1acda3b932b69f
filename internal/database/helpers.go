package database

import "strings"

// prefixColumns qualifies each column in a comma-separated list with a table
// alias, for queries that join another table.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
