package db

import "strings"

// sanitizeText drops NUL bytes, which Postgres text columns reject.
func sanitizeText(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
