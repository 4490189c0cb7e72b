// Package sentinel defines the single absence predicate shared by the table
// loaders, mapping engine, and extraction engine.
package sentinel

import "strings"

// Value is the sentinel token the table loaders fill missing cells with.
const Value = "none"

// IsAbsent reports whether v should be treated as absent: empty, whitespace,
// or the case-insensitive tokens "none"/"nan".
func IsAbsent(v string) bool {
	t := strings.ToLower(strings.TrimSpace(v))
	return t == "" || t == "none" || t == "nan"
}
