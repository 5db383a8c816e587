package db

import "strings"

const likeEscapeChar = "!"

var likeEscaper = strings.NewReplacer(
	likeEscapeChar, likeEscapeChar+likeEscapeChar,
	"%", likeEscapeChar+"%",
	"_", likeEscapeChar+"_",
)

// ContainsPattern lowercases search and wraps it for a substring LIKE match.
// Wildcards in search match literally; pair it with ContainsAny.
func ContainsPattern(search string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
}

// ContainsAny builds "LOWER(col) LIKE ? ESCAPE '!'" joined by OR, one placeholder per column.
func ContainsAny(columns ...string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = "LOWER(" + col + ") LIKE ? ESCAPE '" + likeEscapeChar + "'"
	}
	return strings.Join(parts, " OR ")
}

// ContainsArgs repeats pattern once per column for ContainsAny.
func ContainsArgs(pattern string, columns int) []any {
	args := make([]any, columns)
	for i := range args {
		args[i] = pattern
	}
	return args
}
