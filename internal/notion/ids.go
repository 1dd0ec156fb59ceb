package notion

import (
	"regexp"
	"strings"
)

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Undash strips all dashes from a Notion object ID and lowercases it.
func Undash(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}

// Dash converts a 32-hex Notion ID into its dash-grouped UUID form.
// Input that is not 32 hex characters after undashing is returned
// unchanged, which makes Dash idempotent on well-formed UUIDs.
func Dash(id string) string {
	u := Undash(id)
	if !hex32.MatchString(u) {
		return id
	}
	return u[:8] + "-" + u[8:12] + "-" + u[12:16] + "-" + u[16:20] + "-" + u[20:]
}

// IsObjectID reports whether s looks like a Notion object ID (32 hex
// characters, dashed or not) rather than a human-readable name.
func IsObjectID(s string) bool {
	return hex32.MatchString(Undash(s))
}
