package placas

import (
	"regexp"
	"strings"
)

// plateLength is the only accepted length for a normalized Brazilian plate,
// covering both the legacy (AAA9999) and Mercosul (AAA9A99) formats.
const plateLength = 7

var nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9]`)

// Normalize uppercases a raw plate and strips separators and any other
// non-alphanumeric characters. Idempotent.
func Normalize(raw string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToUpper(raw), "")
}

// ValidPlate reports whether a normalized plate has the accepted length.
func ValidPlate(normalized string) bool {
	return len(normalized) == plateLength
}
