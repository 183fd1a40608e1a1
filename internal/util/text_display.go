package util

import (
	"strings"
	"unicode"
)

// Preview returns a single-line, printable excerpt of s capped at maxRunes,
// suitable for debug logs of model output or contract text.
func Preview(s string, maxRunes int) string {
	return trimClean(s, maxRunes)
}

func trimClean(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 240
	}
	s = SanitizeText(s)
	s = normalizeWhitespace(s)

	out := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsPrint(r) {
			continue
		}
		out = append(out, r)
	}
	trimmed := strings.TrimSpace(string(out))
	runes := []rune(trimmed)
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return trimmed
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
