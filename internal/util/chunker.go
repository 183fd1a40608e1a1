package util

import "unicode/utf8"

// ChunkText splits text into contiguous, non-overlapping segments of at most
// maxChars runes. Concatenating the result reproduces text exactly, invalid
// UTF-8 bytes included. Empty input yields a single empty chunk so callers
// always have work to do.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 80000
	}
	if text == "" {
		return []string{""}
	}
	out := make([]string, 0, len(text)/maxChars+1)
	for len(text) > 0 {
		end := runeOffset(text, maxChars)
		out = append(out, text[:end])
		text = text[end:]
	}
	return out
}

// TruncateRunes cuts s to at most maxChars runes and reports whether it did.
// The kept prefix is byte-identical to s.
func TruncateRunes(s string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return s, false
	}
	end := runeOffset(s, maxChars)
	if end == len(s) {
		return s, false
	}
	return s[:end], true
}

// runeOffset returns the byte offset just past the first n runes of s. An
// invalid byte counts as one rune.
func runeOffset(s string, n int) int {
	off := 0
	for i := 0; i < n && off < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[off:])
		off += size
	}
	return off
}
