package util

import "testing"

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	out := SanitizeText(in)
	if out != "abcd\n\txy" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}

func TestSanitizeTextDropsInvalidUTF8(t *testing.T) {
	in := "Term\xff\xfe: 12 months"
	out := SanitizeText(in)
	if out != "Term: 12 months" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}
