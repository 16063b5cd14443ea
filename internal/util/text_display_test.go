package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDisplaySnippet(t *testing.T) {
	in := "Indenização\x00   por danos \n\t morais"
	out := DisplaySnippet(in, 100)
	if out == "" {
		t.Fatalf("expected non-empty snippet")
	}
	if strings.Contains(out, "\x00") {
		t.Fatalf("snippet still contains NUL byte")
	}
}

func TestDisplaySnippetCapsLength(t *testing.T) {
	in := strings.Repeat("acórdão ", 200)
	out := DisplaySnippet(in, 50)
	if len([]rune(out)) > 54 {
		t.Fatalf("snippet not capped: %d runes", len([]rune(out)))
	}
}

func TestTruncateRunesKeepsValidUTF8(t *testing.T) {
	in := strings.Repeat("ação é indenização. ", 100)
	out := TruncateRunes(in, 33)
	if got := len([]rune(out)); got != 33 {
		t.Fatalf("expected 33 runes, got %d", got)
	}
	if !utf8.ValidString(out) {
		t.Fatal("truncation produced invalid UTF-8")
	}
	if short := TruncateRunes("réu", 10); short != "réu" {
		t.Fatalf("short input must pass through, got %q", short)
	}
}
