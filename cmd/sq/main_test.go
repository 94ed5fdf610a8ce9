package main

import (
	"strings"
	"testing"
)

func TestClampRunes(t *testing.T) {
	if got := clampRunes("breve", 10); got != "breve" {
		t.Fatalf("short input changed: %q", got)
	}
	long := strings.Repeat("è", maxNotesLen+40)
	got := clampRunes(long, maxNotesLen)
	if n := len([]rune(got)); n != maxNotesLen {
		t.Fatalf("clamped to %d runes, want %d", n, maxNotesLen)
	}
	if got := clampRunes(strings.Repeat("a", maxAccessLen), maxAccessLen); len(got) != maxAccessLen {
		t.Fatalf("exact-length input changed: %d", len(got))
	}
}
