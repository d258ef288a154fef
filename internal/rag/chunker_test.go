package rag

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func Test_NewChunker_RejectsOverlapGTESize(t *testing.T) {
	t.Parallel()
	if _, err := NewChunker(100, 100); err == nil {
		t.Error("overlap == size accepted")
	}
	if _, err := NewChunker(100, 150); err == nil {
		t.Error("overlap > size accepted")
	}
}

func Test_NewChunker_ZeroSelectsDefaults(t *testing.T) {
	t.Parallel()
	c, err := NewChunker(0, -5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.size != defaultChunkSize || c.overlap != 0 {
		t.Errorf("want %d/0, got %d/%d", defaultChunkSize, c.size, c.overlap)
	}
}

func Test_Split_BlankInput(t *testing.T) {
	t.Parallel()
	c, _ := NewChunker(10, 2)
	if got := c.Split("   \n\t  "); got != nil {
		t.Errorf("blank input produced %d chunks", len(got))
	}
}

func Test_Split_ShortInputSingleChunk(t *testing.T) {
	t.Parallel()
	c, _ := NewChunker(100, 20)
	got := c.Split("  hello world  ")
	if len(got) != 1 || got[0] != "hello world" {
		t.Errorf("want one trimmed chunk, got %q", got)
	}
}

// Test_Split_OverlapWindows verifies consecutive windows share exactly the
// configured overlap and together cover the whole input.
func Test_Split_OverlapWindows(t *testing.T) {
	t.Parallel()
	c, _ := NewChunker(10, 4)
	text := "abcdefghijklmnopqrstuvwxyz"
	got := c.Split(text)

	// step = 6: [0:10] [6:16] [12:22] [18:26]
	want := []string{"abcdefghij", "ghijklmnop", "mnopqrstuv", "stuvwxyz"}
	if len(got) != len(want) {
		t.Fatalf("want %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d: want %q, got %q", i, want[i], got[i])
		}
	}
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if !strings.HasPrefix(cur, prev[len(prev)-4:]) && len(prev) == 10 {
			t.Errorf("chunk %d does not overlap its predecessor", i)
		}
	}
}

// Test_Split_MultiByteRunes verifies windows count runes, not bytes: a
// boundary falling between the bytes of a multi-byte character would leave
// both neighbouring chunks with invalid UTF-8.
func Test_Split_MultiByteRunes(t *testing.T) {
	t.Parallel()
	c, _ := NewChunker(5, 2)
	got := c.Split("ééééééééé")

	// step = 3 runes: [0:5] [3:8] [6:9]
	want := []string{"ééééé", "ééééé", "ééé"}
	if len(got) != len(want) {
		t.Fatalf("want %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range got {
		if !utf8.ValidString(got[i]) {
			t.Errorf("chunk %d is invalid UTF-8: %q", i, got[i])
		}
		if got[i] != want[i] {
			t.Errorf("chunk %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func Test_Split_ExactBoundary(t *testing.T) {
	t.Parallel()
	c, _ := NewChunker(5, 0)
	got := c.Split("abcdefghij")
	if len(got) != 2 || got[0] != "abcde" || got[1] != "fghij" {
		t.Errorf("want [abcde fghij], got %q", got)
	}
}
