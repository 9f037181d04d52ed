package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/extract"
)

func TestSplit_shortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	got := c.Split("Project Alpha failed due to lack of budget.")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0] != "Project Alpha failed due to lack of budget." {
		t.Errorf("chunk altered: %q", got[0])
	}
}

func TestSplit_emptyAndWhitespace(t *testing.T) {
	c := NewChunker(1000, 200)
	if got := c.Split(""); got != nil {
		t.Errorf("empty text: got %v", got)
	}
	if got := c.Split("  \n\t "); got != nil {
		t.Errorf("whitespace text: got %v", got)
	}
}

func TestSplit_respectsMaxSize(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("word ", 200)
	for i, chunk := range c.Split(text) {
		if len(chunk) > 100 {
			t.Errorf("chunk %d exceeds max size: %d chars", i, len(chunk))
		}
	}
}

func TestSplit_prefersParagraphBoundaries(t *testing.T) {
	c := NewChunker(60, 10)
	text := "First paragraph with some words in it.\n\nSecond paragraph here."
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected split at paragraph boundary, got %d chunks", len(chunks))
	}
	if !strings.HasPrefix(chunks[0], "First paragraph") {
		t.Errorf("first chunk: %q", chunks[0])
	}
	if !strings.Contains(strings.Join(chunks, " "), "Second paragraph here.") {
		t.Errorf("second paragraph lost: %v", chunks)
	}
}

func TestSplit_overlapBetweenChunks(t *testing.T) {
	c := NewChunker(100, 30)
	// Sentences small enough to merge, text long enough to need several chunks.
	text := strings.TrimSpace(strings.Repeat("The quick brown fox jumps over the dog. ", 10))
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Consecutive chunks should share carried context.
	for i := 1; i < len(chunks); i++ {
		head := chunks[i]
		if len(head) > 30 {
			head = head[:30]
		}
		prev := chunks[i-1]
		if !strings.Contains(prev, strings.Fields(head)[0]) {
			t.Errorf("chunk %d shares no context with predecessor:\nprev=%q\nnext=%q", i, prev, chunks[i])
		}
	}
}

func TestSplit_hardCutWhenNoBoundaries(t *testing.T) {
	c := NewChunker(50, 10)
	text := strings.Repeat("x", 180)
	chunks := c.Split(text)
	if len(chunks) < 3 {
		t.Fatalf("expected hard-cut chunks, got %d", len(chunks))
	}
	var joined strings.Builder
	for i, chunk := range chunks {
		if len(chunk) > 50 {
			t.Errorf("chunk %d too long: %d", i, len(chunk))
		}
		joined.WriteString(chunk)
	}
	if !strings.Contains(joined.String(), strings.Repeat("x", 50)) {
		t.Error("hard cut lost content")
	}
}

func TestSplit_multibyteHardCutOnRuneBoundaries(t *testing.T) {
	c := NewChunker(1000, 200)
	// CJK text has no paragraph, line, sentence or space separators, so the
	// splitter must fall through to the hard cut.
	text := strings.Repeat("日本語の文章", 100)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d contains invalid UTF-8: %q...", i, chunk[:12])
		}
		if n := utf8.RuneCountInString(chunk); n > 1000 {
			t.Errorf("chunk %d exceeds max size: %d runes", i, n)
		}
	}
	if !strings.HasPrefix(chunks[1], "日") && !strings.HasPrefix(chunks[1], "本") &&
		!strings.HasPrefix(chunks[1], "語") && !strings.HasPrefix(chunks[1], "の") &&
		!strings.HasPrefix(chunks[1], "文") && !strings.HasPrefix(chunks[1], "章") {
		t.Errorf("chunk 1 starts mid-rune: %q...", chunks[1][:12])
	}
}

func TestSplit_noContentLost(t *testing.T) {
	c := NewChunker(80, 16)
	text := "Alpha one. Beta two. Gamma three. Delta four. Epsilon five. Zeta six. Eta seven. Theta eight."
	chunks := c.Split(text)
	all := strings.Join(chunks, " ")
	for _, word := range strings.Fields(text) {
		if !strings.Contains(all, strings.TrimSuffix(word, ".")) {
			t.Errorf("word %q missing from chunks", word)
		}
	}
}

func TestChunkDocument_ordinalContinuity(t *testing.T) {
	c := NewChunker(50, 10)
	res := &extract.Result{
		Paged: true,
		Pages: []extract.Page{
			{Index: 0, Text: strings.Repeat("alpha beta gamma. ", 10)},
			{Index: 1, Text: strings.Repeat("delta epsilon. ", 10)},
		},
	}
	chunks := c.ChunkDocument("fp123", "report.pdf", res)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, chunk := range chunks {
		if chunk.Ordinal != i {
			t.Errorf("ordinal %d at position %d: not contiguous", chunk.Ordinal, i)
		}
		if chunk.Fingerprint != "fp123" {
			t.Errorf("chunk %d missing fingerprint", i)
		}
		if chunk.Page < 1 || chunk.Page > 2 {
			t.Errorf("chunk %d page out of range: %d", i, chunk.Page)
		}
	}
	first, last := chunks[0], chunks[len(chunks)-1]
	if first.Label != "report.pdf (Page 1)" {
		t.Errorf("first label: %q", first.Label)
	}
	if last.Page != 2 {
		t.Errorf("last chunk should come from page 2, got %d", last.Page)
	}
}

func TestChunkDocument_unpagedHasNoPage(t *testing.T) {
	c := NewChunker(1000, 200)
	res := &extract.Result{
		Paged: false,
		Pages: []extract.Page{{Index: 0, Text: "plain text body"}},
	}
	chunks := c.ChunkDocument("fp", "notes.txt", res)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Page != 0 {
		t.Errorf("unpaged chunk should have no page, got %d", chunks[0].Page)
	}
	if chunks[0].Label != "notes.txt" {
		t.Errorf("label: %q", chunks[0].Label)
	}
}

func TestChunkDocument_deterministic(t *testing.T) {
	c := NewChunker(100, 20)
	res := &extract.Result{Pages: []extract.Page{{Index: 0, Text: strings.Repeat("stable output. ", 30)}}}
	a := c.ChunkDocument("fp", "f.txt", res)
	b := c.ChunkDocument("fp", "f.txt", res)
	if len(a) != len(b) {
		t.Fatalf("nondeterministic chunk count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].RefID() != b[i].RefID() {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}
