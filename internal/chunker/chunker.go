// Package chunker splits extracted document text into overlapping, ordered
// segments stamped with provenance metadata for citation.
package chunker

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
)

// separators is the boundary preference order: paragraph, line, sentence,
// word. The empty separator means a hard character cut, used only when no
// softer boundary exists inside an oversized span.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits text into segments of at most chunkSize characters with
// chunkOverlap characters carried between consecutive segments.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ChunkDocument converts an extraction result into stamped chunks. Ordinals
// are assigned in emission order, 0-based and contiguous across the whole
// document; chunks never straddle page boundaries. The ordinal sequence here
// is the one citation reconciliation reconstructs at retrieval time, so the
// assignment must stay deterministic.
func (c *Chunker) ChunkDocument(fingerprint, filename string, res *extract.Result) []models.Chunk {
	var chunks []models.Chunk
	ordinal := 0
	for _, page := range res.Pages {
		for _, text := range c.Split(page.Text) {
			chunk := models.Chunk{
				Fingerprint: fingerprint,
				Filename:    filename,
				Ordinal:     ordinal,
				Text:        text,
				Label:       filename,
			}
			if res.Paged {
				chunk.Page = page.Index + 1
				chunk.Label = fmt.Sprintf("%s (Page %d)", filename, chunk.Page)
			}
			chunks = append(chunks, chunk)
			ordinal++
		}
	}
	return chunks
}

// Split splits text into ordered segments of at most chunkSize characters,
// preferring paragraph, then line, then sentence, then word boundaries, and
// falling back to a hard cut. Consecutive segments share roughly chunkOverlap
// characters of context.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.splitRecursive(text, separators)
}

func (c *Chunker) splitRecursive(text string, seps []string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, s := range seps {
		if s == "" {
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return c.hardCut(text)
	}
	return c.merge(strings.SplitAfter(text, sep), rest)
}

// merge accumulates boundary-separated parts into chunks of at most chunkSize,
// carrying an overlap tail from one chunk into the next. Parts that are
// individually oversized are split again with the remaining separators.
func (c *Chunker) merge(parts []string, rest []string) []string {
	var chunks []string
	var cur strings.Builder
	carried := 0 // length of overlap text at the start of cur

	// emit appends cur as a chunk unless it holds nothing beyond carried
	// overlap, which would duplicate text already emitted.
	emit := func() {
		if cur.Len() <= carried {
			return
		}
		if trimmed := strings.TrimSpace(cur.String()); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	for _, part := range parts {
		if len(part) > c.chunkSize {
			emit()
			cur.Reset()
			sub := c.splitRecursive(strings.TrimSpace(part), rest)
			chunks = append(chunks, sub...)
			carried = 0
			if len(sub) > 0 {
				tail := c.overlapTail(sub[len(sub)-1])
				cur.WriteString(tail)
				carried = len(tail)
			}
			continue
		}
		if cur.Len()+len(part) > c.chunkSize {
			tail := c.overlapTail(cur.String())
			emit()
			cur.Reset()
			carried = 0
			// Drop the overlap when it would push the next part over the limit.
			if len(tail)+len(part) <= c.chunkSize {
				cur.WriteString(tail)
				carried = len(tail)
			}
		}
		cur.WriteString(part)
	}
	emit()
	return chunks
}

// hardCut splits text into chunkSize windows advanced by chunkSize-chunkOverlap.
// Windows are measured in runes so multi-byte text is never severed mid-character.
func (c *Chunker) hardCut(text string) []string {
	runes := []rune(text)
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = c.chunkSize
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// overlapTail returns the last chunkOverlap runes of s, preferring to start at
// a word boundary so carried context reads naturally.
func (c *Chunker) overlapTail(s string) string {
	if c.chunkOverlap == 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= c.chunkOverlap {
		return s
	}
	tail := string(runes[len(runes)-c.chunkOverlap:])
	if i := strings.IndexByte(tail, ' '); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return tail
}
