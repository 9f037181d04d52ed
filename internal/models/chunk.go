// Package models defines core data structures for documents, chunks, retrieval, and chat.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Chunk is a bounded text segment derived from an ingested document. It is the
// unit of retrieval and citation. Chunks are immutable once created and live in
// the external vector index, not in local storage.
type Chunk struct {
	// Fingerprint is the content hash of the owning document.
	Fingerprint string `json:"fingerprint"`
	// Filename is the original upload filename (provenance only, not identity).
	Filename string `json:"filename"`
	// Ordinal is the 0-based position of the chunk within its document.
	// Ordinals are contiguous: a document with N chunks has ordinals 0..N-1.
	Ordinal int `json:"ordinal"`
	// Page is the 1-based source page for display. 0 means the source format
	// has no page concept (plain text, spreadsheets).
	Page int `json:"page,omitempty"`
	// Label is the human-readable provenance string, e.g. "report.pdf (Page 3)".
	Label string `json:"label"`
	// Text is the raw text span.
	Text string `json:"text"`
}

// RefID returns the citation reference identifier for the chunk:
// "{fingerprint}_{ordinal}". It must be byte-identical whether reconstructed
// at ingestion time or at retrieval time; it is the join key between what the
// generator claims to have cited and what was actually retrieved.
func (c *Chunk) RefID() string {
	return FormatRefID(c.Fingerprint, c.Ordinal)
}

// FormatRefID builds a citation reference id from a fingerprint and ordinal.
func FormatRefID(fingerprint string, ordinal int) string {
	return fmt.Sprintf("%s_%d", fingerprint, ordinal)
}

// ParseRefID splits a citation reference id into fingerprint and ordinal.
// The fingerprint itself never contains '_' (hex), so the last separator wins.
func ParseRefID(refID string) (fingerprint string, ordinal int, err error) {
	i := strings.LastIndex(refID, "_")
	if i <= 0 || i == len(refID)-1 {
		return "", 0, fmt.Errorf("malformed ref id: %q", refID)
	}
	ordinal, err = strconv.Atoi(refID[i+1:])
	if err != nil || ordinal < 0 {
		return "", 0, fmt.Errorf("malformed ref id ordinal: %q", refID)
	}
	return refID[:i], ordinal, nil
}

// RetrievedChunk is a similarity search hit: a chunk plus its cosine score.
// It only lives for the duration of one retrieval call.
type RetrievedChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
