// Package extract provides text extraction from uploaded document bytes.
package extract

import (
	"path/filepath"
	"strings"
)

// Page is one extracted text unit. Index is 0-based and only meaningful when
// the source format has a page concept (Result.Paged).
type Page struct {
	Index int
	Text  string
}

// Result is the outcome of extracting a document. Pages are ordered. For
// formats without pages (plain text, spreadsheets), Pages holds a single
// entry and Paged is false.
type Result struct {
	Pages []Page
	Paged bool
}

// Text returns all page text joined with newlines.
func (r *Result) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}

// Empty reports whether extraction produced no usable text.
func (r *Result) Empty() bool {
	for _, p := range r.Pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// Extractor extracts text from document bytes based on declared content type
// and filename extension.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract dispatches on the declared content type first, then the filename
// extension. PDF yields per-page text; DOCX and XLSX are unpacked from their
// container formats; everything else is treated as UTF-8 plain text.
func (e *Extractor) Extract(content []byte, filename, contentType string) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if strings.Contains(contentType, "pdf") || ext == ".pdf" {
		return extractPDF(content)
	}
	switch ext {
	case ".docx":
		return singlePage(extractDOCX(content))
	case ".xlsx":
		return singlePage(extractExcel(content))
	default:
		return singlePage(extractPlain(content))
	}
}

func singlePage(text string, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	return &Result{Pages: []Page{{Index: 0, Text: text}}, Paged: false}, nil
}
