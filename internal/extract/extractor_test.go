package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxDocumentXMLPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_plainText(t *testing.T) {
	e := NewExtractor()
	res, err := e.Extract([]byte("hello world"), "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Paged {
		t.Error("plain text should not be paged")
	}
	if res.Text() != "hello world" {
		t.Errorf("Text: got %q", res.Text())
	}
	if res.Empty() {
		t.Error("should not be empty")
	}
}

func TestExtract_invalidUTF8Replaced(t *testing.T) {
	e := NewExtractor()
	res, err := e.Extract([]byte{'o', 'k', 0xff, 0xfe}, "raw.txt", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(res.Text(), "ok") {
		t.Errorf("got %q", res.Text())
	}
	if !strings.Contains(res.Text(), "�") {
		t.Errorf("invalid bytes should be replaced: %q", res.Text())
	}
}

func TestExtract_docx(t *testing.T) {
	e := NewExtractor()
	xml := `<?xml version="1.0"?><w:document><w:body><w:p w:rsidR="00A"><w:r><w:t>First</w:t></w:r><w:r><w:t xml:space="preserve">second</w:t></w:r></w:p></w:body></w:document>`
	res, err := e.Extract(buildDocx(t, xml), "memo.docx", "application/octet-stream")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text() != "First second" {
		t.Errorf("got %q", res.Text())
	}
}

func TestExtract_docxNotAZip(t *testing.T) {
	e := NewExtractor()
	if _, err := e.Extract([]byte("garbage"), "memo.docx", ""); err == nil {
		t.Error("expected error for non-zip docx")
	}
}

func TestExtract_xlsx(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "budget"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "42"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	e := NewExtractor()
	res, err := e.Extract(buf.Bytes(), "sheet.xlsx", "")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(res.Text(), "budget") || !strings.Contains(res.Text(), "42") {
		t.Errorf("got %q", res.Text())
	}
	if res.Paged {
		t.Error("xlsx should not be paged")
	}
}

func TestExtract_pdfByContentType(t *testing.T) {
	// Dispatch is driven by content type even without a .pdf extension;
	// malformed bytes surface as an extraction error.
	e := NewExtractor()
	if _, err := e.Extract([]byte("not a pdf"), "upload.bin", "application/pdf"); err == nil {
		t.Error("expected error for malformed PDF")
	}
}

func TestResult_empty(t *testing.T) {
	r := &Result{Pages: []Page{{Index: 0, Text: "  \n\t "}, {Index: 1, Text: ""}}, Paged: true}
	if !r.Empty() {
		t.Error("whitespace-only result should be empty")
	}
	r.Pages[1].Text = "x"
	if r.Empty() {
		t.Error("result with text should not be empty")
	}
}
