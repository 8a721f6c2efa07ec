package loader

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoad_TextUTF8(t *testing.T) {
	doc, err := New(0).Load("tz.txt", []byte("\xEF\xBB\xBFline one\n\n  line two  \n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasPrefix(doc.RawText, "line one") {
		t.Errorf("BOM not stripped: %q", doc.RawText)
	}
	if len(doc.Requirements) != 2 || doc.Requirements[1] != "line two" {
		t.Errorf("requirements = %q", doc.Requirements)
	}
	if doc.Name != "tz.txt" {
		t.Errorf("name = %q", doc.Name)
	}
}

func TestLoad_TextWindows1251(t *testing.T) {
	const want = "Система должна формировать отчёт."
	data, err := charmap.Windows1251.NewEncoder().String(want)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := New(0).Load("TZ.TXT", []byte(data))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.RawText != want {
		t.Errorf("got %q, want %q", doc.RawText, want)
	}
}

func TestLoad_DOCX(t *testing.T) {
	body := `<w:p><w:r><w:t>1.1 The system must</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve"> export PDF.</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Cell text</w:t><w:tab/><w:t>after tab</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`

	doc, err := New(0).Load("spec.docx", docxBytes(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := "1.1 The system must export PDF.\n\nCell text\tafter tab"
	if doc.RawText != want {
		t.Errorf("got %q, want %q", doc.RawText, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	l := New(16)
	tests := []struct {
		name string
		file string
		data []byte
		want error
	}{
		{"too large", "a.txt", bytes.Repeat([]byte("a"), 17), domain.ErrDocumentTooLarge},
		{"unsupported", "a.odt", []byte("x"), domain.ErrUnsupportedFormat},
		{"no extension", "README", []byte("x"), domain.ErrUnsupportedFormat},
		{"corrupt docx", "a.docx", []byte("not a zip"), domain.ErrInvalidDocument},
		{"corrupt pdf", "a.pdf", []byte("%PDF-garbage"), domain.ErrInvalidDocument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.Load(tc.file, tc.data); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_DOCXWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("word/styles.xml"); err != nil {
		t.Fatal(err)
	}
	_ = zw.Close()

	if _, err := New(0).Load("a.docx", buf.Bytes()); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestLoadReader_EnforcesLimit(t *testing.T) {
	l := New(8)
	_, err := l.LoadReader("a.txt", strings.NewReader(strings.Repeat("x", 100)))
	if !errors.Is(err, domain.ErrDocumentTooLarge) {
		t.Errorf("expected ErrDocumentTooLarge, got %v", err)
	}
	if _, err := l.LoadReader("a.txt", strings.NewReader("12345678")); err != nil {
		t.Errorf("exactly at limit: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "impl.txt")
	if err := os.WriteFile(path, []byte("The module exports PDF."), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := New(0).LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if doc.Name != "impl.txt" || doc.RawText != "The module exports PDF." {
		t.Errorf("unexpected document %+v", doc)
	}
	if _, err := New(0).LoadFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{"a.TXT": true, "b.pdf": true, "c.docx": true, "d.doc": false, "e": false} {
		if got := Supported(name); got != want {
			t.Errorf("Supported(%q) = %v", name, got)
		}
	}
}
