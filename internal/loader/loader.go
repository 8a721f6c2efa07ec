// Package loader extracts plain text from uploaded TXT, PDF and DOCX files.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// DefaultMaxBytes is the upload limit used when none is configured.
const DefaultMaxBytes = 10 << 20

// Loader turns file bytes into a domain.Document.
type Loader struct {
	maxBytes int64
}

// New creates a Loader. maxBytes <= 0 uses DefaultMaxBytes.
func New(maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{maxBytes: maxBytes}
}

// MaxBytes returns the size limit.
func (l *Loader) MaxBytes() int64 { return l.maxBytes }

// Supported reports whether the file extension can be loaded.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".pdf", ".docx":
		return true
	}
	return false
}

// Load extracts the text of a file by its extension.
func (l *Loader) Load(name string, data []byte) (domain.Document, error) {
	if int64(len(data)) > l.maxBytes {
		return domain.Document{}, fmt.Errorf("%s is %d bytes, limit is %d: %w",
			name, len(data), l.maxBytes, domain.ErrDocumentTooLarge)
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".txt":
		text, err = decodeText(data)
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	default:
		return domain.Document{}, fmt.Errorf("%s: %q: %w", name, ext, domain.ErrUnsupportedFormat)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w: %w", name, domain.ErrInvalidDocument, err)
	}
	return domain.NewDocument(name, text), nil
}

// LoadReader reads at most the size limit from r and loads it.
func (l *Loader) LoadReader(name string, r io.Reader) (domain.Document, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	return l.Load(name, data)
}

// LoadFile loads a file from disk.
func (l *Loader) LoadFile(path string) (domain.Document, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return domain.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.LoadReader(filepath.Base(path), f)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText accepts UTF-8 and falls back to Windows-1251, the usual encoding
// of Russian plain-text specifications.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode windows-1251: %w", err)
	}
	return string(out), nil
}

func extractPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(out), nil
}
