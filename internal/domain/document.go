package domain

import "strings"

// Document is a loaded input file: its plain text and the trivial line split of it.
// Immutable after construction.
type Document struct {
	Name         string
	RawText      string
	Requirements []string
}

// NewDocument builds a Document from extracted plain text.
func NewDocument(name, raw string) Document {
	lines := strings.Split(raw, "\n")
	reqs := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			reqs = append(reqs, l)
		}
	}
	return Document{Name: name, RawText: raw, Requirements: reqs}
}

// IsBlank reports whether the document carries no visible text.
func (d Document) IsBlank() bool {
	return strings.TrimSpace(d.RawText) == ""
}
