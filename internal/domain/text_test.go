package domain

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"  The System   MUST\nexport PDF.  ", "the system must export pdf"},
		{"«Ёлка»", "елка"},
		{"ﬁle", "file"}, // NFKC ligature
		{"...", ""},
	}
	for _, tc := range tests {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestContainsNormalized(t *testing.T) {
	if !ContainsNormalized("The reporting module EXPORTS pdf files.", "exports PDF") {
		t.Error("expected case-insensitive match")
	}
	if ContainsNormalized("anything", "  ") {
		t.Error("blank needle must not match")
	}
	if ContainsNormalized("PDF export", "concurrent users") {
		t.Error("unexpected match")
	}
}
