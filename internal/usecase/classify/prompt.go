package classify

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const extractionPrompt = `You are analysing a requirements specification.
List every functional and non-functional requirement stated in the document below.
Rules:
- one requirement per line, each line starting with "REQ: "
- keep the wording of the document, one sentence per requirement
- skip examples, notes, comments and reference material
- do not repeat a requirement
- output nothing except the REQ lines

Document:
%s`

// ExtractionPrompt renders the extraction prompt, truncating the document to maxChars runes.
func ExtractionPrompt(text string, maxChars int) string {
	return fmt.Sprintf(extractionPrompt, truncateRunes(strings.TrimSpace(text), maxChars))
}

var (
	reqLine    = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?(?:\*\*)?(?:req|requirement|требование)(?:\*\*)?\s*[:：]\s*(.+)$`)
	bulletLine = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
)

// ParseExtraction pulls requirement lines out of a model answer. Lines carrying the
// REQ marker win; when the model ignored the marker, bullet and numbered lines are used.
func ParseExtraction(answer string) []string {
	lines := strings.Split(strings.ReplaceAll(answer, "\r\n", "\n"), "\n")

	var marked, bulleted []string
	for _, l := range lines {
		if m := reqLine.FindStringSubmatch(l); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				marked = append(marked, s)
			}
			continue
		}
		if m := bulletLine.FindStringSubmatch(l); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				bulleted = append(bulleted, s)
			}
		}
	}
	if len(marked) > 0 {
		return marked
	}
	return bulleted
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
