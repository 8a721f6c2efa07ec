package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	parenthetical = regexp.MustCompile(`\s*\([^()]*\)`)
	introPhrase   = regexp.MustCompile(`(?i)^(?:in the system|within the system|when developing[^,]*|` +
		`as part of[^,]*|within the framework of[^,]*|в системе|при разработке[^,]*|в рамках[^,]*)\s*,?\s+`)
	sentenceEnd = regexp.MustCompile(`[.!?;](?:\s+|$)`)
)

// Clean turns a requirement paragraph into a single-line statement: numbering,
// parenthetical asides and introductory phrases are removed, and text longer
// than maxChars is cut to its first obligation sentence (or first sentence).
func Clean(text string, maxChars int) string {
	s := strings.Join(strings.Fields(text), " ")
	s = numberPrefix.ReplaceAllString(s, "")
	for {
		next := parenthetical.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	if loc := introPhrase.FindStringIndex(s); loc != nil && loc[1] < len(s) {
		s = upperFirst(s[loc[1]:])
	}
	s = strings.TrimSpace(s)

	if maxChars > 0 && utf8.RuneCountInString(s) > maxChars {
		sentences := splitSentences(s)
		picked := sentences[0]
		for _, sent := range sentences {
			if isFunctionalSentence(sent) {
				picked = sent
				break
			}
		}
		s = picked
	}
	return strings.TrimSpace(s)
}

func splitSentences(s string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(s, -1) {
		if sent := strings.TrimSpace(s[start:loc[1]]); sent != "" {
			out = append(out, sent)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	if len(out) == 0 {
		out = append(out, s)
	}
	return out
}

// FirstSentence returns the first sentence of text, or text itself when it has no terminator.
func FirstSentence(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return ""
	}
	return splitSentences(s)[0]
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}
