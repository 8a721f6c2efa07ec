// Package scoring computes the lexical compliance report of a finished run.
package scoring

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

const (
	keywordWeight  = 0.7
	sequenceWeight = 0.3
	minWordRunes   = 3
)

// Conclusions by score band.
const (
	ConclusionExcellent    = "excellent: the implementation covers the requirements almost completely"
	ConclusionGood         = "good: most requirements are covered"
	ConclusionSatisfactory = "satisfactory: a substantial share of requirements is covered"
	ConclusionPoor         = "poor: most requirements are not covered"
	ConclusionCritical     = "critical: the implementation does not reflect the requirements"
)

// Aggregate scores every verdict's requirement against the indexed chunks and
// combines the scores into a criticality-weighted total.
func Aggregate(verdicts []domain.Verdict, chunks []domain.Chunk) domain.Report {
	docs := make([]document, len(chunks))
	vocab := make(map[string]struct{})
	for i := range chunks {
		docs[i] = newDocument(chunks[i].Content)
		for _, w := range docs[i].words {
			vocab[w] = struct{}{}
		}
	}

	report := domain.Report{PerRequirement: make([]domain.RequirementScore, len(verdicts))}
	var weighted, weights float64
	for i, v := range verdicts {
		match := matchPercent(v.Requirement, docs, vocab)
		w := Weight(v.Status.Criticality)
		report.PerRequirement[i] = domain.RequirementScore{
			Requirement:  v.Requirement,
			Status:       v.Status.Status,
			Criticality:  v.Status.Criticality,
			MatchPercent: round1(match),
			Weight:       w,
		}
		weighted += w * match
		weights += w
	}
	if weights > 0 {
		report.TotalCompliance = round1(weighted / weights)
	}
	report.Conclusion = Conclusion(report.TotalCompliance)
	return report
}

// Weight is the share of a requirement in the total: critical 2.0, high 1.5, others 1.0.
func Weight(c domain.Criticality) float64 {
	switch c {
	case domain.CriticalityCritical:
		return 2.0
	case domain.CriticalityHigh:
		return 1.5
	default:
		return 1.0
	}
}

// Conclusion maps a 0-100 score onto its band.
func Conclusion(score float64) string {
	switch {
	case score >= 90:
		return ConclusionExcellent
	case score >= 75:
		return ConclusionGood
	case score >= 50:
		return ConclusionSatisfactory
	case score >= 25:
		return ConclusionPoor
	default:
		return ConclusionCritical
	}
}

type document struct {
	normalized string
	words      []string
}

func newDocument(text string) document {
	n := domain.NormalizeText(text)
	return document{normalized: n, words: Words(n)}
}

// matchPercent is 100 for a literal occurrence, otherwise
// 100 * (0.7 * keyword overlap + 0.3 * longest common word run / requirement words).
func matchPercent(requirement string, docs []document, vocab map[string]struct{}) float64 {
	norm := domain.NormalizeText(requirement)
	if norm == "" {
		return 0
	}
	for _, d := range docs {
		if strings.Contains(d.normalized, norm) {
			return 100
		}
	}

	words := Words(norm)
	if len(words) == 0 {
		return 0
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	var found int
	for w := range unique {
		if _, ok := vocab[w]; ok {
			found++
		}
	}
	overlap := float64(found) / float64(len(unique))

	var longest int
	for _, d := range docs {
		if len(d.words) == 0 {
			continue
		}
		for _, b := range difflib.NewMatcher(d.words, words).GetMatchingBlocks() {
			if b.Size > longest {
				longest = b.Size
			}
		}
	}
	sequence := float64(longest) / float64(len(words))

	return 100 * (keywordWeight*overlap + sequenceWeight*sequence)
}

// Words splits normalized text into letter/digit words of at least three runes.
func Words(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minWordRunes {
			out = append(out, f)
		}
	}
	return out
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
