package compare

import (
	"strings"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

const (
	foundAnalysis    = "found in documentation"
	notFoundAnalysis = "not found in documentation"
)

// Heuristic marks a requirement compliant when its normalized text occurs in any chunk.
func Heuristic(requirements []string, chunks []domain.Chunk) []domain.Verdict {
	normChunks := make([]string, len(chunks))
	for i := range chunks {
		normChunks[i] = domain.NormalizeText(chunks[i].Content)
	}

	verdicts := make([]domain.Verdict, len(requirements))
	for i, req := range requirements {
		verdicts[i] = domain.NewVerdict(req, domain.StatusNonCompliant, domain.CriticalityHigh, notFoundAnalysis)
		n := domain.NormalizeText(req)
		if n == "" {
			continue
		}
		for _, c := range normChunks {
			if strings.Contains(c, n) {
				verdicts[i] = domain.NewVerdict(req, domain.StatusCompliant, domain.CriticalityNone, foundAnalysis)
				break
			}
		}
	}
	return verdicts
}
