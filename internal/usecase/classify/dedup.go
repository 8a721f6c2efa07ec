package classify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// DedupPolicy selects how near-duplicate requirements are detected.
type DedupPolicy string

// Supported dedup policies.
const (
	DedupSubstring DedupPolicy = "substring"
	DedupSemantic  DedupPolicy = "semantic"
)

// ParseDedupPolicy validates a policy name.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch DedupPolicy(s) {
	case DedupSubstring, DedupSemantic:
		return DedupPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown dedup policy %q", s)
	}
}

// DedupSubstrings drops requirements whose normalized text contains, or is contained
// in, an earlier one. The shorter text wins and keeps the earlier position.
func DedupSubstrings(reqs []string) []string {
	return dedup(reqs, nil, 0)
}

// DedupEmbeddings is DedupSubstrings plus embedding similarity: two requirements are
// duplicates when their cosine similarity is at least threshold.
func DedupEmbeddings(ctx context.Context, emb domain.Embedder, reqs []string, threshold float64) ([]string, error) {
	if len(reqs) < 2 {
		return dedup(reqs, nil, 0), nil
	}
	res, err := domain.EmbedAll(ctx, emb, reqs)
	if err != nil {
		return nil, fmt.Errorf("embed requirements for dedup: %w", err)
	}
	return dedup(reqs, res.Embeddings, threshold), nil
}

type keptReq struct {
	text   string
	norm   string
	vector []float32
}

// dedup keeps one text per group of overlapping requirements. A new text may
// overlap several kept ones; the whole group collapses into its shortest member,
// placed at the group's first position, so no kept text overlaps another.
func dedup(reqs []string, vectors [][]float32, threshold float64) []string {
	kept := make([]keptReq, 0, len(reqs))
	for i, r := range reqs {
		n := domain.NormalizeText(r)
		if n == "" {
			continue
		}
		cand := keptReq{text: r, norm: n}
		if vectors != nil {
			cand.vector = vectors[i]
		}

		var group []int
		for j := range kept {
			if overlaps(kept[j], cand, threshold) {
				group = append(group, j)
			}
		}
		if len(group) == 0 {
			kept = append(kept, cand)
			continue
		}

		best := kept[group[0]]
		for _, j := range group[1:] {
			if shorter(kept[j], best) {
				best = kept[j]
			}
		}
		if shorter(cand, best) {
			best = cand
		}
		kept[group[0]] = best
		kept = dropIndexes(kept, group[1:])
	}

	out := make([]string, len(kept))
	for i, k := range kept {
		out[i] = k.text
	}
	return out
}

func overlaps(a, b keptReq, threshold float64) bool {
	if strings.Contains(a.norm, b.norm) || strings.Contains(b.norm, a.norm) {
		return true
	}
	return a.vector != nil && b.vector != nil && domain.Cosine(a.vector, b.vector) >= threshold
}

func shorter(a, b keptReq) bool {
	return utf8.RuneCountInString(a.text) < utf8.RuneCountInString(b.text)
}

// dropIndexes removes the entries at idx, which must be ascending.
func dropIndexes(kept []keptReq, idx []int) []keptReq {
	if len(idx) == 0 {
		return kept
	}
	out := kept[:0]
	next := 0
	for j, k := range kept {
		if next < len(idx) && idx[next] == j {
			next++
			continue
		}
		out = append(out, k)
	}
	return out
}
