// Package hashemb is a local, deterministic embedder based on feature hashing.
// It needs no network and is used for offline runs and tests.
package hashemb

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// DefaultDimensions is used when a non-positive size is configured.
const DefaultDimensions = 384

// Embedder hashes word unigrams, word bigrams and character trigrams into a
// fixed-size signed vector, then L2-normalises it.
type Embedder struct {
	dims int
}

// New creates a hashing embedder with the given dimensionality.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	tokens := tokenize(text)
	return domain.EmbeddingResult{Embedding: e.vector(tokens), TotalTokens: len(tokens)}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		r, err := e.Embed(ctx, t)
		if err != nil {
			return domain.BatchEmbeddingResult{}, err
		}
		out.Embeddings[i] = r.Embedding
		out.TotalTokens += r.TotalTokens
	}
	out.PromptTokens = out.TotalTokens
	return out, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) vector(tokens []string) []float32 {
	acc := make([]float64, e.dims)
	add := func(feature string, weight float64) {
		h := xxhash.Sum64String(feature)
		idx := int(h % uint64(e.dims))
		if h>>63 == 1 {
			weight = -weight
		}
		acc[idx] += weight
	}

	for i, tok := range tokens {
		add("w:"+tok, 1)
		if i > 0 {
			add("b:"+tokens[i-1]+" "+tok, 0.5)
		}
		r := []rune("^" + tok + "$")
		for j := 0; j+3 <= len(r); j++ {
			add("c:"+string(r[j:j+3]), 0.25)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	out := make([]float32, e.dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(domain.NormalizeText(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
