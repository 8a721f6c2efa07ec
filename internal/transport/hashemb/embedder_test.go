package hashemb

import (
	"context"
	"math"
	"testing"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

func embed(t *testing.T, e *Embedder, text string) []float32 {
	t.Helper()
	r, err := e.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Embed(%q): %v", text, err)
	}
	return r.Embedding
}

func TestEmbed_DeterministicAndNormalised(t *testing.T) {
	e := New(64)
	a := embed(t, e, "The reporting module exports PDF files")
	b := embed(t, e, "The reporting module exports PDF files")

	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d", i)
		}
		norm += float64(a[i]) * float64(a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", norm)
	}
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	e := New(DefaultDimensions)
	query := embed(t, e, "The system must export a report in PDF format")
	near := embed(t, e, "the reporting module exports PDF reports on demand")
	far := embed(t, e, "Backups run every night at midnight")

	if domain.Cosine(query, near) <= domain.Cosine(query, far) {
		t.Errorf("expected related text to be closer: near=%f far=%f",
			domain.Cosine(query, near), domain.Cosine(query, far))
	}
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	v := embed(t, New(8), "  ... ")
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestBatchEmbed(t *testing.T) {
	e := New(16)
	res, err := e.BatchEmbed(context.Background(), []string{"one two", "three"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 3 {
		t.Errorf("expected 3 tokens, got %d", res.TotalTokens)
	}
}

func TestEmbed_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(8).Embed(ctx, "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew_DefaultDimensions(t *testing.T) {
	if got := New(0).Dimensions(); got != DefaultDimensions {
		t.Errorf("expected %d, got %d", DefaultDimensions, got)
	}
}
