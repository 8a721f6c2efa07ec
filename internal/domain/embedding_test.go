package domain

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batch BatchEmbeddingResult
	calls int
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.calls++
	s.got = append(s.got, texts...)
	return s.batch, s.err
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	result, err := emb.Embed(context.Background(), "export reports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "query: export reports" {
		t.Errorf("expected prepended text, got %q", inner.got[0])
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEmbedder_BatchFallsBackToSingle(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, TotalTokens: 2}}
	emb := NewInstructionEmbedder(inner, "passage: ")

	res, err := emb.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 4 {
		t.Fatalf("unexpected batch result: %+v", res)
	}
	if inner.got[0] != "passage: a" || inner.got[1] != "passage: b" {
		t.Errorf("unexpected inner inputs: %v", inner.got)
	}
}

func TestEmbedAll_UsesBatchEmbedder(t *testing.T) {
	inner := &stubBatchEmbedder{batch: BatchEmbeddingResult{Embeddings: [][]float32{{1}, {2}}}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected a single batch call, got %d", inner.calls)
	}
	if len(res.Embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
}

func TestEmbedAll_CountMismatch(t *testing.T) {
	inner := &stubBatchEmbedder{batch: BatchEmbeddingResult{Embeddings: [][]float32{{1}}}}

	_, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbedAll_Empty(t *testing.T) {
	res, err := EmbedAll(context.Background(), &stubEmbedder{}, nil)
	if err != nil || len(res.Embeddings) != 0 {
		t.Fatalf("expected empty result, got %+v, %v", res, err)
	}
}

func TestBatchFallback_SumsTokens(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, PromptTokens: 2, TotalTokens: 3}}

	res, err := BatchFallback(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.PromptTokens != 4 || res.TotalTokens != 6 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(inner.got) != 2 {
		t.Errorf("expected one Embed call per text, got %q", inner.got)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"dim mismatch", []float32{1}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Cosine = %f, want %f", got, tc.want)
			}
		})
	}
}
