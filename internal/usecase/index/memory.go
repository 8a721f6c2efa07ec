package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

var _ domain.IndexBuilder = (*MemoryBuilder)(nil)

// MemoryBuilder builds brute-force cosine indexes held in process memory.
// Every Build starts from scratch, so nothing leaks between runs.
type MemoryBuilder struct {
	documents Embedder
	queries   Embedder
}

// NewMemoryBuilder creates a builder. documents embeds chunk text, queries embeds query text;
// both may be the same embedder.
func NewMemoryBuilder(documents, queries Embedder) *MemoryBuilder {
	return &MemoryBuilder{documents: documents, queries: queries}
}

// Build embeds all chunks and returns an index over them.
func (b *MemoryBuilder) Build(
	ctx context.Context, source domain.Source, chunks []domain.Chunk,
) (domain.ChunkIndex, error) {
	ordered := sortedChunks(chunks)

	texts := make([]string, len(ordered))
	for i := range ordered {
		texts[i] = ordered[i].Content
	}
	res, err := domain.EmbedAll(ctx, b.documents, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s chunks: %w", source, err)
	}

	return &memoryIndex{
		source:  source,
		chunks:  ordered,
		vectors: res.Embeddings,
		queries: b.queries,
	}, nil
}

type memoryIndex struct {
	source  domain.Source
	chunks  []domain.Chunk
	vectors [][]float32
	queries Embedder
}

func (m *memoryIndex) Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	q, err := m.queries.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits := make([]domain.ScoredChunk, len(m.chunks))
	for i := range m.chunks {
		hits[i] = domain.ScoredChunk{Chunk: m.chunks[i], Score: domain.Cosine(q.Embedding, m.vectors[i])}
	}
	domain.SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *memoryIndex) Chunks() []domain.Chunk {
	return m.chunks
}

func (m *memoryIndex) Close(context.Context) error {
	m.vectors = nil
	return nil
}

// sortedChunks copies chunks in chunk_id order.
func sortedChunks(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metadata.ChunkID < out[j].Metadata.ChunkID
	})
	return out
}
