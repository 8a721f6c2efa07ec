package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/db"
	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// Index is one generation of a slot index. It holds the slot lock until Close.
type Index struct {
	store   store
	queries Embedder
	name    string
	chunks  []domain.Chunk
	lockKey string
	token   string
	logger  *zap.Logger
}

// Name returns the FT index name of this generation.
func (i *Index) Name() string { return i.name }

// Query runs a KNN search against this generation.
func (i *Index) Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || len(i.chunks) == 0 {
		return nil, nil
	}
	q, err := i.queries.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	res, err := i.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    i.name,
		Field:        fieldVector,
		Vector:       q.Embedding,
		K:            k,
		ReturnFields: []string{fieldSource, fieldChunkID, fieldContent},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", i.name, err)
	}

	hits := make([]domain.ScoredChunk, 0, len(res.Entries))
	for _, e := range res.Entries {
		id, err := strconv.Atoi(e.Fields[fieldChunkID])
		if err != nil {
			i.logger.Warn("skip hit without chunk_id", zap.String("key", e.Key))
			continue
		}
		hits = append(hits, domain.ScoredChunk{
			Chunk: domain.Chunk{
				Content: e.Fields[fieldContent],
				Metadata: domain.ChunkMetadata{
					Source:  domain.Source(e.Fields[fieldSource]),
					ChunkID: id,
				},
			},
			Score: e.Score,
		})
	}
	domain.SortHits(hits)
	return hits, nil
}

// Chunks returns the indexed chunks in chunk_id order.
func (i *Index) Chunks() []domain.Chunk {
	return i.chunks
}

// Close releases the slot. The generation stays live until the next build replaces it.
func (i *Index) Close(ctx context.Context) error {
	if err := i.store.Unlock(ctx, i.lockKey, i.token); err != nil {
		return fmt.Errorf("release %s: %w", i.lockKey, err)
	}
	return nil
}

func sortChunks(chunks []domain.Chunk) []domain.Chunk {
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Metadata.ChunkID < out[b].Metadata.ChunkID
	})
	return out
}
