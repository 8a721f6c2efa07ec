package domain

import (
	"context"
	"sort"
)

// ChunkIndex answers nearest-neighbour queries over the chunks of one document.
// An index belongs to a single comparison run and is released with Close.
type ChunkIndex interface {
	// Query returns up to k chunks most similar to text, best match first.
	Query(ctx context.Context, text string, k int) ([]ScoredChunk, error)
	// Chunks returns the indexed chunks in chunk_id order.
	Chunks() []Chunk
	Close(ctx context.Context) error
}

// IndexBuilder builds a fresh index for the given slot, replacing whatever the slot held.
type IndexBuilder interface {
	Build(ctx context.Context, source Source, chunks []Chunk) (ChunkIndex, error)
}

// SortHits orders hits by score descending; equal scores keep chunk_id order.
func SortHits(hits []ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Metadata.ChunkID < hits[j].Metadata.ChunkID
	})
}
