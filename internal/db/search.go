package db

import (
	"encoding/binary"
	"math"
)

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Field        string // vector field name, "vector" when empty
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is cosine similarity (1 - distance).
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// EncodeVector encodes v as the little-endian FLOAT32 blob used by vector fields.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
