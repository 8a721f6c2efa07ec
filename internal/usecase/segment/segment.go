// Package segment splits document text into paragraphs and embedding-sized chunks.
package segment

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// Config tunes paragraph and chunk sizes. Sizes are measured in runes.
type Config struct {
	ParagraphMaxChars int
	ChunkSize         int
	ChunkOverlap      int
	MinChunkChars     int
}

// DefaultConfig returns the sizes used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ParagraphMaxChars: 1500,
		ChunkSize:         1000,
		ChunkOverlap:      200,
		MinChunkChars:     10,
	}
}

// separators in priority order; the recursive splitter cuts at the first one that fits.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " "}

// Segmenter turns raw text into ordered chunks. Safe for concurrent use.
type Segmenter struct {
	cfg      Config
	splitter document.Transformer
}

// New creates a Segmenter.
func New(ctx context.Context, cfg Config) (*Segmenter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}
	if cfg.ParagraphMaxChars < cfg.ChunkSize {
		cfg.ParagraphMaxChars = cfg.ChunkSize
	}

	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   cfg.ChunkSize,
		OverlapSize: cfg.ChunkOverlap,
		Separators:  separators,
		LenFunc:     utf8.RuneCountInString,
	})
	if err != nil {
		return nil, fmt.Errorf("create recursive splitter: %w", err)
	}
	return &Segmenter{cfg: cfg, splitter: splitter}, nil
}

// Segment splits text into chunks labelled with source. Paragraphs that fit
// ParagraphMaxChars become one chunk each; longer ones are split recursively
// with overlap. chunk_id is the position in the returned slice.
func (s *Segmenter) Segment(ctx context.Context, text string, source domain.Source) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	add := func(content string) {
		content = strings.TrimSpace(content)
		if utf8.RuneCountInString(content) < s.cfg.MinChunkChars {
			return
		}
		chunks = append(chunks, domain.Chunk{
			Content:  content,
			Metadata: domain.ChunkMetadata{Source: source, ChunkID: len(chunks)},
		})
	}

	for i, p := range Paragraphs(text) {
		if utf8.RuneCountInString(p) <= s.cfg.ParagraphMaxChars {
			add(p)
			continue
		}
		parts, err := s.splitter.Transform(ctx, []*schema.Document{{
			ID:      fmt.Sprintf("%s-%d", source, i),
			Content: p,
		}})
		if err != nil {
			return nil, fmt.Errorf("split paragraph %d: %w", i, err)
		}
		for _, part := range parts {
			add(part.Content)
		}
	}
	return chunks, nil
}

var (
	blankLine = regexp.MustCompile(`\n[ \t]*\n`)
	// numberedItem matches list markers: "2. ", "4.1.2. " before any text, and
	// "3 " or "12.3 " only before a capital letter, so a wrapped line starting
	// with a quantity ("100 concurrent users", "1.5 seconds") is not a marker.
	numberedItem = regexp.MustCompile(`^(?:\d+(?:\.\d+)*\.\s+\S|\d+(?:\.\d+)*\s+\p{Lu})`)
)

// Paragraphs splits text on blank lines and in front of numbered list items.
// Lines inside a paragraph are kept joined with '\n'. Empty paragraphs are skipped.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	for _, block := range blankLine.Split(text, -1) {
		var cur []string
		flush := func() {
			if p := strings.TrimSpace(strings.Join(cur, "\n")); p != "" {
				out = append(out, p)
			}
			cur = cur[:0]
		}
		for _, line := range strings.Split(block, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if numberedItem.MatchString(trimmed) {
				flush()
			}
			cur = append(cur, trimmed)
		}
		flush()
	}
	return out
}
