package analysis

import (
	"context"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// Extractor produces the ordered requirement list of a document.
type Extractor interface {
	Extract(ctx context.Context, doc domain.Document) ([]string, error)
}

// Comparer judges requirements against an implementation index.
type Comparer interface {
	Compare(ctx context.Context, requirements []string, idx domain.ChunkIndex) ([]domain.Verdict, error)
}

// Segmenter splits document text into chunks.
type Segmenter interface {
	Segment(ctx context.Context, text string, source domain.Source) ([]domain.Chunk, error)
}

// Stages returns the model-bound extractor and comparer for one run.
type Stages func() (Extractor, Comparer)

// SessionWriter records the progress and outcome of a run.
type SessionWriter interface {
	Transition(ctx context.Context, id string, state domain.RunState) error
	Complete(ctx context.Context, id string, result []domain.Verdict, report *domain.Report,
		completedAt time.Time, elapsed time.Duration) error
	Fail(ctx context.Context, id, message string, completedAt time.Time, elapsed time.Duration) error
}
