package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

type fakeExtractor struct {
	reqs []string
	err  error
}

func (f *fakeExtractor) Extract(context.Context, domain.Document) ([]string, error) {
	return f.reqs, f.err
}

type fakeComparer struct {
	verdicts []domain.Verdict
	err      error
	calls    int
}

func (f *fakeComparer) Compare(_ context.Context, reqs []string, _ domain.ChunkIndex) ([]domain.Verdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.verdicts != nil {
		return f.verdicts, nil
	}
	out := make([]domain.Verdict, len(reqs))
	for i, r := range reqs {
		out[i] = domain.NewVerdict(r, domain.StatusCompliant, domain.CriticalityNone, "ok")
	}
	return out, nil
}

type fakeSegmenter struct{}

func (fakeSegmenter) Segment(_ context.Context, text string, source domain.Source) ([]domain.Chunk, error) {
	return []domain.Chunk{{Content: text, Metadata: domain.ChunkMetadata{Source: source}}}, nil
}

type fakeIndex struct {
	chunks []domain.Chunk
	closed bool
}

func (i *fakeIndex) Query(context.Context, string, int) ([]domain.ScoredChunk, error) { return nil, nil }
func (i *fakeIndex) Chunks() []domain.Chunk                                           { return i.chunks }
func (i *fakeIndex) Close(context.Context) error {
	i.closed = true
	return nil
}

type fakeBuilder struct {
	failOn domain.Source
	built  map[domain.Source]*fakeIndex
}

func (b *fakeBuilder) Build(_ context.Context, source domain.Source, chunks []domain.Chunk) (domain.ChunkIndex, error) {
	if source == b.failOn {
		return nil, errors.New("index backend down")
	}
	if b.built == nil {
		b.built = make(map[domain.Source]*fakeIndex)
	}
	idx := &fakeIndex{chunks: chunks}
	b.built[source] = idx
	return idx, nil
}

type fakeSessions struct {
	mu          sync.Mutex
	transitions []domain.RunState
	completed   []domain.Verdict
	report      *domain.Report
	failMsg     string
	failed      bool
	storeCtxErr error
	elapsed     time.Duration
}

func (s *fakeSessions) Transition(_ context.Context, _ string, state domain.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, state)
	return nil
}

func (s *fakeSessions) Complete(
	ctx context.Context, _ string, result []domain.Verdict, report *domain.Report, _ time.Time, elapsed time.Duration,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = result
	s.report = report
	s.elapsed = elapsed
	s.storeCtxErr = ctx.Err()
	return nil
}

func (s *fakeSessions) Fail(ctx context.Context, _, message string, _ time.Time, elapsed time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
	s.failMsg = message
	s.elapsed = elapsed
	s.storeCtxErr = ctx.Err()
	return nil
}

type fakeModel struct {
	answer string
	err    error
	opts   domain.InvokeOptions
}

func (m *fakeModel) Invoke(_ context.Context, _ string, opts domain.InvokeOptions) (domain.Completion, error) {
	m.opts = opts
	if m.err != nil {
		return domain.Completion{}, m.err
	}
	return domain.Completion{Content: m.answer}, nil
}

// stepClock advances by one second on every call.
func stepClock() func() time.Time {
	t := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func stages(ex Extractor, cmp Comparer) Stages {
	return func() (Extractor, Comparer) { return ex, cmp }
}

var (
	reqDoc  = domain.NewDocument("tz.txt", "1. The system must export reports in PDF.")
	implDoc = domain.NewDocument("doc.txt", "The reporting module exports PDF files on demand.")
)
