package compare

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// stubIndex serves fixed hits for every query.
type stubIndex struct {
	chunks   []domain.Chunk
	queryErr error
	queries  []string
}

func (s *stubIndex) Query(_ context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	s.queries = append(s.queries, text)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []domain.ScoredChunk
	for i := 0; i < len(s.chunks) && i < k; i++ {
		out = append(out, domain.ScoredChunk{Chunk: s.chunks[i], Score: 1})
	}
	return out, nil
}

func (s *stubIndex) Chunks() []domain.Chunk      { return s.chunks }
func (s *stubIndex) Close(context.Context) error { return nil }

func docChunks(contents ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(contents))
	for i, c := range contents {
		out[i] = domain.Chunk{Content: c, Metadata: domain.ChunkMetadata{Source: domain.SourceImplementation, ChunkID: i}}
	}
	return out
}

type recordingModel struct {
	answer  string
	err     error
	prompts []string
}

func (m *recordingModel) Invoke(_ context.Context, prompt string, _ domain.InvokeOptions) (domain.Completion, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return domain.Completion{}, m.err
	}
	return domain.Completion{Content: m.answer}, nil
}

var scenarioReqs = []string{
	"The system must export a report in PDF format.",
	"The system must support at least 100 concurrent users.",
}

func TestCompare_ModelVerdicts(t *testing.T) {
	model := &recordingModel{answer: `REQUIREMENT: The system must export a report in PDF format.
COMPLIANCE: yes
REASON:

REQUIREMENT: The system must support at least 100 concurrent users.
COMPLIANCE: no
REASON: Concurrency limits are not described anywhere. This is a critical gap.`}
	idx := &stubIndex{chunks: docChunks("the reporting module exports PDF files on demand")}

	verdicts, err := New(model, DefaultConfig()).Compare(context.Background(), scenarioReqs, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].Status.Status != domain.StatusCompliant || verdicts[0].Status.Criticality != domain.CriticalityNone {
		t.Errorf("verdict 1 = %+v", verdicts[0].Status)
	}
	v := verdicts[1]
	if v.Status.Status != domain.StatusNonCompliant || v.Status.Criticality != domain.CriticalityHigh {
		t.Errorf("verdict 2 = %+v", v.Status)
	}
	if !strings.Contains(v.Analysis, "Concurrency") {
		t.Errorf("analysis should carry the reason, got %q", v.Analysis)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("expected a single model call for the whole list, got %d", len(model.prompts))
	}
	if !strings.Contains(model.prompts[0], "exports PDF files") || !strings.Contains(model.prompts[0], "2. The system must support") {
		t.Errorf("prompt misses context or requirement list:\n%s", model.prompts[0])
	}
}

func TestCompare_ModelFailureFallsBack(t *testing.T) {
	model := &recordingModel{err: domain.ErrModelProviderError}
	idx := &stubIndex{chunks: docChunks(
		"Overview. The system must export a report in PDF format. More text.",
		"unrelated",
	)}

	verdicts, err := New(model, DefaultConfig()).Compare(context.Background(), scenarioReqs, idx)
	if err != nil {
		t.Fatalf("fallback must not fail the run: %v", err)
	}
	if len(verdicts) != len(scenarioReqs) {
		t.Fatalf("expected %d verdicts, got %d", len(scenarioReqs), len(verdicts))
	}
	if verdicts[0].Status.Status != domain.StatusCompliant || verdicts[0].Analysis != "found in documentation" {
		t.Errorf("verdict 1 = %+v", verdicts[0])
	}
	if verdicts[1].Status.Status != domain.StatusNonCompliant ||
		verdicts[1].Status.Criticality != domain.CriticalityHigh ||
		verdicts[1].Analysis != "not found in documentation" {
		t.Errorf("verdict 2 = %+v", verdicts[1])
	}
}

func TestCompare_ExhaustedFallsBack(t *testing.T) {
	model := &recordingModel{err: errors.Join(domain.ErrModelExhausted, domain.ErrRateLimited)}
	idx := &stubIndex{chunks: docChunks("nothing relevant")}

	verdicts, err := New(model, DefaultConfig()).Compare(context.Background(), scenarioReqs, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range verdicts {
		if v.Requirement != scenarioReqs[i] {
			t.Errorf("verdict %d requirement %q", i, v.Requirement)
		}
	}
}

func TestCompare_UnparseableAnswerFallsBack(t *testing.T) {
	model := &recordingModel{answer: "Everything looks fine to me."}
	idx := &stubIndex{chunks: docChunks("x")}

	verdicts, err := New(model, DefaultConfig()).Compare(context.Background(), scenarioReqs, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != 2 || verdicts[0].Analysis != "not found in documentation" {
		t.Errorf("expected lexical fallback verdicts, got %+v", verdicts)
	}
}

func TestCompare_MissingBlocksPadded(t *testing.T) {
	model := &recordingModel{answer: `REQUIREMENT: The system must support at least 100 concurrent users.
COMPLIANCE: partial
REASON: only 50 users were load tested`}
	idx := &stubIndex{chunks: docChunks("x")}

	verdicts, err := New(model, DefaultConfig()).Compare(context.Background(), scenarioReqs, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdicts[0].Status.Status != domain.StatusUnknown {
		t.Errorf("uncovered requirement should be unknown, got %+v", verdicts[0].Status)
	}
	if verdicts[1].Status.Status != domain.StatusPartiallyCompliant || verdicts[1].Status.Criticality != domain.CriticalityMedium {
		t.Errorf("verdict 2 = %+v", verdicts[1].Status)
	}
}

func TestCompare_NoModelUsesHeuristic(t *testing.T) {
	idx := &stubIndex{chunks: docChunks("The system must support at least 100 concurrent users")}
	verdicts, err := New(nil, DefaultConfig()).Compare(context.Background(), scenarioReqs, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdicts[1].Status.Status != domain.StatusCompliant {
		t.Errorf("verdict 2 = %+v", verdicts[1].Status)
	}
}

func TestCompare_RetrievalErrorStillAnswers(t *testing.T) {
	idx := &stubIndex{chunks: docChunks("x"), queryErr: errors.New("search down")}
	model := &recordingModel{answer: "REQUIREMENT: a requirement text\nCOMPLIANCE: yes"}

	verdicts, err := New(model, DefaultConfig()).Compare(context.Background(), []string{"a requirement text"}, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdicts[0].Status.Status != domain.StatusCompliant {
		t.Errorf("verdict = %+v", verdicts[0].Status)
	}
	if !strings.Contains(model.prompts[0], "(no matching excerpts)") {
		t.Error("prompt should note the missing context")
	}
}

func TestCompare_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &recordingModel{err: context.Canceled}
	idx := &stubIndex{chunks: docChunks("x")}

	if _, err := New(model, DefaultConfig()).Compare(ctx, scenarioReqs, idx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompare_Empty(t *testing.T) {
	model := &recordingModel{}
	verdicts, err := New(model, DefaultConfig()).Compare(context.Background(), nil, &stubIndex{})
	if err != nil || verdicts != nil {
		t.Fatalf("got %v, %v", verdicts, err)
	}
	if len(model.prompts) != 0 {
		t.Error("no model call expected for an empty list")
	}
}

func TestMergeContext_Budget(t *testing.T) {
	e := New(nil, Config{MaxContextChars: 10})

	got := e.mergeContext(docChunks("abcd", "efgh", "ijkl"))
	if got != "abcd" {
		t.Errorf("second chunk plus separator overflows the budget, got %q", got)
	}

	got = e.mergeContext(docChunks("абвгдежзийклмн"))
	if got != "абвгдежзий" {
		t.Errorf("oversized first chunk should be cut to 10 runes, got %q", got)
	}
}

func TestRetrieve_DedupesChunks(t *testing.T) {
	idx := &stubIndex{chunks: docChunks("a", "b")}
	got, err := New(nil, Config{TopK: 2}).retrieve(context.Background(), []string{"q1", "q2"}, idx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 unique chunks, got %d", len(got))
	}
	if len(idx.queries) != 2 {
		t.Errorf("expected one query per requirement, got %d", len(idx.queries))
	}
}
