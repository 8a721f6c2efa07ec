package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// store is the contract shared by every backend.
type store interface {
	Create(ctx context.Context, id string, createdAt time.Time) (domain.Session, error)
	Get(ctx context.Context, id string) (domain.Session, error)
	Transition(ctx context.Context, id string, state domain.RunState) error
	Complete(ctx context.Context, id string, result []domain.Verdict, report *domain.Report,
		completedAt time.Time, elapsed time.Duration) error
	Fail(ctx context.Context, id, message string, completedAt time.Time, elapsed time.Duration) error
	Stats(ctx context.Context) (domain.SessionStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func backends() map[string]func() store {
	return map[string]func() store{
		"memory": func() store { return NewMemoryStore() },
		"redis":  func() store { return NewRedisStore(newFakeKV(), "t:", time.Hour) },
	}
}

func advance(t *testing.T, s store, id string, states ...domain.RunState) {
	t.Helper()
	for _, st := range states {
		if err := s.Transition(context.Background(), id, st); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}
}

func TestStore_CompletedLifecycle(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			created, err := s.Create(ctx, "a", t0)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if created.Status != domain.RunPending {
				t.Fatalf("status = %s, want pending", created.Status)
			}

			advance(t, s, "a", domain.RunExtractingRequirements, domain.RunBuildingIndex, domain.RunComparing)
			verdicts := []domain.Verdict{
				domain.NewVerdict("The system must export.", domain.StatusCompliant, domain.CriticalityNone, "ok"),
				domain.UnknownVerdict("The system must scale."),
			}
			report := &domain.Report{TotalCompliance: 50, Conclusion: "satisfactory"}
			done := t0.Add(90 * time.Second)
			if err := s.Complete(ctx, "a", verdicts, report, done, 90*time.Second); err != nil {
				t.Fatalf("Complete: %v", err)
			}

			got, err := s.Get(ctx, "a")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != domain.RunCompleted || got.RequirementsCount != 2 || len(got.Result) != 2 {
				t.Fatalf("unexpected session %+v", got)
			}
			if got.Result[1].Status.Status != domain.StatusUnknown {
				t.Errorf("result not preserved: %+v", got.Result[1])
			}
			if got.CompletedAt == nil || !got.CompletedAt.Equal(done) || got.ProcessingTime != 90*time.Second {
				t.Errorf("timing not recorded: %+v", got)
			}
			if got.Report == nil || got.Report.TotalCompliance != 50 {
				t.Errorf("report not preserved: %+v", got.Report)
			}
		})
	}
}

func TestStore_InvalidTransitions(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			if _, err := s.Create(ctx, "a", t0); err != nil {
				t.Fatalf("Create: %v", err)
			}

			if err := s.Transition(ctx, "a", domain.RunComparing); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("skip ahead: expected ErrInvalidTransition, got %v", err)
			}
			if err := s.Complete(ctx, "a", nil, nil, t0, 0); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("complete from pending: expected ErrInvalidTransition, got %v", err)
			}

			if err := s.Fail(ctx, "a", "boom", t0.Add(time.Second), time.Second); err != nil {
				t.Fatalf("Fail: %v", err)
			}
			if err := s.Fail(ctx, "a", "again", t0, 0); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("fail twice: expected ErrInvalidTransition, got %v", err)
			}

			got, err := s.Get(ctx, "a")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Status != domain.RunFailed || got.ErrorMessage != "boom" || got.Result != nil {
				t.Errorf("unexpected failed session %+v", got)
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			s := mk()
			if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("Get: expected ErrNotFound, got %v", err)
			}
			err := s.Transition(context.Background(), "missing", domain.RunExtractingRequirements)
			if !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("Transition: expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_StatsAndCleanup(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := mk()
			for i, id := range []string{"old", "done1", "done2", "failed", "running"} {
				if _, err := s.Create(ctx, id, t0.Add(time.Duration(i)*time.Hour)); err != nil {
					t.Fatalf("Create %s: %v", id, err)
				}
			}
			for id, secs := range map[string]int{"done1": 10, "done2": 30} {
				advance(t, s, id, domain.RunExtractingRequirements, domain.RunBuildingIndex, domain.RunComparing)
				d := time.Duration(secs) * time.Second
				if err := s.Complete(ctx, id, nil, nil, t0, d); err != nil {
					t.Fatalf("Complete %s: %v", id, err)
				}
			}
			if err := s.Fail(ctx, "failed", "bad input", t0, 5*time.Second); err != nil {
				t.Fatalf("Fail: %v", err)
			}
			advance(t, s, "running", domain.RunExtractingRequirements)

			stats, err := s.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			want := domain.SessionStats{Total: 5, Completed: 2, Failed: 1, InProgress: 2, AvgProcessingSeconds: 20}
			if stats != want {
				t.Errorf("stats = %+v, want %+v", stats, want)
			}

			n, err := s.DeleteOlderThan(ctx, t0.Add(30*time.Minute))
			if err != nil || n != 1 {
				t.Fatalf("DeleteOlderThan = %d, %v; want 1", n, err)
			}
			if _, err := s.Get(ctx, "old"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("old session still present: %v", err)
			}
			if _, err := s.Get(ctx, "done1"); err != nil {
				t.Errorf("recent session removed: %v", err)
			}
		})
	}
}

func TestMemoryStore_DuplicateCreate(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Create(context.Background(), "a", t0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(context.Background(), "a", t0); err == nil {
		t.Error("expected duplicate create to fail")
	}
}
