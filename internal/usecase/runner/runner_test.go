package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// --- Mocks ---

type mockSessions struct {
	mu      sync.Mutex
	created []string
	err     error
}

func (m *mockSessions) Create(_ context.Context, id string, createdAt time.Time) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Session{}, m.err
	}
	m.created = append(m.created, id)
	return domain.Session{ID: id, Status: domain.RunPending, CreatedAt: createdAt}, nil
}

// blockingExec holds every run until release is closed.
type blockingExec struct {
	started  chan string
	release  chan struct{}
	running  atomic.Int32
	peak     atomic.Int32
	ctxErr   atomic.Value
	finished atomic.Int32
}

func newBlockingExec() *blockingExec {
	return &blockingExec{started: make(chan string, 16), release: make(chan struct{})}
}

func (e *blockingExec) Run(ctx context.Context, id string, _, _ domain.Document) error {
	n := e.running.Add(1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	e.started <- id
	<-e.release
	if err := ctx.Err(); err != nil {
		e.ctxErr.Store(err)
	}
	e.running.Add(-1)
	e.finished.Add(1)
	return errors.New("recorded elsewhere")
}

func waitStarted(t *testing.T, e *blockingExec) string {
	t.Helper()
	select {
	case id := <-e.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
		return ""
	}
}

// --- Tests ---

func TestSubmit_ReturnsPendingAndRuns(t *testing.T) {
	sessions := &mockSessions{}
	exec := newBlockingExec()
	r := New(sessions, exec, 2, nil)
	r.newID = func() string { return "fixed-id" }

	s, err := r.Submit(context.Background(), domain.Document{}, domain.Document{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.ID != "fixed-id" || s.Status != domain.RunPending {
		t.Fatalf("unexpected session %+v", s)
	}
	if id := waitStarted(t, exec); id != "fixed-id" {
		t.Errorf("run id = %q", id)
	}
	close(exec.release)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if exec.finished.Load() != 1 {
		t.Errorf("finished = %d, want 1", exec.finished.Load())
	}
}

func TestSubmit_OutlivesRequestContext(t *testing.T) {
	exec := newBlockingExec()
	r := New(&mockSessions{}, exec, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := r.Submit(ctx, domain.Document{}, domain.Document{}); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, exec)
	cancel()
	close(exec.release)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := exec.ctxErr.Load(); v != nil {
		t.Errorf("run context was cancelled: %v", v)
	}
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	exec := newBlockingExec()
	r := New(&mockSessions{}, exec, 2, nil)

	for range 4 {
		if _, err := r.Submit(context.Background(), domain.Document{}, domain.Document{}); err != nil {
			t.Fatal(err)
		}
	}
	waitStarted(t, exec)
	waitStarted(t, exec)
	select {
	case <-exec.started:
		t.Fatal("third run started while two were in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(exec.release)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exec.finished.Load() != 4 {
		t.Errorf("finished = %d, want 4", exec.finished.Load())
	}
	if exec.peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", exec.peak.Load())
	}
}

func TestSubmit_UniqueIDs(t *testing.T) {
	sessions := &mockSessions{}
	exec := newBlockingExec()
	close(exec.release)
	r := New(sessions, exec, 4, nil)

	for range 3 {
		if _, err := r.Submit(context.Background(), domain.Document{}, domain.Document{}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, id := range sessions.created {
		if seen[id] || len(id) != 36 {
			t.Errorf("bad or duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestSubmit_CreateError(t *testing.T) {
	exec := newBlockingExec()
	r := New(&mockSessions{err: errors.New("store down")}, exec, 1, nil)

	if _, err := r.Submit(context.Background(), domain.Document{}, domain.Document{}); err == nil {
		t.Fatal("expected error")
	}
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if exec.finished.Load() != 0 {
		t.Error("no run should start when the session cannot be stored")
	}
}

func TestWait_TimeoutAndClosed(t *testing.T) {
	exec := newBlockingExec()
	r := New(&mockSessions{}, exec, 1, nil)
	if _, err := r.Submit(context.Background(), domain.Document{}, domain.Document{}); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, exec)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if _, err := r.Submit(context.Background(), domain.Document{}, domain.Document{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Wait, got %v", err)
	}

	close(exec.release)
	if err := r.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
}
