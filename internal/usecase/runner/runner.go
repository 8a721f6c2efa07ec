// Package runner executes comparison runs in the background.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/logger"
)

// ErrClosed is returned by Submit after Wait has started draining.
var ErrClosed = errors.New("runner is shutting down")

// Runner starts runs detached from the submitting request, at most maxConcurrent at a time.
// Runs are never cancelled; Wait lets them finish.
type Runner struct {
	sessions SessionCreator
	exec     Executor
	sem      *semaphore.Weighted
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Runner. maxConcurrent <= 0 means 1.
func New(sessions SessionCreator, exec Executor, maxConcurrent int, logger *zap.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sessions: sessions,
		exec:     exec,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Submit stores a pending session and schedules the run. The session is
// returned as soon as it is stored; the run outlives ctx.
func (r *Runner) Submit(ctx context.Context, reqDoc, implDoc domain.Document) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.Session{}, ErrClosed
	}

	id := r.newID()
	s, err := r.sessions.Create(ctx, id, r.now())
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	runCtx := logger.ContextWithLogger(context.WithoutCancel(ctx), logger.FromContextOr(ctx, r.logger))

	r.wg.Add(1)
	go r.run(runCtx, id, reqDoc, implDoc)
	return s, nil
}

func (r *Runner) run(ctx context.Context, id string, reqDoc, implDoc domain.Document) {
	defer r.wg.Done()
	// never fails: ctx cannot be cancelled
	_ = r.sem.Acquire(ctx, 1)
	defer r.sem.Release(1)

	if err := r.exec.Run(ctx, id, reqDoc, implDoc); err != nil {
		logger.FromContext(ctx).Debug("run finished with error",
			zap.String("session_id", id), zap.Error(err))
	}
}

// Wait stops accepting runs and blocks until in-flight runs finish or ctx ends.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for runs: %w", ctx.Err())
	}
}
