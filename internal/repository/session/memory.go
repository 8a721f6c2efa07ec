package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// MemoryStore keeps sessions in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Create stores a new pending session.
func (m *MemoryStore) Create(_ context.Context, id string, createdAt time.Time) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return domain.Session{}, fmt.Errorf("session %s already exists", id)
	}
	s := newPending(id, createdAt)
	m.sessions[id] = s
	return s, nil
}

// Get returns the session or domain.ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *MemoryStore) Transition(_ context.Context, id string, state domain.RunState) error {
	return m.update(id, func(s *domain.Session) error { return transition(s, state) })
}

func (m *MemoryStore) Complete(
	_ context.Context, id string, result []domain.Verdict, report *domain.Report,
	completedAt time.Time, elapsed time.Duration,
) error {
	return m.update(id, func(s *domain.Session) error {
		return complete(s, result, report, completedAt, elapsed)
	})
}

func (m *MemoryStore) Fail(_ context.Context, id, message string, completedAt time.Time, elapsed time.Duration) error {
	return m.update(id, func(s *domain.Session) error { return fail(s, message, completedAt, elapsed) })
}

func (m *MemoryStore) update(id string, fn func(*domain.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	if err := fn(&s); err != nil {
		return err
	}
	m.sessions[id] = s
	return nil
}

// Stats summarises all stored sessions.
func (m *MemoryStore) Stats(context.Context) (domain.SessionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var acc statsAcc
	for _, s := range m.sessions {
		acc.add(s.Status, s.ProcessingTime)
	}
	return acc.result(), nil
}

// DeleteOlderThan removes sessions created before cutoff and returns how many were removed.
func (m *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, s := range m.sessions {
		if s.CreatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
