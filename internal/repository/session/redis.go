package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/db"
	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// kvStore is the subset of db.Store the Redis backend needs.
type kvStore interface {
	db.Pinger
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// RedisStore keeps one JSON value per session. Every write refreshes the TTL,
// so a session expires retention after its last change.
// A session has a single writer (its run), so read-modify-write needs no lock.
type RedisStore struct {
	store     kvStore
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a store. ttl <= 0 defaults to 30 days.
func NewRedisStore(s kvStore, keyPrefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{store: s, keyPrefix: keyPrefix + "session:", ttl: ttl}
}

func (r *RedisStore) key(id string) string { return r.keyPrefix + id }

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Create stores a new pending session.
func (r *RedisStore) Create(ctx context.Context, id string, createdAt time.Time) (domain.Session, error) {
	s := newPending(id, createdAt)
	if err := r.put(ctx, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// Get returns the session or domain.ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, id string) (domain.Session, error) {
	return r.load(ctx, r.key(id))
}

func (r *RedisStore) Transition(ctx context.Context, id string, state domain.RunState) error {
	return r.update(ctx, id, func(s *domain.Session) error { return transition(s, state) })
}

func (r *RedisStore) Complete(
	ctx context.Context, id string, result []domain.Verdict, report *domain.Report,
	completedAt time.Time, elapsed time.Duration,
) error {
	return r.update(ctx, id, func(s *domain.Session) error {
		return complete(s, result, report, completedAt, elapsed)
	})
}

func (r *RedisStore) Fail(ctx context.Context, id, message string, completedAt time.Time, elapsed time.Duration) error {
	return r.update(ctx, id, func(s *domain.Session) error { return fail(s, message, completedAt, elapsed) })
}

// Stats summarises all sessions still present.
func (r *RedisStore) Stats(ctx context.Context) (domain.SessionStats, error) {
	var acc statsAcc
	err := r.each(ctx, func(_ string, s domain.Session) error {
		acc.add(s.Status, s.ProcessingTime)
		return nil
	})
	if err != nil {
		return domain.SessionStats{}, err
	}
	return acc.result(), nil
}

// DeleteOlderThan removes sessions created before cutoff.
func (r *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []string
	err := r.each(ctx, func(key string, s domain.Session) error {
		if s.CreatedAt.Before(cutoff) {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := r.store.Del(ctx, stale...); err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	return len(stale), nil
}

func (r *RedisStore) update(ctx context.Context, id string, fn func(*domain.Session) error) error {
	s, err := r.load(ctx, r.key(id))
	if err != nil {
		return err
	}
	if err := fn(&s); err != nil {
		return err
	}
	return r.put(ctx, s)
}

// each visits every session; keys that vanish between SCAN and GET are skipped.
func (r *RedisStore) each(ctx context.Context, fn func(key string, s domain.Session) error) error {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("scan sessions: %w", err)
	}
	for _, k := range keys {
		s, err := r.load(ctx, k)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(k, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisStore) load(ctx context.Context, key string) (domain.Session, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Session{}, fmt.Errorf("session %s: %w", strings.TrimPrefix(key, r.keyPrefix), domain.ErrNotFound)
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", key, err)
	}
	return s, nil
}

func (r *RedisStore) put(ctx context.Context, s domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.store.SetWithTTL(ctx, r.key(s.ID), data, r.ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}
