package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/reqcheck/internal/db"
)

// unlockScript deletes KEYS[1] only if it still holds ARGV[1].
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// TryLock acquires key with SET NX PX.
func (s *Store) TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	cmd := s.b().Arbitrary("SET").Keys(key).
		Args(token, "NX", "PX", strconv.FormatInt(ttl.Milliseconds(), 10)).
		Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpSet, Err: err}
	}
	return true, nil
}

// Unlock releases key if token still owns it; otherwise returns db.ErrLockNotHeld.
func (s *Store) Unlock(ctx context.Context, key, token string) error {
	cmd := s.b().Arbitrary("EVAL").Args(unlockScript, "1").Keys(key).Args(token).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return &db.Error{Op: db.OpEval, Err: err}
	}
	if n == 0 {
		return db.ErrLockNotHeld
	}
	return nil
}
