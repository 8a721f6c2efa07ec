package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/db"
)

// fakeKV is an in-memory kvStore that records TTLs.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	pingErr error
	// vanish lists keys that Scan reports but Get no longer finds.
	vanish []string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeKV) Ping(context.Context) error { return f.pingErr }

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append([]byte(nil), value...)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) Scan(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return append(keys, f.vanish...), nil
}
