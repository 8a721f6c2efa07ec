package vectorindex

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/db"
	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// fakeStore keeps just enough state to follow a slot rebuild.
type fakeStore struct {
	mu       sync.Mutex
	kv       map[string]string
	locks    map[string]string
	indexes  map[string]*db.IndexDefinition
	hashes   map[string]map[string]string
	dropped  []string
	searchFn func(q *db.KNNQuery) (*db.SearchResult, error)
	hsetErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:      map[string]string{},
		locks:   map[string]string{},
		indexes: map[string]*db.IndexDefinition{},
		hashes:  map[string]map[string]string{},
	}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(v), nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = string(value)
	return nil
}

func (f *fakeStore) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hsetErr != nil {
		return f.hsetErr
	}
	for _, it := range items {
		f.hashes[it.Key] = it.Fields
	}
	return nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) DropIndex(_ context.Context, name string, deleteDocs bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(f.indexes, name)
	f.dropped = append(f.dropped, name)
	if deleteDocs {
		for k := range f.hashes {
			for _, p := range def.Prefixes {
				if len(k) >= len(p) && k[:len(p)] == p {
					delete(f.hashes, k)
				}
			}
		}
	}
	return nil
}

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return &db.SearchResult{}, nil
}

func (f *fakeStore) TryLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, held := f.locks[key]; held {
		return false, nil
	}
	f.locks[key] = token
	return true, nil
}

func (f *fakeStore) Unlock(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[key] != token {
		return db.ErrLockNotHeld
	}
	delete(f.locks, key)
	return nil
}

func (f *fakeStore) hashCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hashes)
}

// constEmbedder returns the same vector for every text.
type constEmbedder struct {
	vec []float32
	err error
}

func (e constEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: e.vec}, e.err
}
