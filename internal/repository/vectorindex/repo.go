package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/db"
	"github.com/kailas-cloud/reqcheck/internal/domain"
)

const (
	fieldSource  = "source"
	fieldChunkID = "chunk_id"
	fieldContent = "content"
	fieldVector  = "vector"
)

// store is the consumer interface for slot indexes (ISP).
//
//nolint:interfacebloat // a slot rebuild touches kv, hashes, indexes, search and locks
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Config tunes the Redis slot indexes.
type Config struct {
	KeyPrefix   string
	Dimensions  int
	HNSWM       int
	EFConstruct int
	// LockTTL bounds how long a crashed run can keep a slot.
	LockTTL time.Duration
	// LockWait is how long Build waits for a slot held by another run.
	LockWait time.Duration
	// PollInterval is the lock retry period.
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.HNSWM <= 0 {
		c.HNSWM = 16
	}
	if c.EFConstruct <= 0 {
		c.EFConstruct = 200
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Minute
	}
	if c.LockWait <= 0 {
		c.LockWait = 10 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
}

var _ domain.IndexBuilder = (*Builder)(nil)

// Builder rebuilds the "tz" and "doc" slot indexes in Redis.
//
// A build writes a new generation under a fresh index name, points the slot at it
// and drops the previous generation with its hashes. The slot stays locked until the
// returned index is closed, so a concurrent run never sees its generation dropped.
type Builder struct {
	store     store
	documents Embedder
	queries   Embedder
	cfg       Config
	keys      keys
	logger    *zap.Logger
}

// New creates a slot index builder.
func New(s store, documents, queries Embedder, cfg Config, logger *zap.Logger) *Builder {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		store:     s,
		documents: documents,
		queries:   queries,
		cfg:       cfg,
		keys:      keys{prefix: cfg.KeyPrefix},
		logger:    logger,
	}
}

// Build replaces the slot's index with one over chunks.
func (b *Builder) Build(
	ctx context.Context, slot domain.Source, chunks []domain.Chunk,
) (domain.ChunkIndex, error) {
	token := uuid.NewString()
	lockKey := b.keys.lock(slot)
	if err := b.acquire(ctx, lockKey, token); err != nil {
		return nil, fmt.Errorf("lock slot %s: %w", slot, err)
	}

	idx, err := b.build(ctx, slot, token, chunks)
	if err != nil {
		b.release(context.WithoutCancel(ctx), lockKey, token)
		return nil, err
	}
	return idx, nil
}

func (b *Builder) build(
	ctx context.Context, slot domain.Source, token string, chunks []domain.Chunk,
) (*Index, error) {
	ordered := sortChunks(chunks)
	texts := make([]string, len(ordered))
	for i := range ordered {
		texts[i] = ordered[i].Content
	}
	emb, err := domain.EmbedAll(ctx, b.documents, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s chunks: %w", slot, err)
	}
	for i, v := range emb.Embeddings {
		if len(v) != b.cfg.Dimensions {
			return nil, fmt.Errorf("chunk %d: vector has %d dimensions, index expects %d: %w",
				ordered[i].Metadata.ChunkID, len(v), b.cfg.Dimensions, domain.ErrEmbeddingProviderError)
		}
	}

	gen := strings.ReplaceAll(token, "-", "")
	name := b.keys.indexName(slot, gen)
	prefix := b.keys.chunkPrefix(slot, gen)

	def, err := db.NewIndex(name).
		Prefix(prefix).
		Tag(fieldSource).
		Numeric(fieldChunkID).
		VectorHNSW(fieldVector, b.cfg.Dimensions, db.DistanceCosine, b.cfg.HNSWM, b.cfg.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	if err := b.store.CreateIndex(ctx, def); err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}

	items := make([]db.HashSetItem, len(ordered))
	for i := range ordered {
		c := &ordered[i]
		items[i] = db.HashSetItem{
			Key: prefix + strconv.Itoa(c.Metadata.ChunkID),
			Fields: map[string]string{
				fieldSource:  string(c.Metadata.Source),
				fieldChunkID: strconv.Itoa(c.Metadata.ChunkID),
				fieldContent: c.Content,
				fieldVector:  db.EncodeVector(emb.Embeddings[i]),
			},
		}
	}
	if err := b.store.HSetMulti(ctx, items); err != nil {
		b.drop(context.WithoutCancel(ctx), name)
		return nil, fmt.Errorf("write %s chunks: %w", slot, err)
	}

	if err := b.swap(ctx, slot, name); err != nil {
		b.drop(context.WithoutCancel(ctx), name)
		return nil, err
	}

	b.logger.Debug("slot index built",
		zap.String("slot", string(slot)),
		zap.String("index", name),
		zap.Int("chunks", len(ordered)),
	)

	return &Index{
		store:   b.store,
		queries: b.queries,
		name:    name,
		chunks:  ordered,
		lockKey: b.keys.lock(slot),
		token:   token,
		logger:  b.logger,
	}, nil
}

// swap points the slot at name and drops the generation it replaced.
func (b *Builder) swap(ctx context.Context, slot domain.Source, name string) error {
	pointer := b.keys.current(slot)

	var previous string
	raw, err := b.store.Get(ctx, pointer)
	switch {
	case err == nil:
		previous = string(raw)
	case errors.Is(err, db.ErrKeyNotFound):
	default:
		return fmt.Errorf("read slot pointer: %w", err)
	}

	if err := b.store.Set(ctx, pointer, []byte(name)); err != nil {
		return fmt.Errorf("write slot pointer: %w", err)
	}
	if previous != "" && previous != name {
		b.drop(ctx, previous)
	}
	return nil
}

func (b *Builder) drop(ctx context.Context, name string) {
	err := b.store.DropIndex(ctx, name, true)
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		b.logger.Warn("drop stale index", zap.String("index", name), zap.Error(err))
	}
}

func (b *Builder) acquire(ctx context.Context, key, token string) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.LockWait)
	defer cancel()

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ok, err := b.store.TryLock(ctx, key, token, b.cfg.LockTTL)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("slot busy: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *Builder) release(ctx context.Context, key, token string) {
	if err := b.store.Unlock(ctx, key, token); err != nil {
		b.logger.Warn("release slot lock", zap.String("key", key), zap.Error(err))
	}
}
