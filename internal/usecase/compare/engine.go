// Package compare judges each requirement against the implementation document.
package compare

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/logger"
	"github.com/kailas-cloud/reqcheck/internal/metrics"
)

// Config tunes retrieval and the comparison call.
type Config struct {
	TopK            int
	MaxContextChars int
	Temperature     float32
	MaxTokens       int
}

// DefaultConfig returns the defaults used by the service.
func DefaultConfig() Config {
	return Config{TopK: 5, MaxContextChars: 10000, Temperature: 0.2}
}

// Engine produces one verdict per requirement. The model is the primary judge;
// a lexical containment check takes over when the model fails or answers off-format.
type Engine struct {
	model domain.ChatModel
	cfg   Config
}

// New creates an Engine. A nil model always uses the lexical check.
func New(model domain.ChatModel, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultConfig().MaxContextChars
	}
	return &Engine{model: model, cfg: cfg}
}

// WithModel returns a copy of e that calls model instead.
func (e *Engine) WithModel(model domain.ChatModel) *Engine {
	cp := *e
	cp.model = model
	return &cp
}

// Compare returns verdicts in requirement order, exactly one per requirement.
// Only cancellation of ctx is returned as an error.
func (e *Engine) Compare(ctx context.Context, requirements []string, idx domain.ChunkIndex) ([]domain.Verdict, error) {
	if len(requirements) == 0 {
		return nil, nil
	}
	log := logger.FromContext(ctx)

	retrieved, err := e.retrieve(ctx, requirements, idx)
	if err != nil {
		return nil, err
	}

	if e.model == nil {
		return Heuristic(requirements, idx.Chunks()), nil
	}

	completion, err := e.model.Invoke(ctx, Prompt(requirements, e.mergeContext(retrieved)), domain.InvokeOptions{
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("compare: %w", ctxErr)
		}
		log.Warn("model comparison failed, using lexical check", zap.Error(err))
		metrics.FallbacksTotal.WithLabelValues("compare").Inc()
		return Heuristic(requirements, idx.Chunks()), nil
	}

	records := ParseAnswer(completion.Content)
	if len(records) == 0 {
		log.Warn("model comparison answer has no requirement blocks, using lexical check",
			zap.Int("answer_chars", utf8.RuneCountInString(completion.Content)),
			zap.Error(domain.ErrMalformedResponse))
		metrics.FallbacksTotal.WithLabelValues("parse").Inc()
		return Heuristic(requirements, idx.Chunks()), nil
	}

	verdicts := Reconcile(requirements, records)
	if len(records) != len(requirements) {
		log.Info("model answer block count differs from requirement count",
			zap.Int("blocks", len(records)),
			zap.Int("requirements", len(requirements)))
	}
	return verdicts, nil
}

// retrieve collects the top-k chunks of every requirement, first occurrence wins.
// Failed queries are skipped; the lexical check still sees every chunk.
func (e *Engine) retrieve(ctx context.Context, requirements []string, idx domain.ChunkIndex) ([]domain.Chunk, error) {
	seen := make(map[int]bool)
	var out []domain.Chunk
	for _, req := range requirements {
		hits, err := idx.Query(ctx, req, e.cfg.TopK)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("retrieve context: %w", ctxErr)
			}
			logger.FromContext(ctx).Warn("context retrieval failed", zap.Error(err))
			metrics.FallbacksTotal.WithLabelValues("retrieve").Inc()
			continue
		}
		for _, h := range hits {
			if seen[h.Metadata.ChunkID] {
				continue
			}
			seen[h.Metadata.ChunkID] = true
			out = append(out, h.Chunk)
		}
	}
	return out, nil
}

// mergeContext joins chunks until the character budget is spent. A first chunk
// larger than the whole budget is cut to fit.
func (e *Engine) mergeContext(chunks []domain.Chunk) string {
	const sep = "\n---\n"
	budget := e.cfg.MaxContextChars

	var b strings.Builder
	used := 0
	for i, c := range chunks {
		n := utf8.RuneCountInString(c.Content)
		if i > 0 {
			n += utf8.RuneCountInString(sep)
		}
		if used+n > budget {
			if i == 0 {
				b.WriteString(string([]rune(c.Content)[:budget]))
			}
			break
		}
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(c.Content)
		used += n
	}
	return b.String()
}
