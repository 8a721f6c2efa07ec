package reqcheck

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	llmBaseURL  string
	llmModel    string
	llmKeys     []string
	backoff     time.Duration
	callTimeout time.Duration

	embedder   Embedder
	dimensions int

	topK          int
	computeReport bool
	maxFileBytes  int64

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithLLM configures an OpenAI-compatible chat model. Keys are tried in order;
// a rate-limited or oversized call moves on to the next key.
func WithLLM(baseURL, model string, keys ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmBaseURL = baseURL
		c.llmModel = model
		c.llmKeys = keys
	})
}

// WithRotation tunes the pause before retrying on the next key and the per-call deadline.
// Defaults: 2s backoff, 120s per call.
func WithRotation(backoff, callTimeout time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.backoff = backoff
		c.callTimeout = callTimeout
	})
}

// WithEmbedder sets the embedding provider used to index chunks.
// dims is the vector size it returns.
func WithEmbedder(e Embedder, dims int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.dimensions = dims
	})
}

// WithTopK sets how many documentation chunks are retrieved per requirement. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithReport adds the aggregated compliance score to comparison results.
func WithReport() Option {
	return optionFunc(func(c *clientConfig) {
		c.computeReport = true
	})
}

// WithMaxFileBytes caps the size of files read by CompareFiles. Default: 10 MiB.
func WithMaxFileBytes(n int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxFileBytes = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
