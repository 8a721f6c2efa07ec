// Package resilience wraps language model calls with credential rotation,
// backoff and per-call timeouts.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/metrics"
)

// Scope selects who owns the rotation cursor.
type Scope string

const (
	// ScopeShared shares one cursor between all runs of the process.
	ScopeShared Scope = "shared"
	// ScopeRun gives each run its own cursor, starting at the shared position.
	ScopeRun Scope = "run"
)

// ParseScope validates a rotation scope label.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeShared, nil
	case ScopeShared, ScopeRun:
		return sc, nil
	default:
		return "", fmt.Errorf("unknown rotation scope %q", s)
	}
}

// Factory builds a model client bound to one credential.
type Factory func(key string) domain.ChatModel

// Limiter throttles outgoing calls. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config tunes the rotator.
type Config struct {
	Keys        []string
	Backoff     time.Duration
	CallTimeout time.Duration
	Scope       Scope
	Limiter     Limiter
}

var _ domain.ChatModel = (*Rotator)(nil)

// Rotator is a domain.ChatModel that retries retryable failures on the next key.
// Each call makes at most one attempt per key.
type Rotator struct {
	factory Factory
	keys    []string
	backoff time.Duration
	timeout time.Duration
	scope   Scope
	limiter Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *zap.Logger

	mu     sync.Mutex
	cursor int
	client domain.ChatModel
}

// New creates a rotator. Blank keys are ignored; at least one key is required.
func New(factory Factory, cfg Config, logger *zap.Logger) (*Rotator, error) {
	keys := make([]string, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("at least one api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	scope := cfg.Scope
	if scope == "" {
		scope = ScopeShared
	}
	return &Rotator{
		factory: factory,
		keys:    keys,
		backoff: cfg.Backoff,
		timeout: cfg.CallTimeout,
		scope:   scope,
		limiter: cfg.Limiter,
		sleep:   sleepCtx,
		logger:  logger,
		client:  factory(keys[0]),
	}, nil
}

// WithSleep replaces the backoff sleep, for tests.
func (r *Rotator) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Rotator {
	r.sleep = fn
	return r
}

// Keys returns the number of usable credentials.
func (r *Rotator) Keys() int { return len(r.keys) }

// ForRun returns the model a single run should use: the rotator itself when the
// cursor is shared, an independent copy otherwise.
func (r *Rotator) ForRun() domain.ChatModel {
	if r.scope != ScopeRun {
		return r
	}
	r.mu.Lock()
	cursor := r.cursor
	r.mu.Unlock()

	return &Rotator{
		factory: r.factory,
		keys:    r.keys,
		backoff: r.backoff,
		timeout: r.timeout,
		scope:   ScopeShared,
		limiter: r.limiter,
		sleep:   r.sleep,
		logger:  r.logger,
		cursor:  cursor,
		client:  r.factory(r.keys[cursor]),
	}
}

// Invoke calls the current client, rotating to the next key on rate-limit,
// payload-size and timeout failures. Other failures are returned at once.
// When every key failed the error wraps domain.ErrModelExhausted and the last cause.
func (r *Rotator) Invoke(ctx context.Context, prompt string, opts domain.InvokeOptions) (domain.Completion, error) {
	var lastErr error
	for attempt := range len(r.keys) {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return domain.Completion{}, fmt.Errorf("model throttle: %w", err)
			}
		}

		client, cursor := r.current()
		res, err := r.call(ctx, client, prompt, opts)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return domain.Completion{}, fmt.Errorf("model call: %w", ctx.Err())
		}
		if !domain.IsRetryable(err) {
			return domain.Completion{}, err
		}

		lastErr = err
		if attempt == len(r.keys)-1 {
			break
		}

		next := r.rotate(cursor, err)
		r.logger.Warn("model call failed, rotating key",
			zap.Int("attempt", attempt+1),
			zap.Int("key_index", next),
			zap.Error(err),
		)
		if err := r.sleep(ctx, r.backoff); err != nil {
			return domain.Completion{}, fmt.Errorf("rotation backoff: %w", err)
		}
	}

	metrics.LLMExhaustedTotal.Inc()
	return domain.Completion{}, fmt.Errorf("%w after %d attempts: %w", domain.ErrModelExhausted, len(r.keys), lastErr)
}

func (r *Rotator) call(
	ctx context.Context, client domain.ChatModel, prompt string, opts domain.InvokeOptions,
) (domain.Completion, error) {
	if r.timeout <= 0 {
		return client.Invoke(ctx, prompt, opts)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := client.Invoke(callCtx, prompt, opts)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) &&
		!errors.Is(err, domain.ErrModelTimeout) {
		err = fmt.Errorf("%w after %s: %w", domain.ErrModelTimeout, r.timeout, err)
	}
	return res, err
}

// HealthCheck probes the client bound to the current key. Clients without a
// probe are reported healthy.
func (r *Rotator) HealthCheck(ctx context.Context) error {
	m, _ := r.current()
	if hc, ok := m.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (r *Rotator) current() (domain.ChatModel, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client, r.cursor
}

// rotate advances past from unless a concurrent caller already did, and returns the new cursor.
func (r *Rotator) rotate(from int, cause error) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == from {
		r.cursor = (r.cursor + 1) % len(r.keys)
		r.client = r.factory(r.keys[r.cursor])
		metrics.LLMKeyRotationsTotal.WithLabelValues(reason(cause)).Inc()
	}
	return r.cursor
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return "payload_too_large"
	default:
		return "timeout"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
