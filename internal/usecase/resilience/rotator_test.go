package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/metrics"
)

// keyedModels hands out one scripted model per key and records the call order.
type keyedModels struct {
	mu      sync.Mutex
	errs    map[string]error
	calls   []string
	built   []string
	blockOn string
}

func (k *keyedModels) factory(key string) domain.ChatModel {
	k.mu.Lock()
	k.built = append(k.built, key)
	k.mu.Unlock()
	return domain.ChatModelFunc(func(ctx context.Context, _ string, _ domain.InvokeOptions) (domain.Completion, error) {
		k.mu.Lock()
		k.calls = append(k.calls, key)
		err := k.errs[key]
		k.mu.Unlock()
		if key == k.blockOn {
			<-ctx.Done()
			return domain.Completion{}, ctx.Err()
		}
		if err != nil {
			return domain.Completion{}, err
		}
		return domain.Completion{Content: "answer from " + key}, nil
	})
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestRotator(t *testing.T, k *keyedModels, keys ...string) *Rotator {
	t.Helper()
	r, err := New(k.factory, Config{Keys: keys, Backoff: 2 * time.Second}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r.WithSleep(noSleep)
}

func TestInvoke_FirstKeySucceeds(t *testing.T) {
	k := &keyedModels{}
	r := newTestRotator(t, k, "a", "b")

	res, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "answer from a" || len(k.calls) != 1 {
		t.Errorf("got %q after calls %v", res.Content, k.calls)
	}
}

func TestInvoke_RotatesUntilLastKeySucceeds(t *testing.T) {
	rateLimited := fmt.Errorf("429: %w", domain.ErrRateLimited)
	k := &keyedModels{errs: map[string]error{
		"a": rateLimited,
		"b": fmt.Errorf("413: %w", domain.ErrPayloadTooLarge),
		"c": nil,
	}}
	var slept []time.Duration
	r := newTestRotator(t, k, "a", "b", "c").WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})
	before := testutil.ToFloat64(metrics.LLMKeyRotationsTotal.WithLabelValues("rate_limited"))

	res, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "answer from c" {
		t.Errorf("got %q", res.Content)
	}
	if len(k.calls) != 3 {
		t.Errorf("expected exactly 3 attempts, got %v", k.calls)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second {
		t.Errorf("expected 2 backoffs of 2s, got %v", slept)
	}
	if got := testutil.ToFloat64(metrics.LLMKeyRotationsTotal.WithLabelValues("rate_limited")) - before; got != 1 {
		t.Errorf("rate_limited rotations = %v, want 1", got)
	}
}

func TestInvoke_CursorPersistsAcrossCalls(t *testing.T) {
	k := &keyedModels{errs: map[string]error{"a": domain.ErrRateLimited}}
	r := newTestRotator(t, k, "a", "b")

	if _, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	k.calls = nil
	if _, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{}); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if len(k.calls) != 1 || k.calls[0] != "b" {
		t.Errorf("second call should start on key b, got %v", k.calls)
	}
}

func TestInvoke_Exhausted(t *testing.T) {
	k := &keyedModels{errs: map[string]error{
		"a": domain.ErrRateLimited,
		"b": domain.ErrRateLimited,
	}}
	r := newTestRotator(t, k, "a", "b")
	before := testutil.ToFloat64(metrics.LLMExhaustedTotal)

	_, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{})
	if !errors.Is(err, domain.ErrModelExhausted) || !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected exhausted wrapping rate limit, got %v", err)
	}
	if len(k.calls) != 2 {
		t.Errorf("expected one attempt per key, got %v", k.calls)
	}
	if got := testutil.ToFloat64(metrics.LLMExhaustedTotal) - before; got != 1 {
		t.Errorf("exhausted counter delta = %v, want 1", got)
	}
}

func TestInvoke_NonRetryableSurfacesImmediately(t *testing.T) {
	k := &keyedModels{errs: map[string]error{"a": domain.ErrModelProviderError}}
	r := newTestRotator(t, k, "a", "b")

	_, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{})
	if !errors.Is(err, domain.ErrModelProviderError) || errors.Is(err, domain.ErrModelExhausted) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if len(k.calls) != 1 {
		t.Errorf("non-retryable error must not rotate, calls %v", k.calls)
	}
}

func TestInvoke_PerCallTimeoutRotates(t *testing.T) {
	k := &keyedModels{blockOn: "slow"}
	r, err := New(k.factory, Config{Keys: []string{"slow", "fast"}, CallTimeout: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.WithSleep(noSleep)

	res, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Content != "answer from fast" {
		t.Errorf("got %q", res.Content)
	}
}

func TestInvoke_ParentCancelStops(t *testing.T) {
	k := &keyedModels{errs: map[string]error{"a": domain.ErrRateLimited}}
	r := newTestRotator(t, k, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Invoke(ctx, "p", domain.InvokeOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNew_RequiresKeys(t *testing.T) {
	k := &keyedModels{}
	if _, err := New(k.factory, Config{Keys: []string{"", "  "}}, nil); err == nil {
		t.Fatal("expected error for blank keys")
	}
}

func TestForRun_Scopes(t *testing.T) {
	k := &keyedModels{errs: map[string]error{"a": domain.ErrRateLimited}}

	shared, _ := New(k.factory, Config{Keys: []string{"a", "b"}, Scope: ScopeShared}, nil)
	if shared.ForRun() != domain.ChatModel(shared) {
		t.Error("shared scope should hand out the rotator itself")
	}

	perRun, _ := New(k.factory, Config{Keys: []string{"a", "b"}, Scope: ScopeRun}, nil)
	perRun.WithSleep(noSleep)
	run := perRun.ForRun()
	if _, err := run.Invoke(context.Background(), "p", domain.InvokeOptions{}); err != nil {
		t.Fatalf("run invoke: %v", err)
	}
	if _, cursor := perRun.current(); cursor != 0 {
		t.Errorf("run-scoped rotation leaked into the shared cursor: %d", cursor)
	}
}

func TestInvoke_ConcurrentCallersRotateOnce(t *testing.T) {
	k := &keyedModels{errs: map[string]error{"a": domain.ErrRateLimited}}
	r := newTestRotator(t, k, "a", "b", "c")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Invoke(context.Background(), "p", domain.InvokeOptions{}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, cursor := r.current(); cursor != 1 {
		t.Errorf("cursor = %d, want 1 (single rotation past the failing key)", cursor)
	}
}

func TestParseScope(t *testing.T) {
	if s, err := ParseScope(""); err != nil || s != ScopeShared {
		t.Errorf("empty: %v, %v", s, err)
	}
	if s, err := ParseScope("RUN"); err != nil || s != ScopeRun {
		t.Errorf("RUN: %v, %v", s, err)
	}
	if _, err := ParseScope("global"); err == nil {
		t.Error("expected error")
	}
}

type probedModel struct {
	domain.ChatModelFunc
	err error
}

func (p probedModel) HealthCheck(context.Context) error { return p.err }

func TestHealthCheck_ProbesCurrentClient(t *testing.T) {
	down := errors.New("unauthorized")
	factory := func(key string) domain.ChatModel {
		if key == "bad" {
			return probedModel{err: down}
		}
		return probedModel{}
	}
	r, err := New(factory, Config{Keys: []string{"bad", "good"}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected probe error, got %v", err)
	}

	plain := newTestRotator(t, &keyedModels{}, "a")
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Errorf("client without probe should be healthy, got %v", err)
	}
}
