// Package bootstrap assembles the application from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/reqcheck/internal/config"
	dbPostgres "github.com/kailas-cloud/reqcheck/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/reqcheck/internal/db/redis"
	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/loader"
	"github.com/kailas-cloud/reqcheck/internal/metrics"
	"github.com/kailas-cloud/reqcheck/internal/repository/embcache"
	sessionrepo "github.com/kailas-cloud/reqcheck/internal/repository/session"
	"github.com/kailas-cloud/reqcheck/internal/repository/vectorindex"
	"github.com/kailas-cloud/reqcheck/internal/transport/hashemb"
	openaiTransport "github.com/kailas-cloud/reqcheck/internal/transport/openai"
	"github.com/kailas-cloud/reqcheck/internal/usecase/analysis"
	"github.com/kailas-cloud/reqcheck/internal/usecase/classify"
	"github.com/kailas-cloud/reqcheck/internal/usecase/compare"
	embeddinguc "github.com/kailas-cloud/reqcheck/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/reqcheck/internal/usecase/health"
	"github.com/kailas-cloud/reqcheck/internal/usecase/index"
	"github.com/kailas-cloud/reqcheck/internal/usecase/resilience"
	"github.com/kailas-cloud/reqcheck/internal/usecase/runner"
	"github.com/kailas-cloud/reqcheck/internal/usecase/segment"
)

// SessionStore is everything the application needs from session persistence.
type SessionStore interface {
	runner.SessionCreator
	runner.Cleaner
	analysis.SessionWriter
	Ping(ctx context.Context) error
	Get(ctx context.Context, id string) (domain.Session, error)
}

// App holds the wired services.
type App struct {
	Sessions SessionStore
	Loader   *loader.Loader
	Analysis *analysis.Service
	Runner   *runner.Runner
	Janitor  *runner.Janitor
	Health   *healthuc.Service

	stages  analysis.Stages
	closers []func()
}

// New wires every component described by cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	metrics.RegisterPipelineMetrics()
	metrics.RegisterLLMMetrics()
	metrics.RegisterEmbeddingMetrics()

	app := &App{Loader: loader.New(cfg.Documents.MaxUploadBytes)}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var redisStore *dbRedis.Store
	if cfg.Database.Driver == "redis" {
		redisStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		app.closers = append(app.closers, redisStore.Close)
		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
	}

	retention := time.Duration(cfg.Runner.RetentionDays) * 24 * time.Hour
	if app.Sessions, err = app.sessionStore(ctx, cfg, redisStore, retention, logger); err != nil {
		return nil, err
	}

	base, err := baseEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	docEmbedder := buildEmbedder(cfg, base, cfg.Embedding.DocumentInstruction, redisStore, retention, logger)
	queryEmbedder := buildEmbedder(cfg, base, cfg.Embedding.QueryInstruction, redisStore, retention, logger)

	var indexes domain.IndexBuilder = index.NewMemoryBuilder(docEmbedder, queryEmbedder)
	if cfg.Index.Backend == "redis" {
		indexes = vectorindex.New(redisStore, docEmbedder, queryEmbedder, vectorindex.Config{
			KeyPrefix:   cfg.Storage.KeyPrefix,
			Dimensions:  cfg.Embedding.Dimensions,
			HNSWM:       cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		}, logger)
	}

	rotator, err := buildRotator(cfg, logger)
	if err != nil {
		return nil, err
	}
	// Keep the interface nil when no keys are configured; stages then run on heuristics.
	var model domain.ChatModel
	var llmCheck healthuc.Checker
	if rotator != nil {
		model = rotator
		llmCheck = rotator
	}

	segmenter, err := segment.New(ctx, segment.Config{
		ParagraphMaxChars: cfg.Segmenter.ParagraphMaxChars,
		ChunkSize:         cfg.Segmenter.ChunkSize,
		ChunkOverlap:      cfg.Segmenter.ChunkOverlap,
		MinChunkChars:     cfg.Segmenter.MinChunkChars,
	})
	if err != nil {
		return nil, fmt.Errorf("create segmenter: %w", err)
	}

	extractor, err := buildExtractor(cfg, docEmbedder)
	if err != nil {
		return nil, err
	}
	engine := compare.New(nil, compare.Config{
		TopK:            cfg.Comparison.TopK,
		MaxContextChars: cfg.Comparison.MaxContextChars,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
	})

	stages := func() (analysis.Extractor, analysis.Comparer) {
		var m domain.ChatModel
		if rotator != nil {
			m = rotator.ForRun()
		}
		return extractor.WithModel(m), engine.WithModel(m)
	}

	app.stages = stages
	app.Analysis = analysis.New(stages, segmenter, indexes, app.Sessions, model, analysis.Config{
		MinDocumentChars:   cfg.Documents.MinDocumentChars,
		ComputeReport:      cfg.Comparison.ComputeReport,
		ExplainTemperature: cfg.LLM.ExplainTemp,
		ExplainMaxTokens:   cfg.LLM.MaxTokens,
	})
	app.Runner = runner.New(app.Sessions, app.Analysis, cfg.Runner.MaxConcurrent, logger)
	app.Janitor = runner.NewJanitor(app.Sessions, retention,
		time.Duration(cfg.Runner.CleanupIntervalHours)*time.Hour, logger)

	var embCheck healthuc.Checker
	if hc, ok := base.(domain.HealthChecker); ok {
		embCheck = hc
	}
	app.Health = healthuc.New(app.Sessions, llmCheck, embCheck)

	logger.Info("Application wired",
		zap.String("session_store", cfg.Database.Driver),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("llm_keys", keyCount(rotator)),
	)
	return app, nil
}

// Extract runs requirement extraction alone, with the same model binding as a full run.
func (a *App) Extract(ctx context.Context, doc domain.Document) ([]string, error) {
	extractor, _ := a.stages()
	reqs, err := extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract requirements: %w", err)
	}
	return reqs, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) sessionStore(
	ctx context.Context, cfg config.Config, redisStore *dbRedis.Store, retention time.Duration, logger *zap.Logger,
) (SessionStore, error) {
	switch cfg.Database.Driver {
	case "redis":
		return sessionrepo.NewRedisStore(redisStore, cfg.Storage.KeyPrefix, retention), nil
	case "postgres":
		gdb, err := dbPostgres.Open(ctx, dbPostgres.Config{
			DSN:         cfg.Database.DSN,
			PingTimeout: time.Duration(cfg.Database.ReadinessTimeout) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := dbPostgres.Close(gdb); err != nil {
				logger.Warn("Failed to close postgres", zap.Error(err))
			}
		})
		store := sessionrepo.NewPostgresStore(gdb)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sessions: %w", err)
		}
		return store, nil
	default:
		return sessionrepo.NewMemoryStore(), nil
	}
}

func baseEmbedder(cfg config.Config, logger *zap.Logger) (domain.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.Model == "" {
			return nil, fmt.Errorf("embedding.model is required for provider %q", cfg.Embedding.Provider)
		}
		return openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		}), nil
	default:
		return hashemb.New(cfg.Embedding.Dimensions), nil
	}
}

// buildEmbedder assembles the decorator chain: provider -> cached -> instrumented -> instruction.
func buildEmbedder(
	cfg config.Config,
	base domain.Embedder,
	instruction string,
	redisStore *dbRedis.Store,
	ttl time.Duration,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Embedding.Cache && redisStore != nil {
		embedder = embcache.New(base, redisStore, embcache.Config{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Namespace: fmt.Sprintf("%s:%s:%d", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions),
			TTL:       ttl,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimensions, nil, logger,
	)

	// Outermost, so the cache key includes the instruction.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

// buildRotator returns nil when no language model keys are configured.
func buildRotator(cfg config.Config, logger *zap.Logger) (*resilience.Rotator, error) {
	var keys []string
	for _, k := range cfg.LLM.APIKeys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		logger.Info("No language model keys configured, comparisons use heuristics only")
		return nil, nil
	}

	scope, err := resilience.ParseScope(cfg.LLM.RotationScope)
	if err != nil {
		return nil, fmt.Errorf("llm rotation scope: %w", err)
	}
	var limiter resilience.Limiter
	if cfg.LLM.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LLM.RequestsPerSecond), cfg.LLM.Burst)
	}

	factory := func(key string) domain.ChatModel {
		return openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
			APIKey:  key,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Logger:  logger,
		})
	}
	rotator, err := resilience.New(factory, resilience.Config{
		Keys:        keys,
		Backoff:     time.Duration(cfg.LLM.BackoffMillis) * time.Millisecond,
		CallTimeout: time.Duration(cfg.LLM.CallTimeoutSec) * time.Second,
		Scope:       scope,
		Limiter:     limiter,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create rotator: %w", err)
	}
	return rotator, nil
}

func buildExtractor(cfg config.Config, embedder domain.Embedder) (*classify.Extractor, error) {
	mode, err := classify.ParseMode(cfg.Extraction.Mode)
	if err != nil {
		return nil, fmt.Errorf("extraction mode: %w", err)
	}
	dedup, err := classify.ParseDedupPolicy(cfg.Extraction.Dedup)
	if err != nil {
		return nil, fmt.Errorf("extraction dedup: %w", err)
	}

	ecfg := classify.DefaultConfig()
	ecfg.Mode = mode
	ecfg.MinRuleCount = cfg.Extraction.MinRuleCount
	ecfg.MinChars = cfg.Extraction.MinRequirementChars
	ecfg.MaxChars = cfg.Extraction.MaxRequirementChars
	ecfg.Dedup = dedup
	ecfg.SemanticThreshold = cfg.Extraction.SemanticThreshold
	ecfg.Temperature = cfg.LLM.Temperature
	ecfg.MaxTokens = cfg.LLM.MaxTokens
	return classify.NewExtractor(classify.NewRuleClassifier(), nil, embedder, ecfg), nil
}

func keyCount(r *resilience.Rotator) int {
	if r == nil {
		return 0
	}
	return r.Keys()
}
