package reqcheck

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/loader"
	"github.com/kailas-cloud/reqcheck/internal/transport/hashemb"
	openaiTransport "github.com/kailas-cloud/reqcheck/internal/transport/openai"
	"github.com/kailas-cloud/reqcheck/internal/usecase/analysis"
	"github.com/kailas-cloud/reqcheck/internal/usecase/classify"
	"github.com/kailas-cloud/reqcheck/internal/usecase/compare"
	healthuc "github.com/kailas-cloud/reqcheck/internal/usecase/health"
	"github.com/kailas-cloud/reqcheck/internal/usecase/index"
	"github.com/kailas-cloud/reqcheck/internal/usecase/resilience"
	"github.com/kailas-cloud/reqcheck/internal/usecase/segment"
)

const (
	defaultBackoff     = 2 * time.Second
	defaultCallTimeout = 120 * time.Second
	minDocumentChars   = 20
)

// Internal interfaces, replaced in tests.
type analysisUseCase interface {
	GenerateAnalysis(ctx context.Context, reqDoc, implDoc domain.Document) (analysis.Result, error)
	Explain(ctx context.Context, text string) string
}

type fileLoader interface {
	LoadFile(path string) (domain.Document, error)
}

// Client is the reqcheck SDK entry point. Safe for concurrent use.
type Client struct {
	analysisSvc analysisUseCase
	stages      analysis.Stages
	loader      fileLoader
	healthSvc   healthUseCase
	obs         *observer
}

// New creates a Client. The context bounds component setup only.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		backoff:      defaultBackoff,
		callTimeout:  defaultCallTimeout,
		maxFileBytes: loader.DefaultMaxBytes,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(ctx, cfg, obs)
}

func wireClient(ctx context.Context, cfg *clientConfig, obs *observer) (*Client, error) {
	var emb domain.Embedder = hashemb.New(cfg.dimensions)
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	seg, err := segment.New(ctx, segment.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("reqcheck: create segmenter: %w", err)
	}

	var model domain.ChatModel
	var llmCheck healthuc.Checker
	var rotator *resilience.Rotator
	if len(cfg.llmKeys) > 0 {
		factory := func(key string) domain.ChatModel {
			return openaiTransport.NewChatModel(&openaiTransport.ChatConfig{
				APIKey:  key,
				BaseURL: cfg.llmBaseURL,
				Model:   cfg.llmModel,
			})
		}
		rotator, err = resilience.New(factory, resilience.Config{
			Keys:        cfg.llmKeys,
			Backoff:     cfg.backoff,
			CallTimeout: cfg.callTimeout,
		}, zap.NewNop())
		if err != nil {
			return nil, fmt.Errorf("reqcheck: %w", err)
		}
		model, llmCheck = rotator, rotator
	}

	ccfg := compare.DefaultConfig()
	if cfg.topK > 0 {
		ccfg.TopK = cfg.topK
	}
	extractor := classify.NewExtractor(classify.NewRuleClassifier(), nil, emb, classify.DefaultConfig())
	engine := compare.New(nil, ccfg)
	stages := func() (analysis.Extractor, analysis.Comparer) {
		var m domain.ChatModel
		if rotator != nil {
			m = rotator.ForRun()
		}
		return extractor.WithModel(m), engine.WithModel(m)
	}

	var embCheck healthuc.Checker
	if hc, ok := emb.(domain.HealthChecker); ok {
		embCheck = hc
	}

	return &Client{
		analysisSvc: analysis.New(stages, seg, index.NewMemoryBuilder(emb, emb), nil, model, analysis.Config{
			MinDocumentChars: minDocumentChars,
			ComputeReport:    cfg.computeReport,
		}),
		stages:    stages,
		loader:    loader.New(cfg.maxFileBytes),
		healthSvc: healthuc.New(nil, llmCheck, embCheck),
		obs:       obs,
	}, nil
}

// Compare checks the implementation text against the requirements text.
func (c *Client) Compare(ctx context.Context, requirements, implementation string) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("compare", start, err, "requirements", len(res.Requirements)) }()

	return c.compare(ctx,
		domain.NewDocument("requirements", requirements),
		domain.NewDocument("implementation", implementation))
}

// CompareFiles reads two .txt, .pdf or .docx files and compares them.
func (c *Client) CompareFiles(ctx context.Context, requirementsPath, implementationPath string) (res Result, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("compare_files", start, err,
			"requirements_file", requirementsPath, "implementation_file", implementationPath)
	}()

	reqDoc, err := c.loader.LoadFile(requirementsPath)
	if err != nil {
		return Result{}, fmt.Errorf("load requirements: %w", err)
	}
	implDoc, err := c.loader.LoadFile(implementationPath)
	if err != nil {
		return Result{}, fmt.Errorf("load implementation: %w", err)
	}
	return c.compare(ctx, reqDoc, implDoc)
}

func (c *Client) compare(ctx context.Context, reqDoc, implDoc domain.Document) (Result, error) {
	out, err := c.analysisSvc.GenerateAnalysis(ctx, reqDoc, implDoc)
	if err != nil {
		return Result{}, fmt.Errorf("compare: %w", err)
	}
	res := Result{
		Requirements: out.Requirements,
		Verdicts:     make([]Verdict, len(out.Verdicts)),
		Report:       reportFromDomain(out.Report),
	}
	for i, v := range out.Verdicts {
		res.Verdicts[i] = verdictFromDomain(v)
	}
	c.obs.countVerdicts(res.Verdicts)
	return res, nil
}

// Extract lists the requirements found in text, in document order.
func (c *Client) Extract(ctx context.Context, text string) (reqs []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("extract", start, err, "requirements", len(reqs)) }()

	extractor, _ := c.stages()
	reqs, err = extractor.Extract(ctx, domain.NewDocument("requirements", text))
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	return reqs, nil
}

// Explain returns a short plain-language explanation of a requirement.
// Without a language model it returns the first sentence of text.
func (c *Client) Explain(ctx context.Context, text string) string {
	start := time.Now()
	defer c.obs.observe("explain", start, nil)

	return c.analysisSvc.Explain(ctx, text)
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
