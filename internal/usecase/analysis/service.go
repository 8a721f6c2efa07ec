// Package analysis runs the extraction, indexing and comparison pipeline for a document pair.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/logger"
	"github.com/kailas-cloud/reqcheck/internal/metrics"
	"github.com/kailas-cloud/reqcheck/internal/usecase/classify"
	"github.com/kailas-cloud/reqcheck/internal/usecase/scoring"
)

// Config tunes input validation, reporting and explanations.
type Config struct {
	MinDocumentChars   int
	ComputeReport      bool
	ExplainTemperature float32
	ExplainMaxTokens   int
}

// Service runs comparisons. Each call builds its own stages and indexes,
// so concurrent runs share nothing mutable.
type Service struct {
	stages    Stages
	segmenter Segmenter
	indexes   domain.IndexBuilder
	sessions  SessionWriter
	model     domain.ChatModel
	cfg       Config
	now       func() time.Time
}

// New creates a Service. sessions is needed only by Run; model (used by Explain) may be nil.
func New(
	stages Stages,
	segmenter Segmenter,
	indexes domain.IndexBuilder,
	sessions SessionWriter,
	model domain.ChatModel,
	cfg Config,
) *Service {
	if cfg.ExplainTemperature <= 0 {
		cfg.ExplainTemperature = 0.1
	}
	return &Service{
		stages:    stages,
		segmenter: segmenter,
		indexes:   indexes,
		sessions:  sessions,
		model:     model,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Result is the outcome of a successful comparison.
type Result struct {
	Requirements []string
	Verdicts     []domain.Verdict
	Report       *domain.Report
}

// GenerateAnalysis compares reqDoc against implDoc and returns one verdict per
// extracted requirement, in requirement order.
func (s *Service) GenerateAnalysis(ctx context.Context, reqDoc, implDoc domain.Document) (Result, error) {
	return s.analyze(ctx, reqDoc, implDoc, func(domain.RunState) error { return nil })
}

// Run executes a comparison for an existing pending session and records the outcome.
// The returned error is the one stored in the session.
func (s *Service) Run(ctx context.Context, id string, reqDoc, implDoc domain.Document) error {
	ctx = logger.WithSession(ctx, id)
	log := logger.FromContext(ctx)
	start := s.now()

	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()

	progress := func(state domain.RunState) error {
		log.Debug("run state", zap.String("state", string(state)))
		return s.sessions.Transition(ctx, id, state)
	}

	res, err := s.analyze(ctx, reqDoc, implDoc, progress)
	finished := s.now()
	elapsed := finished.Sub(start)
	metrics.RunDuration.Observe(elapsed.Seconds())

	// the outcome is written even when ctx was cancelled mid-run
	store := context.WithoutCancel(ctx)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(domain.RunFailed)).Inc()
		log.Error("comparison failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		if ferr := s.sessions.Fail(store, id, err.Error(), finished, elapsed); ferr != nil {
			log.Error("record failure", zap.Error(ferr))
		}
		return err
	}

	if err := s.sessions.Complete(store, id, res.Verdicts, res.Report, finished, elapsed); err != nil {
		metrics.RunsTotal.WithLabelValues(string(domain.RunFailed)).Inc()
		log.Error("record result", zap.Error(err))
		return fmt.Errorf("record result: %w", err)
	}
	metrics.RunsTotal.WithLabelValues(string(domain.RunCompleted)).Inc()
	log.Info("comparison completed",
		zap.Int("requirements", len(res.Requirements)),
		zap.Duration("elapsed", elapsed))
	return nil
}

func (s *Service) analyze(
	ctx context.Context,
	reqDoc, implDoc domain.Document,
	progress func(domain.RunState) error,
) (Result, error) {
	if err := s.validate("requirements", reqDoc); err != nil {
		return Result{}, err
	}
	if err := s.validate("implementation", implDoc); err != nil {
		return Result{}, err
	}
	extractor, comparer := s.stages()

	if err := progress(domain.RunExtractingRequirements); err != nil {
		return Result{}, err
	}
	reqs, err := extractor.Extract(ctx, reqDoc)
	if err != nil {
		return Result{}, fmt.Errorf("extract requirements: %w", err)
	}
	metrics.RequirementsExtracted.Observe(float64(len(reqs)))

	if err := progress(domain.RunBuildingIndex); err != nil {
		return Result{}, err
	}
	reqIdx, err := s.buildIndex(ctx, reqDoc, domain.SourceRequirements)
	if err != nil {
		return Result{}, err
	}
	defer s.closeIndex(ctx, reqIdx)
	docIdx, err := s.buildIndex(ctx, implDoc, domain.SourceImplementation)
	if err != nil {
		return Result{}, err
	}
	defer s.closeIndex(ctx, docIdx)

	if err := progress(domain.RunComparing); err != nil {
		return Result{}, err
	}
	verdicts, err := comparer.Compare(ctx, reqs, docIdx)
	if err != nil {
		return Result{}, fmt.Errorf("compare: %w", err)
	}
	if len(verdicts) != len(reqs) {
		return Result{}, fmt.Errorf("compare returned %d verdicts for %d requirements", len(verdicts), len(reqs))
	}
	for _, v := range verdicts {
		metrics.VerdictsTotal.WithLabelValues(string(v.Status.Status)).Inc()
	}

	res := Result{Requirements: reqs, Verdicts: verdicts}
	if s.cfg.ComputeReport {
		report := scoring.Aggregate(verdicts, docIdx.Chunks())
		res.Report = &report
	}
	return res, nil
}

func (s *Service) validate(name string, doc domain.Document) error {
	if doc.IsBlank() {
		return fmt.Errorf("%s document %q is empty: %w", name, doc.Name, domain.ErrInvalidDocument)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(doc.RawText)); n < s.cfg.MinDocumentChars {
		return fmt.Errorf("%s document %q has %d characters, minimum is %d: %w",
			name, doc.Name, n, s.cfg.MinDocumentChars, domain.ErrInvalidDocument)
	}
	return nil
}

func (s *Service) buildIndex(ctx context.Context, doc domain.Document, source domain.Source) (domain.ChunkIndex, error) {
	chunks, err := s.segmenter.Segment(ctx, doc.RawText, source)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", source, err)
	}
	idx, err := s.indexes.Build(ctx, source, chunks)
	if err != nil {
		return nil, fmt.Errorf("build %s index: %w", source, err)
	}
	logger.FromContext(ctx).Debug("index built",
		zap.String("source", string(source)),
		zap.Int("chunks", len(chunks)))
	return idx, nil
}

func (s *Service) closeIndex(ctx context.Context, idx domain.ChunkIndex) {
	if err := idx.Close(context.WithoutCancel(ctx)); err != nil {
		logger.FromContext(ctx).Warn("close index", zap.Error(err))
	}
}

const explainPrompt = `Restate the following requirement as one short, plain sentence that a
non-specialist can understand. Answer with that sentence only, in the language of the requirement.

Requirement:
%s`

// Explain returns a one-sentence plain restatement of text. Without a model,
// or when the model fails, it returns the first sentence of text.
func (s *Service) Explain(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	fallback := classify.FirstSentence(text)
	if s.model == nil {
		return fallback
	}

	completion, err := s.model.Invoke(ctx, fmt.Sprintf(explainPrompt, text), domain.InvokeOptions{
		Temperature: s.cfg.ExplainTemperature,
		MaxTokens:   s.cfg.ExplainMaxTokens,
	})
	if err == nil {
		if answer := strings.TrimSpace(completion.Content); answer != "" {
			return answer
		}
		err = domain.ErrMalformedResponse
	}
	if !errors.Is(err, context.Canceled) {
		logger.FromContext(ctx).Warn("explain failed, returning first sentence", zap.Error(err))
	}
	metrics.FallbacksTotal.WithLabelValues("explain").Inc()
	return fallback
}
