package classify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/logger"
	"github.com/kailas-cloud/reqcheck/internal/metrics"
	"github.com/kailas-cloud/reqcheck/internal/usecase/segment"
)

// Mode selects the primary extraction strategy.
type Mode string

// Extraction modes.
const (
	// ModeRules classifies paragraphs with rules and asks the model only when too few are found.
	ModeRules Mode = "rules"
	// ModeLLM asks the model first and keeps rule hits as a fallback.
	ModeLLM Mode = "llm"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRules, ModeLLM:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown extraction mode %q", s)
	}
}

// Config tunes the Extractor.
type Config struct {
	Mode              Mode
	MinRuleCount      int
	MinChars          int
	MaxChars          int
	Dedup             DedupPolicy
	SemanticThreshold float64
	MaxPromptChars    int
	Temperature       float32
	MaxTokens         int
}

// DefaultConfig returns the defaults used by the service.
func DefaultConfig() Config {
	return Config{
		Mode:              ModeRules,
		MinRuleCount:      3,
		MinChars:          10,
		MaxChars:          300,
		Dedup:             DedupSubstring,
		SemanticThreshold: 0.92,
		MaxPromptChars:    12000,
		Temperature:       0.2,
	}
}

// Extractor produces the ordered requirement list of a document.
type Extractor struct {
	classifier Classifier
	model      domain.ChatModel
	embedder   domain.Embedder
	cfg        Config
}

// NewExtractor creates an Extractor. model may be nil (rules only);
// embedder is required only for the semantic dedup policy.
func NewExtractor(classifier Classifier, model domain.ChatModel, embedder domain.Embedder, cfg Config) *Extractor {
	if classifier == nil {
		classifier = NewRuleClassifier()
	}
	return &Extractor{classifier: classifier, model: model, embedder: embedder, cfg: cfg}
}

// WithModel returns a copy of e that calls model instead.
func (e *Extractor) WithModel(model domain.ChatModel) *Extractor {
	cp := *e
	cp.model = model
	return &cp
}

type candidate struct {
	text  string
	order float64
}

// Extract returns requirements in document order. The result is the same for the
// same document and model answer. Model failures degrade to keyword paragraphs;
// ErrNoRequirements is returned when nothing survives.
func (e *Extractor) Extract(ctx context.Context, doc domain.Document) ([]string, error) {
	log := logger.FromContext(ctx)
	paragraphs := segment.Paragraphs(doc.RawText)

	candidates := e.ruleCandidates(paragraphs)
	ruleHits := len(candidates)

	if e.model != nil && (e.cfg.Mode == ModeLLM || ruleHits < e.cfg.MinRuleCount) {
		fromModel, err := e.modelCandidates(ctx, doc.RawText, paragraphs)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("extract requirements: %w", ctxErr)
			}
			log.Warn("model extraction failed, using keyword paragraphs", zap.Error(err))
			metrics.FallbacksTotal.WithLabelValues("extract").Inc()
			candidates = append(candidates, e.keywordCandidates(paragraphs)...)
		case e.cfg.Mode == ModeLLM && len(fromModel) > 0:
			candidates = fromModel
		default:
			candidates = append(candidates, fromModel...)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.text
	}

	reqs, err := e.dedup(ctx, texts)
	if err != nil {
		return nil, err
	}
	log.Debug("requirements extracted",
		zap.Int("paragraphs", len(paragraphs)),
		zap.Int("rule_hits", ruleHits),
		zap.Int("requirements", len(reqs)))

	if len(reqs) == 0 {
		return nil, domain.ErrNoRequirements
	}
	return reqs, nil
}

func (e *Extractor) ruleCandidates(paragraphs []string) []candidate {
	var out []candidate
	for i, p := range paragraphs {
		if !e.classifier.Classify(p).Kind.IsRequirement() {
			continue
		}
		if s, ok := e.accept(p); ok {
			out = append(out, candidate{text: s, order: float64(i)})
		}
	}
	return out
}

func (e *Extractor) keywordCandidates(paragraphs []string) []candidate {
	var out []candidate
	for i, p := range paragraphs {
		if !hasObligationWord(p) {
			continue
		}
		if s, ok := e.accept(p); ok {
			out = append(out, candidate{text: s, order: float64(i)})
		}
	}
	return out
}

// modelCandidates places each model line after the first paragraph that contains it;
// lines not found in the text go to the end in answer order.
func (e *Extractor) modelCandidates(ctx context.Context, raw string, paragraphs []string) ([]candidate, error) {
	completion, err := e.model.Invoke(ctx, ExtractionPrompt(raw, e.cfg.MaxPromptChars), domain.InvokeOptions{
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	lines := ParseExtraction(completion.Content)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no requirement lines in extraction answer", domain.ErrMalformedResponse)
	}

	normParas := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		normParas[i] = domain.NormalizeText(p)
	}

	var out []candidate
	for k, l := range lines {
		if e.classifier.Classify(l).Kind == domain.KindExcluded {
			continue
		}
		s, ok := e.accept(l)
		if !ok {
			continue
		}
		order := float64(len(paragraphs) + k)
		n := domain.NormalizeText(s)
		for i, p := range normParas {
			if strings.Contains(p, n) {
				order = float64(i) + 0.5
				break
			}
		}
		out = append(out, candidate{text: s, order: order})
	}
	return out, nil
}

func (e *Extractor) accept(text string) (string, bool) {
	s := Clean(text, e.cfg.MaxChars)
	return s, utf8.RuneCountInString(s) > e.cfg.MinChars
}

func (e *Extractor) dedup(ctx context.Context, texts []string) ([]string, error) {
	if e.cfg.Dedup != DedupSemantic || e.embedder == nil {
		return DedupSubstrings(texts), nil
	}
	out, err := DedupEmbeddings(ctx, e.embedder, texts, e.cfg.SemanticThreshold)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	logger.FromContext(ctx).Warn("semantic dedup failed, using substring dedup", zap.Error(err))
	return DedupSubstrings(texts), nil
}
