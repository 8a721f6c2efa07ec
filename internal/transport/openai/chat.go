package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reqcheck/internal/domain"
	"github.com/kailas-cloud/reqcheck/internal/metrics"
)

// ChatModel is a domain.ChatModel over the OpenAI-compatible chat completions API.
// One instance is bound to one API key; key rotation builds new instances.
type ChatModel struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ChatConfig holds the chat provider settings.
type ChatConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewChatModel creates a chat model client.
func NewChatModel(cfg *ChatConfig) *ChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatModel{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: log,
	}
}

// Invoke sends prompt as a single user message.
func (m *ChatModel) Invoke(ctx context.Context, prompt string, opts domain.InvokeOptions) (domain.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "error").Inc()
		mapped := chatError(err)
		m.logger.Debug("chat completion failed", zap.Duration("duration", duration), zap.Error(mapped))
		return domain.Completion{}, mapped
	}
	if len(resp.Choices) == 0 {
		metrics.LLMRequestsTotal.WithLabelValues(m.model, "error").Inc()
		return domain.Completion{}, fmt.Errorf("chat response has no choices: %w", domain.ErrModelProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(m.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(m.model).Observe(duration.Seconds())
	metrics.LLMTokensTotal.WithLabelValues(m.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues(m.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	return domain.Completion{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels.
func (m *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := m.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
