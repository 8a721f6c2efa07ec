package domain

import "context"

// ChatModel is the remote language model contract: one prompt in, one completion out.
type ChatModel interface {
	Invoke(ctx context.Context, prompt string, opts InvokeOptions) (Completion, error)
}

// InvokeOptions tunes a single model call. Zero values mean provider defaults.
type InvokeOptions struct {
	Temperature float32
	MaxTokens   int
}

// Completion is the model's answer with token usage.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// ChatModelFunc adapts a function to ChatModel.
type ChatModelFunc func(ctx context.Context, prompt string, opts InvokeOptions) (Completion, error)

// Invoke calls f.
func (f ChatModelFunc) Invoke(ctx context.Context, prompt string, opts InvokeOptions) (Completion, error) {
	return f(ctx, prompt, opts)
}
