package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func chatServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error", "code": code},
	})
}

func newTestChat(url string) *ChatModel {
	return NewChatModel(&ChatConfig{APIKey: "sk-test", BaseURL: url, Model: "test-chat"})
}

func TestChatModel_Invoke(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		if req.Model != "test-chat" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "ping" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature != 0.1 || req.MaxTokens != 64 {
			t.Errorf("unexpected options: %v %d", req.Temperature, req.MaxTokens)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "pong"}}},
			"usage":   map[string]any{"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4},
		})
	})

	got, err := newTestChat(srv.URL).Invoke(context.Background(), "ping", domain.InvokeOptions{Temperature: 0.1, MaxTokens: 64})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if got.Content != "pong" || got.PromptTokens != 3 || got.CompletionTokens != 1 {
		t.Errorf("unexpected completion: %+v", got)
	}
}

func TestChatModel_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		message string
		want    error
	}{
		{"rate limit", http.StatusTooManyRequests, "rate_limit_exceeded", "slow down", domain.ErrRateLimited},
		{"payload status", http.StatusRequestEntityTooLarge, "", "request too large", domain.ErrPayloadTooLarge},
		{"context length", http.StatusBadRequest, "context_length_exceeded",
			"This model's maximum context length is 8192 tokens", domain.ErrPayloadTooLarge},
		{"gateway timeout", http.StatusGatewayTimeout, "", "timeout", domain.ErrModelTimeout},
		{"auth", http.StatusUnauthorized, "invalid_api_key", "bad key", domain.ErrModelProviderError},
		{"server", http.StatusInternalServerError, "", "boom", domain.ErrModelProviderError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
				writeError(w, tc.status, tc.code, tc.message)
			})
			_, err := newTestChat(srv.URL).Invoke(context.Background(), "x", domain.InvokeOptions{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if domain.IsRetryable(err) != domain.IsRetryable(tc.want) {
				t.Errorf("retryable mismatch for %v", err)
			}
		})
	}
}

func TestChatModel_DeadlineIsTimeout(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestChat(srv.URL).Invoke(ctx, "x", domain.InvokeOptions{})
	if !errors.Is(err, domain.ErrModelTimeout) {
		t.Fatalf("expected ErrModelTimeout, got %v", err)
	}
}

func TestChatModel_NoChoices(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})
	_, err := newTestChat(srv.URL).Invoke(context.Background(), "x", domain.InvokeOptions{})
	if !errors.Is(err, domain.ErrModelProviderError) {
		t.Fatalf("expected ErrModelProviderError, got %v", err)
	}
}
