package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/reqcheck/internal/domain"
)

// describeAPIError returns the HTTP status and a readable message of an API failure.
// status is 0 when err did not come from an HTTP response.
func describeAPIError(err error) (status int, detail string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if d := extractDetail(reqErr.Body); d != "" {
			return reqErr.HTTPStatusCode, d
		}
		return reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body))
	}
	return 0, ""
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

func apiErrorCode(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != nil {
		return fmt.Sprint(apiErr.Code)
	}
	return ""
}

// chatError maps a chat completion failure onto the domain taxonomy so the
// rotation layer can tell retryable failures from fatal ones.
func chatError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("chat request timed out: %w", domain.ErrModelTimeout)
	}

	status, detail := describeAPIError(err)
	code := apiErrorCode(err)
	lower := strings.ToLower(detail)

	var kind error
	switch {
	case status == http.StatusTooManyRequests || code == "rate_limit_exceeded":
		kind = domain.ErrRateLimited
	case status == http.StatusRequestEntityTooLarge || code == "context_length_exceeded" ||
		strings.Contains(lower, "maximum context length") || strings.Contains(lower, "too large"):
		kind = domain.ErrPayloadTooLarge
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = domain.ErrModelTimeout
	default:
		kind = domain.ErrModelProviderError
	}

	if status == 0 {
		return fmt.Errorf("chat request failed: %v: %w", err, kind)
	}
	return fmt.Errorf("chat API error %d: %s: %w", status, detail, kind)
}
