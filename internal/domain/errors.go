package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidDocument signals an empty, unreadable or undersized document.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrDocumentTooLarge signals an upload above the configured size limit.
	ErrDocumentTooLarge = errors.New("document too large")
	// ErrUnsupportedFormat signals a file extension the loader cannot read.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNoRequirements signals that extraction produced nothing to compare.
	ErrNoRequirements = errors.New("no requirements extracted")
	// ErrInvalidTransition signals an illegal run state change.
	ErrInvalidTransition = errors.New("invalid run state transition")

	// ErrRateLimited signals a rate limit hit on the model provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrPayloadTooLarge signals that the prompt exceeded the provider's request limits.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrModelTimeout signals that a single model call ran past its deadline.
	ErrModelTimeout = errors.New("model call timed out")
	// ErrModelProviderError signals any other language model provider failure.
	ErrModelProviderError = errors.New("model provider error")
	// ErrModelExhausted signals that every configured key failed with a retryable error.
	ErrModelExhausted = errors.New("model retries exhausted")
	// ErrMalformedResponse signals model output that does not follow the requested format.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// IsRetryable reports whether err is worth retrying with another key.
// Rate limits, oversized payloads and per-call timeouts qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrModelTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
