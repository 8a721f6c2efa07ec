package reqcheck

import "github.com/kailas-cloud/reqcheck/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidDocument   = domain.ErrInvalidDocument
	ErrDocumentTooLarge  = domain.ErrDocumentTooLarge
	ErrUnsupportedFormat = domain.ErrUnsupportedFormat
	ErrNoRequirements    = domain.ErrNoRequirements
	ErrModelExhausted    = domain.ErrModelExhausted
)
