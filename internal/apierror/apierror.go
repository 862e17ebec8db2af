// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Kind is set for domain failures (BatchNotFound, InsufficientStock, LockTimeout)
// so clients can branch without parsing Detail.
type APIError struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithKind builds an envelope carrying a machine-readable error kind.
func WithKind(kind, msg string) *APIError {
	return &APIError{Detail: msg, Kind: kind}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Validation error", Kind: "Validation", Fields: fields}
}
