package errors

import (
	"errors"
	"fmt"
	"maps"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind classifies an AppError for callers and the HTTP layer.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindUnauthenticated     Kind = "unauthenticated"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamRejected    Kind = "upstream_rejected"
	KindUpstreamProtocol    Kind = "upstream_protocol"
	KindInternal            Kind = "internal"
	KindRateLimited         Kind = "rate_limited"
)

type AppError struct {
	Code        string
	Kind        Kind
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	// Fields maps an input field to a reason key, e.g. "otp" -> "errors.otp.rejected".
	Fields map[string]string
	cause  error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// WithField returns a copy of e with one more field reason attached.
func (e *AppError) WithField(field, reason string) *AppError {
	if e == nil {
		return nil
	}

	cp := *e
	cp.Fields = make(map[string]string, len(e.Fields)+1)
	maps.Copy(cp.Fields, e.Fields)
	cp.Fields[field] = reason

	return &cp
}

// WithUserMessage returns a copy of e with the user facing message replaced.
func (e *AppError) WithUserMessage(msg string) *AppError {
	if e == nil {
		return nil
	}

	cp := *e
	cp.UserMessage = msg

	return &cp
}

// KindOf returns the Kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil && appErr.Kind != "" {
		return appErr.Kind
	}

	return KindInternal
}

// IsKind reports whether err carries an AppError of kind k.
func IsKind(err error, k Kind) bool {
	if err == nil {
		return false
	}

	return KindOf(err) == k
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Kind:        KindValidation,
		Message:     msg,
		UserMessage: "Validation failed.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewFieldErrors builds a validation error from field -> reason pairs.
func NewFieldErrors(fields map[string]string) *AppError {
	err := NewValidationError(fmt.Sprintf("validation failed for %d field(s)", len(fields)))
	err.Fields = make(map[string]string, len(fields))
	maps.Copy(err.Fields, fields)

	return err
}

func NewConflictError(msg string) *AppError {
	return &AppError{
		Code:        "E110",
		Kind:        KindConflict,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{
		Code:        "E120",
		Kind:        KindNotFound,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewUnauthenticatedError(msg string) *AppError {
	return &AppError{
		Code:        "E130",
		Kind:        KindUnauthenticated,
		Message:     msg,
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Kind:        KindInternal,
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

func NewInternalError(msg string, cause error) *AppError {
	return &AppError{
		Code:        "E210",
		Kind:        KindInternal,
		Message:     msg,
		UserMessage: "Unexpected error.",
		Severity:    SeverityHigh,
		Retryable:   false,
		cause:       cause,
	}
}

// NewUpstreamUnavailableError covers transport failures, timeouts and 5xx answers.
func NewUpstreamUnavailableError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Kind:        KindUpstreamUnavailable,
		Message:     fmt.Sprintf("External API unavailable: %s", apiName),
		UserMessage: "Service temporarily unavailable.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewUpstreamRejectedError is returned when the provider understood the request and said no.
func NewUpstreamRejectedError(apiName, detail string) *AppError {
	return &AppError{
		Code:        "E310",
		Kind:        KindUpstreamRejected,
		Message:     fmt.Sprintf("External API rejected request: %s: %s", apiName, detail),
		UserMessage: "Request was rejected.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewUpstreamProtocolError is returned for responses matching no known shape.
func NewUpstreamProtocolError(apiName, raw string) *AppError {
	return &AppError{
		Code:        "E320",
		Kind:        KindUpstreamProtocol,
		Message:     fmt.Sprintf("Unexpected response from %s: %s", apiName, raw),
		UserMessage: "Unexpected response from verification service.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Kind:        KindConflict,
		Message:     msg,
		UserMessage: "Operation is not allowed in the current state.",
		Severity:    SeverityMedium,
		Retryable:   false,
		cause:       nil,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Kind:        KindRateLimited,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}
