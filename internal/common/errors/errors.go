// Package errors provides the service's standardized error type and its
// mapping onto BPMN errors for the Zeebe worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeCollectionsFetchFailed ErrorCode = "COLLECTIONS_FETCH_FAILED"
	ErrCodeUpstreamUnavailable    ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeInvalidUpstreamPayload ErrorCode = "INVALID_UPSTREAM_PAYLOAD"

	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeSessionClosed      ErrorCode = "SESSION_CLOSED"

	ErrCodeCycleAbandoned  ErrorCode = "CYCLE_ABANDONED"
	ErrCodeInvalidJobInput ErrorCode = "INVALID_JOB_INPUT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code so callers can compare against
// sentinel values such as ErrCycleAbandoned.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ErrCycleAbandoned is returned when an aggregation cycle is cancelled
// before its results may be applied.
var ErrCycleAbandoned = &StandardError{
	Code:      ErrCodeCycleAbandoned,
	Message:   "Aggregation cycle abandoned",
	Retryable: true,
}

// ErrSessionClosed is returned by session operations after teardown.
var ErrSessionClosed = &StandardError{
	Code:    ErrCodeSessionClosed,
	Message: "Session has been torn down",
}

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewCollectionsFetchFailedError wraps any failure of the required
// collections call into the single aggregation-level error.
func NewCollectionsFetchFailedError(err error) *StandardError {
	details, reason := "", ""
	if err != nil {
		details = err.Error()
		reason = details
		var stdErr *StandardError
		if stderrors.As(err, &stdErr) {
			reason = stdErr.Message
		}
	}
	return &StandardError{
		Code:      ErrCodeCollectionsFetchFailed,
		Message:   "Failed to load collections: " + reason,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamUnavailableError reports a transport-level failure talking to an upstream.
func NewUpstreamUnavailableError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamUnavailable,
		Message:   fmt.Sprintf("Upstream '%s' unavailable", source),
		Details:   err.Error(),
		Retryable: true,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidUpstreamPayloadError reports a response body that does not match its contract.
func NewInvalidUpstreamPayloadError(source, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidUpstreamPayload,
		Message:   fmt.Sprintf("Invalid payload from upstream '%s'", source),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"source": source},
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError reports a failing session persistence backend.
func NewSessionStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidJobInputError creates a non-retryable job input error.
func NewInvalidJobInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// AsStandardError extracts a StandardError from an error chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeCollectionsFetchFailed: "COLLECTIONS_FETCH_FAILED",
	ErrCodeUpstreamUnavailable:    "UPSTREAM_UNAVAILABLE",
	ErrCodeInvalidUpstreamPayload: "INVALID_UPSTREAM_PAYLOAD",
	ErrCodeSessionStoreFailed:     "SESSION_STORE_FAILED",
	ErrCodeSessionClosed:          "SESSION_CLOSED",
	ErrCodeCycleAbandoned:         "CYCLE_ABANDONED",
	ErrCodeInvalidJobInput:        "INVALID_JOB_INPUT",
}

// GetRetryCount returns how many job retries a code is worth.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCollectionsFetchFailed,
		ErrCodeUpstreamUnavailable,
		ErrCodeSessionStoreFailed:
		return 3
	case ErrCodeCycleAbandoned:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError maps a StandardError onto the BPMN error thrown to Zeebe.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "COLLECTIONS") || strings.Contains(codeStr, "UPSTREAM"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "CYCLE"):
		return "AGGREGATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
