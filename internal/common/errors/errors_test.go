package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectionsFetchFailedError(t *testing.T) {
	cause := stderrors.New("Failed to fetch collections")
	err := NewCollectionsFetchFailedError(cause)

	assert.Equal(t, ErrCodeCollectionsFetchFailed, err.Code)
	assert.Equal(t, "Failed to load collections: Failed to fetch collections", err.Message)
	assert.True(t, err.Retryable)
	assert.False(t, err.Timestamp.IsZero())
	assert.ErrorIs(t, err, cause)
}

func TestNewCollectionsFetchFailedError_UsesWrappedMessage(t *testing.T) {
	cause := NewInvalidUpstreamPayloadError("collections", "collection: Invalid type")
	err := NewCollectionsFetchFailedError(fmt.Errorf("decode: %w", cause))

	assert.Equal(t, "Failed to load collections: Invalid payload from upstream 'collections'", err.Message)
	assert.Contains(t, err.Details, "INVALID_UPSTREAM_PAYLOAD")
	assert.ErrorIs(t, err, cause)
}

func TestStandardError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("view: %w", &StandardError{Code: ErrCodeCycleAbandoned, Message: "ctx cancelled"})
	assert.ErrorIs(t, wrapped, ErrCycleAbandoned)
	assert.NotErrorIs(t, wrapped, ErrSessionClosed)
}

func TestAsStandardError(t *testing.T) {
	base := NewInvalidUpstreamPayloadError("collections", "missing collection")
	wrapped := fmt.Errorf("decode: %w", base)

	got, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, got)

	_, ok = AsStandardError(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "retryable fetch failure keeps retries",
			err:         NewCollectionsFetchFailedError(stderrors.New("502")),
			wantCode:    "COLLECTIONS_FETCH_FAILED",
			wantRetries: 3,
		},
		{
			name:        "non retryable input error",
			err:         NewInvalidJobInputError("bad json"),
			wantCode:    "INVALID_JOB_INPUT",
			wantRetries: 0,
		},
		{
			name:        "retryable code marked non retryable",
			err:         &StandardError{Code: ErrCodeUpstreamUnavailable, Retryable: false},
			wantCode:    "UPSTREAM_UNAVAILABLE",
			wantRetries: 0,
		},
		{
			name:        "unmapped code falls back to raw code",
			err:         &StandardError{Code: "SOMETHING_ELSE"},
			wantCode:    "SOMETHING_ELSE",
			wantRetries: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeCollectionsFetchFailed))
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeUpstreamUnavailable))
	assert.Equal(t, "SESSION", GetErrorCategory(ErrCodeSessionStoreFailed))
	assert.Equal(t, "AGGREGATION", GetErrorCategory(ErrCodeCycleAbandoned))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidJobInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeCollectionsFetchFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidJobInput))
}
