package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrInvalidQuery", ErrInvalidQuery},
		{"ErrInvalidTransition", ErrInvalidTransition},
		{"ErrExtraction", ErrExtraction},
		{"ErrChunking", ErrChunking},
		{"ErrEmbedding", ErrEmbedding},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrIndexUnavailable", ErrIndexUnavailable},
		{"ErrSchemaMismatch", ErrSchemaMismatch},
		{"ErrCountMismatch", ErrCountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestExtractionError_IsAndAs(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("extract: %w", NewExtractionError(ReasonFetchTimeout, "https://example.com", cause))

	assert.ErrorIs(t, err, ErrExtraction)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var ee *ExtractionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ReasonFetchTimeout, ee.Reason)

	reason, ok := ExtractionReasonOf(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonFetchTimeout, reason)
}

func TestExtractionError_Message(t *testing.T) {
	err := &ExtractionError{Reason: ReasonHTTPError, URL: "https://example.com/x", StatusCode: 404}
	assert.Equal(t, "extraction failed: HTTP_ERROR (status 404) for https://example.com/x", err.Error())
}

func TestExtractionError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *ExtractionError
		want bool
	}{
		{"timeout", &ExtractionError{Reason: ReasonFetchTimeout}, true},
		{"transport failure", &ExtractionError{Reason: ReasonHTTPError}, true},
		{"server error", &ExtractionError{Reason: ReasonHTTPError, StatusCode: 503}, true},
		{"client error", &ExtractionError{Reason: ReasonHTTPError, StatusCode: 404}, false},
		{"empty text", &ExtractionError{Reason: ReasonEmptyText}, false},
		{"auth expired", &ExtractionError{Reason: ReasonAuthExpired}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Retryable())
		})
	}
}

func TestExtractionReasonOf_NotExtraction(t *testing.T) {
	_, ok := ExtractionReasonOf(errors.New("boom"))
	assert.False(t, ok)
}

func TestChunkingError(t *testing.T) {
	err := fmt.Errorf("chunk: %w", &ChunkingError{Reason: ReasonEmptyInput})
	assert.ErrorIs(t, err, ErrChunking)
	assert.Contains(t, err.Error(), "EMPTY_INPUT")
}
