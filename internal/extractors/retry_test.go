package extractors

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// flakyExtractor fails with the scripted errors, then succeeds.
type flakyExtractor struct {
	errs  []error
	calls atomic.Int32
	block bool
}

func (f *flakyExtractor) Kind() domain.SourceKind { return domain.SourceWeb }

func (f *flakyExtractor) Extract(ctx context.Context, _ domain.Source) (*domain.Extraction, error) {
	n := int(f.calls.Add(1)) - 1
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if n < len(f.errs) {
		return nil, f.errs[n]
	}
	return &domain.Extraction{Text: "ok"}, nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestRetrying_RetriesTransientFailure(t *testing.T) {
	f := &flakyExtractor{errs: []error{domain.NewExtractionError(domain.ReasonFetchTimeout, "u", nil)}}
	r := WithRetry(f)
	r.sleep = noSleep

	result, err := r.Extract(context.Background(), domain.Source{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestRetrying_GivesUpAfterAttempts(t *testing.T) {
	transient := &domain.ExtractionError{Reason: domain.ReasonHTTPError, StatusCode: 503}
	f := &flakyExtractor{errs: []error{transient, transient, transient}}
	r := WithRetry(f, WithAttempts(2))
	r.sleep = noSleep

	_, err := r.Extract(context.Background(), domain.Source{})
	assert.Same(t, transient, err)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestRetrying_DoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"empty text", domain.NewExtractionError(domain.ReasonEmptyText, "u", nil)},
		{"auth expired", domain.NewExtractionError(domain.ReasonAuthExpired, "u", nil)},
		{"not found", &domain.ExtractionError{Reason: domain.ReasonHTTPError, StatusCode: 404}},
		{"invalid input", domain.ErrInvalidInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &flakyExtractor{errs: []error{tc.err}}
			r := WithRetry(f, WithAttempts(3))
			r.sleep = noSleep

			_, err := r.Extract(context.Background(), domain.Source{})
			assert.ErrorIs(t, err, tc.err)
			assert.EqualValues(t, 1, f.calls.Load())
		})
	}
}

func TestRetrying_BackoffDoubles(t *testing.T) {
	transient := domain.NewExtractionError(domain.ReasonFetchTimeout, "u", nil)
	f := &flakyExtractor{errs: []error{transient, transient}}
	r := WithRetry(f, WithAttempts(3), WithBackoff(100*time.Millisecond))

	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	_, err := r.Extract(context.Background(), domain.Source{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, waits)
}

func TestRetrying_CancelledDuringBackoff(t *testing.T) {
	rendered := &domain.ExtractionError{Reason: domain.ReasonHTTPError, StatusCode: 502, PDF: []byte("%PDF-1.4")}
	f := &flakyExtractor{errs: []error{rendered}}
	r := WithRetry(f, WithBackoff(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Extract(ctx, domain.Source{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, f.calls.Load())

	var ee *domain.ExtractionError
	require.True(t, errors.As(err, &ee), "the last extraction error is kept")
	assert.Equal(t, []byte("%PDF-1.4"), ee.PDF)
}

func TestRetrying_DoesNotRetryMissingBrowser(t *testing.T) {
	launch := fmt.Errorf("%w: launch browser: not found", domain.ErrRendererUnavailable)
	f := &flakyExtractor{errs: []error{launch}}
	r := WithRetry(f, WithAttempts(3))
	r.sleep = noSleep

	_, err := r.Extract(context.Background(), domain.Source{})
	assert.ErrorIs(t, err, domain.ErrRendererUnavailable)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestRetrying_TimeoutPerAttempt(t *testing.T) {
	f := &flakyExtractor{block: true}
	r := WithRetry(f, WithAttempts(2), WithTimeout(20*time.Millisecond))
	r.sleep = noSleep

	_, err := r.Extract(context.Background(), domain.Source{URL: "https://slow.test"})
	reason, ok := domain.ExtractionReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonFetchTimeout, reason)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestRetrying_Kind(t *testing.T) {
	assert.Equal(t, domain.SourceWeb, WithRetry(&flakyExtractor{}).Kind())
}
