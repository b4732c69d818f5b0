package extractors

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

const (
	// DefaultAttempts is the total number of tries for transient failures.
	DefaultAttempts = 2

	// DefaultBackoff is the wait before the first retry. It doubles after
	// each further attempt.
	DefaultBackoff = time.Second
)

// Ensure Retrying implements the interface.
var _ driven.Extractor = (*Retrying)(nil)

// Retrying retries an extractor on transient extraction failures.
// Empty text, expired credentials and client errors are returned at once.
type Retrying struct {
	next     driven.Extractor
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// RetryOption configures Retrying.
type RetryOption func(*Retrying)

// WithAttempts sets the total number of attempts.
func WithAttempts(n int) RetryOption {
	return func(r *Retrying) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithBackoff sets the initial backoff.
func WithBackoff(d time.Duration) RetryOption {
	return func(r *Retrying) {
		if d >= 0 {
			r.backoff = d
		}
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.timeout = d
	}
}

// WithRetry wraps next with bounded retries.
func WithRetry(next driven.Extractor, opts ...RetryOption) *Retrying {
	r := &Retrying{
		next:     next,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind returns the wrapped extractor's kind.
func (r *Retrying) Kind() domain.SourceKind {
	return r.next.Kind()
}

// Extract runs the wrapped extractor, retrying retryable failures.
func (r *Retrying) Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error) {
	wait := r.backoff
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		result, err := r.once(ctx, src)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var ee *domain.ExtractionError
		if !errors.As(err, &ee) || !ee.Retryable() || attempt == r.attempts {
			break
		}
		logger.Debug("extract %s attempt %d/%d failed (%s), retrying in %s", r.next.Kind(), attempt, r.attempts, ee.Reason, wait)
		if err := r.sleep(ctx, wait); err != nil {
			// lastErr may carry a rendered PDF worth keeping.
			return nil, errors.Join(lastErr, err)
		}
		wait *= 2
	}
	return nil, lastErr
}

func (r *Retrying) once(ctx context.Context, src domain.Source) (*domain.Extraction, error) {
	if r.timeout <= 0 {
		return r.next.Extract(ctx, src)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	result, err := r.next.Extract(ctx, src)
	var ee *domain.ExtractionError
	if err != nil && ctx.Err() == context.DeadlineExceeded && !errors.As(err, &ee) {
		return nil, domain.NewExtractionError(domain.ReasonFetchTimeout, src.URL, err)
	}
	return result, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
