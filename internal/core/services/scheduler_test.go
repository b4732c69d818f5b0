package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

// mockReconciler counts Reconcile calls.
type mockReconciler struct {
	mu     sync.Mutex
	calls  int
	report *driving.ReconcileReport
	err    error
}

func (m *mockReconciler) Reconcile(context.Context) (*driving.ReconcileReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

func (m *mockReconciler) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewScheduler(t *testing.T) {
	scheduler := NewScheduler(&mockReconciler{}, time.Hour)

	require.NotNil(t, scheduler)
	task := scheduler.Task()
	assert.Equal(t, domain.TaskIDReconcile, task.ID)
	assert.Equal(t, time.Hour, task.Interval)
	assert.Empty(t, scheduler.History())
}

func TestScheduler_DisabledReturnsAtOnce(t *testing.T) {
	scheduler := NewScheduler(&mockReconciler{}, 0)

	assert.NoError(t, scheduler.Start(t.Context()))
	assert.NoError(t, scheduler.Stop())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler := NewScheduler(&mockReconciler{}, time.Hour)

	// Stop without starting should be safe
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(&mockReconciler{}, time.Hour)

	done := make(chan error, 1)
	go func() { done <- scheduler.Start(context.Background()) }()

	assert.Eventually(t, func() bool {
		return !scheduler.Task().NextRun.IsZero()
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_DoubleStart(t *testing.T) {
	scheduler := NewScheduler(&mockReconciler{}, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- scheduler.Start(ctx) }()
	assert.Eventually(t, func() bool {
		return !scheduler.Task().NextRun.IsZero()
	}, time.Second, 10*time.Millisecond)

	// Second start should return immediately (already running)
	assert.NoError(t, scheduler.Start(context.Background()))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_RunsReconcilePeriodically(t *testing.T) {
	rec := &mockReconciler{report: &driving.ReconcileReport{
		Checked:    4,
		Mismatches: []driving.CountMismatch{{DocumentID: 2, ChunksCount: 3, IndexPoints: 1}},
	}}
	scheduler := NewScheduler(rec, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = scheduler.Start(ctx) }()

	assert.Eventually(t, func() bool { return rec.Calls() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, scheduler.Stop())

	history := scheduler.History()
	require.NotEmpty(t, history)
	assert.True(t, history[0].Success)
	assert.Equal(t, 4, history[0].ItemsProcessed)
	assert.Equal(t, 1, history[0].Issues)
	assert.False(t, scheduler.Task().LastSuccess.IsZero())
}

func TestScheduler_CheckAndRunDueTasks(t *testing.T) {
	rec := &mockReconciler{err: errors.New("qdrant down")}
	scheduler := NewScheduler(rec, time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return base }

	// A zero NextRun is due.
	scheduler.checkAndRunDueTasks(context.Background())
	scheduler.wg.Wait()

	assert.Equal(t, 1, rec.Calls())
	task := scheduler.Task()
	assert.Equal(t, "qdrant down", task.LastError)
	assert.Equal(t, base.Add(time.Hour), task.NextRun)
	require.Len(t, scheduler.History(), 1)
	assert.False(t, scheduler.History()[0].Success)

	// Not due again until the interval passes.
	scheduler.checkAndRunDueTasks(context.Background())
	scheduler.wg.Wait()
	assert.Equal(t, 1, rec.Calls())
}

func TestScheduler_HistoryIsBounded(t *testing.T) {
	rec := &mockReconciler{report: &driving.ReconcileReport{}}
	scheduler := NewScheduler(rec, time.Nanosecond)

	for range maxTaskHistory + 5 {
		scheduler.runTask(context.Background())
	}

	assert.Len(t, scheduler.History(), maxTaskHistory)
}

func TestScheduledTask_Due(t *testing.T) {
	now := time.Now()

	assert.True(t, (&domain.ScheduledTask{}).Due(now))
	assert.True(t, (&domain.ScheduledTask{NextRun: now}).Due(now))
	assert.True(t, (&domain.ScheduledTask{NextRun: now.Add(-time.Minute)}).Due(now))
	assert.False(t, (&domain.ScheduledTask{NextRun: now.Add(time.Minute)}).Due(now))
}
