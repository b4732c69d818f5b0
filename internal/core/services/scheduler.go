package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// maxTaskHistory bounds the results kept in memory.
const maxTaskHistory = 100

// maxCheckInterval caps how long the loop sleeps between due checks.
const maxCheckInterval = time.Minute

// reconciler is satisfied by DocumentService.
type reconciler interface {
	Reconcile(ctx context.Context) (*driving.ReconcileReport, error)
}

// Scheduler periodically checks that the vector index agrees with the
// metadata store. Task state lives in memory and resets on restart.
type Scheduler struct {
	documents reconciler
	now       func() time.Time

	mu      sync.Mutex
	task    domain.ScheduledTask
	history []domain.TaskResult
	running bool
	busy    bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler running reconcile every interval.
// A non-positive interval disables the task.
func NewScheduler(documents reconciler, interval time.Duration) *Scheduler {
	return &Scheduler{
		documents: documents,
		now:       time.Now,
		task: domain.ScheduledTask{
			ID:       domain.TaskIDReconcile,
			Name:     "Index Reconcile",
			Interval: interval,
		},
	}
}

// Start begins the scheduler loop. This method blocks until Stop is
// called or ctx ends. It returns at once when the task is disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || s.task.Interval <= 0 {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.task.NextRun = s.now().Add(s.task.Interval)
	interval := s.task.Interval
	s.mu.Unlock()

	logger.Debug("Scheduler started: %s every %s", s.task.Name, interval)
	return s.run(ctx, stopCh, min(interval, maxCheckInterval))
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks starts the task when it is due and idle.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || !s.task.Due(s.now()) {
		return
	}
	s.busy = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runTask(ctx)
	}()
}

// runTask executes the reconcile and records its outcome.
func (s *Scheduler) runTask(ctx context.Context) {
	result := domain.TaskResult{
		TaskID:    domain.TaskIDReconcile,
		StartedAt: s.now(),
	}

	report, err := s.documents.Reconcile(ctx)
	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		logger.Warn("Scheduled reconcile failed: %v", err)
	} else {
		result.Success = true
		result.ItemsProcessed = report.Checked
		result.Issues = len(report.Mismatches)
		if result.Issues > 0 {
			logger.Warn("Scheduled reconcile found %d mismatched documents of %d", result.Issues, report.Checked)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.task.LastRun = result.StartedAt
	s.task.NextRun = result.EndedAt.Add(s.task.Interval)
	if result.Success {
		s.task.LastError = ""
		s.task.LastSuccess = result.EndedAt
	} else {
		s.task.LastError = result.Error
	}
	s.history = append(s.history, result)
	if n := len(s.history); n > maxTaskHistory {
		s.history = s.history[n-maxTaskHistory:]
	}
}

// Task returns a snapshot of the reconcile task.
func (s *Scheduler) Task() domain.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}

// History returns past results, oldest first.
func (s *Scheduler) History() []domain.TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TaskResult(nil), s.history...)
}
