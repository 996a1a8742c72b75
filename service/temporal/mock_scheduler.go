package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// mockSchedule holds the parameters the mock recorded for a schedule.
type mockSchedule struct {
	interval  time.Duration
	minAge    time.Duration
	batchSize int32
}

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]mockSchedule
	ensureErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		schedules: make(map[string]mockSchedule),
	}
}

// EnsureReconcileSchedule records that the reconcile schedule was created or updated.
func (m *MockScheduler) EnsureReconcileSchedule(ctx context.Context, interval, minAge time.Duration, batchSize int32) error {
	if m.ensureErr != nil {
		return m.ensureErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.schedules[reconcileScheduleID] = mockSchedule{
		interval:  interval,
		minAge:    minAge,
		batchSize: batchSize,
	}
	return nil
}

// DeleteReconcileSchedule records that the reconcile schedule was deleted.
func (m *MockScheduler) DeleteReconcileSchedule(ctx context.Context) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.schedules[reconcileScheduleID]; !exists {
		return fmt.Errorf("schedule %q not found", reconcileScheduleID)
	}

	delete(m.schedules, reconcileScheduleID)
	return nil
}

// SetEnsureError makes EnsureReconcileSchedule return an error.
func (m *MockScheduler) SetEnsureError(err error) {
	m.ensureErr = err
}

// SetDeleteError makes DeleteReconcileSchedule return an error.
func (m *MockScheduler) SetDeleteError(err error) {
	m.deleteErr = err
}

// ScheduleExists reports whether the reconcile schedule exists.
func (m *MockScheduler) ScheduleExists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.schedules[reconcileScheduleID]
	return exists
}

// GetScheduleInterval returns the recorded interval for the reconcile schedule.
func (m *MockScheduler) GetScheduleInterval() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.schedules[reconcileScheduleID]
	return s.interval, exists
}

// Reset clears all schedules and errors.
func (m *MockScheduler) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = make(map[string]mockSchedule)
	m.ensureErr = nil
	m.deleteErr = nil
}
